package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"cxxlower/internal/driver"
	"cxxlower/internal/frontend"
	"cxxlower/internal/observ"
)

// runFlags are shared by transpile and watch.
type runFlags struct {
	output      string
	header      string
	includes    []string
	frontend    string
	exclude     []string
	jq          string
	stubsOnly   bool
	werror      bool
	verify      bool
	dryRun      bool
	noCache     bool
	jobs        int
	maxDiag     int
	emitRuntime string
	timingsJSON string
}

func addRunFlags(cmd *cobra.Command, f *runFlags) {
	fl := cmd.Flags()
	fl.StringVarP(&f.output, "output", "o", "", "directory for the generated .rs files (default: next to each input)")
	fl.StringVar(&f.header, "header", "", "comment line placed at the top of every generated file")
	fl.StringArrayVarP(&f.includes, "include", "I", nil, "include directory forwarded to the C++ front end (repeatable)")
	fl.StringVar(&f.frontend, "frontend", "", "front-end command that dumps the resolved AST of a .cpp file as JSON")
	fl.StringArrayVar(&f.exclude, "exclude", nil, "glob of source files whose declarations are dropped (repeatable)")
	fl.StringVar(&f.jq, "jq", "", "jq program applied to the AST document before lowering")
	fl.BoolVar(&f.stubsOnly, "stubs-only", false, "emit signatures with unimplemented!() bodies")
	fl.BoolVar(&f.werror, "werror", false, "treat error diagnostics as unit failures")
	fl.BoolVar(&f.verify, "verify", false, "parse every generated file with the Rust grammar")
	fl.BoolVar(&f.dryRun, "dry-run", false, "lower and report without writing files")
	fl.BoolVar(&f.noCache, "no-cache", false, "do not read or write the unit cache")
	fl.IntVarP(&f.jobs, "jobs", "j", 0, "units lowered in parallel (default: GOMAXPROCS)")
	fl.IntVar(&f.maxDiag, "max-diagnostics", 0, "diagnostics kept per unit (default: 1000)")
	fl.StringVar(&f.emitRuntime, "emit-runtime", "", "also write the cxx_rt crate into this directory")
	fl.StringVar(&f.timingsJSON, "timings-json", "", "write phase timings and totals as JSON to this file")
}

// runSetup is the resolved form of runFlags plus the project config.
type runSetup struct {
	opts        *driver.Options
	cfg         *projectConfig
	werror      bool
	metricsFile string
	emitRuntime string
	timingsJSON string
	timings     bool
}

// resolveRun merges the config file with the flags; an explicitly set flag
// wins over the file.
func resolveRun(cmd *cobra.Command, f *runFlags, inputs []string) (*runSetup, error) {
	pf := cmd.Root().PersistentFlags()
	if format, _ := pf.GetString("diagnostics-format"); format != "pretty" && format != "json" {
		return nil, fmt.Errorf("invalid --diagnostics-format value %q (expected pretty|json)", format)
	}
	first := ""
	if len(inputs) > 0 {
		first = inputs[0]
	}
	cfg, err := configFor(cmd, first)
	if err != nil {
		return nil, err
	}
	changed := cmd.Flags().Changed

	opts := &driver.Options{
		OutDir:         cfg.Output.Dir,
		Header:         cfg.Output.Header,
		Verify:         f.verify || cfg.Output.Verify,
		DryRun:         f.dryRun,
		Jobs:           cfg.Lowering.Jobs,
		MaxDiagnostics: cfg.Lowering.MaxDiagnostics,
	}
	opts.Lower.StubsOnly = f.stubsOnly || cfg.Lowering.StubsOnly
	if changed("output") {
		opts.OutDir = f.output
	}
	if changed("header") {
		opts.Header = f.header
	}
	if changed("jobs") {
		opts.Jobs = f.jobs
	}
	if changed("max-diagnostics") {
		opts.MaxDiagnostics = f.maxDiag
	}
	if opts.Jobs < 0 || opts.MaxDiagnostics < 0 {
		return nil, fmt.Errorf("--jobs and --max-diagnostics must not be negative")
	}

	opts.Frontend.Command = frontendCommand(cfg, f.frontend, changed("frontend"), f.includes)
	if patterns := append(append([]string(nil), cfg.Filter.Exclude...), f.exclude...); len(patterns) > 0 {
		ex, err := frontend.NewExcluder(patterns)
		if err != nil {
			return nil, err
		}
		opts.Frontend.Exclude = ex
	}
	program := cfg.Filter.JQ
	if changed("jq") {
		program = f.jq
	}
	if program != "" {
		filter, err := frontend.NewFilter(program)
		if err != nil {
			return nil, err
		}
		opts.Frontend.Filter = filter
	}

	if !f.noCache && !f.dryRun && cfg.Cache.enabled() {
		cache, err := driver.OpenDiskCache(cfg.Cache.Dir, "cxxlower")
		if err != nil {
			// a broken cache directory only costs speed
			fmt.Fprintf(os.Stderr, "cxxlower: cache disabled: %v\n", err)
		} else {
			opts.Cache = cache
		}
	}

	setup := &runSetup{
		opts:        opts,
		cfg:         cfg,
		werror:      f.werror || cfg.Lowering.Werror,
		emitRuntime: f.emitRuntime,
		timingsJSON: f.timingsJSON,
	}
	if setup.metricsFile, err = pf.GetString("metrics-file"); err != nil {
		return nil, err
	}
	if setup.metricsFile != "" {
		opts.Metrics = observ.NewMetrics()
	}
	if setup.timings, err = pf.GetBool("timings"); err != nil {
		return nil, err
	}
	if setup.timings || setup.timingsJSON != "" {
		opts.Timer = observ.NewTimer()
	}
	return setup, nil
}

// frontendCommand is the configured front end, with override replacing the
// configured path when set. Nil when no front end is known.
func frontendCommand(cfg *projectConfig, override string, overridden bool, includes []string) *frontend.Command {
	path := cfg.Frontend.Command
	if overridden {
		path = override
	}
	if path == "" {
		return nil
	}
	return &frontend.Command{
		Path:     path,
		Args:     cfg.Frontend.Args,
		Includes: append(append([]string(nil), cfg.Frontend.Includes...), includes...),
	}
}

// configFor loads the project config the way every subcommand does.
func configFor(cmd *cobra.Command, input string) (*projectConfig, error) {
	explicit, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, err
	}
	start := "."
	if explicit == "" && input != "" {
		start = filepath.Dir(input)
	}
	return loadConfig(explicit, start)
}
