package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"cxxlower/internal/version"
)

// Exit statuses: 1 when a unit failed, 2 for usage and setup errors.
const (
	exitUnitsFailed = 1
	exitUsage       = 2
)

// errUnitsFailed is returned after a run that printed its own diagnostics.
var errUnitsFailed = errors.New("one or more units failed")

var rootCmd = &cobra.Command{
	Use:           "cxxlower",
	Short:         "Lower resolved C++ translation units to Rust",
	Long:          `cxxlower turns the resolved AST of a C++ translation unit into a Rust source file that links against the cxx_rt runtime crate.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		stopProf, err := setupProfiling(cmd)
		if err != nil {
			return err
		}
		cleanups = append(cleanups, stopProf)
		stopTrace, err := setupTracing(cmd)
		if err != nil {
			return err
		}
		cleanups = append(cleanups, stopTrace)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		runCleanups()
	},
}

// cleanups run in reverse order once the command ends.
var cleanups []func()

func runCleanups() {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	cleanups = nil
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(transpileCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(packCmd)
	rootCmd.AddCommand(runtimeCmd)
	rootCmd.AddCommand(versionCmd)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "path to cxxlower.toml (default: search upward from the working directory)")
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.String("diagnostics-format", "pretty", "diagnostics output (pretty|json)")
	pf.String("path-mode", "relative", "how diagnostic paths are shown (auto|absolute|relative|basename)")
	pf.String("ui", "auto", "progress UI for multi-unit runs (auto|on|off)")
	pf.Bool("timings", false, "print per-phase timings on stderr")
	pf.String("metrics-file", "", "write Prometheus metrics in text format to this file")
	pf.String("trace", "", "trace output file (- for stderr)")
	pf.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	pf.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	pf.String("trace-format", "auto", "trace encoding (auto|text|ndjson)")
	pf.Int("trace-ring-size", 4096, "events kept by the ring tracer")
	pf.Duration("trace-heartbeat", 0, "emit a heartbeat event at this interval (0 disables)")
	pf.String("cpu-profile", "", "write a CPU profile to this file")
	pf.String("mem-profile", "", "write a heap profile to this file on exit")
	pf.String("runtime-trace", "", "write a Go runtime trace to this file")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	runCleanups()
	if err == nil {
		return
	}
	if errors.Is(err, errUnitsFailed) {
		os.Exit(exitUnitsFailed)
	}
	fmt.Fprintf(os.Stderr, "cxxlower: %v\n", err)
	os.Exit(exitUsage)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// colorEnabled resolves --color against f.
func colorEnabled(cmd *cobra.Command, f *os.File) (bool, error) {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, err
	}
	switch mode {
	case "on":
		return true, nil
	case "off":
		return false, nil
	case "auto", "":
		return isTerminal(f) && os.Getenv("NO_COLOR") == "", nil
	}
	return false, fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
}
