package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"cxxlower/internal/diagfmt"
	"cxxlower/internal/driver"
	runtimeembed "cxxlower/runtime"
)

var transpileFlags runFlags

var transpileCmd = &cobra.Command{
	Use:   "transpile [flags] <inputs...>",
	Short: "Lower translation units to Rust",
	Long: `transpile lowers every input to <unit>.rs. Inputs are AST documents
(.json, .astpack, .msgpack), C++ sources handed to the configured front end,
or directories searched for either. A unit with a fatal error produces no
file and fails the run; other units are unaffected.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTranspile,
}

func init() {
	addRunFlags(transpileCmd, &transpileFlags)
}

func runTranspile(cmd *cobra.Command, args []string) error {
	inputs, err := driver.ExpandInputs(args)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no inputs found in %v", args)
	}
	setup, err := resolveRun(cmd, &transpileFlags, inputs)
	if err != nil {
		return err
	}
	results, err := transpileOnce(cmd, setup, inputs)
	if err != nil {
		return err
	}
	failed := reportRun(cmd, setup, results)
	if err := finishRun(cmd, setup, results); err != nil {
		return err
	}
	if failed {
		dumpTraceRing(cmd, cmd.ErrOrStderr())
		return errUnitsFailed
	}
	return nil
}

func transpileOnce(cmd *cobra.Command, setup *runSetup, inputs []string) ([]*driver.Result, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	tui, err := useTUI(cmd, len(inputs))
	if err != nil {
		return nil, err
	}
	if tui {
		return runTranspileWithUI(ctx, "transpile", inputs, setup.opts)
	}
	return driver.Transpile(ctx, inputs, setup.opts)
}

// reportRun prints every unit's diagnostics and the summary line. It
// reports whether any unit failed.
func reportRun(cmd *cobra.Command, setup *runSetup, results []*driver.Result) bool {
	errOut := cmd.ErrOrStderr()
	pf := cmd.Root().PersistentFlags()
	format, _ := pf.GetString("diagnostics-format")
	pathFlag, _ := pf.GetString("path-mode")
	pathMode := diagfmt.ParsePathMode(pathFlag)
	colored := false
	if f, ok := errOut.(*os.File); ok {
		colored, _ = colorEnabled(cmd, f)
	}
	failed := false
	for _, r := range results {
		if r == nil {
			continue
		}
		if format == "json" {
			if err := diagfmt.JSON(errOut, r.Bag, r.Files, diagfmt.JSONOpts{
				PathMode:     pathMode,
				IncludeNotes: true,
				Unit:         r.Unit,
			}); err != nil {
				fmt.Fprintf(errOut, "cxxlower: %v\n", err)
			}
		} else {
			diagfmt.Pretty(errOut, r.Bag, r.Files, diagfmt.PrettyOpts{
				Color:     colored,
				PathMode:  pathMode,
				ShowNotes: true,
				Preview:   true,
			})
		}
		if r.Failed(setup.werror) {
			failed = true
		} else if r.Output != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", r.Path, r.Output)
		}
	}
	if setup.opts.DryRun && len(results) == 1 && results[0] != nil && results[0].Fatal == nil {
		io.WriteString(cmd.OutOrStdout(), results[0].Text)
	}
	fmt.Fprintf(errOut, "cxxlower: %s\n", driver.Summarize(results, setup.werror))
	return failed
}

// finishRun writes the side outputs a run was asked for.
func finishRun(cmd *cobra.Command, setup *runSetup, results []*driver.Result) error {
	if setup.emitRuntime != "" {
		if err := runtimeembed.WriteCrate(setup.emitRuntime); err != nil {
			return err
		}
	}
	if timer := setup.opts.Timer; timer != nil {
		if setup.timings {
			io.WriteString(cmd.ErrOrStderr(), timer.Summary())
		}
		if setup.timingsJSON != "" {
			data, err := driver.TimingJSON(timer, driver.Summarize(results, setup.werror))
			if err != nil {
				return err
			}
			if err := os.WriteFile(setup.timingsJSON, append(data, '\n'), 0o644); err != nil {
				return fmt.Errorf("write timings: %w", err)
			}
		}
	}
	return setup.opts.Metrics.WriteFile(setup.metricsFile)
}
