package main

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"cxxlower/internal/diag"
	"cxxlower/internal/diagfmt"
	"cxxlower/internal/frontend"
	"cxxlower/internal/layout"
	"cxxlower/internal/source"
	"cxxlower/internal/types"
)

var (
	layoutRecords  []string
	layoutIncludes []string
	layoutFrontend string
)

var layoutCmd = &cobra.Command{
	Use:   "layout [flags] <input>",
	Short: "Print the lowered layout and vtables of every class in a unit",
	Args:  cobra.ExactArgs(1),
	RunE:  runLayout,
}

func init() {
	layoutCmd.Flags().StringArrayVar(&layoutRecords, "record", nil, "only print records with this name (repeatable)")
	layoutCmd.Flags().StringArrayVarP(&layoutIncludes, "include", "I", nil, "include directory forwarded to the C++ front end")
	layoutCmd.Flags().StringVar(&layoutFrontend, "frontend", "", "front-end command for .cpp inputs")
}

func runLayout(cmd *cobra.Command, args []string) error {
	path := args[0]
	cfg, err := configFor(cmd, path)
	if err != nil {
		return err
	}
	opts := frontend.Options{
		Command: frontendCommand(cfg, layoutFrontend, cmd.Flags().Changed("frontend"), layoutIncludes),
	}
	bag := diag.NewBag(200)
	u, loadErr := frontend.Load(cmd.Context(), path, opts, &diag.BagReporter{Bag: bag})
	files := source.NewFileSet()
	if u != nil {
		files = u.Files
	}
	if loadErr == nil {
		failed := printLayouts(cmd.OutOrStdout(), u.Types, layoutRecords, &diag.BagReporter{Bag: bag})
		if failed {
			loadErr = errUnitsFailed
		}
	}
	bag.Sort()
	colored, _ := colorEnabled(cmd, os.Stderr)
	diagfmt.Pretty(cmd.ErrOrStderr(), bag, files, diagfmt.PrettyOpts{Color: colored, ShowNotes: true, Preview: true})
	if loadErr != nil {
		return errUnitsFailed
	}
	return nil
}

// printLayouts describes every complete record, or only those named in
// only. A record whose layout cannot be computed is reported and skipped.
func printLayouts(w io.Writer, in *types.Interner, only []string, rep diag.Reporter) (failed bool) {
	eng := layout.New(in)
	for _, rec := range in.Records() {
		info, ok := in.RecordInfo(rec)
		if !ok || !info.Complete {
			continue
		}
		if len(only) > 0 && !slices.Contains(only, info.Name) && !slices.Contains(only, info.QualName) {
			continue
		}
		l, err := eng.Of(rec)
		if err != nil {
			diag.ReportError(rep, diag.LayInvariantViolation, source.Span{}, err.Error()).Emit()
			failed = true
			continue
		}
		fmt.Fprintln(w, layout.Describe(in, l))
	}
	return failed
}
