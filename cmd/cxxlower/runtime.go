package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cxxlower/internal/version"
	runtimeembed "cxxlower/runtime"
)

var runtimeCmd = &cobra.Command{
	Use:   "runtime <dir>",
	Short: "Write the cxx_rt crate that generated code depends on",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runtimeembed.WriteCrate(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s written to %s\n", version.RuntimeABI, args[0])
		return nil
	},
}
