package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"cxxlower/internal/frontend"
)

var (
	packOutput   string
	packJQ       string
	packFrontend string
	packIncludes []string
)

var packCmd = &cobra.Command{
	Use:   "pack [flags] <input>",
	Short: "Convert an AST document to the MessagePack interchange form",
	Long: `pack reads a JSON document (or runs the front end on a C++ source),
optionally applies a jq program, and writes the .astpack form that later
runs decode faster.`,
	Args: cobra.ExactArgs(1),
	RunE: runPack,
}

func init() {
	packCmd.Flags().StringVarP(&packOutput, "output", "o", "", "output path (default: <input>.astpack)")
	packCmd.Flags().StringVar(&packJQ, "jq", "", "jq program applied before packing")
	packCmd.Flags().StringVar(&packFrontend, "frontend", "", "front-end command for .cpp inputs")
	packCmd.Flags().StringArrayVarP(&packIncludes, "include", "I", nil, "include directory forwarded to the C++ front end")
}

func runPack(cmd *cobra.Command, args []string) error {
	path := args[0]
	cfg, err := configFor(cmd, path)
	if err != nil {
		return err
	}
	opts := frontend.Options{
		Command: frontendCommand(cfg, packFrontend, cmd.Flags().Changed("frontend"), packIncludes),
	}
	doc, err := frontend.Read(cmd.Context(), path, opts)
	if err != nil {
		return err
	}
	if packJQ != "" {
		filter, err := frontend.NewFilter(packJQ)
		if err != nil {
			return err
		}
		if doc, err = filter.Apply(doc); err != nil {
			return err
		}
	}
	data, err := frontend.Encode(doc, frontend.FormatMsgpack)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	out := packOutput
	if out == "" {
		out = strings.TrimSuffix(path, filepath.Ext(path)) + ".astpack"
	}
	if out == path {
		return fmt.Errorf("%s is already packed", path)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%d bytes)\n", path, out, len(data))
	return nil
}
