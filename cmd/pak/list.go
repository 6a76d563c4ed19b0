package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/meigma/pak"
)

type listOptions struct {
	globs []string
	long  bool
}

var listCmd = &cobra.Command{
	Use:     "list <source>",
	Aliases: []string{"ls"},
	Short:   "List asset paths",
	Long:    "List the asset paths of a source in lexical order, optionally filtered by doublestar globs such as /items/**.",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := openSource(cmd, args[0])
		if err != nil {
			return err
		}
		defer src.Close()
		return runList(cmd.OutOrStdout(), src, loadListOptions(cmd))
	},
}

func init() {
	listCmd.Flags().StringSlice("glob", nil, "Only list assets matching these patterns")
	listCmd.Flags().BoolP("long", "l", false, "Show asset sizes")
	rootCmd.AddCommand(listCmd)
}

func loadListOptions(cmd *cobra.Command) listOptions {
	globs, _ := cmd.Flags().GetStringSlice("glob")
	long, _ := cmd.Flags().GetBool("long")
	return listOptions{globs: globs, long: long}
}

func runList(w io.Writer, src pak.Source, opts listOptions) error {
	paths, err := pak.SelectPaths(src, opts.globs...)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if !opts.long {
			fmt.Fprintln(w, p)
			continue
		}
		size, err := pak.AssetSize(src, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%10s  %s\n", humanize.IBytes(uint64(size)), p) //nolint:gosec // sizes are non-negative
	}
	return nil
}
