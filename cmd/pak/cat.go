package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/meigma/pak"
	pakcore "github.com/meigma/pak/core"
)

var catCmd = &cobra.Command{
	Use:   "cat <source> <path>...",
	Short: "Print asset contents",
	Long:  "Write the contents of one or more assets to stdout. Paths without a leading slash are treated as absolute.",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := openSource(cmd, args[0])
		if err != nil {
			return err
		}
		defer src.Close()
		return runCat(cmd.OutOrStdout(), src, args[1:])
	},
}

func init() {
	rootCmd.AddCommand(catCmd)
}

func runCat(w io.Writer, src pak.Source, paths []string) error {
	for _, p := range paths {
		r, err := pak.OpenAsset(src, pakcore.NormalizePath(p))
		if err != nil {
			return err
		}
		if _, err := io.Copy(w, r); err != nil {
			return fmt.Errorf("write %s: %w", p, err)
		}
	}
	return nil
}
