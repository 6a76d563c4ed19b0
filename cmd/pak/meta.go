package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/meigma/pak"
	"github.com/meigma/pak/value"
)

var metaCmd = &cobra.Command{
	Use:   "meta <source> [key]",
	Short: "Print source metadata",
	Long:  "Print the metadata object of a source, or the value of a single key, as JSON or YAML.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := openSource(cmd, args[0])
		if err != nil {
			return err
		}
		defer src.Close()

		var key string
		if len(args) == 2 {
			key = args[1]
		}
		format, _ := cmd.Flags().GetString("format")
		return runMeta(cmd.OutOrStdout(), src, key, format)
	},
}

func init() {
	metaCmd.Flags().StringP("format", "f", "json", "Output format: json or yaml")
	rootCmd.AddCommand(metaCmd)
}

func runMeta(w io.Writer, src pak.Source, key, format string) error {
	v := src.Metadata()
	if key != "" {
		var err error
		if v, err = src.Meta(key); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return writeValue(w, v, format)
}

// writeValue renders v in the requested format.
func writeValue(w io.Writer, v value.Value, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value.ToAny(v))
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(value.ToAny(v)); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}
