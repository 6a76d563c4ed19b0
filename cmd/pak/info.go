package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"

	"github.com/meigma/pak"
	pakcore "github.com/meigma/pak/core"
	"github.com/meigma/pak/core/dirtree"
	"github.com/meigma/pak/value"
)

var infoCmd = &cobra.Command{
	Use:   "info <source>",
	Short: "Summarize a source",
	Long:  "Show the backend, asset count, content size, and metadata keys of a source. With --digest, also print a content digest per asset.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := openSource(cmd, args[0])
		if err != nil {
			return err
		}
		defer src.Close()

		withDigests, _ := cmd.Flags().GetBool("digest")
		return runInfo(cmd.OutOrStdout(), args[0], src, withDigests)
	},
}

func init() {
	infoCmd.Flags().Bool("digest", false, "Print the sha256 digest of every asset")
	rootCmd.AddCommand(infoCmd)
}

func runInfo(w io.Writer, location string, src pak.Source, withDigests bool) error {
	paths := src.Paths()
	var total int64
	for _, p := range paths {
		n, err := pak.AssetSize(src, p)
		if err != nil {
			return err
		}
		total += n
	}

	field(w, "Source", location)
	switch s := src.(type) {
	case *pakcore.Archive:
		field(w, "Backend", "archive")
		field(w, "Archive size", humanize.IBytes(uint64(s.Size()))) //nolint:gosec // sizes are non-negative
		field(w, "Index offset", fmt.Sprint(s.IndexOffset()))
		field(w, "Source ID", s.SourceID())
	case *dirtree.Tree:
		field(w, "Backend", "directory")
		sidecar := s.Sidecar()
		if sidecar == "" {
			sidecar = "(none)"
		}
		field(w, "Sidecar", sidecar)
	}
	field(w, "Assets", humanize.Comma(int64(len(paths))))
	field(w, "Content", humanize.IBytes(uint64(total))) //nolint:gosec // sizes are non-negative
	field(w, "Metadata", metadataSummary(src.Metadata()))

	if !withDigests {
		return nil
	}
	fmt.Fprintln(w)
	for _, p := range paths {
		d, err := assetDigest(src, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s  %s\n", d, p)
	}
	return nil
}

func field(w io.Writer, name, val string) {
	fmt.Fprintf(w, "%-14s%s\n", name+":", val)
}

func metadataSummary(v value.Value) string {
	o, ok := v.(value.Object)
	if !ok {
		return value.KindOf(v).String()
	}
	if len(o) == 0 {
		return "(empty)"
	}
	return strings.Join(o.Keys(), ", ")
}

// assetDigest returns the canonical digest of one asset's content.
func assetDigest(src pak.Source, path string) (digest.Digest, error) {
	r, err := pak.OpenAsset(src, path)
	if err != nil {
		return "", err
	}
	d, err := digest.Canonical.FromReader(r)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	return d, nil
}
