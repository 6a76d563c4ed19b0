// Command pak inspects, packs, and unpacks SBAsset6 asset archives.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"charm.land/fang/v2"
	"charm.land/log/v2"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/meigma/pak"
	"github.com/meigma/pak/core/cache"
	"github.com/meigma/pak/core/cache/disk"
	"github.com/meigma/pak/core/cache/memory"
)

var rootCmd = &cobra.Command{
	Use:   "pak",
	Short: "Work with packed asset archives",
	Long: "Inspect, pack, and unpack SBAsset6 asset archives. Every command that reads\n" +
		"assets accepts a .pak file, an asset directory, or an http(s) URL to a .pak file.",
	SilenceUsage: true,
}

func init() {
	addGlobalFlags(rootCmd)
}

func addGlobalFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "Enable debug logging")
	flags.String("cache-dir", "", "Cache asset content on disk in this directory")
	flags.String("cache-size", "", "Cache size limit, such as 256MiB (default: unlimited on disk, 64MiB in memory)")
	flags.Bool("memory-cache", false, "Cache asset content in memory")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := fang.Execute(ctx, rootCmd); err != nil {
		stop()
		os.Exit(1)
	}
}

// newLogger returns a slog logger that writes through charm log.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	handler := log.NewWithOptions(w, log.Options{
		Level:  level,
		Prefix: "pak",
	})
	return slog.New(handler)
}

func loggerFor(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	return newLogger(cmd.ErrOrStderr(), verbose)
}

// cacheFor builds the asset cache selected by the persistent flags, or nil.
func cacheFor(cmd *cobra.Command) (cache.Cache, error) {
	dir, _ := cmd.Flags().GetString("cache-dir")
	sizeFlag, _ := cmd.Flags().GetString("cache-size")
	inMemory, _ := cmd.Flags().GetBool("memory-cache")

	var limit int64
	if sizeFlag != "" {
		n, err := humanize.ParseBytes(sizeFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid --cache-size: %w", err)
		}
		limit = int64(n) //nolint:gosec // flag values are far below MaxInt64
	}

	switch {
	case dir != "":
		var opts []disk.Option
		if limit > 0 {
			opts = append(opts, disk.WithMaxBytes(limit))
		}
		c, err := disk.New(dir, opts...)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		return c, nil
	case inMemory:
		var opts []memory.Option
		if limit > 0 {
			opts = append(opts, memory.WithMaxBytes(limit))
		}
		c, err := memory.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create cache: %w", err)
		}
		return c, nil
	default:
		return nil, nil //nolint:nilnil // no cache requested
	}
}

// openSource opens location with the logger and cache chosen by flags.
func openSource(cmd *cobra.Command, location string) (pak.Source, error) {
	opts := []pak.Option{pak.WithLogger(loggerFor(cmd))}
	c, err := cacheFor(cmd)
	if err != nil {
		return nil, err
	}
	if c != nil {
		opts = append(opts, pak.WithCache(c))
	}
	return pak.Open(cmd.Context(), location, opts...)
}
