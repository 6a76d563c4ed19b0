package pak

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"

	"github.com/meigma/pak/internal/batch"
	"github.com/meigma/pak/internal/pathutil"
)

// ExtractOption configures Extract.
type ExtractOption func(*extractConfig)

type extractConfig struct {
	overwrite      bool
	patterns       []string
	workers        int
	readAheadBytes int64
	mode           fs.FileMode
	progress       ProgressFunc
	logger         *slog.Logger
}

// ExtractWithOverwrite allows overwriting existing files.
// By default, existing files are skipped.
func ExtractWithOverwrite(overwrite bool) ExtractOption {
	return func(c *extractConfig) {
		c.overwrite = overwrite
	}
}

// ExtractWithGlob limits extraction to assets matching any of the
// doublestar patterns, such as "/items/**".
func ExtractWithGlob(patterns ...string) ExtractOption {
	return func(c *extractConfig) {
		c.patterns = append(c.patterns, patterns...)
	}
}

// ExtractWithWorkers sets the number of workers for parallel extraction.
// Values < 0 force serial processing. Zero uses GOMAXPROCS.
func ExtractWithWorkers(n int) ExtractOption {
	return func(c *extractConfig) {
		c.workers = n
	}
}

// ExtractWithReadAhead bounds the asset bytes held in memory by workers.
// Values <= 0 disable the bound.
func ExtractWithReadAhead(n int64) ExtractOption {
	return func(c *extractConfig) {
		c.readAheadBytes = n
	}
}

// ExtractWithFileMode sets the permission bits of extracted files.
func ExtractWithFileMode(mode fs.FileMode) ExtractOption {
	return func(c *extractConfig) {
		c.mode = mode
	}
}

// ExtractWithProgress sets a callback to receive a StageExtracting event
// after each extracted asset. The callback is never invoked concurrently.
func ExtractWithProgress(fn ProgressFunc) ExtractOption {
	return func(c *extractConfig) {
		c.progress = fn
	}
}

// ExtractWithLogger sets the logger for extraction.
// If not set, logging is disabled.
func ExtractWithLogger(logger *slog.Logger) ExtractOption {
	return func(c *extractConfig) {
		c.logger = logger
	}
}

// ExtractResult summarizes an Extract call.
type ExtractResult struct {
	// Written is the number of files written.
	Written int

	// Skipped is the number of files left in place because they existed.
	Skipped int

	// Bytes is the total size of the written files.
	Bytes int64
}

// Extract writes the assets of src below destDir, mirroring their paths.
//
// Every selected path is validated before anything is written: a path
// with empty, "." or ".." elements fails with ErrUnsafePath so no asset
// can land outside destDir. Files are written atomically using temp files
// and renames, and parent directories are created as needed.
func Extract(ctx context.Context, src Source, destDir string, opts ...ExtractOption) (ExtractResult, error) {
	cfg := extractConfig{
		readAheadBytes: batch.DefaultReadAheadBytes,
		mode:           batch.DefaultFileMode,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	paths, err := SelectPaths(src, cfg.patterns...)
	if err != nil {
		return ExtractResult{}, err
	}
	items, err := extractItems(src, paths)
	if err != nil {
		return ExtractResult{}, err
	}
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return ExtractResult{}, fmt.Errorf("create destination: %w", err)
	}

	procOpts := []batch.ProcessorOption{
		batch.WithWorkers(cfg.workers),
		batch.WithReadAheadBytes(cfg.readAheadBytes),
	}
	if cfg.progress != nil {
		total := len(items)
		procOpts = append(procOpts, batch.WithProgress(func(item batch.Item, written int, n int64) {
			cfg.progress(ProgressEvent{
				Stage:      StageExtracting,
				Path:       item.Path,
				BytesDone:  uint64(n), //nolint:gosec // byte counts are non-negative
				FilesDone:  written,
				FilesTotal: total,
			})
		}))
	}
	sink := batch.NewFileSink(destDir, batch.WithOverwrite(cfg.overwrite), batch.WithFileMode(cfg.mode))

	res, err := batch.NewProcessor(procOpts...).Process(ctx, items, openItem(src), sink)
	out := ExtractResult{Written: res.Written, Skipped: res.Skipped, Bytes: res.Bytes}
	if err != nil {
		return out, err
	}
	logger.Info("extracted assets", "dest", destDir, "written", out.Written, "skipped", out.Skipped, "bytes", out.Bytes)
	return out, nil
}

// SelectPaths returns the union of the glob matches in lexical order, or
// every path when no patterns are given.
func SelectPaths(src Source, patterns ...string) ([]string, error) {
	if len(patterns) == 0 {
		paths := src.Paths()
		slices.Sort(paths)
		return paths, nil
	}
	var paths []string
	for _, pattern := range patterns {
		matches, err := src.Glob(pattern)
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	slices.Sort(paths)
	return slices.Compact(paths), nil
}

func extractItems(src Source, paths []string) ([]batch.Item, error) {
	s, hasSize := src.(sizer)
	items := make([]batch.Item, 0, len(paths))
	for _, p := range paths {
		name, ok := pathutil.Name(p)
		if !ok || name == "." {
			return nil, fmt.Errorf("%w: %q", ErrUnsafePath, p)
		}
		size := int64(-1)
		if hasSize {
			n, err := s.AssetSize(p)
			if err != nil {
				return nil, err
			}
			size = n
		}
		items = append(items, batch.Item{Name: name, Path: p, Size: size})
	}
	return items, nil
}

func openItem(src Source) batch.OpenFunc {
	return func(_ context.Context, item batch.Item) (io.ReadCloser, error) {
		r, err := OpenAsset(src, item.Path)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(r), nil
	}
}
