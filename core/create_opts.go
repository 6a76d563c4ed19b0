package pak

import (
	"log/slog"

	"github.com/meigma/pak/value"
)

// DefaultMaxFiles is the default limit used when no MaxFiles option is set.
const DefaultMaxFiles = 200_000

// createConfig holds configuration for archive creation.
type createConfig struct {
	ignore        []string
	metadata      value.Object
	metadataFiles []string
	maxFiles      int
	progress      ProgressFunc
	logger        *slog.Logger
	skip          map[string]bool // slash paths relative to the source dir
}

// CreateOption configures archive creation.
type CreateOption func(*createConfig)

// CreateWithIgnore excludes assets whose absolute path matches any of the
// doublestar patterns. A directory that matches is skipped entirely.
func CreateWithIgnore(patterns ...string) CreateOption {
	return func(cfg *createConfig) {
		cfg.ignore = append(cfg.ignore, patterns...)
	}
}

// CreateWithMetadata sets metadata keys, overriding any from the sidecar file.
func CreateWithMetadata(o value.Object) CreateOption {
	return func(cfg *createConfig) {
		if cfg.metadata == nil {
			cfg.metadata = value.Object{}
		}
		for k, v := range o {
			cfg.metadata[k] = value.Clone(v)
		}
	}
}

// CreateWithMetadataFiles sets the sidecar names read at the root of the
// source directory. Pass no names to disable the sidecar.
func CreateWithMetadataFiles(names ...string) CreateOption {
	return func(cfg *createConfig) {
		cfg.metadataFiles = names
	}
}

// CreateWithMaxFiles limits the number of files included in the archive.
// Zero uses DefaultMaxFiles. Negative means no limit.
func CreateWithMaxFiles(n int) CreateOption {
	return func(cfg *createConfig) {
		cfg.maxFiles = n
	}
}

// CreateWithProgress sets a callback to receive progress updates.
// The callback receives events for scanning, writing, and indexing stages.
// The callback may be invoked frequently; keep it lightweight.
func CreateWithProgress(fn ProgressFunc) CreateOption {
	return func(cfg *createConfig) {
		cfg.progress = fn
	}
}

// CreateWithLogger sets the logger for archive creation.
// If not set, logging is disabled.
func CreateWithLogger(logger *slog.Logger) CreateOption {
	return func(cfg *createConfig) {
		cfg.logger = logger
	}
}

// createSkipping excludes one relative path from the walk.
func createSkipping(rel string) CreateOption {
	return func(cfg *createConfig) {
		cfg.skip = withSkip(cfg.skip, rel)
	}
}
