package pak

import (
	"log/slog"

	"github.com/meigma/pak/core/cache"
)

// Option configures an Archive.
type Option func(*Archive)

// WithMaxFileSize limits the size of assets returned by Read, which then
// fails with ErrTooLarge. By default there is no limit. Zero disables the
// limit. Reader is not affected.
func WithMaxFileSize(limit uint64) Option {
	return func(a *Archive) {
		a.maxFileSize = limit
	}
}

// WithCache enables asset caching.
//
// When enabled, asset content is cached after first read and served from
// the cache on subsequent reads. Concurrent misses for the same asset are
// deduplicated.
func WithCache(c cache.Cache) Option {
	return func(a *Archive) {
		a.cache = c
	}
}

// WithLogger sets the logger for archive operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		a.logger = logger
	}
}
