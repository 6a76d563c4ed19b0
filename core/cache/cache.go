package cache

import "github.com/opencontainers/go-digest"

// Cache stores asset contents read from archives.
//
// Keys are produced by [Key] and combine the archive source identity with
// the asset path, so entries from different archives never collide.
//
// Implementations should handle their own size limits and eviction policies.
// Implementations must be safe for concurrent use. Put copies any data it
// keeps, and Get returns a slice owned by the caller.
type Cache interface {
	// Get returns the cached content for key.
	// Returns nil, false if content is not cached.
	Get(key string) ([]byte, bool)

	// Put stores content under key. Implementations may decline to store
	// content that exceeds their limits.
	Put(key string, data []byte) error

	// Delete removes cached content for key.
	// Missing entries are a no-op.
	Delete(key string) error

	// MaxBytes returns the configured cache size limit (0 = unlimited).
	MaxBytes() int64

	// SizeBytes returns the current cache size in bytes.
	SizeBytes() int64
}

// Key returns the cache key for an asset path within a source.
// The key is a hex SHA256 digest, safe to use as a file name.
func Key(sourceID, path string) string {
	return digest.FromString(sourceID + "\x00" + path).Encoded()
}
