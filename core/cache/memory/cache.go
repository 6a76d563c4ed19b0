// Package memory implements an in-process LRU asset cache.
package memory

import (
	"errors"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/meigma/pak/core/cache"
)

const (
	defaultMaxEntries = 4096
	defaultMaxBytes   = 64 << 20
)

// Stats holds cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// Cache implements cache.Cache with an LRU bounded by both entry count
// and total bytes. Get returns a copy, so callers may modify the result.
type Cache struct {
	mu         sync.Mutex
	entries    *lru.Cache[string, []byte]
	maxEntries int
	maxBytes   int64
	removing   bool // explicit removal in progress, guarded by mu

	bytes     atomic.Int64
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// Option configures a memory cache.
type Option func(*Cache)

// WithMaxEntries sets the maximum number of cached assets. Defaults to 4096.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		c.maxEntries = n
	}
}

// WithMaxBytes sets the maximum total size of cached assets. Defaults to 64MB.
func WithMaxBytes(n int64) Option {
	return func(c *Cache) {
		c.maxBytes = n
	}
}

// New creates a memory cache.
func New(opts ...Option) (*Cache, error) {
	c := &Cache{
		maxEntries: defaultMaxEntries,
		maxBytes:   defaultMaxBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxEntries <= 0 {
		return nil, errors.New("max entries must be > 0")
	}
	if c.maxBytes <= 0 {
		return nil, errors.New("max bytes must be > 0")
	}
	entries, err := lru.NewWithEvict(c.maxEntries, c.onEvicted)
	if err != nil {
		return nil, err
	}
	c.entries = entries
	return c, nil
}

// Get returns a copy of the cached content for key.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	data, ok := c.entries.Get(key)
	c.mu.Unlock()
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return append([]byte(nil), data...), true
}

// Put stores a copy of data. Content larger than the byte limit is ignored.
func (c *Cache) Put(key string, data []byte) error {
	size := int64(len(data))
	if size > c.maxBytes {
		return nil
	}
	stored := append([]byte(nil), data...)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.remove(key)
	c.bytes.Add(size)
	c.entries.Add(key, stored)
	for c.bytes.Load() > c.maxBytes && c.entries.Len() > 0 {
		c.entries.RemoveOldest()
	}
	return nil
}

// Delete removes cached content for key.
func (c *Cache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(key)
	return nil
}

// Purge removes every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removing = true
	c.entries.Purge()
	c.removing = false
}

// remove drops key without counting an eviction. c.mu must be held.
func (c *Cache) remove(key string) {
	c.removing = true
	c.entries.Remove(key)
	c.removing = false
}

// Len returns the number of cached assets.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// MaxBytes returns the configured byte limit.
func (c *Cache) MaxBytes() int64 {
	return c.maxBytes
}

// SizeBytes returns the total size of cached assets.
func (c *Cache) SizeBytes() int64 {
	return c.bytes.Load()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

func (c *Cache) onEvicted(_ string, data []byte) {
	if !c.removing {
		c.evictions.Add(1)
	}
	c.bytes.Add(-int64(len(data)))
}

var _ cache.Cache = (*Cache)(nil)
