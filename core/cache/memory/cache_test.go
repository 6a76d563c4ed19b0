package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/pak/core/cache"
)

func TestGetPut(t *testing.T) {
	t.Parallel()

	c, err := New()
	require.NoError(t, err)

	key := cache.Key("src", "/a.txt")
	_, ok := c.Get(key)
	assert.False(t, ok)

	require.NoError(t, c.Put(key, []byte("hi")))
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, []byte("hi"), got)
	assert.Equal(t, int64(2), c.SizeBytes())

	got[0] = 'X'
	again, _ := c.Get(key)
	assert.Equal(t, []byte("hi"), again, "Get must return a copy")

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestPutReplacesExisting(t *testing.T) {
	t.Parallel()

	c, err := New()
	require.NoError(t, err)

	require.NoError(t, c.Put("k", []byte("abcd")))
	require.NoError(t, c.Put("k", []byte("ab")))
	assert.Equal(t, int64(2), c.SizeBytes())
	assert.Equal(t, 1, c.Len())
	assert.Zero(t, c.Stats().Evictions, "replacing a key is not an eviction")
}

func TestByteLimitEvictsOldest(t *testing.T) {
	t.Parallel()

	c, err := New(WithMaxBytes(10))
	require.NoError(t, err)

	require.NoError(t, c.Put("a", make([]byte, 4)))
	require.NoError(t, c.Put("b", make([]byte, 4)))
	require.NoError(t, c.Put("c", make([]byte, 4)))

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.LessOrEqual(t, c.SizeBytes(), int64(10))
	assert.Equal(t, int64(1), c.Stats().Evictions)

	require.NoError(t, c.Put("huge", make([]byte, 11)))
	_, ok = c.Get("huge")
	assert.False(t, ok)
}

func TestEntryLimit(t *testing.T) {
	t.Parallel()

	c, err := New(WithMaxEntries(2))
	require.NoError(t, err)
	for i := range 5 {
		require.NoError(t, c.Put(fmt.Sprint(i), []byte{byte(i)}))
	}
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int64(2), c.SizeBytes())
	assert.Equal(t, int64(3), c.Stats().Evictions)
}

func TestDeleteAndPurge(t *testing.T) {
	t.Parallel()

	c, err := New()
	require.NoError(t, err)
	require.NoError(t, c.Put("a", []byte("1")))
	require.NoError(t, c.Put("b", []byte("22")))

	require.NoError(t, c.Delete("a"))
	require.NoError(t, c.Delete("missing"))
	assert.Equal(t, int64(2), c.SizeBytes())

	c.Purge()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.SizeBytes())
	assert.Zero(t, c.Stats().Evictions, "explicit removals are not evictions")
}

func TestInvalidOptions(t *testing.T) {
	t.Parallel()

	_, err := New(WithMaxEntries(0))
	require.Error(t, err)
	_, err = New(WithMaxBytes(-1))
	require.Error(t, err)
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()

	c, err := New(WithMaxBytes(64))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Go(func() {
			for j := range 100 {
				key := fmt.Sprintf("%d-%d", i, j%10)
				_ = c.Put(key, make([]byte, 8))
				c.Get(key)
			}
		})
	}
	wg.Wait()
	assert.LessOrEqual(t, c.SizeBytes(), int64(64))
}
