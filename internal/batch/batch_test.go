package batch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openFrom(files map[string]string) OpenFunc {
	return func(_ context.Context, item Item) (io.ReadCloser, error) {
		content, ok := files[item.Path]
		if !ok {
			return nil, os.ErrNotExist
		}
		return io.NopCloser(strings.NewReader(content)), nil
	}
}

func items(files map[string]string) []Item {
	out := make([]Item, 0, len(files))
	for path, content := range files {
		out = append(out, Item{Name: strings.TrimPrefix(path, "/"), Path: path, Size: int64(len(content))})
	}
	return out
}

func TestProcessWritesFiles(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"/a.txt":         "alpha",
		"/sub/b.txt":     "beta",
		"/sub/deep/c.go": "package c",
	}
	for _, workers := range []int{-1, 0, 4} {
		dest := t.TempDir()
		res, err := NewProcessor(WithWorkers(workers)).Process(
			context.Background(), items(files), openFrom(files), NewFileSink(dest))
		require.NoError(t, err)
		assert.Equal(t, Result{Written: 3, Bytes: 18}, res)

		for path, content := range files {
			got, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(strings.TrimPrefix(path, "/"))))
			require.NoError(t, err)
			assert.Equal(t, content, string(got))
		}
	}
}

func TestProcessSkipsExisting(t *testing.T) {
	t.Parallel()

	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "a"), []byte("old"), 0o600))
	files := map[string]string{"/a": "new", "/b": "b"}

	res, err := NewProcessor().Process(context.Background(), items(files), openFrom(files), NewFileSink(dest))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)
	assert.Equal(t, 1, res.Skipped)
	got, err := os.ReadFile(filepath.Join(dest, "a"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))

	res, err = NewProcessor().Process(context.Background(), items(files), openFrom(files),
		NewFileSink(dest, WithOverwrite(true)))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Written)
	got, err = os.ReadFile(filepath.Join(dest, "a"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestProcessFileMode(t *testing.T) {
	t.Parallel()

	dest := t.TempDir()
	files := map[string]string{"/a": "x"}
	_, err := NewProcessor().Process(context.Background(), items(files), openFrom(files),
		NewFileSink(dest, WithFileMode(0o600)))
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dest, "a"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestProcessOpenError(t *testing.T) {
	t.Parallel()

	dest := t.TempDir()
	boom := errors.New("boom")
	open := func(context.Context, Item) (io.ReadCloser, error) { return nil, boom }

	_, err := NewProcessor().Process(context.Background(), []Item{{Name: "a", Path: "/a", Size: 1}}, open, NewFileSink(dest))
	require.ErrorIs(t, err, boom)
}

func TestProcessShortContent(t *testing.T) {
	t.Parallel()

	dest := t.TempDir()
	files := map[string]string{"/a": "xy"}
	_, err := NewProcessor().Process(context.Background(), []Item{{Name: "a", Path: "/a", Size: 5}},
		openFrom(files), NewFileSink(dest))
	require.ErrorContains(t, err, "short copy")

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp file is removed and nothing is committed")
}

func TestProcessRejectsInvalidNames(t *testing.T) {
	t.Parallel()

	dest := t.TempDir()
	files := map[string]string{"/../escape": "x"}
	_, err := NewProcessor().Process(context.Background(), []Item{{Name: "../escape", Path: "/../escape", Size: 1}},
		openFrom(files), NewFileSink(dest))
	require.ErrorIs(t, err, os.ErrInvalid)

	_, statErr := os.Stat(filepath.Join(filepath.Dir(dest), "escape"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestProcessCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	files := map[string]string{"/a": "x"}
	_, err := NewProcessor().Process(ctx, items(files), openFrom(files), NewFileSink(t.TempDir()))
	require.ErrorIs(t, err, context.Canceled)
}

func TestProcessProgressAndBudget(t *testing.T) {
	t.Parallel()

	files := map[string]string{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		files["/"+name] = strings.Repeat(name, 100)
	}

	var (
		mu   sync.Mutex
		seen []int
		last int64
	)
	proc := NewProcessor(
		WithWorkers(3),
		WithReadAheadBytes(150),
		WithProgress(func(_ Item, written int, total int64) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, written)
			last = total
		}),
	)
	res, err := proc.Process(context.Background(), items(files), openFrom(files), NewFileSink(t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, 6, res.Written)
	assert.Len(t, seen, 6)
	assert.Equal(t, int64(600), last)
}

type memSink struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (s *memSink) ShouldProcess(Item) bool { return true }

func (s *memSink) Writer(item Item) (Committer, error) {
	return &memCommitter{sink: s, name: item.Name}, nil
}

type memCommitter struct {
	bytes.Buffer
	sink *memSink
	name string
}

func (c *memCommitter) Commit() error {
	c.sink.mu.Lock()
	defer c.sink.mu.Unlock()
	c.sink.files[c.name] = c.Bytes()
	return nil
}

func (c *memCommitter) Discard() error { return nil }

func TestProcessCustomSink(t *testing.T) {
	t.Parallel()

	files := map[string]string{"/x": "1", "/y/z": "22"}
	sink := &memSink{files: map[string][]byte{}}
	res, err := NewProcessor().Process(context.Background(), items(files), openFrom(files), sink)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Written)
	assert.Equal(t, map[string][]byte{"x": []byte("1"), "y/z": []byte("22")}, sink.files)
}
