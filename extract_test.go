package pak

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pakcore "github.com/meigma/pak/core"
	"github.com/meigma/pak/core/testutil"
)

func readTree(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestExtractRoundTrip(t *testing.T) {
	t.Parallel()

	src := writeTree(t, parityTree)
	for _, location := range []string{src, packTree(t, src)} {
		dest := t.TempDir()
		res, err := Extract(context.Background(), openSource(t, location), dest)
		require.NoError(t, err)
		assert.Equal(t, 4, res.Written)
		assert.Zero(t, res.Skipped)

		want := map[string]string{}
		for k, v := range parityTree {
			if k != "_metadata" {
				want[k] = v
			}
		}
		assert.Equal(t, want, readTree(t, dest))
	}
}

func TestExtractGlob(t *testing.T) {
	t.Parallel()

	dest := t.TempDir()
	src := openSource(t, packTree(t, writeTree(t, parityTree)))
	res, err := Extract(context.Background(), src, dest,
		ExtractWithGlob("/items/**", "/items/hat.png", "/a.txt"),
		ExtractWithWorkers(-1),
	)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Written)
	assert.Equal(t, map[string]string{
		"a.txt":             "hi",
		"items/hat.png":     "\x89PNG",
		"items/deep/x.item": `{"name": "x"}`,
	}, readTree(t, dest))

	_, err = Extract(context.Background(), src, dest, ExtractWithGlob("["))
	require.Error(t, err)
}

func TestExtractOverwrite(t *testing.T) {
	t.Parallel()

	dest := writeTree(t, map[string]string{"a.txt": "local"})
	src := openSource(t, packTree(t, writeTree(t, map[string]string{"a.txt": "packed", "b.txt": "b"})))

	res, err := Extract(context.Background(), src, dest)
	require.NoError(t, err)
	assert.Equal(t, ExtractResult{Written: 1, Skipped: 1, Bytes: 1}, res)
	assert.Equal(t, map[string]string{"a.txt": "local", "b.txt": "b"}, readTree(t, dest))

	res, err = Extract(context.Background(), src, dest, ExtractWithOverwrite(true))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Written)
	assert.Equal(t, map[string]string{"a.txt": "packed", "b.txt": "b"}, readTree(t, dest))
}

func TestExtractRejectsUnsafePaths(t *testing.T) {
	t.Parallel()

	for _, bad := range []string{"/../escape.txt", "/a//b", "/./a"} {
		t.Run(bad, func(t *testing.T) {
			t.Parallel()

			data := testutil.BuildArchive(map[string]string{bad: "x", "/ok.txt": "ok"}, nil)
			a, err := pakcore.New(testutil.NewMockByteSource(data))
			require.NoError(t, err)

			parent := t.TempDir()
			dest := filepath.Join(parent, "out")
			_, err = Extract(context.Background(), a, dest)
			require.ErrorIs(t, err, ErrUnsafePath)

			_, statErr := os.Stat(filepath.Join(parent, "escape.txt"))
			assert.True(t, os.IsNotExist(statErr))
			_, statErr = os.Stat(filepath.Join(dest, "ok.txt"))
			assert.True(t, os.IsNotExist(statErr), "nothing is written when any path is unsafe")
		})
	}
}

func TestExtractProgress(t *testing.T) {
	t.Parallel()

	src := openSource(t, packTree(t, writeTree(t, map[string]string{"a": "12", "b": "345", "c": "6"})))

	var (
		mu     sync.Mutex
		events []ProgressEvent
	)
	_, err := Extract(context.Background(), src, t.TempDir(), ExtractWithProgress(func(e ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}))
	require.NoError(t, err)

	require.Len(t, events, 3)
	last := events[len(events)-1]
	assert.Equal(t, StageExtracting, last.Stage)
	assert.Equal(t, 3, last.FilesDone)
	assert.Equal(t, 3, last.FilesTotal)
	assert.Equal(t, uint64(6), last.BytesDone)
}

func TestExtractFileMode(t *testing.T) {
	t.Parallel()

	dest := t.TempDir()
	src := openSource(t, writeTree(t, map[string]string{"a": "1"}))
	_, err := Extract(context.Background(), src, dest, ExtractWithFileMode(0o600))
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dest, "a"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestExtractCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := openSource(t, writeTree(t, map[string]string{"a": "1"}))
	_, err := Extract(ctx, src, t.TempDir())
	require.ErrorIs(t, err, context.Canceled)
}
