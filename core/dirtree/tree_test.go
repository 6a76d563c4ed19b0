package dirtree

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/meigma/pak/core/internal/paktype"
	"github.com/meigma/pak/core/internal/platform"
	"github.com/meigma/pak/value"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return dir
}

func openTree(t *testing.T, dir string, opts ...Option) *Tree {
	t.Helper()
	tree, err := Open(dir, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { tree.Close() })
	return tree
}

func TestTree(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, map[string]string{
		"a.txt":     "hi",
		"sub/b.txt": "yo",
		"_metadata": `{"name": "base", "version": 6, "tags": ["x", null]}`,
	})
	tree := openTree(t, dir)

	assert.Equal(t, []string{"/a.txt", "/sub/b.txt"}, tree.Paths())
	assert.Equal(t, 2, tree.Len())
	assert.Equal(t, "_metadata", tree.Sidecar())
	assert.Equal(t, dir, tree.Dir())

	assert.True(t, tree.Exists("/a.txt"))
	assert.True(t, tree.Exists("/sub/b.txt"))
	assert.False(t, tree.Exists("/_metadata"), "sidecar is not an asset")
	assert.False(t, tree.Exists("/sub"), "directories are not assets")
	assert.False(t, tree.Exists("a.txt"), "relative paths never exist")

	got, err := tree.Read("/sub/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "yo", string(got))

	v, err := tree.Meta("version")
	require.NoError(t, err)
	assert.Equal(t, value.Int(6), v)
	v, err = tree.Meta("tags")
	require.NoError(t, err)
	assert.Equal(t, value.Array{value.String("x"), value.Nil{}}, v)

	_, err = tree.Meta("missing")
	require.ErrorIs(t, err, paktype.ErrKeyNotFound)
}

func TestTreeDotMetadata(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, map[string]string{
		".metadata": "{\n  // comment\n  \"priority\": 1.5,\n}",
		"x":         "1",
	})
	tree := openTree(t, dir)

	assert.Equal(t, ".metadata", tree.Sidecar())
	assert.Equal(t, []string{"/x"}, tree.Paths())
	v, err := tree.Meta("priority")
	require.NoError(t, err)
	assert.Equal(t, value.Float(1.5), v)
}

func TestTreeSidecarPriority(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, map[string]string{
		"_metadata": `{"from": "underscore"}`,
		".metadata": `{"from": "dot"}`,
	})
	tree := openTree(t, dir)

	assert.Equal(t, ".metadata", tree.Sidecar())
	v, err := tree.Meta("from")
	require.NoError(t, err)
	assert.Equal(t, value.String("dot"), v, "the last sidecar present wins")
	assert.Equal(t, []string{"/_metadata"}, tree.Paths(), "only the loaded sidecar is hidden")
}

func TestTreeNoSidecar(t *testing.T) {
	t.Parallel()

	tree := openTree(t, writeTree(t, map[string]string{"a": "1"}))

	assert.Empty(t, tree.Sidecar())
	assert.Equal(t, value.Object{}, tree.Metadata())
	_, err := tree.Meta("anything")
	require.ErrorIs(t, err, paktype.ErrKeyNotFound)
}

func TestTreeSidecarDisabled(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, map[string]string{"_metadata": `{"a": 1}`})
	tree := openTree(t, dir, WithMetadataFiles())

	assert.Equal(t, []string{"/_metadata"}, tree.Paths())
}

func TestTreeMetadataNotObject(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, map[string]string{"_metadata": `[1, 2]`})
	tree := openTree(t, dir)

	_, err := tree.Meta("a")
	require.ErrorIs(t, err, paktype.ErrMetadataNotObject)
	assert.Equal(t, value.Array{value.Int(1), value.Int(2)}, tree.Metadata())
}

func TestTreeInvalidSidecar(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, map[string]string{"_metadata": `{"a": `})
	_, err := Open(dir)
	require.ErrorIs(t, err, value.ErrInvalidJSON)
}

func TestTreeMissingDir(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "absent"))
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestTreeReadErrors(t *testing.T) {
	t.Parallel()

	tree := openTree(t, writeTree(t, map[string]string{"a": "1"}))

	tests := []struct {
		name string
		path string
		want error
	}{
		{name: "relative", path: "a", want: paktype.ErrNotAbsolute},
		{name: "missing", path: "/b", want: fs.ErrNotExist},
		{name: "root", path: "/", want: fs.ErrNotExist},
		{name: "traversal", path: "/../a", want: fs.ErrNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tree.Read(tt.path)
			require.ErrorIs(t, err, tt.want)
			var pathErr *fs.PathError
			require.ErrorAs(t, err, &pathErr)
			assert.Equal(t, tt.path, pathErr.Path)
		})
	}
}

func TestTreeReadRemovedFile(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, map[string]string{"a": "1"})
	tree := openTree(t, dir)
	require.NoError(t, os.Remove(filepath.Join(dir, "a")))

	_, err := tree.Read("/a")
	require.ErrorIs(t, err, fs.ErrNotExist)
	var pathErr *fs.PathError
	require.ErrorAs(t, err, &pathErr)
	assert.Equal(t, "/a", pathErr.Path)
}

func TestTreeInvalidName(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, map[string]string{"ok": "1"})
	if err := os.WriteFile(filepath.Join(dir, "bad\xffname"), []byte("x"), 0o600); err != nil {
		t.Skipf("filesystem rejects non-UTF-8 names: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(dir, "bad\xffname")); err != nil {
		t.Skipf("filesystem rewrites non-UTF-8 names: %v", err)
	}

	_, err := Open(dir)
	require.ErrorIs(t, err, paktype.ErrInvalidName)
}

func TestTreeMaxFileSize(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, map[string]string{"big": "0123456789", "small": "01"})
	tree := openTree(t, dir, WithMaxFileSize(4))

	_, err := tree.Read("/big")
	require.ErrorIs(t, err, paktype.ErrTooLarge)
	got, err := tree.Read("/small")
	require.NoError(t, err)
	assert.Equal(t, "01", string(got))

	unlimited := openTree(t, dir)
	got, err = unlimited.Read("/big")
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(got))
}

func TestTreeReadSwappedSymlink(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, map[string]string{"a": "1", "b": "2"})
	tree := openTree(t, dir)
	require.NoError(t, os.Remove(filepath.Join(dir, "a")))
	if err := os.Symlink("b", filepath.Join(dir, "a")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := tree.Read("/a")
	require.ErrorIs(t, err, platform.ErrSymlink)
}

func TestTreeSkipsSymlinks(t *testing.T) {
	t.Parallel()

	dir := writeTree(t, map[string]string{"real.txt": "r"})
	if err := os.Symlink(filepath.Join(dir, "real.txt"), filepath.Join(dir, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	tree := openTree(t, dir)
	assert.Equal(t, []string{"/real.txt"}, tree.Paths())
}

func TestTreeGlob(t *testing.T) {
	t.Parallel()

	tree := openTree(t, writeTree(t, map[string]string{
		"items/a.item":  "1",
		"items/b.txt":   "2",
		"deep/x/y.item": "3",
	}))

	got, err := tree.Glob("/**/*.item")
	require.NoError(t, err)
	assert.Equal(t, []string{"/deep/x/y.item", "/items/a.item"}, got)

	_, err = tree.Glob("[")
	require.Error(t, err)
}

func TestTreeMetaReturnsCopy(t *testing.T) {
	t.Parallel()

	tree := openTree(t, writeTree(t, map[string]string{"_metadata": `{"list": [1]}`}))

	v, err := tree.Meta("list")
	require.NoError(t, err)
	v.(value.Array)[0] = value.Int(99)

	again, err := tree.Meta("list")
	require.NoError(t, err)
	assert.Equal(t, value.Array{value.Int(1)}, again)
}

func TestTreeConcurrentReads(t *testing.T) {
	t.Parallel()

	tree := openTree(t, writeTree(t, map[string]string{"a": "alpha", "b": "beta"}))

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			got, err := tree.Read("/a")
			assert.NoError(t, err)
			assert.Equal(t, "alpha", string(got))
		})
	}
	wg.Wait()
}

func TestTreeAssetSize(t *testing.T) {
	t.Parallel()

	tree := openTree(t, writeTree(t, map[string]string{"a": "12345"}))

	n, err := tree.AssetSize("/a")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	_, err = tree.AssetSize("/b")
	require.ErrorIs(t, err, fs.ErrNotExist)
	_, err = tree.AssetSize("a")
	require.ErrorIs(t, err, paktype.ErrNotAbsolute)
}
