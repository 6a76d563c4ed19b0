package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/meigma/pak"
	pakcore "github.com/meigma/pak/core"
	"github.com/meigma/pak/core/cache/disk"
	"github.com/meigma/pak/core/cache/memory"
	"github.com/meigma/pak/value"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testFiles = map[string]string{
	"a.txt":         "hi",
	"items/hat.png": "\x89PNG",
	"items/x.item":  `{"name": "x"}`,
	"_metadata":     `{"name": "base", "version": 6}`,
}

func writeTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range testFiles {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return dir
}

func packTree(t *testing.T, dir string) string {
	t.Helper()
	dest := filepath.Join(t.TempDir(), "assets.pak")
	require.NoError(t, pakcore.CreateFile(context.Background(), dir, dest))
	return dest
}

func open(t *testing.T, location string) pak.Source {
	t.Helper()
	src, err := pak.Open(context.Background(), location)
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })
	return src
}

func TestRunList(t *testing.T) {
	t.Parallel()

	src := open(t, packTree(t, writeTree(t)))

	var out bytes.Buffer
	require.NoError(t, runList(&out, src, listOptions{}))
	assert.Equal(t, "/a.txt\n/items/hat.png\n/items/x.item\n", out.String())

	out.Reset()
	require.NoError(t, runList(&out, src, listOptions{globs: []string{"/items/*.png", "/a.txt"}}))
	assert.Equal(t, "/a.txt\n/items/hat.png\n", out.String())

	out.Reset()
	require.NoError(t, runList(&out, src, listOptions{globs: []string{"/a.txt"}, long: true}))
	assert.Equal(t, "       2 B  /a.txt\n", out.String())

	require.Error(t, runList(&out, src, listOptions{globs: []string{"["}}))
}

func TestRunCat(t *testing.T) {
	t.Parallel()

	dir := writeTree(t)
	for _, location := range []string{dir, packTree(t, dir)} {
		src := open(t, location)

		var out bytes.Buffer
		require.NoError(t, runCat(&out, src, []string{"a.txt", "//items//hat.png"}))
		assert.Equal(t, "hi\x89PNG", out.String())

		err := runCat(&out, src, []string{"/missing"})
		require.ErrorIs(t, err, os.ErrNotExist)
	}
}

func TestRunMeta(t *testing.T) {
	t.Parallel()

	src := open(t, writeTree(t))

	tests := []struct {
		name   string
		key    string
		format string
		want   string
	}{
		{"json object", "", "json", "{\n  \"name\": \"base\",\n  \"version\": 6\n}\n"},
		{"yaml object", "", "yaml", "name: base\nversion: 6\n"},
		{"json key", "name", "json", "\"base\"\n"},
		{"yaml key", "version", "yaml", "6\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			require.NoError(t, runMeta(&out, src, tt.key, tt.format))
			assert.Equal(t, tt.want, out.String())
		})
	}

	var out bytes.Buffer
	require.ErrorIs(t, runMeta(&out, src, "nope", "json"), pak.ErrKeyNotFound)
	require.ErrorContains(t, runMeta(&out, src, "", "toml"), "unknown format")
}

func TestRunInfo(t *testing.T) {
	t.Parallel()

	dir := writeTree(t)
	packed := packTree(t, dir)

	var out bytes.Buffer
	require.NoError(t, runInfo(&out, packed, open(t, packed), true))
	text := out.String()
	assert.Contains(t, text, "Backend:      archive\n")
	assert.Contains(t, text, "Assets:       3\n")
	assert.Contains(t, text, "Metadata:     name, version\n")
	assert.Contains(t, text, "Index offset:")
	assert.Contains(t, text, "sha256:8f434346648f6b96df89dda901c5176b10a6d83961dd3c1ac88b59b2dc327aa4  /a.txt\n")

	out.Reset()
	require.NoError(t, runInfo(&out, dir, open(t, dir), false))
	text = out.String()
	assert.Contains(t, text, "Backend:      directory\n")
	assert.Contains(t, text, "Sidecar:      _metadata\n")
	assert.NotContains(t, text, "sha256:")
}

func TestMetadataSummary(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "(empty)", metadataSummary(value.Object{}))
	assert.Equal(t, "a, b", metadataSummary(value.Object{"b": value.Nil{}, "a": value.Int(1)}))
	assert.Equal(t, "array", metadataSummary(value.Array{}))
	assert.Equal(t, "nil", metadataSummary(nil))
}

func TestParseMetaAssignments(t *testing.T) {
	t.Parallel()

	got, err := parseMetaAssignments([]string{
		"name=base",
		"version=6",
		"priority=1.5",
		`tags=["a", true]`,
		"quoted=\"x\"",
		"expr=a=b",
		"empty=",
	})
	require.NoError(t, err)
	want := value.Object{
		"name":     value.String("base"),
		"version":  value.Int(6),
		"priority": value.Float(1.5),
		"tags":     value.Array{value.String("a"), value.Bool(true)},
		"quoted":   value.String("x"),
		"expr":     value.String("a=b"),
		"empty":    value.String(""),
	}
	assert.True(t, value.Equal(want, got), "got %v", got)

	for _, bad := range []string{"novalue", "=x"} {
		_, err := parseMetaAssignments([]string{bad})
		require.ErrorIs(t, err, errBadAssignment, bad)
	}
}

func TestRunBench(t *testing.T) {
	t.Parallel()

	src := open(t, packTree(t, writeTree(t)))

	stats, err := runBench(context.Background(), src, benchOptions{reads: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, stats.reads)
	// Three passes over a.txt, two over each of the others.
	assert.Equal(t, int64(3*2+2*4+2*13), stats.bytes)

	stats, err = runBench(context.Background(), src, benchOptions{reads: 20, random: true, seed: 3})
	require.NoError(t, err)
	assert.Equal(t, 20, stats.reads)

	_, err = runBench(context.Background(), src, benchOptions{reads: 1, globs: []string{"/nope/**"}})
	require.ErrorIs(t, err, errNoAssets)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = runBench(ctx, src, benchOptions{reads: 1})
	require.ErrorIs(t, err, context.Canceled)

	var out bytes.Buffer
	printBench(&out, stats)
	assert.True(t, strings.HasPrefix(out.String(), "reads=20 "), out.String())
}

func TestBenchProfiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	opts := benchOptions{
		memProfile: filepath.Join(dir, "mem.pprof"),
		traceFile:  filepath.Join(dir, "trace.out"),
	}
	stop, err := startProfiles(opts)
	require.NoError(t, err)
	require.NoError(t, stop())
	require.NoError(t, writeHeapProfile(opts.memProfile))

	for _, name := range []string{"mem.pprof", "trace.out"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Positive(t, info.Size(), name)
	}
}

func TestCacheFor(t *testing.T) {
	t.Parallel()

	newCmd := func(args ...string) *cobra.Command {
		cmd := &cobra.Command{}
		addGlobalFlags(cmd)
		require.NoError(t, cmd.ParseFlags(args))
		return cmd
	}

	c, err := cacheFor(newCmd())
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = cacheFor(newCmd("--memory-cache", "--cache-size", "1MiB"))
	require.NoError(t, err)
	assert.IsType(t, &memory.Cache{}, c)

	c, err = cacheFor(newCmd("--cache-dir", t.TempDir(), "--cache-size", "2MB"))
	require.NoError(t, err)
	require.IsType(t, &disk.Cache{}, c)
	assert.Equal(t, int64(2_000_000), c.(*disk.Cache).MaxBytes())

	_, err = cacheFor(newCmd("--memory-cache", "--cache-size", "lots"))
	require.ErrorContains(t, err, "invalid --cache-size")
}

// TestCommands drives the command tree end to end. It shares rootCmd, so
// it does not run in parallel.
func TestCommands(t *testing.T) {
	dir := writeTree(t)
	packed := filepath.Join(t.TempDir(), "out.pak")
	dest := t.TempDir()

	run := func(args ...string) string {
		t.Helper()
		var out, logs bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetErr(&logs)
		rootCmd.SetArgs(args)
		require.NoError(t, rootCmd.ExecuteContext(context.Background()), logs.String())
		return out.String()
	}

	out := run("pack", dir, packed, "--meta", "version=7", "--ignore", "/items/*.png")
	assert.Contains(t, out, "packed 2 assets")

	out = run("list", packed)
	assert.Equal(t, "/a.txt\n/items/x.item\n", out)

	out = run("meta", packed, "version")
	assert.Equal(t, "7\n", out)

	out = run("unpack", packed, dest, "--workers", "-1")
	assert.Contains(t, out, "unpacked 2 assets")
	data, err := os.ReadFile(filepath.Join(dest, "items", "x.item"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name": "x"}`, string(data))
}
