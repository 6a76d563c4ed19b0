// Package dirtree serves assets from an unpacked directory.
//
// A Tree mirrors the packed archive API over a plain directory: every
// regular file below the root is an asset named by its slash path from
// the root, and an optional JSON sidecar at the root supplies metadata.
package dirtree

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/meigma/pak/core/internal/paktype"
	"github.com/meigma/pak/core/internal/platform"
	"github.com/meigma/pak/core/internal/sizing"
	"github.com/meigma/pak/value"
)

// Tree provides access to the assets of an unpacked directory.
//
// The file set is scanned once by Open; content is read from disk on each
// Read. Reads go through an os.Root, so symlinks cannot escape the
// directory. A Tree is safe for concurrent use.
type Tree struct {
	dir      string
	root     *os.Root
	fsys     fs.FS
	paths    []string
	set      map[string]struct{}
	metadata value.Value
	sidecar  string
	maxSize  uint64
	logger   *slog.Logger
}

// Option configures a Tree.
type Option func(*config)

type config struct {
	metadataFiles []string
	maxFileSize   uint64
	logger        *slog.Logger
}

// WithMetadataFiles sets the sidecar names read at the root. The last
// one present wins. Pass no names to disable the sidecar.
func WithMetadataFiles(names ...string) Option {
	return func(c *config) {
		c.metadataFiles = names
	}
}

// WithMaxFileSize limits the size of files returned by Read, which then
// fails with ErrTooLarge. Zero, the default, disables the limit.
func WithMaxFileSize(limit uint64) Option {
	return func(c *config) {
		c.maxFileSize = limit
	}
}

// WithLogger sets the logger for tree operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// Open scans dir and loads its metadata sidecar.
//
// Each of "_metadata" and ".metadata" present at the root is parsed as
// JSON (comments and trailing commas allowed); the last one present
// supplies the metadata and is excluded from the asset set. Without a sidecar the metadata is an empty object. Open fails
// when the sidecar is not valid JSON or a file name is not valid UTF-8.
func Open(dir string, opts ...Option) (*Tree, error) {
	cfg := config{metadataFiles: paktype.MetadataFiles}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	t := &Tree{dir: dir, root: root, fsys: root.FS(), maxSize: cfg.maxFileSize, logger: logger}

	metadata, sidecar, err := paktype.LoadSidecar(t.fsys, cfg.metadataFiles)
	if err != nil {
		root.Close()
		return nil, err
	}
	if metadata == nil {
		metadata = value.Object{}
	}
	t.metadata = metadata
	t.sidecar = sidecar

	if err := t.scan(); err != nil {
		root.Close()
		return nil, err
	}
	logger.Debug("opened directory tree", "dir", dir, "assets", len(t.paths), "sidecar", sidecar)
	return t, nil
}

// scan collects every regular file below the root.
func (t *Tree) scan() error {
	var (
		mu    sync.Mutex
		paths []string
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, t.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			t.logger.Debug("skipped irregular file", "path", path, "type", d.Type().String())
			return nil
		}
		rel, err := filepath.Rel(t.dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == t.sidecar {
			return nil
		}
		asset, err := paktype.FromRel(rel)
		if err != nil {
			return fmt.Errorf("%w: %q", err, rel)
		}
		mu.Lock()
		paths = append(paths, asset)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}

	slices.Sort(paths)
	t.paths = paths
	t.set = make(map[string]struct{}, len(paths))
	for _, p := range paths {
		t.set[p] = struct{}{}
	}
	return nil
}

// Exists reports whether path names a file in the tree.
// Non-absolute paths never exist.
func (t *Tree) Exists(path string) bool {
	if !paktype.IsAbsolute(path) {
		return false
	}
	_, ok := t.set[path]
	return ok
}

// Read returns the content of the file at path.
//
// It fails with ErrNotAbsolute for paths not starting with "/" and with
// fs.ErrNotExist for files outside the scanned set, both wrapped in
// *fs.PathError.
func (t *Tree) Read(path string) ([]byte, error) {
	if err := paktype.CheckPath(path); err != nil {
		return nil, &fs.PathError{Op: "read", Path: path, Err: err}
	}
	if _, ok := t.set[path]; !ok {
		return nil, &fs.PathError{Op: "read", Path: path, Err: fs.ErrNotExist}
	}
	f, err := platform.OpenNoFollow(t.root, filepath.FromSlash(paktype.ToRel(path)))
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			err = pathErr.Err
		}
		return nil, &fs.PathError{Op: "read", Path: path, Err: err}
	}
	defer f.Close()
	data, err := sizing.ReadAllLimit(f, t.maxSize, paktype.ErrTooLarge)
	if err != nil {
		return nil, &fs.PathError{Op: "read", Path: path, Err: err}
	}
	return data, nil
}

// AssetSize returns the current size in bytes of the file at path.
func (t *Tree) AssetSize(path string) (int64, error) {
	if err := paktype.CheckPath(path); err != nil {
		return 0, &fs.PathError{Op: "stat", Path: path, Err: err}
	}
	if _, ok := t.set[path]; !ok {
		return 0, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
	}
	info, err := t.root.Stat(paktype.ToRel(path))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Paths returns every asset path in lexical order.
func (t *Tree) Paths() []string {
	return slices.Clone(t.paths)
}

// Glob returns the asset paths matching a doublestar pattern, in lexical order.
func (t *Tree) Glob(pattern string) ([]string, error) {
	return paktype.Glob(t.paths, pattern)
}

// Meta returns a copy of the metadata value stored under key.
//
// It fails with ErrMetadataNotObject when the sidecar holds something
// other than an object, and with ErrKeyNotFound when the key is absent.
func (t *Tree) Meta(key string) (value.Value, error) {
	obj, ok := t.metadata.(value.Object)
	if !ok {
		return nil, fmt.Errorf("%w: sidecar holds %s", paktype.ErrMetadataNotObject, t.metadata.Kind())
	}
	v, ok := obj[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", paktype.ErrKeyNotFound, key)
	}
	return value.Clone(v), nil
}

// Metadata returns a copy of the whole sidecar value.
func (t *Tree) Metadata() value.Value {
	return value.Clone(t.metadata)
}

// Len returns the number of assets in the tree.
func (t *Tree) Len() int {
	return len(t.paths)
}

// Dir returns the directory the tree was opened from.
func (t *Tree) Dir() string {
	return t.dir
}

// Sidecar returns the name of the metadata file that was loaded, or "".
func (t *Tree) Sidecar() string {
	return t.sidecar
}

// Close releases the directory handle.
func (t *Tree) Close() error {
	return t.root.Close()
}
