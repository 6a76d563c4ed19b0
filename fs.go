package pak

import (
	"errors"
	"io"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/meigma/pak/internal/pathutil"
)

// FS exposes a Source as an fs.FS.
//
// Names follow fs.FS conventions: "items/hat.png" is the asset
// "/items/hat.png" and "." is the root. Directories are synthesized from
// asset paths since neither backend stores them. Asset paths with no
// valid fs.FS form, such as "/a//b", are not reachable through FS.
type FS struct {
	src   Source
	paths []string
}

var (
	_ fs.FS         = (*FS)(nil)
	_ fs.ReadFileFS = (*FS)(nil)
	_ fs.ReadDirFS  = (*FS)(nil)
	_ fs.StatFS     = (*FS)(nil)
)

// NewFS returns an fs.FS view of src. The asset list is captured once;
// content is read from src on demand.
func NewFS(src Source) *FS {
	paths := slices.DeleteFunc(src.Paths(), func(p string) bool {
		name, ok := pathutil.Name(p)
		return !ok || name == "."
	})
	slices.Sort(paths)
	return &FS{src: src, paths: paths}
}

// Open implements fs.FS.
func (f *FS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	asset := pathutil.Asset(name)
	if name != "." && f.src.Exists(asset) {
		r, size, err := f.open(asset)
		if err != nil {
			return nil, renamePathError("open", name, err)
		}
		return &openFile{
			name: name,
			r:    r,
			info: &fileInfo{name: pathutil.Base(name), size: size},
		}, nil
	}

	if f.isDir(name) {
		return &openDir{fsys: f, name: name}, nil
	}

	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// Stat implements fs.StatFS.
func (f *FS) Stat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}

	asset := pathutil.Asset(name)
	if name != "." && f.src.Exists(asset) {
		size, err := AssetSize(f.src, asset)
		if err != nil {
			return nil, renamePathError("stat", name, err)
		}
		return &fileInfo{name: pathutil.Base(name), size: size}, nil
	}

	if f.isDir(name) {
		return &dirInfo{name: pathutil.Base(name)}, nil
	}

	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

// ReadFile implements fs.ReadFileFS.
func (f *FS) ReadFile(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrInvalid}
	}

	asset := pathutil.Asset(name)
	if name == "." || !f.src.Exists(asset) {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrNotExist}
	}
	data, err := f.src.Read(asset)
	if err != nil {
		return nil, renamePathError("readfile", name, err)
	}
	return data, nil
}

// ReadDir implements fs.ReadDirFS.
//
// ReadDir returns directory entries for the named directory, sorted by name.
func (f *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}

	entries := newDirIter(f, pathutil.DirPrefix(name)).all()
	if len(entries) == 0 && name != "." {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	slices.SortFunc(entries, func(a, b fs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return entries, nil
}

// isDir checks if name is a directory (has assets under it).
func (f *FS) isDir(name string) bool {
	if name == "." {
		return true
	}
	prefix := pathutil.DirPrefix(name)
	i, _ := slices.BinarySearch(f.paths, prefix)
	return i < len(f.paths) && strings.HasPrefix(f.paths[i], prefix)
}

func (f *FS) open(asset string) (*io.SectionReader, int64, error) {
	r, err := OpenAsset(f.src, asset)
	if err != nil {
		return nil, 0, err
	}
	return r, r.Size(), nil
}

// renamePathError reports err against the fs.FS name instead of the asset path.
func renamePathError(op, name string, err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return &fs.PathError{Op: op, Path: name, Err: pathErr.Err}
	}
	return &fs.PathError{Op: op, Path: name, Err: err}
}

// openFile implements fs.File, io.Seeker, and io.ReaderAt for assets.
type openFile struct {
	name   string
	r      *io.SectionReader
	info   *fileInfo
	closed bool
}

func (f *openFile) Stat() (fs.FileInfo, error) {
	return f.info, nil
}

func (f *openFile) Read(p []byte) (int, error) {
	if f.closed {
		return 0, &fs.PathError{Op: "read", Path: f.name, Err: fs.ErrClosed}
	}
	return f.r.Read(p)
}

func (f *openFile) ReadAt(p []byte, off int64) (int, error) {
	if f.closed {
		return 0, &fs.PathError{Op: "read", Path: f.name, Err: fs.ErrClosed}
	}
	return f.r.ReadAt(p, off)
}

func (f *openFile) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, &fs.PathError{Op: "seek", Path: f.name, Err: fs.ErrClosed}
	}
	return f.r.Seek(offset, whence)
}

func (f *openFile) Close() error {
	if f.closed {
		return &fs.PathError{Op: "close", Path: f.name, Err: fs.ErrClosed}
	}
	f.closed = true
	return nil
}

// openDir implements fs.File and fs.ReadDirFile for synthetic directories.
type openDir struct {
	fsys *FS
	name string
	iter *dirIter
}

func (d *openDir) Read(_ []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

func (d *openDir) Stat() (fs.FileInfo, error) {
	return &dirInfo{name: pathutil.Base(d.name)}, nil
}

func (d *openDir) Close() error {
	d.iter = nil
	return nil
}

func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if d.iter == nil {
		d.iter = newDirIter(d.fsys, pathutil.DirPrefix(d.name))
	}

	if n <= 0 {
		return d.iter.all(), nil
	}

	entries := make([]fs.DirEntry, 0, n)
	for len(entries) < n {
		entry, ok := d.iter.Next()
		if !ok {
			if len(entries) == 0 {
				return nil, io.EOF
			}
			return entries, nil
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// dirIter iterates over the immediate children of a directory prefix,
// synthesizing one entry per subdirectory.
type dirIter struct {
	fsys   *FS
	paths  []string
	prefix string
	seen   map[string]struct{}
}

func newDirIter(f *FS, prefix string) *dirIter {
	start, _ := slices.BinarySearch(f.paths, prefix)
	end := start
	for end < len(f.paths) && strings.HasPrefix(f.paths[end], prefix) {
		end++
	}
	return &dirIter{
		fsys:   f,
		paths:  f.paths[start:end],
		prefix: prefix,
		seen:   make(map[string]struct{}),
	}
}

// Next returns the next directory entry.
func (it *dirIter) Next() (fs.DirEntry, bool) {
	for len(it.paths) > 0 {
		path := it.paths[0]
		it.paths = it.paths[1:]

		childName, isSubDir := pathutil.Child(path, it.prefix)
		if _, dup := it.seen[childName]; dup {
			continue
		}
		it.seen[childName] = struct{}{}
		return &dirEntry{fsys: it.fsys, name: childName, asset: path, dir: isSubDir}, true
	}
	return nil, false
}

func (it *dirIter) all() []fs.DirEntry {
	entries := make([]fs.DirEntry, 0)
	for {
		entry, ok := it.Next()
		if !ok {
			return entries
		}
		entries = append(entries, entry)
	}
}

// dirEntry implements fs.DirEntry. File info is resolved lazily.
type dirEntry struct {
	fsys  *FS
	name  string
	asset string
	dir   bool
}

func (de *dirEntry) Name() string { return de.name }
func (de *dirEntry) IsDir() bool  { return de.dir }

func (de *dirEntry) Type() fs.FileMode {
	if de.dir {
		return fs.ModeDir
	}
	return 0
}

func (de *dirEntry) Info() (fs.FileInfo, error) {
	if de.dir {
		return &dirInfo{name: de.name}, nil
	}
	size, err := AssetSize(de.fsys.src, de.asset)
	if err != nil {
		return nil, err
	}
	return &fileInfo{name: de.name, size: size}, nil
}

func (de *dirEntry) String() string { return fs.FormatDirEntry(de) }

// fileInfo implements fs.FileInfo for assets.
type fileInfo struct {
	name string
	size int64
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return fi.size }
func (fi *fileInfo) Mode() fs.FileMode  { return 0o444 }
func (fi *fileInfo) ModTime() time.Time { return time.Time{} }
func (fi *fileInfo) IsDir() bool        { return false }
func (fi *fileInfo) Sys() any           { return nil }
func (fi *fileInfo) String() string     { return fs.FormatFileInfo(fi) }

// dirInfo implements fs.FileInfo for synthetic directories.
type dirInfo struct {
	name string
}

func (di *dirInfo) Name() string       { return di.name }
func (di *dirInfo) Size() int64        { return 0 }
func (di *dirInfo) Mode() fs.FileMode  { return fs.ModeDir | 0o555 }
func (di *dirInfo) ModTime() time.Time { return time.Time{} }
func (di *dirInfo) IsDir() bool        { return true }
func (di *dirInfo) Sys() any           { return nil }
func (di *dirInfo) String() string     { return fs.FormatFileInfo(di) }
