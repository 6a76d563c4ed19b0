// Package pathutil maps between fs.FS names and absolute asset paths.
//
// fs.FS names are unrooted ("items/hat.png", "." for the root); asset
// paths always start with "/" ("/items/hat.png").
package pathutil

import (
	"io/fs"
	"strings"
)

// Asset converts a valid fs.FS name into an asset path.
func Asset(name string) string {
	if name == "." {
		return "/"
	}
	return "/" + name
}

// Name converts an asset path into an fs.FS name. It reports false when
// the path has no fs.FS form, such as paths with empty or ".." elements.
func Name(asset string) (string, bool) {
	rest, ok := strings.CutPrefix(asset, "/")
	if !ok {
		return "", false
	}
	if rest == "" {
		return ".", true
	}
	return rest, fs.ValidPath(rest)
}

// Base returns the last element of a slash-separated name.
// If name is empty or ".", it returns ".".
func Base(name string) string {
	if name == "" || name == "." {
		return "."
	}
	name = strings.TrimSuffix(name, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// DirPrefix returns the asset path prefix shared by every asset inside
// the directory name.
func DirPrefix(name string) string {
	if name == "." {
		return "/"
	}
	return "/" + name + "/"
}

// Child extracts the immediate child name from a full path given a prefix.
// Returns the child name and whether it's a subdirectory (has more path components).
// If path doesn't have the prefix, behavior is undefined.
func Child(path, prefix string) (name string, isSubDir bool) {
	relPath := strings.TrimPrefix(path, prefix)
	if idx := strings.Index(relPath, "/"); idx >= 0 {
		return relPath[:idx], true
	}
	return relPath, false
}
