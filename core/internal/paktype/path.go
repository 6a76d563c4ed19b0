package paktype

import (
	"strings"
	"unicode/utf8"
)

// IsAbsolute reports whether p is an absolute asset path.
func IsAbsolute(p string) bool {
	return strings.HasPrefix(p, "/")
}

// CheckPath returns ErrNotAbsolute unless p begins with "/".
func CheckPath(p string) error {
	if !IsAbsolute(p) {
		return ErrNotAbsolute
	}
	return nil
}

// FromRel converts a slash-separated path relative to an asset root into
// an absolute asset path. It fails with ErrInvalidName when rel is not
// valid UTF-8.
func FromRel(rel string) (string, error) {
	if !utf8.ValidString(rel) {
		return "", ErrInvalidName
	}
	return "/" + strings.TrimPrefix(rel, "/"), nil
}

// ToRel strips the leading slash from an asset path. The root "/" maps to ".".
func ToRel(p string) string {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "."
	}
	return p
}

// Normalize converts user input into an absolute asset path.
//
//   - Adds a leading slash: "items/hat.png" → "/items/hat.png"
//   - Strips trailing slashes: "/items/" → "/items"
//   - Collapses consecutive slashes: "//items//hat.png" → "/items/hat.png"
//   - Maps empty input to the root: "" → "/"
//
// "." and ".." elements are preserved.
func Normalize(p string) string {
	var b strings.Builder
	b.Grow(len(p) + 1)
	for part := range strings.SplitSeq(p, "/") {
		if part == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(part)
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// DirPrefix returns the prefix shared by every asset under the directory
// rel, where rel uses fs.ValidPath form.
func DirPrefix(rel string) string {
	if rel == "." {
		return "/"
	}
	return "/" + rel + "/"
}

// Child extracts the immediate child name of p below prefix and reports
// whether more path elements follow it.
func Child(p, prefix string) (name string, isSubDir bool) {
	rest := strings.TrimPrefix(p, prefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i], true
	}
	return rest, false
}

// Base returns the last element of an asset path.
func Base(p string) string {
	p = strings.TrimSuffix(p, "/")
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	if p == "" {
		return "/"
	}
	return p
}
