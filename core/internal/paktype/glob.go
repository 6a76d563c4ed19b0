package paktype

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// Glob returns the paths matching pattern, preserving their order.
//
// Patterns use doublestar syntax against absolute asset paths, so
// "/items/**/*.png" matches every PNG below /items.
func Glob(paths []string, pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: %q", doublestar.ErrBadPattern, pattern)
	}
	var out []string
	for _, p := range paths {
		if ok, _ := doublestar.Match(pattern, p); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// MatchAny reports whether p matches any of patterns.
// Invalid patterns never match.
func MatchAny(patterns []string, p string) bool {
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, p); ok {
			return true
		}
	}
	return false
}
