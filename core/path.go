package pak

import "github.com/meigma/pak/core/internal/paktype"

// NormalizePath converts user input into an absolute asset path:
// "items/hat.png" and "//items//hat.png/" both become "/items/hat.png",
// and "" becomes "/".
func NormalizePath(p string) string {
	return paktype.Normalize(p)
}
