package pak

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":                  "/",
		"/":                 "/",
		"items/hat.png":     "/items/hat.png",
		"//items//hat.png/": "/items/hat.png",
		"/a/../b":           "/a/../b",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePath(in), in)
	}
}
