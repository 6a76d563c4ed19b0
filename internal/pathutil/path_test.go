package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssetName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		asset string
		ok    bool
	}{
		{name: ".", asset: "/", ok: true},
		{name: "a.txt", asset: "/a.txt", ok: true},
		{name: "items/hat.png", asset: "/items/hat.png", ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.asset, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.asset, Asset(tt.name))
			got, ok := Name(tt.asset)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, got)
		})
	}

	for _, bad := range []string{"a", "//a", "/a//b", "/../a", "/a/./b", "/a/"} {
		_, ok := Name(bad)
		assert.False(t, ok, bad)
	}
}

func TestDirPrefixAndChild(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/", DirPrefix("."))
	assert.Equal(t, "/items/", DirPrefix("items"))

	name, sub := Child("/items/hats/red.png", "/items/")
	assert.Equal(t, "hats", name)
	assert.True(t, sub)

	name, sub = Child("/items/hat.png", "/items/")
	assert.Equal(t, "hat.png", name)
	assert.False(t, sub)
}

func TestBase(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ".", Base(""))
	assert.Equal(t, ".", Base("."))
	assert.Equal(t, "c", Base("a/b/c"))
	assert.Equal(t, "b", Base("a/b/"))
	assert.Equal(t, "a", Base("a"))
}
