package paktype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"//", "/"},
		{"items/hat.png", "/items/hat.png"},
		{"/items/hat.png", "/items/hat.png"},
		{"/items/", "/items"},
		{"//items//hat.png", "/items/hat.png"},
		{"./a/../b", "/./a/../b"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestCheckPath(t *testing.T) {
	t.Parallel()

	require.NoError(t, CheckPath("/a.txt"))
	require.NoError(t, CheckPath("/"))
	require.ErrorIs(t, CheckPath("a.txt"), ErrNotAbsolute)
	require.ErrorIs(t, CheckPath(""), ErrNotAbsolute)
}

func TestFromRel(t *testing.T) {
	t.Parallel()

	p, err := FromRel("sub/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "/sub/b.txt", p)

	_, err = FromRel("bad\xffname")
	require.ErrorIs(t, err, ErrInvalidName)

	assert.Equal(t, "sub/b.txt", ToRel("/sub/b.txt"))
	assert.Equal(t, ".", ToRel("/"))
}

func TestChildAndBase(t *testing.T) {
	t.Parallel()

	name, sub := Child("/a/b/c.txt", DirPrefix("a"))
	assert.Equal(t, "b", name)
	assert.True(t, sub)

	name, sub = Child("/a.txt", DirPrefix("."))
	assert.Equal(t, "a.txt", name)
	assert.False(t, sub)

	assert.Equal(t, "c.txt", Base("/a/b/c.txt"))
	assert.Equal(t, "/", Base("/"))
}

func TestGlob(t *testing.T) {
	t.Parallel()

	paths := []string{"/a.txt", "/items/hat.png", "/items/deep/coat.png", "/sub/b.txt"}

	got, err := Glob(paths, "/items/**/*.png")
	require.NoError(t, err)
	assert.Equal(t, []string{"/items/hat.png", "/items/deep/coat.png"}, got)

	got, err = Glob(paths, "/*.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"/a.txt"}, got)

	_, err = Glob(paths, "/[")
	require.Error(t, err)

	assert.True(t, MatchAny([]string{"**/*.bak", "/sub/**"}, "/sub/b.txt"))
	assert.False(t, MatchAny([]string{"**/*.bak"}, "/sub/b.txt"))
}

func TestEntryEnd(t *testing.T) {
	t.Parallel()

	end, ok := Entry{Offset: 16, Size: 4}.End()
	assert.True(t, ok)
	assert.Equal(t, uint64(20), end)

	_, ok = Entry{Offset: ^uint64(0), Size: 2}.End()
	assert.False(t, ok)
}
