package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		name string
		ref  string
		want string
	}{
		{"relative", "abc.jpg", "https://cdn.test/media/image/abc.jpg"},
		{"leading slash", "/abc.jpg", "https://cdn.test/media/image/abc.jpg"},
		{"absolute http", "http://x/y.jpg", "http://x/y.jpg"},
		{"absolute https", "HTTPS://x/y.jpg", "HTTPS://x/y.jpg"},
		{"protocol relative", "//x/y.jpg", "//x/y.jpg"},
		{"data uri", "data:image/png;base64,AAA", "data:image/png;base64,AAA"},
		{"missing", "", DefaultAvatar},
		{"blank", "   ", DefaultAvatar},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Resolve("https://cdn.test/media/", tc.ref))
		})
	}
}

func TestResolverAvatar(t *testing.T) {
	r := NewResolver("https://cdn.test/media")

	a := r.Avatar("", "ömer")
	assert.True(t, a.IsDefault())
	assert.Equal(t, "Ö", a.Initials)

	a = r.Avatar("p.png", "bob")
	assert.False(t, a.IsDefault())
	assert.Equal(t, "https://cdn.test/media/image/p.png", a.URL)
	assert.Equal(t, "B", a.Initials)

	assert.Equal(t, "?", Initials("  "))
}
