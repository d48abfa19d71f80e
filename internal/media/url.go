// Package media resolves avatar and attachment references to fetchable URLs.
// Every component that renders a user or a media reference goes through
// Resolve so the absolute-vs-relative rule lives in exactly one place.
package media

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultAvatar is returned for a missing reference. It is rendered as
// initials and never fetched.
const DefaultAvatar = "default-avatar"

var absolutePrefixes = []string{"http://", "https://", "//", "data:", "blob:"}

// IsAbsolute reports whether ref can be fetched without a base path.
func IsAbsolute(ref string) bool {
	lower := strings.ToLower(ref)
	for _, p := range absolutePrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// Resolve maps ref to <base>/image/<ref> unless it is already absolute.
func Resolve(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref == DefaultAvatar {
		return DefaultAvatar
	}
	if IsAbsolute(ref) {
		return ref
	}
	return strings.TrimRight(base, "/") + "/image/" + strings.TrimLeft(ref, "/")
}

// Initials is the fallback avatar text: the first letter of name, uppercased.
func Initials(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "?"
	}
	r, _ := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r))
}

type Avatar struct {
	URL      string
	Initials string
}

// IsDefault reports whether the avatar should be drawn from Initials.
func (a Avatar) IsDefault() bool {
	return a.URL == DefaultAvatar
}

// Resolver binds Resolve to a fixed media base path.
type Resolver struct {
	base string
}

func NewResolver(base string) Resolver {
	return Resolver{base: strings.TrimRight(base, "/")}
}

func (r Resolver) Base() string {
	return r.base
}

func (r Resolver) Resolve(ref string) string {
	return Resolve(r.base, ref)
}

func (r Resolver) Avatar(ref, displayName string) Avatar {
	return Avatar{URL: r.Resolve(ref), Initials: Initials(displayName)}
}
