package normalize

import (
	"regexp"
	"strings"
)

var multiSpace = regexp.MustCompile(`\s+`)

// Name lowercases, collapses whitespace, and trims the input.
func Name(v string) string {
	s := strings.TrimSpace(v)
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	return multiSpace.ReplaceAllString(s, " ")
}

// NameContains reports whether the normalized name contains the normalized
// needle. An empty needle never matches.
func NameContains(name, needle string) bool {
	n := Name(needle)
	if n == "" {
		return false
	}
	return strings.Contains(Name(name), n)
}
