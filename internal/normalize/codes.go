package normalize

import "strings"

// Code trims whitespace and uppercases an item or service code so catalog
// lookups do not depend on how a provider typed it. Punctuation is kept:
// "A-1" and "A1" are different codes.
func Code(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}
