// Package normalize holds the small string, date and hashing helpers used
// when claim, catalog and insurer data cross into the system.
package normalize

// Opt maps the zero value to nil, for nullable columns.
func Opt[T comparable](v T) *T {
	var zero T
	if v == zero {
		return nil
	}
	return &v
}

// Deref maps nil to the zero value.
func Deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
