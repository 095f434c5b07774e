// Package catalog holds the read-only mapping from item and service codes
// to their payable attributes. A Catalog is built once and never mutated;
// refreshes build a new Catalog and publish it.
package catalog

import (
	"fmt"

	"github.com/gyeh/claimcheck/internal/model"
	"github.com/gyeh/claimcheck/internal/normalize"
)

// Catalog is an immutable snapshot of the item and service tables.
type Catalog struct {
	version  string
	items    map[string]model.CatalogEntry
	services map[string]model.CatalogEntry
}

// New builds a Catalog from entries. Codes are normalized; a code may
// appear once per kind.
func New(version string, entries ...model.CatalogEntry) (*Catalog, error) {
	c := &Catalog{
		version:  version,
		items:    make(map[string]model.CatalogEntry),
		services: make(map[string]model.CatalogEntry),
	}
	for i, e := range entries {
		if err := c.add(e); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return c, nil
}

func (c *Catalog) add(e model.CatalogEntry) error {
	e.Code = normalize.Code(e.Code)
	if e.Code == "" {
		return fmt.Errorf("code is required")
	}
	if e.Rate.IsNegative() {
		return fmt.Errorf("%s: negative rate %s", e.Code, e.Rate)
	}
	if e.Capping.MaxPerVisit < 0 || e.Capping.WindowMaxUnits < 0 || e.Capping.WindowDays < 0 {
		return fmt.Errorf("%s: negative capping value", e.Code)
	}
	if e.Class == "" {
		e.Class = model.ClassStandard
	}

	var table map[string]model.CatalogEntry
	switch e.Kind {
	case model.KindItem:
		table = c.items
	case model.KindService:
		table = c.services
	default:
		return fmt.Errorf("%s: unknown kind %q", e.Code, e.Kind)
	}
	if _, dup := table[e.Code]; dup {
		return fmt.Errorf("duplicate %s code %s", e.Kind, e.Code)
	}
	table[e.Code] = e
	return nil
}

// Version identifies the catalog contents.
func (c *Catalog) Version() string { return c.version }

// Len returns the number of item and service entries.
func (c *Catalog) Len() int { return len(c.items) + len(c.services) }

// LookupItem returns the item entry for code.
func (c *Catalog) LookupItem(code string) (model.CatalogEntry, bool) {
	e, ok := c.items[normalize.Code(code)]
	return e, ok
}

// LookupService returns the service entry for code.
func (c *Catalog) LookupService(code string) (model.CatalogEntry, bool) {
	e, ok := c.services[normalize.Code(code)]
	return e, ok
}

// Entries returns every entry, items first, in no particular order within
// a kind.
func (c *Catalog) Entries() []model.CatalogEntry {
	out := make([]model.CatalogEntry, 0, c.Len())
	for _, e := range c.items {
		out = append(out, e)
	}
	for _, e := range c.services {
		out = append(out, e)
	}
	return out
}
