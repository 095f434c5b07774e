package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gyeh/claimcheck/internal/model"
	"github.com/gyeh/claimcheck/internal/normalize"
)

// jsonEntry is one element of the insurer's items.json / services.json.
type jsonEntry struct {
	Code    flexString       `json:"code"`
	Name    string           `json:"name"`
	Type    string           `json:"type"`
	RateNPR *decimal.Decimal `json:"rate_npr"`
	Capping *struct {
		MaxPerVisit      *int `json:"max_per_visit"`
		MaxDays          *int `json:"max_days"`
		MaxUnitsInWindow *int `json:"max_units_in_window"`
	} `json:"capping"`
}

// flexString accepts a JSON string or number; catalog codes appear as both.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("code must be a string or number: %w", err)
	}
	*s = flexString(n.String())
	return nil
}

func (j jsonEntry) entry(kind model.CatalogKind) (model.CatalogEntry, error) {
	if j.RateNPR == nil {
		return model.CatalogEntry{}, fmt.Errorf("code %q: rate_npr is required", j.Code)
	}
	e := model.CatalogEntry{
		Code:  string(j.Code),
		Name:  j.Name,
		Kind:  kind,
		Class: model.ItemClassByName(normalize.Name(j.Type)),
		Rate:  *j.RateNPR,
	}
	if c := j.Capping; c != nil {
		if c.MaxPerVisit != nil {
			e.Capping.MaxPerVisit = *c.MaxPerVisit
		}
		// A window without its own unit limit reuses max_per_visit.
		if c.MaxDays != nil && *c.MaxDays > 0 {
			e.Capping.WindowDays = *c.MaxDays
			e.Capping.WindowMaxUnits = e.Capping.MaxPerVisit
			if c.MaxUnitsInWindow != nil {
				e.Capping.WindowMaxUnits = *c.MaxUnitsInWindow
			}
		}
	}
	return e, nil
}

// ParseJSON builds a Catalog from the contents of items.json and
// services.json. The version is the SHA-256 of both documents.
func ParseJSON(items, services []byte) (*Catalog, error) {
	var entries []model.CatalogEntry
	for _, src := range []struct {
		kind model.CatalogKind
		data []byte
	}{{model.KindItem, items}, {model.KindService, services}} {
		if len(strings.TrimSpace(string(src.data))) == 0 {
			continue
		}
		var raw []jsonEntry
		if err := json.Unmarshal(src.data, &raw); err != nil {
			return nil, fmt.Errorf("decode %s catalog: %w", src.kind, err)
		}
		for _, j := range raw {
			e, err := j.entry(src.kind)
			if err != nil {
				return nil, fmt.Errorf("%s catalog: %w", src.kind, err)
			}
			entries = append(entries, e)
		}
	}
	return New(normalize.BytesHash(items, services), entries...)
}

// LoadJSON reads items and services catalog files. Either path may be
// empty to skip that table.
func LoadJSON(itemsPath, servicesPath string) (*Catalog, error) {
	items, err := readOptional(itemsPath)
	if err != nil {
		return nil, err
	}
	services, err := readOptional(servicesPath)
	if err != nil {
		return nil, err
	}
	return ParseJSON(items, services)
}

func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return b, nil
}
