package model

import "github.com/shopspring/decimal"

// CatalogKind distinguishes the two catalog tables: items and services.
type CatalogKind string

const (
	KindItem    CatalogKind = "item"
	KindService CatalogKind = "service"
)

// Capping limits claimable quantity. Zero values mean "no limit".
type Capping struct {
	MaxPerVisit    int `json:"max_per_visit,omitempty"`
	WindowMaxUnits int `json:"window_max_units,omitempty"`
	WindowDays     int `json:"window_days,omitempty"`
}

// HasWindow reports whether a rolling-window cap is configured.
func (c Capping) HasWindow() bool {
	return c.WindowMaxUnits > 0 && c.WindowDays > 0
}

// CatalogEntry holds the payable attributes of one item or service code.
type CatalogEntry struct {
	Code    string          `json:"code"`
	Name    string          `json:"name,omitempty"`
	Kind    CatalogKind     `json:"kind"`
	Class   ItemClass       `json:"class"`
	Rate    decimal.Decimal `json:"rate"`
	Capping Capping         `json:"capping"`
}
