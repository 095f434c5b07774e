package catalog

import (
	"fmt"

	"github.com/gyeh/claimcheck/internal/model"
	"github.com/gyeh/claimcheck/internal/money"
	"github.com/gyeh/claimcheck/internal/normalize"
)

// EntryFromRow converts a Parquet catalog row into an entry.
func EntryFromRow(r *model.CatalogRow) (model.CatalogEntry, error) {
	kind := model.CatalogKind(normalize.Name(r.Kind))
	if kind != model.KindItem && kind != model.KindService {
		return model.CatalogEntry{}, fmt.Errorf("code %q: unknown kind %q", r.Code, r.Kind)
	}
	if r.RatePaisa < 0 {
		return model.CatalogEntry{}, fmt.Errorf("code %q: negative rate", r.Code)
	}
	return model.CatalogEntry{
		Code:  normalize.Code(r.Code),
		Name:  r.Name,
		Kind:  kind,
		Class: model.ItemClassByName(normalize.Name(r.Class)),
		Rate:  money.FromMinor(r.RatePaisa),
		Capping: model.Capping{
			MaxPerVisit:    deref32(r.MaxPerVisit),
			WindowMaxUnits: deref32(r.WindowMaxUnits),
			WindowDays:     deref32(r.WindowDays),
		},
	}, nil
}

// RowFromEntry is the inverse of EntryFromRow, used when writing catalog files.
func RowFromEntry(e model.CatalogEntry) model.CatalogRow {
	return model.CatalogRow{
		Code:           e.Code,
		Name:           e.Name,
		Kind:           string(e.Kind),
		Class:          string(e.Class),
		RatePaisa:      money.ToMinor(e.Rate),
		MaxPerVisit:    opt32(e.Capping.MaxPerVisit),
		WindowMaxUnits: opt32(e.Capping.WindowMaxUnits),
		WindowDays:     opt32(e.Capping.WindowDays),
	}
}

// FromRows builds a Catalog from Parquet rows.
func FromRows(version string, rows []model.CatalogRow) (*Catalog, error) {
	entries := make([]model.CatalogEntry, 0, len(rows))
	for i := range rows {
		e, err := EntryFromRow(&rows[i])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return New(version, entries...)
}

func deref32(v *int32) int {
	if v == nil {
		return 0
	}
	return int(*v)
}

func opt32(v int) *int32 {
	if v == 0 {
		return nil
	}
	n := int32(v)
	return &n
}
