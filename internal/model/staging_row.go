package model

import "github.com/google/uuid"

// CatalogStagingRow is the normalized, DB-ready form of one catalog row.
type CatalogStagingRow struct {
	ImportBatchID uuid.UUID
	VersionID     int64

	SourceRowNumber int64

	Code      string
	Name      string
	Kind      CatalogKind
	Class     ItemClass
	RatePaisa int64

	MaxPerVisit    *int32
	WindowMaxUnits *int32
	WindowDays     *int32
}

// StagingColumns returns the ordered column names for COPY into
// catalog.stage_entries.
func StagingColumns() []string {
	return []string{
		"import_batch_id",
		"version_id",
		"source_row_number",
		"code",
		"name",
		"kind",
		"class",
		"rate_paisa",
		"max_per_visit",
		"window_max_units",
		"window_days",
	}
}

// CopyValues returns the row values in the same order as StagingColumns(),
// suitable for pgx CopyFromSource.
func (r *CatalogStagingRow) CopyValues() []any {
	return []any{
		r.ImportBatchID,
		r.VersionID,
		r.SourceRowNumber,
		r.Code,
		r.Name,
		string(r.Kind),
		string(r.Class),
		r.RatePaisa,
		r.MaxPerVisit,
		r.WindowMaxUnits,
		r.WindowDays,
	}
}
