package model

// CatalogRow mirrors the Parquet schema of a catalog file. Rates are stored
// as integer paisa so the file never carries a float amount.
type CatalogRow struct {
	Code      string `parquet:"code"`
	Name      string `parquet:"name"`
	Kind      string `parquet:"kind"`
	Class     string `parquet:"class"`
	RatePaisa int64  `parquet:"rate_paisa"`

	MaxPerVisit    *int32 `parquet:"max_per_visit,optional"`
	WindowMaxUnits *int32 `parquet:"window_max_units,optional"`
	WindowDays     *int32 `parquet:"window_days,optional"`
}
