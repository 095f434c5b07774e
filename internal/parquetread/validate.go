package parquetread

import (
	"errors"
	"fmt"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// catalogColumns lists the physical type of every known catalog column.
// Required columns must be present; the rest are checked only when present.
var catalogColumns = []struct {
	name     string
	kind     parquet.Kind
	required bool
}{
	{"code", parquet.ByteArray, true},
	{"kind", parquet.ByteArray, true},
	{"rate_paisa", parquet.Int64, true},
	{"name", parquet.ByteArray, false},
	{"class", parquet.ByteArray, false},
	{"max_per_visit", parquet.Int32, false},
	{"window_max_units", parquet.Int32, false},
	{"window_days", parquet.Int32, false},
}

// ValidateSchema checks a file's schema against the catalog layout and
// reports every problem at once.
func ValidateSchema(schema *parquet.Schema) error {
	fields := make(map[string]parquet.Field)
	for _, f := range schema.Fields() {
		fields[strings.ToLower(f.Name())] = f
	}

	var missing []string
	var errs []error
	for _, col := range catalogColumns {
		f, ok := fields[col.name]
		if !ok {
			if col.required {
				missing = append(missing, col.name)
			}
			continue
		}
		if !f.Leaf() {
			errs = append(errs, fmt.Errorf("column %s: expected a leaf column", col.name))
			continue
		}
		if k := f.Type().Kind(); k != col.kind {
			errs = append(errs, fmt.Errorf("column %s: type %s, want %s", col.name, k, col.kind))
		}
	}
	if len(missing) > 0 {
		errs = append([]error{fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))}, errs...)
	}
	return errors.Join(errs...)
}
