package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gyeh/claimcheck/internal/catalog"
	"github.com/gyeh/claimcheck/internal/model"
	"github.com/gyeh/claimcheck/internal/normalize"
	embedsql "github.com/gyeh/claimcheck/internal/sql"
)

// CatalogRepo reads imported catalog versions.
type CatalogRepo struct {
	pool *pgxpool.Pool
}

// LoadActive builds a Catalog from the active catalog version. It returns
// ErrNotFound when no version is active.
func (r *CatalogRepo) LoadActive(ctx context.Context) (*catalog.Catalog, error) {
	rows, err := r.pool.Query(ctx, embedsql.LoadActiveCatalog)
	if err != nil {
		return nil, fmt.Errorf("query active catalog: %w", err)
	}
	defer rows.Close()

	var (
		version string
		entries []model.CatalogRow
	)
	for rows.Next() {
		var (
			versionID  int64
			label, sha string
			row        model.CatalogRow
		)
		if err := rows.Scan(&versionID, &label, &sha,
			&row.Kind, &row.Code, &row.Name, &row.Class, &row.RatePaisa,
			&row.MaxPerVisit, &row.WindowMaxUnits, &row.WindowDays); err != nil {
			return nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		if version == "" {
			version = fmt.Sprintf("%s@%s", label, normalize.Short(sha))
		}
		entries = append(entries, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return catalog.FromRows(version, entries)
}
