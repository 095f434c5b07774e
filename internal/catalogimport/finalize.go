package catalogimport

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	embedsql "github.com/gyeh/claimcheck/internal/sql"
)

// Finalize activates the version (superseding the previous active one) or
// marks it loaded, then refreshes planner statistics.
func Finalize(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, versionID int64, activate bool) (time.Duration, error) {
	start := time.Now()

	if activate {
		var deactivated int64
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, embedsql.DeactivateOlderVersions, versionID)
			if err != nil {
				return fmt.Errorf("deactivate older versions: %w", err)
			}
			deactivated = tag.RowsAffected()
			if _, err := tx.Exec(ctx, embedsql.ActivateVersion, versionID); err != nil {
				return fmt.Errorf("activate version: %w", err)
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
		log.Info().
			Int64("version_id", versionID).
			Int64("deactivated", deactivated).
			Msg("version activated")
	} else {
		if err := UpdateStatus(ctx, pool, versionID, StatusLoaded); err != nil {
			return 0, fmt.Errorf("update status to loaded: %w", err)
		}
	}

	if _, err := pool.Exec(ctx, "ANALYZE catalog.entries"); err != nil {
		return 0, fmt.Errorf("analyze entries: %w", err)
	}
	log.Info().Msg("ANALYZE complete")

	return time.Since(start), nil
}
