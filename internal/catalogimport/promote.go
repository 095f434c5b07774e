package catalogimport

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	embedsql "github.com/gyeh/claimcheck/internal/sql"
)

// PromoteResult holds metrics from the promote phase.
type PromoteResult struct {
	RowsPromoted int64
	Duration     time.Duration
}

// Promote copies one staged batch into catalog.entries. Duplicate codes
// within a kind resolve to the row that appeared last in the file.
func Promote(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, batchID uuid.UUID) (*PromoteResult, error) {
	start := time.Now()

	tag, err := pool.Exec(ctx, embedsql.PromoteEntries, batchID)
	if err != nil {
		return nil, fmt.Errorf("promote entries: %w", err)
	}

	dur := time.Since(start)
	rows := tag.RowsAffected()
	log.Info().
		Int64("rows_promoted", rows).
		Str("duration", dur.String()).
		Msg("promote complete")

	return &PromoteResult{RowsPromoted: rows, Duration: dur}, nil
}
