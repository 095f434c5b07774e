package catalogimport

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/claimcheck/internal/catalog"
	"github.com/gyeh/claimcheck/internal/db"
	"github.com/gyeh/claimcheck/internal/model"
	"github.com/gyeh/claimcheck/internal/money"
	"github.com/gyeh/claimcheck/internal/parquetread"
	embedsql "github.com/gyeh/claimcheck/internal/sql"
)

const readBatchSize = 1024

// StageResult holds metrics from the staging phase.
type StageResult struct {
	RowsRead     int64
	RowsStaged   int64
	RowsRejected int64
	RowsByKind   map[model.CatalogKind]int64
	Duration     time.Duration
}

// ToStagingRow validates one Parquet row and converts it into its staging
// form.
func ToStagingRow(r *model.CatalogRow, pf *PreflightResult, rowNum int64) (*model.CatalogStagingRow, error) {
	e, err := catalog.EntryFromRow(r)
	if err != nil {
		return nil, err
	}
	if e.Code == "" {
		return nil, fmt.Errorf("empty code")
	}
	if e.Capping.MaxPerVisit < 0 || e.Capping.WindowMaxUnits < 0 || e.Capping.WindowDays < 0 {
		return nil, fmt.Errorf("code %q: negative capping", e.Code)
	}
	row := catalog.RowFromEntry(e)
	return &model.CatalogStagingRow{
		ImportBatchID:   pf.ImportBatchID,
		VersionID:       pf.VersionID,
		SourceRowNumber: rowNum,
		Code:            e.Code,
		Name:            e.Name,
		Kind:            e.Kind,
		Class:           e.Class,
		RatePaisa:       money.ToMinor(e.Rate),
		MaxPerVisit:     row.MaxPerVisit,
		WindowMaxUnits:  row.WindowMaxUnits,
		WindowDays:      row.WindowDays,
	}, nil
}

// Stage streams rows from the Parquet file, validates them, and COPY-loads
// them into catalog.stage_entries via a channel-backed CopyFromSource.
func Stage(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, pf *PreflightResult) (*StageResult, error) {
	start := time.Now()

	reader, err := parquetread.Open(pf.FilePath)
	if err != nil {
		return nil, fmt.Errorf("stage open: %w", err)
	}
	defer reader.Close()

	ch := make(chan *model.CatalogStagingRow, readBatchSize)
	errCh := make(chan error, 1)

	var rowsRead, rowsRejected int64
	byKind := make(map[model.CatalogKind]int64)

	// Producer goroutine: read Parquet → validate → push to channel
	go func() {
		defer close(ch)
		buf := make([]model.CatalogRow, readBatchSize)
		var rowNum int64

		for {
			n, readErr := reader.Read(buf)
			for i := 0; i < n; i++ {
				rowNum++
				rowsRead++

				staging, convErr := ToStagingRow(&buf[i], pf, rowNum)
				if convErr != nil {
					rowsRejected++
					log.Warn().Err(convErr).Int64("row", rowNum).Msg("row rejected")
					continue
				}
				byKind[staging.Kind]++

				select {
				case ch <- staging:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			}
			if readErr == io.EOF {
				break
			}
			if readErr != nil {
				errCh <- fmt.Errorf("read parquet at row %d: %w", rowNum, readErr)
				return
			}
		}
		errCh <- nil
	}()

	source := db.NewChannelSource(ctx, ch)
	rowsStaged, err := pool.CopyFrom(ctx,
		pgx.Identifier{"catalog", "stage_entries"},
		model.StagingColumns(),
		source,
	)
	if err != nil {
		// Unblock the producer if COPY stopped consuming early.
		for range ch {
		}
	}

	prodErr := <-errCh
	if prodErr != nil {
		return nil, fmt.Errorf("stage producer: %w", prodErr)
	}
	if err != nil {
		return nil, fmt.Errorf("stage copy: %w", err)
	}
	if sent := source.Sent(); sent != rowsStaged {
		log.Warn().Int64("sent", sent).Int64("copied", rowsStaged).Msg("copy row count mismatch")
	}

	dur := time.Since(start)
	log.Info().
		Int64("rows_read", rowsRead).
		Int64("rows_staged", rowsStaged).
		Int64("rows_rejected", rowsRejected).
		Str("duration", dur.String()).
		Float64("rows_per_sec", float64(rowsStaged)/dur.Seconds()).
		Msg("staging complete")

	return &StageResult{
		RowsRead:     rowsRead,
		RowsStaged:   rowsStaged,
		RowsRejected: rowsRejected,
		RowsByKind:   byKind,
		Duration:     dur,
	}, nil
}

// UpdateStatus updates catalog.versions.status.
func UpdateStatus(ctx context.Context, pool *pgxpool.Pool, versionID int64, status string) error {
	_, err := pool.Exec(ctx, embedsql.UpdateVersionStatus, versionID, status)
	return err
}
