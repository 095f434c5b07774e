// Package catalogimport loads a Parquet catalog file into Postgres as a new
// catalog version: preflight, stage (COPY), promote, finalize and cleanup.
package catalogimport

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/claimcheck/internal/config"
	"github.com/gyeh/claimcheck/internal/model"
)

// Version statuses written to catalog.versions.status.
const (
	StatusPending    = "pending"
	StatusStaging    = "staging"
	StatusStaged     = "staged"
	StatusPromoted   = "promoted"
	StatusLoaded     = "loaded"
	StatusActive     = "active"
	StatusFailed     = "failed"
	StatusSuperseded = "superseded"
)

// PipelineError wraps an error with the phase where it occurred.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Run executes the full import pipeline for opts.FilePath.
func Run(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, opts *config.ImportOptions) (*model.ImportSummary, error) {
	totalStart := time.Now()

	log.Info().Str("file", opts.FilePath).Msg("starting preflight")
	pf, err := Preflight(ctx, pool, log, opts.FilePath, opts.Label, opts.Force)
	if err != nil {
		return nil, &PipelineError{Phase: "preflight", Err: err}
	}

	if pf.AlreadyLoaded {
		log.Info().
			Int64("version_id", pf.VersionID).
			Str("sha256", pf.FileSHA256).
			Msg("catalog already imported, skipping (use --force to re-import)")
		return &model.ImportSummary{
			FilePath:      pf.FilePath,
			FileSHA256:    pf.FileSHA256,
			VersionID:     pf.VersionID,
			VersionLabel:  pf.Label,
			ImportBatchID: pf.ImportBatchID.String(),
			Skipped:       true,
			DurationTotal: time.Since(totalStart),
		}, nil
	}

	fail := func(phase string, err error) (*model.ImportSummary, error) {
		if uerr := UpdateStatus(ctx, pool, pf.VersionID, StatusFailed); uerr != nil {
			log.Warn().Err(uerr).Msg("could not mark version failed")
		}
		if !opts.KeepStaging {
			_ = Cleanup(ctx, pool, log, pf.ImportBatchID)
		}
		return nil, &PipelineError{Phase: phase, Err: err}
	}

	log.Info().Msg("starting staging")
	if err := UpdateStatus(ctx, pool, pf.VersionID, StatusStaging); err != nil {
		return nil, &PipelineError{Phase: "stage", Err: err}
	}
	stageResult, err := Stage(ctx, pool, log, pf)
	if err != nil {
		return fail("stage", err)
	}
	if stageResult.RowsStaged == 0 {
		return fail("stage", fmt.Errorf("no valid catalog rows in %s", pf.FilePath))
	}
	if err := UpdateStatus(ctx, pool, pf.VersionID, StatusStaged); err != nil {
		return nil, &PipelineError{Phase: "stage", Err: err}
	}

	log.Info().Msg("promoting staged entries")
	promoteResult, err := Promote(ctx, pool, log, pf.ImportBatchID)
	if err != nil {
		return fail("promote", err)
	}
	if err := UpdateStatus(ctx, pool, pf.VersionID, StatusPromoted); err != nil {
		return nil, &PipelineError{Phase: "promote", Err: err}
	}

	log.Info().Msg("finalizing")
	finalizeDur, err := Finalize(ctx, pool, log, pf.VersionID, opts.Activate)
	if err != nil {
		return fail("finalize", err)
	}

	if !opts.KeepStaging {
		log.Info().Msg("cleaning up staging")
		if err := Cleanup(ctx, pool, log, pf.ImportBatchID); err != nil {
			log.Warn().Err(err).Msg("staging cleanup failed (non-fatal)")
		}
	}

	summary := &model.ImportSummary{
		FilePath:         pf.FilePath,
		FileSHA256:       pf.FileSHA256,
		VersionID:        pf.VersionID,
		VersionLabel:     pf.Label,
		ImportBatchID:    pf.ImportBatchID.String(),
		Activated:        opts.Activate,
		RowsRead:         stageResult.RowsRead,
		RowsStaged:       stageResult.RowsStaged,
		RowsRejected:     stageResult.RowsRejected,
		RowsPromoted:     promoteResult.RowsPromoted,
		RowsByKind:       stageResult.RowsByKind,
		DurationRead:     stageResult.Duration,
		DurationCopy:     stageResult.Duration,
		DurationPromote:  promoteResult.Duration,
		DurationFinalize: finalizeDur,
		DurationTotal:    time.Since(totalStart),
	}

	log.Info().
		Int64("version_id", summary.VersionID).
		Int64("rows_read", summary.RowsRead).
		Int64("rows_staged", summary.RowsStaged).
		Int64("rows_promoted", summary.RowsPromoted).
		Int64("rows_rejected", summary.RowsRejected).
		Bool("activated", summary.Activated).
		Str("total_duration", summary.DurationTotal.String()).
		Msg("catalog import complete")

	return summary, nil
}
