package catalogimport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/claimcheck/internal/normalize"
	"github.com/gyeh/claimcheck/internal/parquetread"
	embedsql "github.com/gyeh/claimcheck/internal/sql"
)

// PreflightResult holds the context resolved before any rows are staged.
type PreflightResult struct {
	FilePath   string
	FileSHA256 string
	FileSize   int64
	// Label defaults to the file's base name without extension.
	Label string
	// VersionID is catalog.versions.version_id, inserted or looked up by sha256.
	VersionID     int64
	ImportBatchID uuid.UUID
	NumRows       int64
	// AlreadyLoaded is true when the file was imported before (active or
	// loaded) and force mode is off.
	AlreadyLoaded bool
}

// Preflight hashes the file, validates its schema and registers the
// catalog version.
func Preflight(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, filePath, label string, force bool) (*PreflightResult, error) {
	start := time.Now()

	sha, err := normalize.FileHash(filePath)
	if err != nil {
		return nil, fmt.Errorf("preflight hash: %w", err)
	}
	stat, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("preflight stat: %w", err)
	}

	reader, err := parquetread.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("preflight open: %w", err)
	}
	defer reader.Close()

	if err := parquetread.ValidateSchema(reader.Schema()); err != nil {
		return nil, fmt.Errorf("preflight validate: %w", err)
	}
	numRows := reader.NumRows()

	if label == "" {
		base := filepath.Base(filePath)
		label = strings.TrimSuffix(base, filepath.Ext(base))
	}

	log.Info().
		Str("file", filepath.Base(filePath)).
		Str("sha256", sha).
		Int64("rows", numRows).
		Str("label", label).
		Dur("duration", time.Since(start)).
		Msg("preflight complete")

	versionID, alreadyLoaded, err := registerVersion(ctx, pool, label, filePath, sha, stat.Size(), numRows, force)
	if err != nil {
		return nil, fmt.Errorf("preflight register version: %w", err)
	}

	return &PreflightResult{
		FilePath:      filePath,
		FileSHA256:    sha,
		FileSize:      stat.Size(),
		Label:         label,
		VersionID:     versionID,
		ImportBatchID: uuid.New(),
		NumRows:       numRows,
		AlreadyLoaded: alreadyLoaded,
	}, nil
}

func registerVersion(ctx context.Context, pool *pgxpool.Pool, label, filePath, sha string, size, rows int64, force bool) (int64, bool, error) {
	var versionID int64
	err := pool.QueryRow(ctx, embedsql.RegisterVersion,
		label, filepath.Base(filePath), sha, size, rows,
	).Scan(&versionID)
	if err == nil {
		return versionID, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, fmt.Errorf("register version: %w", err)
	}

	// ON CONFLICT DO NOTHING returned no row: the sha is already known.
	var status string
	if err := pool.QueryRow(ctx, embedsql.LookupVersion, sha).Scan(&versionID, &status); err != nil {
		return 0, false, fmt.Errorf("lookup existing version: %w", err)
	}
	if !force && (status == StatusActive || status == StatusLoaded) {
		return versionID, true, nil
	}
	if err := UpdateStatus(ctx, pool, versionID, StatusPending); err != nil {
		return 0, false, fmt.Errorf("reset version status: %w", err)
	}
	return versionID, false, nil
}
