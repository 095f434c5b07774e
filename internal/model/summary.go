package model

import "time"

// ImportSummary captures metrics from a single catalog import run.
type ImportSummary struct {
	FilePath         string
	FileSHA256       string
	VersionID        int64
	VersionLabel     string
	ImportBatchID    string
	Skipped          bool
	Activated        bool
	RowsRead         int64
	RowsStaged       int64
	RowsRejected     int64
	RowsPromoted     int64
	RowsByKind       map[CatalogKind]int64
	DurationRead     time.Duration
	DurationCopy     time.Duration
	DurationPromote  time.Duration
	DurationFinalize time.Duration
	DurationTotal    time.Duration
}
