package catalogimport

import (
	"fmt"
	"io"
	"os"

	"github.com/gyeh/claimcheck/internal/model"
	"github.com/gyeh/claimcheck/internal/normalize"
	"github.com/gyeh/claimcheck/internal/parquetread"
)

// maxPlanRejects bounds how many rejected rows a plan report lists.
const maxPlanRejects = 20

// Rejection describes one row the import would drop.
type Rejection struct {
	Row    int64
	Reason string
}

// PlanReport summarizes what an import of a file would do, without
// touching the database.
type PlanReport struct {
	FilePath     string
	FileSHA256   string
	FileSize     int64
	RowsRead     int64
	RowsValid    int64
	RowsRejected int64
	Duplicates   int64
	RowsByKind   map[model.CatalogKind]int64
	Rejections   []Rejection
}

// Plan validates every row of the file and reports the outcome.
func Plan(filePath string) (*PlanReport, error) {
	sha, err := normalize.FileHash(filePath)
	if err != nil {
		return nil, fmt.Errorf("hash: %w", err)
	}
	stat, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}

	reader, err := parquetread.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	if err := parquetread.ValidateSchema(reader.Schema()); err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	report := &PlanReport{
		FilePath:   filePath,
		FileSHA256: sha,
		FileSize:   stat.Size(),
		RowsByKind: make(map[model.CatalogKind]int64),
	}
	seen := make(map[model.CatalogKind]map[string]bool)
	pf := &PreflightResult{FilePath: filePath}

	buf := make([]model.CatalogRow, 256)
	for {
		n, readErr := reader.Read(buf)
		for i := 0; i < n; i++ {
			report.RowsRead++
			row, convErr := ToStagingRow(&buf[i], pf, report.RowsRead)
			if convErr != nil {
				report.RowsRejected++
				if len(report.Rejections) < maxPlanRejects {
					report.Rejections = append(report.Rejections, Rejection{Row: report.RowsRead, Reason: convErr.Error()})
				}
				continue
			}
			if seen[row.Kind] == nil {
				seen[row.Kind] = make(map[string]bool)
			}
			if seen[row.Kind][row.Code] {
				report.Duplicates++
			} else {
				seen[row.Kind][row.Code] = true
				report.RowsByKind[row.Kind]++
			}
			report.RowsValid++
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, readErr
		}
	}
	return report, nil
}
