package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gyeh/claimcheck/internal/model"
	"github.com/gyeh/claimcheck/internal/money"
	"github.com/gyeh/claimcheck/internal/normalize"
	embedsql "github.com/gyeh/claimcheck/internal/sql"
)

// HistoryRepo reads a patient's prior claims.
type HistoryRepo struct {
	pool *pgxpool.Pool
}

// ForPatient returns the patient's counted claims, newest first, each with
// its approved line items. Drafts, invalid, rejected and unknown claims are
// excluded by the query.
func (r *HistoryRepo) ForPatient(ctx context.Context, patientID string) ([]model.HistoryRecord, error) {
	rows, err := r.pool.Query(ctx, embedsql.PatientHistory, patientID)
	if err != nil {
		return nil, fmt.Errorf("query history for %s: %w", patientID, err)
	}
	defer rows.Close()

	var (
		out    []model.HistoryRecord
		lastID int64 = -1
	)
	for rows.Next() {
		var (
			claimID                int64
			code, category, status string
			service, dept          *string
			createdAt              time.Time
			itemCode, itemName     *string
			qty                    *int32
			ratePaisa              *int64
		)
		if err := rows.Scan(&claimID, &code, &category, &service, &dept, &createdAt, &status,
			&itemCode, &itemName, &qty, &ratePaisa); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if claimID != lastID {
			out = append(out, model.HistoryRecord{
				ClaimCode:   code,
				Category:    model.ServiceCategory(category),
				ServiceCode: normalize.Deref(service),
				Department:  normalize.Deref(dept),
				CreatedAt:   createdAt,
				Status:      status,
			})
			lastID = claimID
		}
		if itemCode == nil {
			continue
		}
		rec := &out[len(out)-1]
		item := model.HistoryItem{
			Code:     *itemCode,
			Name:     normalize.Deref(itemName),
			UnitRate: money.FromMinorPtr(ratePaisa),
		}
		if qty != nil {
			item.Quantity = int(*qty)
		}
		rec.Items = append(rec.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}
