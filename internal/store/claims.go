package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/gyeh/claimcheck/internal/model"
	"github.com/gyeh/claimcheck/internal/money"
	"github.com/gyeh/claimcheck/internal/normalize"
	embedsql "github.com/gyeh/claimcheck/internal/sql"
)

// StoredClaim is a persisted claim header.
type StoredClaim struct {
	ID             int64                 `json:"id"`
	ClaimCode      string                `json:"claim_code"`
	PatientID      string                `json:"patient_id"`
	Category       model.ServiceCategory `json:"service_type"`
	VisitDate      model.Date            `json:"visit_date"`
	Status         string                `json:"status"`
	IsValid        bool                  `json:"is_locally_valid"`
	AmountClaimed  decimal.Decimal       `json:"amount_claimed"`
	Approved       decimal.Decimal       `json:"total_approved_local"`
	Copay          decimal.Decimal       `json:"total_copay"`
	Net            decimal.Decimal       `json:"net_claimable"`
	RulesVersion   string                `json:"applied_rules_version"`
	InsurerClaimID string                `json:"insurer_claim_id,omitempty"`
	StatusDetail   string                `json:"status_detail,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}

// NewClaim is everything Save writes for one adjudicated claim.
type NewClaim struct {
	Submission     *model.ClaimSubmission
	Result         *model.AdjudicationResult
	Status         string
	CatalogVersion string
}

// ListFilter narrows ListClaims. Empty fields match everything.
type ListFilter struct {
	PatientID string
	Status    string
	Limit     int
	Offset    int
}

// ClaimRepo writes claims with their line items and results.
type ClaimRepo struct {
	pool *pgxpool.Pool
}

// Save inserts the claim header and its items in one transaction and
// returns the new claim id.
func (r *ClaimRepo) Save(ctx context.Context, c NewClaim) (int64, error) {
	sub, res := c.Submission, c.Result
	if len(sub.Items) != len(res.Items) {
		return 0, fmt.Errorf("save claim: %d line items but %d results", len(sub.Items), len(res.Items))
	}
	resultJSON, err := json.Marshal(res)
	if err != nil {
		return 0, fmt.Errorf("encode result: %w", err)
	}

	var id int64
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var created time.Time
		if err := tx.QueryRow(ctx, embedsql.InsertClaim,
			sub.ClaimCode,
			sub.PatientID,
			string(sub.Category),
			normalize.Opt(sub.ServiceCode),
			normalize.Opt(sub.Department),
			sub.VisitDate.Time(),
			c.Status,
			res.IsValid,
			money.ToMinor(sub.AmountClaimed()),
			money.ToMinor(res.TotalApproved),
			money.ToMinor(res.TotalCopay),
			money.ToMinor(res.NetClaimable),
			res.RulesVersion,
			normalize.Opt(c.CatalogVersion),
			string(resultJSON),
		).Scan(&id, &created); err != nil {
			return fmt.Errorf("insert claim: %w", err)
		}

		batch := &pgx.Batch{}
		for i, it := range res.Items {
			batch.Queue(embedsql.InsertClaimItem,
				id, i+1,
				it.ItemCode,
				it.ItemName,
				string(it.Class),
				it.RequestedQuantity,
				it.ApprovedQuantity,
				money.ToMinor(it.ApprovedRate),
				money.ToMinor(it.ApprovedAmount),
				money.ToMinor(it.CopayAmount),
				it.Claimable,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert claim items: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateStatus records the outcome of forwarding a claim. An empty
// insurerClaimID keeps the stored one.
func (r *ClaimRepo) UpdateStatus(ctx context.Context, id int64, status, insurerClaimID, detail string) error {
	tag, err := r.pool.Exec(ctx, embedsql.UpdateClaimStatus, id, status, normalize.Opt(insurerClaimID), normalize.Opt(detail))
	if err != nil {
		return fmt.Errorf("update claim %d status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns stored claims, newest first.
func (r *ClaimRepo) List(ctx context.Context, f ListFilter) ([]StoredClaim, error) {
	if f.Limit <= 0 || f.Limit > maxListLimit {
		f.Limit = defaultListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	rows, err := r.pool.Query(ctx, embedsql.ListClaims, normalize.Opt(f.PatientID), normalize.Opt(f.Status), f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	out := []StoredClaim{}
	for rows.Next() {
		var (
			c                             StoredClaim
			category                      string
			visit                         time.Time
			claimed, approved, copay, net int64
			insurerID, detail             *string
		)
		if err := rows.Scan(&c.ID, &c.ClaimCode, &c.PatientID, &category, &visit, &c.Status, &c.IsValid,
			&claimed, &approved, &copay, &net, &c.RulesVersion, &insurerID, &detail, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		c.Category = model.ServiceCategory(category)
		c.VisitDate = model.DateOf(visit)
		c.AmountClaimed = money.FromMinor(claimed)
		c.Approved = money.FromMinor(approved)
		c.Copay = money.FromMinor(copay)
		c.Net = money.FromMinor(net)
		c.InsurerClaimID = normalize.Deref(insurerID)
		c.StatusDetail = normalize.Deref(detail)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claims: %w", err)
	}
	return out, nil
}
