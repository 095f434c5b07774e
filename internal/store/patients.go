package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/gyeh/claimcheck/internal/adjudicate"
	"github.com/gyeh/claimcheck/internal/model"
	"github.com/gyeh/claimcheck/internal/money"
	"github.com/gyeh/claimcheck/internal/normalize"
	embedsql "github.com/gyeh/claimcheck/internal/sql"
)

// Patient is the locally cached benefit position of an insured patient.
type Patient struct {
	PatientID    string          `json:"patient_id"`
	InsurerUUID  string          `json:"insurer_uuid,omitempty"`
	Allowed      decimal.Decimal `json:"allowed_money"`
	Used         decimal.Decimal `json:"used_money"`
	Copay        money.CopayRate `json:"copay_rate"`
	Category     string          `json:"category,omitempty"`
	PolicyID     string          `json:"policy_id,omitempty"`
	PolicyExpiry *time.Time      `json:"policy_expiry,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// PatientRepo reads and writes claims.patients.
type PatientRepo struct {
	pool *pgxpool.Pool
	ttl  time.Duration
	now  func() time.Time
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(row rowScanner) (*Patient, error) {
	var (
		p                 Patient
		uuid, cat, policy *string
		allowed, used     int64
		copay             string
	)
	if err := row.Scan(&p.PatientID, &uuid, &allowed, &used, &copay, &cat, &policy, &p.PolicyExpiry, &p.UpdatedAt); err != nil {
		return nil, err
	}
	rate, err := money.ParseCopayRate(copay)
	if err != nil {
		return nil, fmt.Errorf("patient %s: stored copay: %w", p.PatientID, err)
	}
	p.InsurerUUID = normalize.Deref(uuid)
	p.Category = normalize.Deref(cat)
	p.PolicyID = normalize.Deref(policy)
	p.Allowed = money.FromMinor(allowed)
	p.Used = money.FromMinor(used)
	p.Copay = rate
	return &p, nil
}

// Get returns the patient or ErrNotFound.
func (r *PatientRepo) Get(ctx context.Context, patientID string) (*Patient, error) {
	p, err := scanPatient(r.pool.QueryRow(ctx, embedsql.GetPatient, patientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient %s: %w", patientID, err)
	}
	return p, nil
}

// List returns cached patients, most recently refreshed first.
func (r *PatientRepo) List(ctx context.Context, limit, offset int) ([]Patient, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	rows, err := r.pool.Query(ctx, embedsql.ListPatients, limit, max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	out := []Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Prune deletes patients whose eligibility was last refreshed before cutoff.
func (r *PatientRepo) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, embedsql.PrunePatients, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune patients: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Upsert inserts or refreshes a patient from eligibility data.
func (r *PatientRepo) Upsert(ctx context.Context, p *Patient) error {
	_, err := r.pool.Exec(ctx, embedsql.UpsertPatient,
		p.PatientID,
		normalize.Opt(p.InsurerUUID),
		money.ToMinor(p.Allowed),
		money.ToMinor(p.Used),
		p.Copay.String(),
		normalize.Opt(p.Category),
		normalize.Opt(p.PolicyID),
		p.PolicyExpiry,
	)
	if err != nil {
		return fmt.Errorf("upsert patient %s: %w", p.PatientID, err)
	}
	return nil
}

// Balance returns the patient's balance snapshot. An unknown patient, or
// one whose cached eligibility is older than the TTL, is reported as an
// adjudicate PatientNotFound failure.
func (r *PatientRepo) Balance(ctx context.Context, patientID string) (model.BalanceSnapshot, error) {
	p, err := r.Get(ctx, patientID)
	if errors.Is(err, ErrNotFound) {
		return model.BalanceSnapshot{}, &adjudicate.Error{
			Kind:   adjudicate.KindPatientNotFound,
			Rule:   model.RulePatientLookup,
			Detail: fmt.Sprintf("patient %s not found in insurance database", patientID),
			Err:    err,
		}
	}
	if err != nil {
		return model.BalanceSnapshot{}, err
	}
	if r.ttl > 0 && r.now().Sub(p.UpdatedAt) > r.ttl {
		return model.BalanceSnapshot{}, &adjudicate.Error{
			Kind:   adjudicate.KindPatientNotFound,
			Rule:   model.RulePatientLookup,
			Detail: fmt.Sprintf("cached eligibility for patient %s is older than %s", patientID, r.ttl),
			Err:    ErrStale,
		}
	}
	return model.BalanceSnapshot{Allowed: p.Allowed, Used: p.Used, Copay: p.Copay}, nil
}
