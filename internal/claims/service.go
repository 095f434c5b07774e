// Package claims runs prevalidation and validation of claim submissions:
// it gathers the patient's balance and history, adjudicates the claim,
// persists the outcome and forwards valid claims to the insurer.
package claims

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gyeh/claimcheck/internal/adjudicate"
	"github.com/gyeh/claimcheck/internal/insurer"
	"github.com/gyeh/claimcheck/internal/model"
	"github.com/gyeh/claimcheck/internal/store"
)

// ErrInsurerDisabled is returned by insurer-backed operations when no
// insurer is configured.
var ErrInsurerDisabled = errors.New("insurer integration is not configured")

// SnapshotSource publishes the current rule set and catalog together.
type SnapshotSource interface {
	Current() *Snapshot
}

// HistoryProvider returns a patient's prior claims.
type HistoryProvider interface {
	ForPatient(ctx context.Context, patientID string) ([]model.HistoryRecord, error)
}

// BalanceProvider returns a patient's locally known benefit position.
type BalanceProvider interface {
	Balance(ctx context.Context, patientID string) (model.BalanceSnapshot, error)
}

// PatientStore caches eligibility data fetched from the insurer.
type PatientStore interface {
	Upsert(ctx context.Context, p *store.Patient) error
	List(ctx context.Context, limit, offset int) ([]store.Patient, error)
}

// ClaimStore persists adjudicated claims.
type ClaimStore interface {
	Save(ctx context.Context, c store.NewClaim) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status, insurerClaimID, detail string) error
	List(ctx context.Context, f store.ListFilter) ([]store.StoredClaim, error)
}

// Insurer is the remote claims system.
type Insurer interface {
	PatientByIdentifier(ctx context.Context, identifier string) (*insurer.Bundle, error)
	Eligibility(ctx context.Context, patientUUID string) (*insurer.Eligibility, error)
	SubmitClaim(ctx context.Context, claim *insurer.Claim) (*insurer.ClaimResponse, error)
	ListClaims(ctx context.Context, opts insurer.ListOptions) (json.RawMessage, error)
}

// Deps are the collaborators of a Service. Insurer may be nil, in which
// case Validate and InsurerClaims are unavailable and Prevalidate relies on
// the local patient cache alone.
type Deps struct {
	Snapshots SnapshotSource
	History   HistoryProvider
	Balances  BalanceProvider
	Patients  PatientStore
	Claims    ClaimStore
	Insurer   Insurer
}

// Service is safe for concurrent use.
type Service struct {
	deps Deps
	log  zerolog.Logger
}

// New returns a Service over deps.
func New(deps Deps, log zerolog.Logger) *Service {
	return &Service{deps: deps, log: log}
}

// Outcome is what Prevalidate and Validate report for one claim.
type Outcome struct {
	ClaimID        int64                     `json:"claim_id"`
	ClaimCode      string                    `json:"claim_code"`
	Status         string                    `json:"status"`
	Result         *model.AdjudicationResult `json:"result"`
	InsurerClaimID string                    `json:"insurer_claim_id,omitempty"`
	ForwardError   string                    `json:"forward_error,omitempty"`
	Eligibility    *insurer.Eligibility      `json:"eligibility,omitempty"`
}

// Prevalidate adjudicates sub against the locally cached balance and
// stores it as a draft. Drafts never count as history. A missing or stale
// cache entry is refreshed from the insurer when one is configured.
func (s *Service) Prevalidate(ctx context.Context, sub *model.ClaimSubmission) (*Outcome, error) {
	claim := withClaimCode(sub)
	log := s.log.With().Str("claim_code", claim.ClaimCode).Str("patient_id", claim.PatientID).Logger()

	bal, err := s.deps.Balances.Balance(ctx, claim.PatientID)
	if errors.Is(err, adjudicate.ErrPatientNotFound) && s.deps.Insurer != nil {
		log.Debug().Err(err).Msg("patient cache miss, refreshing from insurer")
		var pe *patientEligibility
		if pe, err = s.eligibility(ctx, claim.PatientID); err == nil {
			bal = pe.balance
		}
	}
	if err != nil {
		return nil, err
	}
	res, catVersion, err := s.adjudicate(ctx, claim, bal)
	if err != nil {
		return nil, err
	}

	id, err := s.deps.Claims.Save(ctx, store.NewClaim{
		Submission:     claim,
		Result:         res,
		Status:         model.StatusDraft,
		CatalogVersion: catVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}

	log.Info().
		Int64("claim_id", id).
		Bool("valid", res.IsValid).
		Str("approved", res.TotalApproved.String()).
		Int("warnings", len(res.AllWarnings())).
		Msg("claim prevalidated")

	return &Outcome{ClaimID: id, ClaimCode: claim.ClaimCode, Status: model.StatusDraft, Result: res}, nil
}

// Validate resolves the patient and eligibility at the insurer, adjudicates
// sub, persists it and forwards it when it is valid.
func (s *Service) Validate(ctx context.Context, sub *model.ClaimSubmission) (*Outcome, error) {
	if s.deps.Insurer == nil {
		return nil, ErrInsurerDisabled
	}
	claim := withClaimCode(sub)
	log := s.log.With().Str("claim_code", claim.ClaimCode).Str("patient_id", claim.PatientID).Logger()

	pe, err := s.eligibility(ctx, claim.PatientID)
	if err != nil {
		return nil, err
	}

	res, catVersion, err := s.adjudicate(ctx, claim, pe.balance)
	if err != nil {
		return nil, err
	}

	status := model.StatusInvalid
	if res.IsValid {
		status = model.StatusPending
	}
	id, err := s.deps.Claims.Save(ctx, store.NewClaim{
		Submission:     claim,
		Result:         res,
		Status:         status,
		CatalogVersion: catVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("save claim: %w", err)
	}
	out := &Outcome{ClaimID: id, ClaimCode: claim.ClaimCode, Status: status, Result: res, Eligibility: pe.elig}

	if !res.IsValid {
		log.Info().Int64("claim_id", id).Msg("claim invalid, not forwarded")
		return out, nil
	}

	resp, fwdErr := s.deps.Insurer.SubmitClaim(ctx, insurer.BuildClaim(claim, res, pe.uuid))
	if fwdErr != nil {
		out.Status = model.StatusForwardFailed
		out.ForwardError = fwdErr.Error()
		log.Warn().Err(fwdErr).Int64("claim_id", id).Msg("forward to insurer failed")
		if err := s.deps.Claims.UpdateStatus(ctx, id, out.Status, "", fwdErr.Error()); err != nil {
			return nil, fmt.Errorf("record forward failure: %w", err)
		}
		return out, nil
	}

	out.Status = model.StatusSubmitted
	out.InsurerClaimID = resp.ID
	if err := s.deps.Claims.UpdateStatus(ctx, id, out.Status, resp.ID, resp.Outcome); err != nil {
		return nil, fmt.Errorf("record submission: %w", err)
	}
	log.Info().
		Int64("claim_id", id).
		Str("insurer_claim_id", resp.ID).
		Str("approved", res.TotalApproved.String()).
		Msg("claim submitted")
	return out, nil
}

// ListClaims returns stored claims matching f.
func (s *Service) ListClaims(ctx context.Context, f store.ListFilter) ([]store.StoredClaim, error) {
	return s.deps.Claims.List(ctx, f)
}

// ListPatients returns the cached patient balances.
func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]store.Patient, error) {
	return s.deps.Patients.List(ctx, limit, offset)
}

// InsurerClaims passes a claim search through to the insurer.
func (s *Service) InsurerClaims(ctx context.Context, opts insurer.ListOptions) (json.RawMessage, error) {
	if s.deps.Insurer == nil {
		return nil, ErrInsurerDisabled
	}
	return s.deps.Insurer.ListClaims(ctx, opts)
}

type patientEligibility struct {
	uuid    string
	elig    *insurer.Eligibility
	balance model.BalanceSnapshot
}

// eligibility resolves the patient at the insurer, fetches their benefit
// position and refreshes the local cache with it.
func (s *Service) eligibility(ctx context.Context, patientID string) (*patientEligibility, error) {
	bundle, err := s.deps.Insurer.PatientByIdentifier(ctx, patientID)
	if errors.Is(err, insurer.ErrPatientNotFound) {
		return nil, &adjudicate.Error{
			Kind:   adjudicate.KindPatientNotFound,
			Rule:   model.RulePatientLookup,
			Detail: fmt.Sprintf("patient %s not found at insurer", patientID),
			Err:    err,
		}
	}
	if err != nil {
		return nil, fmt.Errorf("insurer patient lookup: %w", err)
	}
	patientUUID := bundle.PatientUUID()

	elig, err := s.deps.Insurer.Eligibility(ctx, patientUUID)
	if err != nil {
		return nil, fmt.Errorf("insurer eligibility: %w", err)
	}
	bal, err := adjudicate.NewBalance(elig.Allowed, elig.Used, insurer.ExtractCopayment(bundle))
	if err != nil {
		return nil, err
	}

	if err := s.deps.Patients.Upsert(ctx, &store.Patient{
		PatientID:    patientID,
		InsurerUUID:  patientUUID,
		Allowed:      bal.Allowed,
		Used:         bal.Used,
		Copay:        bal.Copay,
		Category:     elig.Category,
		PolicyID:     elig.PolicyID,
		PolicyExpiry: elig.PolicyExpiry,
	}); err != nil {
		return nil, fmt.Errorf("cache eligibility: %w", err)
	}
	return &patientEligibility{uuid: patientUUID, elig: elig, balance: bal}, nil
}

func (s *Service) adjudicate(ctx context.Context, claim *model.ClaimSubmission, bal model.BalanceSnapshot) (*model.AdjudicationResult, string, error) {
	snap := s.deps.Snapshots.Current()
	if snap == nil || snap.Catalog == nil || snap.Rules == nil {
		return nil, "", fmt.Errorf("catalog or rules not loaded")
	}

	history, err := s.deps.History.ForPatient(ctx, claim.PatientID)
	if err != nil {
		return nil, "", fmt.Errorf("load history: %w", err)
	}

	res, err := adjudicate.Adjudicate(adjudicate.Input{
		Submission: claim,
		Balance:    bal,
		History:    history,
		Catalog:    snap.Catalog,
		Rules:      snap.Rules,
	})
	if err != nil {
		return nil, "", err
	}
	return res, snap.Catalog.Version(), nil
}

// withClaimCode returns a copy of sub carrying a claim code.
func withClaimCode(sub *model.ClaimSubmission) *model.ClaimSubmission {
	c := *sub
	if c.ClaimCode == "" {
		c.ClaimCode = uuid.NewString()
	}
	return &c
}
