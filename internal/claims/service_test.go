package claims

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gyeh/claimcheck/internal/adjudicate"
	"github.com/gyeh/claimcheck/internal/catalog"
	"github.com/gyeh/claimcheck/internal/insurer"
	"github.com/gyeh/claimcheck/internal/model"
	"github.com/gyeh/claimcheck/internal/policy"
	"github.com/gyeh/claimcheck/internal/store"
)

const testRules = `
rules_version: "svc-1"
claim_categories:
  OPD: {rules: {ticket_valid_days: 7}}
general_rules:
  max_bed_charge_per_day: 250
`

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type memBalances map[string]model.BalanceSnapshot

func (m memBalances) Balance(_ context.Context, id string) (model.BalanceSnapshot, error) {
	b, ok := m[id]
	if !ok {
		return model.BalanceSnapshot{}, &adjudicate.Error{Kind: adjudicate.KindPatientNotFound, Rule: model.RulePatientLookup}
	}
	return b, nil
}

// memClaims records saved claims and serves them back as history.
type memClaims struct {
	mu       sync.Mutex
	saved    []store.NewClaim
	statuses map[int64][3]string
}

func (m *memClaims) Save(_ context.Context, c store.NewClaim) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, c)
	return int64(len(m.saved)), nil
}

func (m *memClaims) UpdateStatus(_ context.Context, id int64, status, insurerID, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statuses == nil {
		m.statuses = make(map[int64][3]string)
	}
	m.statuses[id] = [3]string{status, insurerID, detail}
	return nil
}

func (m *memClaims) List(_ context.Context, f store.ListFilter) ([]store.StoredClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.StoredClaim
	for i, c := range m.saved {
		if f.PatientID != "" && c.Submission.PatientID != f.PatientID {
			continue
		}
		out = append(out, store.StoredClaim{ID: int64(i + 1), ClaimCode: c.Submission.ClaimCode, PatientID: c.Submission.PatientID, Status: c.Status})
	}
	return out, nil
}

func (m *memClaims) ForPatient(_ context.Context, id string) ([]model.HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.HistoryRecord
	for i, c := range m.saved {
		if c.Submission.PatientID != id {
			continue
		}
		status := c.Status
		if s, ok := m.statuses[int64(i+1)]; ok {
			status = s[0]
		}
		rec := model.HistoryRecord{
			ClaimCode: c.Submission.ClaimCode,
			Category:  c.Submission.Category,
			CreatedAt: c.Submission.VisitDate.Time(),
			Status:    status,
		}
		for _, it := range c.Result.Items {
			rec.Items = append(rec.Items, model.HistoryItem{Code: it.ItemCode, Quantity: it.ApprovedQuantity, UnitRate: it.ApprovedRate})
		}
		out = append(out, rec)
	}
	return out, nil
}

type memPatients struct {
	upserted []*store.Patient
}

func (m *memPatients) Upsert(_ context.Context, p *store.Patient) error {
	m.upserted = append(m.upserted, p)
	return nil
}

func (m *memPatients) List(_ context.Context, limit, offset int) ([]store.Patient, error) {
	var out []store.Patient
	for i, p := range m.upserted {
		if i < offset || (limit > 0 && len(out) == limit) {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

type fakeInsurer struct {
	copay     any
	notFound  bool
	submitErr error
	submitted []*insurer.Claim
	listed    []insurer.ListOptions
	lookups   int
}

func (f *fakeInsurer) PatientByIdentifier(_ context.Context, id string) (*insurer.Bundle, error) {
	f.lookups++
	if f.notFound {
		return nil, insurer.ErrPatientNotFound
	}
	b := &insurer.Bundle{Total: 1, Entry: []insurer.BundleEntry{{Resource: insurer.Resource{ID: "uuid-" + id}}}}
	if s, ok := f.copay.(string); ok {
		b.Entry[0].Resource.Extension = []insurer.Extension{{URL: "Copayment", ValueString: &s}}
	}
	return b, nil
}

func (f *fakeInsurer) Eligibility(_ context.Context, uuid string) (*insurer.Eligibility, error) {
	return &insurer.Eligibility{Category: "medical", Allowed: d("1000"), Used: d("100"), PolicyID: "POL-1"}, nil
}

func (f *fakeInsurer) SubmitClaim(_ context.Context, c *insurer.Claim) (*insurer.ClaimResponse, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, c)
	return &insurer.ClaimResponse{ID: "INS-1", Outcome: "queued"}, nil
}

func (f *fakeInsurer) ListClaims(_ context.Context, opts insurer.ListOptions) (json.RawMessage, error) {
	f.listed = append(f.listed, opts)
	return json.RawMessage(`{"resourceType": "Bundle", "total": 0}`), nil
}

type fixture struct {
	svc      *Service
	claims   *memClaims
	patients *memPatients
	ins      *fakeInsurer
}

func newFixture(t *testing.T, ins *fakeInsurer) *fixture {
	t.Helper()
	rs, err := policy.Parse([]byte(testRules))
	if err != nil {
		t.Fatal(err)
	}
	cat, err := catalog.New("cat-1",
		model.CatalogEntry{Code: "MED001", Name: "Paracetamol", Kind: model.KindItem, Rate: d("100")},
		model.CatalogEntry{Code: "WIN1", Name: "Physiotherapy", Kind: model.KindItem, Rate: d("10"),
			Capping: model.Capping{WindowMaxUnits: 2, WindowDays: 30}},
	)
	if err != nil {
		t.Fatal(err)
	}
	copay := func() model.BalanceSnapshot {
		b, err := adjudicate.NewBalance(d("1000"), d("0"), "10%")
		if err != nil {
			t.Fatal(err)
		}
		return b
	}()

	f := &fixture{claims: &memClaims{}, patients: &memPatients{}, ins: ins}
	deps := Deps{
		Snapshots: NewSnapshotHolder(rs, cat),
		History:   f.claims,
		Balances:  memBalances{"P1": copay},
		Patients:  f.patients,
		Claims:    f.claims,
	}
	if ins != nil {
		deps.Insurer = ins
	}
	f.svc = New(deps, zerolog.Nop())
	return f
}

func submission(patient string, items ...model.ClaimLineItem) *model.ClaimSubmission {
	return &model.ClaimSubmission{
		PatientID:      patient,
		Category:       model.CategoryOutpatient,
		VisitDate:      model.NewDate(2025, time.March, 10),
		DiagnosisCodes: []string{"A01"},
		Items:          items,
	}
}

func TestPrevalidate_SavesDraft(t *testing.T) {
	f := newFixture(t, nil)
	sub := submission("P1", model.ClaimLineItem{Code: "MED001", Quantity: 2, UnitCost: d("100")})

	out, err := f.svc.Prevalidate(context.Background(), sub)
	if err != nil {
		t.Fatalf("Prevalidate: %v", err)
	}
	if out.Status != model.StatusDraft || out.ClaimCode == "" {
		t.Errorf("outcome = %+v", out)
	}
	if sub.ClaimCode != "" {
		t.Error("caller's submission should not be modified")
	}
	if !out.Result.TotalApproved.Equal(d("200")) || !out.Result.TotalCopay.Equal(d("20")) || !out.Result.IsValid {
		t.Errorf("result = %+v", out.Result)
	}
	if len(f.claims.saved) != 1 || f.claims.saved[0].CatalogVersion != "cat-1" {
		t.Errorf("saved = %+v", f.claims.saved)
	}
}

func TestPrevalidate_DraftsDoNotCountAsHistory(t *testing.T) {
	f := newFixture(t, nil)
	line := model.ClaimLineItem{Code: "WIN1", Quantity: 2, UnitCost: d("10")}

	for i := 0; i < 3; i++ {
		out, err := f.svc.Prevalidate(context.Background(), submission("P1", line))
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if out.Result.Items[0].ApprovedQuantity != 2 {
			t.Fatalf("run %d: approved %d, want 2", i, out.Result.Items[0].ApprovedQuantity)
		}
	}
}

func TestPrevalidate_UnknownPatient(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Prevalidate(context.Background(), submission("NOPE", model.ClaimLineItem{Code: "MED001", Quantity: 1, UnitCost: d("1")}))
	if !errors.Is(err, adjudicate.ErrPatientNotFound) {
		t.Fatalf("got %v, want ErrPatientNotFound", err)
	}
	if len(f.claims.saved) != 0 {
		t.Error("hard failures must not be persisted")
	}
}

func TestPrevalidate_RefreshesCacheFromInsurer(t *testing.T) {
	ins := &fakeInsurer{copay: "20%"}
	f := newFixture(t, ins)

	out, err := f.svc.Prevalidate(context.Background(), submission("P9", model.ClaimLineItem{Code: "MED001", Quantity: 1, UnitCost: d("100")}))
	if err != nil {
		t.Fatalf("Prevalidate: %v", err)
	}
	if out.Status != model.StatusDraft || !out.Result.AvailableMoney.Equal(d("900")) || !out.Result.TotalCopay.Equal(d("20")) {
		t.Errorf("outcome = %+v, result = %+v", out, out.Result)
	}
	if len(f.patients.upserted) != 1 || f.patients.upserted[0].InsurerUUID != "uuid-P9" {
		t.Errorf("patient cache = %+v", f.patients.upserted)
	}
	if len(ins.submitted) != 0 {
		t.Error("prevalidation must not forward the claim")
	}

	// A cached patient is not looked up again.
	if _, err := f.svc.Prevalidate(context.Background(), submission("P1", model.ClaimLineItem{Code: "MED001", Quantity: 1, UnitCost: d("1")})); err != nil {
		t.Fatal(err)
	}
	if ins.lookups != 1 {
		t.Errorf("insurer lookups = %d, want 1", ins.lookups)
	}
}

func TestPrevalidate_UnknownAtInsurer(t *testing.T) {
	f := newFixture(t, &fakeInsurer{notFound: true})
	_, err := f.svc.Prevalidate(context.Background(), submission("NOPE", model.ClaimLineItem{Code: "MED001", Quantity: 1, UnitCost: d("1")}))
	if !errors.Is(err, adjudicate.ErrPatientNotFound) {
		t.Fatalf("got %v, want ErrPatientNotFound", err)
	}
	if len(f.claims.saved) != 0 || len(f.patients.upserted) != 0 {
		t.Error("hard failure must not persist anything")
	}
}

func TestValidate_SubmitsValidClaim(t *testing.T) {
	ins := &fakeInsurer{copay: "20%"}
	f := newFixture(t, ins)

	out, err := f.svc.Validate(context.Background(), submission("P9", model.ClaimLineItem{Code: "MED001", Quantity: 1, UnitCost: d("100")}))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if out.Status != model.StatusSubmitted || out.InsurerClaimID != "INS-1" {
		t.Errorf("outcome = %+v", out)
	}
	if !out.Result.TotalCopay.Equal(d("20")) || !out.Result.AvailableMoney.Equal(d("900")) {
		t.Errorf("balance from insurer not applied: %+v", out.Result)
	}
	if len(ins.submitted) != 1 || ins.submitted[0].Patient.Reference != "Patient/uuid-P9" {
		t.Errorf("submitted = %+v", ins.submitted)
	}
	if len(f.patients.upserted) != 1 || f.patients.upserted[0].PolicyID != "POL-1" {
		t.Errorf("patient cache = %+v", f.patients.upserted)
	}
	if got := f.claims.statuses[out.ClaimID]; got[0] != model.StatusSubmitted || got[1] != "INS-1" {
		t.Errorf("stored status = %v", got)
	}
	if f.claims.saved[0].Status != model.StatusPending {
		t.Errorf("initial status = %s, want pending", f.claims.saved[0].Status)
	}
}

func TestValidate_InvalidClaimNotForwarded(t *testing.T) {
	ins := &fakeInsurer{}
	f := newFixture(t, ins)

	out, err := f.svc.Validate(context.Background(), submission("P9", model.ClaimLineItem{Code: "MISSING", Quantity: 1, UnitCost: d("100")}))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if out.Status != model.StatusInvalid || out.Result.IsValid {
		t.Errorf("outcome = %+v", out)
	}
	if len(ins.submitted) != 0 {
		t.Error("invalid claim was forwarded")
	}
}

func TestValidate_ForwardFailure(t *testing.T) {
	ins := &fakeInsurer{submitErr: errors.New("connection reset")}
	f := newFixture(t, ins)

	out, err := f.svc.Validate(context.Background(), submission("P9", model.ClaimLineItem{Code: "MED001", Quantity: 1, UnitCost: d("100")}))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if out.Status != model.StatusForwardFailed || out.ForwardError == "" {
		t.Errorf("outcome = %+v", out)
	}
	if got := f.claims.statuses[out.ClaimID]; got[0] != model.StatusForwardFailed || got[2] != "connection reset" {
		t.Errorf("stored status = %v", got)
	}
}

func TestValidate_HardFailures(t *testing.T) {
	t.Run("patient not found", func(t *testing.T) {
		f := newFixture(t, &fakeInsurer{notFound: true})
		_, err := f.svc.Validate(context.Background(), submission("P9", model.ClaimLineItem{Code: "MED001", Quantity: 1, UnitCost: d("1")}))
		if !errors.Is(err, adjudicate.ErrPatientNotFound) {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("malformed copay", func(t *testing.T) {
		f := newFixture(t, &fakeInsurer{copay: "lots"})
		_, err := f.svc.Validate(context.Background(), submission("P9", model.ClaimLineItem{Code: "MED001", Quantity: 1, UnitCost: d("1")}))
		if !errors.Is(err, adjudicate.ErrMalformedCopayRate) {
			t.Fatalf("got %v", err)
		}
		if len(f.claims.saved) != 0 || len(f.patients.upserted) != 0 {
			t.Error("hard failure must not persist anything")
		}
	})
	t.Run("insurer disabled", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.svc.Validate(context.Background(), submission("P1", model.ClaimLineItem{Code: "MED001", Quantity: 1, UnitCost: d("1")}))
		if !errors.Is(err, ErrInsurerDisabled) {
			t.Fatalf("got %v", err)
		}
	})
}

func TestListClaims(t *testing.T) {
	f := newFixture(t, nil)
	for _, p := range []string{"P1", "P1"} {
		if _, err := f.svc.Prevalidate(context.Background(), submission(p, model.ClaimLineItem{Code: "MED001", Quantity: 1, UnitCost: d("1")})); err != nil {
			t.Fatal(err)
		}
	}
	got, err := f.svc.ListClaims(context.Background(), store.ListFilter{PatientID: "P1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("listed %d claims, want 2", len(got))
	}
	if _, err := json.Marshal(got); err != nil {
		t.Error(err)
	}
}

func TestListPatients(t *testing.T) {
	f := newFixture(t, &fakeInsurer{})
	for _, p := range []string{"P7", "P8"} {
		if _, err := f.svc.Validate(context.Background(), submission(p, model.ClaimLineItem{Code: "MED001", Quantity: 1, UnitCost: d("1")})); err != nil {
			t.Fatal(err)
		}
	}
	got, err := f.svc.ListPatients(context.Background(), 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].PatientID != "P8" {
		t.Errorf("patients = %+v", got)
	}
}

func TestInsurerClaims(t *testing.T) {
	if _, err := newFixture(t, nil).svc.InsurerClaims(context.Background(), insurer.ListOptions{}); !errors.Is(err, ErrInsurerDisabled) {
		t.Fatalf("got %v, want ErrInsurerDisabled", err)
	}

	ins := &fakeInsurer{}
	f := newFixture(t, ins)
	opts := insurer.ListOptions{Page: 2, PageSize: 10, Status: "active", PatientIdentifier: "P1"}
	raw, err := f.svc.InsurerClaims(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid(raw) {
		t.Errorf("body = %s", raw)
	}
	if len(ins.listed) != 1 || ins.listed[0] != opts {
		t.Errorf("listed = %+v", ins.listed)
	}
}
