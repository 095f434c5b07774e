package insurer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gyeh/claimcheck/internal/model"
)

const patientBundle = `{
  "resourceType": "Bundle",
  "total": 1,
  "entry": [{"resource": {
    "resourceType": "Patient",
    "id": "0f6e-uuid",
    "extension": [
      {"url": "http://hib.gov.np/fhir/StructureDefinition/Copayment", "valueDecimal": 0.1}
    ]
  }}]
}`

const eligibilityBody = `{
  "resourceType": "EligibilityResponse",
  "insurance": [{
    "contract": {"reference": "Contract/POL-77/2025-07-15 00:00:00"},
    "benefitBalance": [{
      "category": {"text": "medical"},
      "financial": [{"allowedMoney": {"value": 100000}, "usedMoney": {"value": 2500.5}}]
    }]
  }]
}`

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{
		BaseURL:    srv.URL + "/api/api_fhir/",
		Username:   "hospital",
		Password:   "secret",
		RemoteUser: "hospital",
		Timeout:    5 * time.Second,
		RetryMax:   2,
	}, zerolog.Nop())
}

func TestPatientByIdentifier(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/api_fhir/Patient/" {
			t.Errorf("path = %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "hospital" || pass != "secret" {
			t.Errorf("basic auth = %q %q %v", user, pass, ok)
		}
		if r.Header.Get("remote-user") != "hospital" {
			t.Errorf("remote-user header missing")
		}
		if r.URL.Query().Get("identifier") == "404" {
			io.WriteString(w, `{"total": 0, "entry": []}`)
			return
		}
		io.WriteString(w, patientBundle)
	}))

	b, err := c.PatientByIdentifier(context.Background(), "740500036")
	if err != nil {
		t.Fatalf("PatientByIdentifier: %v", err)
	}
	if b.PatientUUID() != "0f6e-uuid" {
		t.Errorf("uuid = %q", b.PatientUUID())
	}
	if got := ExtractCopayment(b); got != json.Number("0.1") {
		t.Errorf("copay = %#v", got)
	}

	if _, err := c.PatientByIdentifier(context.Background(), "404"); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("empty bundle: got %v, want ErrPatientNotFound", err)
	}
}

func TestEligibility(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/api_fhir/EligibilityRequest/" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body struct {
			ResourceType string    `json:"resourceType"`
			Patient      Reference `json:"patient"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.ResourceType != "EligibilityRequest" || body.Patient.Reference != "Patient/0f6e-uuid" {
			t.Errorf("body = %+v", body)
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, eligibilityBody)
	}))

	e, err := c.Eligibility(context.Background(), "0f6e-uuid")
	if err != nil {
		t.Fatalf("Eligibility: %v", err)
	}
	if !e.Allowed.Equal(decimal.NewFromInt(100000)) || !e.Used.Equal(decimal.RequireFromString("2500.5")) {
		t.Errorf("money = %s / %s", e.Allowed, e.Used)
	}
	if e.Category != "medical" || e.PolicyID != "POL-77" {
		t.Errorf("eligibility = %+v", e)
	}
	if e.PolicyExpiry == nil || e.PolicyExpiry.Format("2006-01-02") != "2025-07-15" {
		t.Errorf("expiry = %v", e.PolicyExpiry)
	}
}

func TestRetriesServerErrors(t *testing.T) {
	calls := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, patientBundle)
	}))

	if _, err := c.PatientByIdentifier(context.Background(), "1"); err != nil {
		t.Fatalf("PatientByIdentifier: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestStatusError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"issue": "bad claim"}`)
	}))

	_, err := c.SubmitClaim(context.Background(), &Claim{ResourceType: "Claim"})
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected StatusError 400, got %v", err)
	}
}

func TestListClaims(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("_count") != "50" || q.Get("_page") != "2" || q.Get("status") != "active" || q.Get("patient.identifier") != "P1" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		io.WriteString(w, `{"resourceType": "Bundle", "total": 0}`)
	}))

	raw, err := c.ListClaims(context.Background(), ListOptions{Page: 2, Status: "active", PatientIdentifier: "P1"})
	if err != nil {
		t.Fatalf("ListClaims: %v", err)
	}
	if !json.Valid(raw) {
		t.Errorf("raw = %s", raw)
	}
}

func TestExtractCopayment(t *testing.T) {
	str := func(s string) *string { return &s }
	tests := []struct {
		name string
		b    *Bundle
		want any
	}{
		{"nil bundle", nil, nil},
		{"empty", &Bundle{}, nil},
		{"no extension", &Bundle{Entry: []BundleEntry{{}}}, nil},
		{"first matching string", &Bundle{Entry: []BundleEntry{{Resource: Resource{Extension: []Extension{
			{URL: "other", ValueString: str("x")},
			{URL: "CopaymentRate", ValueString: str("10%")},
			{URL: "http://hib.gov.np/fhir/StructureDefinition/Copayment", ValueString: str("15%")},
		}}}}}, "10%"},
		{"decimal", &Bundle{Entry: []BundleEntry{{Resource: Resource{Extension: []Extension{
			{URL: "Copayment", ValueDecimal: json.RawMessage("0.2")},
		}}}}}, json.Number("0.2")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractCopayment(tt.b); got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestParseEligibility_Malformed(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{}`,
		`{"insurance": [{}]}`,
		`{"insurance": [{"benefitBalance": [{"financial": [{}]}]}]}`,
	} {
		if _, err := ParseEligibility([]byte(raw)); err == nil {
			t.Errorf("%s: expected error", raw)
		}
	}

	e, err := ParseEligibility([]byte(`{"insurance": [{"contract": {"reference": "Contract/P/garbage"},
		"benefitBalance": [{"financial": [{"allowedMoney": {"value": 1}, "usedMoney": {"value": 0}}]}]}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if e.PolicyID != "P" || e.PolicyExpiry != nil {
		t.Errorf("eligibility = %+v", e)
	}
}

func TestBuildClaim(t *testing.T) {
	visit := model.NewDate(2024, time.March, 1)
	sub := &model.ClaimSubmission{
		PatientID:      "P1",
		ClaimCode:      "C-1",
		Category:       model.CategoryOutpatient,
		VisitDate:      visit,
		DiagnosisCodes: []string{"A01", "B02"},
		Items: []model.ClaimLineItem{
			{Code: "MED001", Quantity: 2},
			{Code: "OPD01", Quantity: 1, Billing: model.BillingService},
			{Code: "GONE", Quantity: 1},
		},
	}
	res := &model.AdjudicationResult{
		TotalApproved: decimal.NewFromInt(400),
		Items: []model.ItemResult{
			{ItemCode: "MED001", ApprovedQuantity: 2, ApprovedRate: decimal.NewFromInt(100), ApprovedAmount: decimal.NewFromInt(200)},
			{ItemCode: "OPD01", ApprovedQuantity: 1, ApprovedRate: decimal.NewFromInt(200), ApprovedAmount: decimal.NewFromInt(200)},
			{ItemCode: "GONE"},
		},
	}

	c := BuildClaim(sub, res, "uuid-1")
	if c.Patient.Reference != "Patient/uuid-1" || c.Identifier[0].Value != "C-1" {
		t.Errorf("claim header = %+v", c)
	}
	if c.BillablePeriod.Start != "2024-03-01" || c.Created != "2024-03-01" {
		t.Errorf("dates = %+v %s", c.BillablePeriod, c.Created)
	}
	if len(c.Diagnosis) != 2 || c.Diagnosis[1].Sequence != 2 {
		t.Errorf("diagnosis = %+v", c.Diagnosis)
	}
	if len(c.Item) != 2 {
		t.Fatalf("items = %d, want 2", len(c.Item))
	}
	if c.Item[1].Category.Text != "service" || c.Item[1].Sequence != 2 {
		t.Errorf("item[1] = %+v", c.Item[1])
	}
	if !c.Total.Value.Equal(decimal.NewFromInt(400)) {
		t.Errorf("total = %s", c.Total.Value)
	}
}
