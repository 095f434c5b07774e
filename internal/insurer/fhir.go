package insurer

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gyeh/claimcheck/internal/normalize"
)

// Bundle is the subset of a FHIR search bundle the client reads.
type Bundle struct {
	ResourceType string        `json:"resourceType,omitempty"`
	Total        int           `json:"total"`
	Entry        []BundleEntry `json:"entry"`
}

// BundleEntry wraps one resource of a bundle.
type BundleEntry struct {
	Resource Resource `json:"resource"`
}

// Resource is a Patient (or any resource) with its extensions.
type Resource struct {
	ResourceType string      `json:"resourceType,omitempty"`
	ID           string      `json:"id"`
	Extension    []Extension `json:"extension,omitempty"`
}

// Extension is a FHIR extension carrying a decimal or string value.
type Extension struct {
	URL          string          `json:"url"`
	ValueDecimal json.RawMessage `json:"valueDecimal,omitempty"`
	ValueString  *string         `json:"valueString,omitempty"`
}

// Reference points at another resource, e.g. "Patient/<uuid>".
type Reference struct {
	Reference string `json:"reference"`
}

// PatientUUID returns the insurer id of the first patient in the bundle.
func (b *Bundle) PatientUUID() string {
	if b == nil || len(b.Entry) == 0 {
		return ""
	}
	return b.Entry[0].Resource.ID
}

// ExtractCopayment returns the first Copayment extension value of the
// bundle's first resource: a json.Number for valueDecimal, else the
// valueString. It returns nil when no such extension exists.
func ExtractCopayment(b *Bundle) any {
	if b == nil || len(b.Entry) == 0 {
		return nil
	}
	for _, ext := range b.Entry[0].Resource.Extension {
		if !strings.Contains(ext.URL, "Copayment") {
			continue
		}
		if len(ext.ValueDecimal) > 0 && string(ext.ValueDecimal) != "null" {
			var n json.Number
			if err := json.Unmarshal(ext.ValueDecimal, &n); err == nil {
				return n
			}
		}
		if ext.ValueString != nil && *ext.ValueString != "" {
			return *ext.ValueString
		}
		return nil
	}
	return nil
}

// Eligibility is the flattened benefit position of one patient.
type Eligibility struct {
	Category     string          `json:"category"`
	Allowed      decimal.Decimal `json:"allowed_money"`
	Used         decimal.Decimal `json:"used_money"`
	PolicyID     string          `json:"policy_id,omitempty"`
	PolicyExpiry *time.Time      `json:"policy_expiry,omitempty"`
}

type eligibilityResponse struct {
	Insurance []struct {
		Contract       *Reference `json:"contract"`
		BenefitBalance []struct {
			Category struct {
				Text string `json:"text"`
			} `json:"category"`
			Financial []struct {
				AllowedMoney *money `json:"allowedMoney"`
				UsedMoney    *money `json:"usedMoney"`
			} `json:"financial"`
		} `json:"benefitBalance"`
	} `json:"insurance"`
}

type money struct {
	Value decimal.Decimal `json:"value"`
}

// ParseEligibility flattens an EligibilityResponse. The contract reference
// has the form "Contract/<policy id>/<expiry>"; an unparseable expiry is
// left nil.
func ParseEligibility(raw []byte) (*Eligibility, error) {
	var r eligibilityResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode eligibility: %w", err)
	}
	if len(r.Insurance) == 0 {
		return nil, fmt.Errorf("eligibility: no insurance")
	}
	ins := r.Insurance[0]
	if len(ins.BenefitBalance) == 0 || len(ins.BenefitBalance[0].Financial) == 0 {
		return nil, fmt.Errorf("eligibility: no benefit balance")
	}
	bal := ins.BenefitBalance[0]
	fin := bal.Financial[0]
	if fin.AllowedMoney == nil || fin.UsedMoney == nil {
		return nil, fmt.Errorf("eligibility: missing allowed or used money")
	}

	out := &Eligibility{
		Category: bal.Category.Text,
		Allowed:  fin.AllowedMoney.Value,
		Used:     fin.UsedMoney.Value,
	}
	if ins.Contract != nil {
		parts := strings.Split(ins.Contract.Reference, "/")
		if len(parts) >= 3 {
			out.PolicyID = parts[1]
			if t, err := normalize.ParseDate(parts[2]); err == nil {
				out.PolicyExpiry = &t
			}
		}
	}
	return out, nil
}

// ClaimResponse is the subset of the insurer's answer to a claim submission.
type ClaimResponse struct {
	ResourceType string `json:"resourceType,omitempty"`
	ID           string `json:"id"`
	Outcome      string `json:"outcome,omitempty"`
}
