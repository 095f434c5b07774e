package insurer

import (
	"github.com/shopspring/decimal"

	"github.com/gyeh/claimcheck/internal/model"
)

// Claim is the FHIR Claim payload sent to the insurer.
type Claim struct {
	ResourceType   string          `json:"resourceType"`
	Identifier     []Identifier    `json:"identifier"`
	Patient        Reference       `json:"patient"`
	Created        string          `json:"created"`
	BillablePeriod Period          `json:"billablePeriod"`
	Type           CodeableConcept `json:"type"`
	Diagnosis      []Diagnosis     `json:"diagnosis,omitempty"`
	Item           []ClaimItem     `json:"item"`
	Total          Money           `json:"total"`
}

// Identifier is a FHIR identifier value.
type Identifier struct {
	Value string `json:"value"`
}

// Period is a FHIR date range.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// CodeableConcept carries a code and/or display text.
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Coding is one code of a CodeableConcept.
type Coding struct {
	Code string `json:"code"`
}

// Diagnosis is a sequenced diagnosis code.
type Diagnosis struct {
	Sequence                 int             `json:"sequence"`
	DiagnosisCodeableConcept CodeableConcept `json:"diagnosisCodeableConcept"`
}

// Money is a FHIR amount.
type Money struct {
	Value decimal.Decimal `json:"value"`
}

// Quantity is a FHIR quantity.
type Quantity struct {
	Value int `json:"value"`
}

// ClaimItem is one approved line.
type ClaimItem struct {
	Sequence         int             `json:"sequence"`
	Category         CodeableConcept `json:"category"`
	ProductOrService CodeableConcept `json:"productOrService"`
	Quantity         Quantity        `json:"quantity"`
	UnitPrice        Money           `json:"unitPrice"`
	Net              Money           `json:"net"`
}

// BuildClaim renders a FHIR Claim for sub using the adjudicated quantities
// and rates. Lines with nothing approved are left out.
func BuildClaim(sub *model.ClaimSubmission, res *model.AdjudicationResult, patientUUID string) *Claim {
	c := &Claim{
		ResourceType: "Claim",
		Identifier:   []Identifier{{Value: sub.ClaimCode}},
		Patient:      Reference{Reference: "Patient/" + patientUUID},
		Created:      sub.EffectiveSubmitDate().String(),
		BillablePeriod: Period{
			Start: sub.VisitDate.String(),
			End:   sub.EffectiveSubmitDate().String(),
		},
		Type:  CodeableConcept{Text: string(sub.Category)},
		Total: Money{Value: res.TotalApproved},
	}
	for i, code := range sub.DiagnosisCodes {
		c.Diagnosis = append(c.Diagnosis, Diagnosis{
			Sequence:                 i + 1,
			DiagnosisCodeableConcept: CodeableConcept{Coding: []Coding{{Code: code}}},
		})
	}
	seq := 0
	for i, it := range res.Items {
		if it.ApprovedQuantity == 0 || !it.ApprovedAmount.IsPositive() {
			continue
		}
		category := "item"
		if i < len(sub.Items) && sub.Items[i].Billing == model.BillingService {
			category = "service"
		}
		seq++
		c.Item = append(c.Item, ClaimItem{
			Sequence:         seq,
			Category:         CodeableConcept{Text: category},
			ProductOrService: CodeableConcept{Coding: []Coding{{Code: it.ItemCode}}, Text: it.ItemName},
			Quantity:         Quantity{Value: it.ApprovedQuantity},
			UnitPrice:        Money{Value: it.ApprovedRate},
			Net:              Money{Value: it.ApprovedAmount},
		})
	}
	return c
}
