package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ServiceCategory is the kind of visit a claim is raised for.
type ServiceCategory string

const (
	CategoryOutpatient ServiceCategory = "OPD"
	CategoryInpatient  ServiceCategory = "IPD"
	CategoryEmergency  ServiceCategory = "ER"
	CategoryReferral   ServiceCategory = "REFERRAL"
)

// AllCategories lists the supported service categories in canonical order.
var AllCategories = []ServiceCategory{
	CategoryOutpatient,
	CategoryInpatient,
	CategoryEmergency,
	CategoryReferral,
}

// Valid reports whether c is one of AllCategories.
func (c ServiceCategory) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ItemType is the category the provider declared for a line item.
type ItemType string

const (
	ItemMedicine          ItemType = "medicine"
	ItemLabTest           ItemType = "lab_test"
	ItemSurgery           ItemType = "surgery"
	ItemProcedure         ItemType = "procedure"
	ItemDiagnosticImaging ItemType = "diagnostic_imaging"
	ItemOther             ItemType = "other"
)

// BillingCategory says whether a line item is billed as an item or a service.
type BillingCategory string

const (
	BillingItem    BillingCategory = "item"
	BillingService BillingCategory = "service"
)

// ClaimTimeDischarge marks inpatient/emergency claims raised at discharge.
const ClaimTimeDischarge = "discharge"

// ClaimSubmission is a single claim as received from a provider.
type ClaimSubmission struct {
	PatientID        string          `json:"patient_id"`
	ClaimCode        string          `json:"claim_code,omitempty"`
	Category         ServiceCategory `json:"service_type"`
	VisitDate        Date            `json:"visit_date"`
	SubmitDate       Date            `json:"submit_date,omitempty"`
	ServiceCode      string          `json:"service_code,omitempty"`
	Department       string          `json:"department,omitempty"`
	ReferralProvided bool            `json:"referral_provided,omitempty"`
	DiagnosisCodes   []string        `json:"icd_codes"`
	ClaimTime        string          `json:"claim_time,omitempty"`
	Items            []ClaimLineItem `json:"claimable_items"`
}

// ClaimLineItem is one billed line of a claim.
type ClaimLineItem struct {
	Code     string          `json:"item_code"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	UnitCost decimal.Decimal `json:"cost"`
	Type     ItemType        `json:"type,omitempty"`
	Billing  BillingCategory `json:"billing,omitempty"`
}

// EffectiveSubmitDate returns the submit date, defaulting to the visit date.
func (s *ClaimSubmission) EffectiveSubmitDate() Date {
	if s.SubmitDate.IsZero() {
		return s.VisitDate
	}
	return s.SubmitDate
}

// AmountClaimed is the sum of quantity × unit cost over all lines.
func (s *ClaimSubmission) AmountClaimed() decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.Items {
		total = total.Add(it.UnitCost.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// Validate checks the shape of a submission. It does not apply any
// adjudication rule.
func (s *ClaimSubmission) Validate() error {
	if !s.Category.Valid() {
		return fmt.Errorf("unknown service_type %q", s.Category)
	}
	if s.VisitDate.IsZero() {
		return fmt.Errorf("visit_date is required")
	}
	if len(s.Items) == 0 {
		return fmt.Errorf("claimable_items must not be empty")
	}
	for i, it := range s.Items {
		if it.Code == "" {
			return fmt.Errorf("claimable_items[%d]: item_code is required", i)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("claimable_items[%d]: quantity must be positive, got %d", i, it.Quantity)
		}
		if it.UnitCost.IsNegative() {
			return fmt.Errorf("claimable_items[%d]: cost must not be negative", i)
		}
	}
	return nil
}
