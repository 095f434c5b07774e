// Package policy holds the versioned, typed rule set that drives claim
// adjudication: per-category temporal rules, non-covered items, repeat
// diagnosis percentages and the bed charge ceiling.
package policy

import (
	"github.com/shopspring/decimal"

	"github.com/gyeh/claimcheck/internal/model"
)

// RuleSet is an immutable, validated policy. Build it with Parse or Load.
type RuleSet struct {
	Version     string
	Fingerprint string

	Outpatient OutpatientRules
	Inpatient  DischargeRules
	Emergency  DischargeRules

	NonCovered []NonCoveredItem

	Surgery           Percentages
	MedicalManagement Percentages

	MaxBedChargePerDay decimal.Decimal

	blocking map[string]bool
}

// OutpatientRules are the OPD ticket rules.
type OutpatientRules struct {
	TicketValidDays            int
	UseSameClaimCode           bool
	SameDaySubmission          bool
	ReferralForInterDepartment bool
}

// DischargeRules apply to inpatient and emergency claims.
type DischargeRules struct {
	SubmitAtDischarge bool
}

// NonCoveredItem is an item name that is not payable, or payable only up to
// an annual ceiling when AnnualThreshold is set.
type NonCoveredItem struct {
	Name            string
	AnnualThreshold *decimal.Decimal
}

// Percentages is the claimable share of a surgery or medical-management
// item by occurrence order for one diagnosis set, in percent.
type Percentages struct {
	First      decimal.Decimal
	Subsequent decimal.Decimal
}

// For returns the percentage for the given 1-based occurrence.
func (p Percentages) For(occurrence int) decimal.Decimal {
	if occurrence <= 1 {
		return p.First
	}
	return p.Subsequent
}

// PercentagesFor returns the table for a class; ok is false for classes
// without repeat-diagnosis reduction.
func (r *RuleSet) PercentagesFor(class model.ItemClass) (Percentages, bool) {
	switch class {
	case model.ClassSurgery:
		return r.Surgery, true
	case model.ClassMedicalManagement:
		return r.MedicalManagement, true
	default:
		return Percentages{}, false
	}
}

// DischargeRulesFor returns the discharge rules for IPD and ER.
func (r *RuleSet) DischargeRulesFor(cat model.ServiceCategory) (DischargeRules, bool) {
	switch cat {
	case model.CategoryInpatient:
		return r.Inpatient, true
	case model.CategoryEmergency:
		return r.Emergency, true
	default:
		return DischargeRules{}, false
	}
}

// IsBlocking reports whether a category warning with this rule code makes
// the claim invalid.
func (r *RuleSet) IsBlocking(rule string) bool {
	return r.blocking[rule]
}

// BlockingRules returns the blocking category rule codes in canonical order.
func (r *RuleSet) BlockingRules() []string {
	var out []string
	for _, rule := range model.CategoryWarningRules {
		if r.blocking[rule] {
			out = append(out, rule)
		}
	}
	return out
}
