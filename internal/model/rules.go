package model

// Rule codes name the check behind every warning and hard failure so a
// stored result can be audited and rendered into user-facing messages.
const (
	RuleOPDSameClaimCode     = "opd_same_claim_code"
	RuleOPDTicketExpired     = "opd_ticket_expired"
	RuleOPDReferralRequired  = "opd_referral_required"
	RuleOPDSameDaySubmission = "opd_same_day_submission"
	RuleDischargeSubmission  = "discharge_submission_required"
	RuleExceedsAvailable     = "exceeds_available_balance"
	RuleItemNotInCatalog     = "item_not_in_catalog"
	RuleNonCovered           = "non_covered"
	RuleNonCoveredLimit      = "non_covered_limit"
	RuleMaxPerVisit          = "max_per_visit"
	RuleWindowCap            = "window_cap"
	RuleRepeatDiagnosis      = "repeat_diagnosis_reduction"
	RuleBedChargeCap         = "bed_charge_cap"
	RulePatientLookup        = "patient_lookup"
	RuleBalanceGate          = "balance_gate"
	RuleCopayRate            = "copay_rate"
	RuleWindowExhausted      = "window_exhausted"
)

// DefaultBlockingCategoryWarnings are the category warnings that make a
// claim invalid when the policy does not list its own.
var DefaultBlockingCategoryWarnings = []string{
	RuleOPDTicketExpired,
	RuleOPDReferralRequired,
	RuleDischargeSubmission,
}

// CategoryWarningRules lists every rule code a category-level warning can carry.
var CategoryWarningRules = []string{
	RuleOPDSameClaimCode,
	RuleOPDTicketExpired,
	RuleOPDReferralRequired,
	RuleOPDSameDaySubmission,
	RuleDischargeSubmission,
	RuleExceedsAvailable,
}
