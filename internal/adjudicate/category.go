package adjudicate

import (
	"fmt"

	"github.com/gyeh/claimcheck/internal/model"
	"github.com/gyeh/claimcheck/internal/normalize"
	"github.com/gyeh/claimcheck/internal/policy"
)

// lastOfCategory returns the most recent record of cat dated on or before
// the visit. Later records cannot have opened the ticket this visit uses.
func lastOfCategory(history []model.HistoryRecord, cat model.ServiceCategory, visit model.Date) *model.HistoryRecord {
	var last *model.HistoryRecord
	for i := range history {
		h := &history[i]
		if h.Category != cat || h.Day().After(visit) {
			continue
		}
		if last == nil || h.CreatedAt.After(last.CreatedAt) {
			last = h
		}
	}
	return last
}

func checkCategory(sub *model.ClaimSubmission, last *model.HistoryRecord, rules *policy.RuleSet) []model.Warning {
	warnings := []model.Warning{}
	switch sub.Category {
	case model.CategoryOutpatient:
		warnings = checkOutpatient(sub, last, rules.Outpatient, warnings)
	case model.CategoryInpatient, model.CategoryEmergency:
		dr, _ := rules.DischargeRulesFor(sub.Category)
		if dr.SubmitAtDischarge && sub.ClaimTime != model.ClaimTimeDischarge {
			warnings = append(warnings, model.Warning{
				Rule:    model.RuleDischargeSubmission,
				Message: fmt.Sprintf("%s claims must be submitted at discharge.", sub.Category),
			})
		}
	}
	return warnings
}

func checkOutpatient(sub *model.ClaimSubmission, last *model.HistoryRecord, r policy.OutpatientRules, warnings []model.Warning) []model.Warning {
	if last != nil {
		days := sub.VisitDate.DaysSince(last.Day())
		valid := days < r.TicketValidDays
		sameService := normalize.Code(sub.ServiceCode) == normalize.Code(last.ServiceCode)

		switch {
		case valid && !sameService && r.UseSameClaimCode:
			warnings = append(warnings, model.Warning{
				Rule:    model.RuleOPDSameClaimCode,
				Message: "Previous OPD ticket still valid. No new ticket needed for a different service. Claim code shall remain the same.",
			})
		case !valid && sameService:
			warnings = append(warnings, model.Warning{
				Rule:    model.RuleOPDTicketExpired,
				Message: fmt.Sprintf("OPD ticket expired (%d days since last visit, valid for %d). New ticket required.", days, r.TicketValidDays),
			})
		}

		if valid && r.ReferralForInterDepartment && !sub.ReferralProvided &&
			normalize.Name(sub.Department) != normalize.Name(last.Department) {
			warnings = append(warnings, model.Warning{
				Rule:    model.RuleOPDReferralRequired,
				Message: "Inter-department OPD visit within ticket validity requires referral documentation.",
			})
		}
	}

	if r.SameDaySubmission && !sub.EffectiveSubmitDate().Equal(sub.VisitDate) {
		warnings = append(warnings, model.Warning{
			Rule:    model.RuleOPDSameDaySubmission,
			Message: "OPD claims should be submitted on the same date as the visit.",
		})
	}
	return warnings
}
