// Package adjudicate prices a claim against the catalog and the policy
// rule set. Adjudicate is a pure function: it reads only its Input, keeps
// no state between calls and is safe to run concurrently.
package adjudicate

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gyeh/claimcheck/internal/model"
	"github.com/gyeh/claimcheck/internal/policy"
)

// Catalog resolves item and service codes.
type Catalog interface {
	LookupItem(code string) (model.CatalogEntry, bool)
	LookupService(code string) (model.CatalogEntry, bool)
}

// Input is one immutable snapshot of everything an adjudication reads.
// History may include rejected or unknown records; they are ignored.
type Input struct {
	Submission *model.ClaimSubmission
	Balance    model.BalanceSnapshot
	History    []model.HistoryRecord
	Catalog    Catalog
	Rules      *policy.RuleSet
}

// Adjudicate validates category policy, prices every line item and
// aggregates the totals. It returns either a result or an *Error, never both.
func Adjudicate(in Input) (*model.AdjudicationResult, error) {
	if in.Catalog == nil || in.Rules == nil {
		return nil, fmt.Errorf("adjudicate: catalog and rules are required")
	}
	sub := in.Submission
	if sub == nil || strings.TrimSpace(sub.PatientID) == "" {
		return nil, &Error{Kind: KindPatientNotFound, Rule: model.RulePatientLookup, Detail: "no patient identifier on claim"}
	}
	if err := sub.Validate(); err != nil {
		return nil, &Error{Kind: KindInvalidSubmission, Detail: err.Error(), Err: err}
	}

	available := in.Balance.Available()
	if !available.IsPositive() {
		return nil, &Error{
			Kind:   KindNoRemainingBalance,
			Rule:   model.RuleBalanceGate,
			Detail: fmt.Sprintf("patient %s has no remaining balance (allowed %s, used %s)", sub.PatientID, in.Balance.Allowed, in.Balance.Used),
		}
	}

	history := counted(in.History)

	res := &model.AdjudicationResult{
		Warnings:       checkCategory(sub, lastOfCategory(history, sub.Category, sub.VisitDate), in.Rules),
		Items:          make([]model.ItemResult, 0, len(sub.Items)),
		AllowedMoney:   in.Balance.Allowed,
		UsedMoney:      in.Balance.Used,
		AvailableMoney: available,
		RulesVersion:   in.Rules.Version,
	}

	p := newPricer(sub, history, in.Catalog, in.Rules, in.Balance.Copay)
	for _, line := range sub.Items {
		item, err := p.price(line)
		if err != nil {
			return nil, err
		}
		res.Items = append(res.Items, item)
	}

	aggregate(res, in.Rules)
	return res, nil
}

func counted(history []model.HistoryRecord) []model.HistoryRecord {
	out := make([]model.HistoryRecord, 0, len(history))
	for _, h := range history {
		if h.Counted() {
			out = append(out, h)
		}
	}
	return out
}

func aggregate(res *model.AdjudicationResult, rules *policy.RuleSet) {
	approved, copay := decimal.Zero, decimal.Zero
	allClaimable := true
	for _, it := range res.Items {
		approved = approved.Add(it.ApprovedAmount)
		copay = copay.Add(it.CopayAmount)
		if !it.Claimable {
			allClaimable = false
		}
	}
	res.TotalApproved = approved
	res.TotalCopay = copay
	res.NetClaimable = approved.Sub(copay)

	if res.NetClaimable.GreaterThan(res.AvailableMoney) {
		res.Warnings = append(res.Warnings, model.Warning{
			Rule:    model.RuleExceedsAvailable,
			Message: fmt.Sprintf("Net claimable NPR %s exceeds available balance NPR %s.", res.NetClaimable.StringFixed(2), res.AvailableMoney.StringFixed(2)),
		})
	}

	blocked := false
	for _, w := range res.Warnings {
		if rules.IsBlocking(w.Rule) {
			blocked = true
			break
		}
	}
	res.IsValid = !blocked && allClaimable
}
