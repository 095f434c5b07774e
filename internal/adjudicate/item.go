package adjudicate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gyeh/claimcheck/internal/model"
	"github.com/gyeh/claimcheck/internal/money"
	"github.com/gyeh/claimcheck/internal/normalize"
	"github.com/gyeh/claimcheck/internal/policy"
)

const bedChargeMarker = "bed"

var hundred = decimal.NewFromInt(100)

// pricer adjudicates the line items of one claim. Its counters live only
// as long as the call that created it; units and spend approved on earlier
// lines of the claim count against the caps of later ones.
type pricer struct {
	sub     *model.ClaimSubmission
	history []model.HistoryRecord
	catalog Catalog
	rules   *policy.RuleSet
	copay   money.CopayRate

	diagnosis   string
	occurrences map[string]int
	units       map[string]int             // approved units by normalized code
	spend       map[string]decimal.Decimal // approved amount by non-covered name
}

// nonCoveredLimit is the remaining annual allowance of one non-covered rule
// that matches a line.
type nonCoveredLimit struct {
	item  policy.NonCoveredItem
	prior decimal.Decimal
	limit decimal.Decimal
}

func newPricer(sub *model.ClaimSubmission, history []model.HistoryRecord, cat Catalog, rules *policy.RuleSet, copay money.CopayRate) *pricer {
	return &pricer{
		sub:         sub,
		history:     history,
		catalog:     cat,
		rules:       rules,
		copay:       copay,
		diagnosis:   diagnosisKey(sub.DiagnosisCodes),
		occurrences: make(map[string]int),
		units:       make(map[string]int),
		spend:       make(map[string]decimal.Decimal),
	}
}

// diagnosisKey identifies a diagnosis set independent of order and
// duplicates.
func diagnosisKey(codes []string) string {
	set := make([]string, 0, len(codes))
	for _, c := range codes {
		if n := normalize.Code(c); n != "" {
			set = append(set, n)
		}
	}
	if len(set) == 0 {
		return "UNKNOWN"
	}
	slices.Sort(set)
	return strings.Join(slices.Compact(set), ",")
}

func (p *pricer) resolve(line model.ClaimLineItem) (model.CatalogEntry, bool) {
	first, second := p.catalog.LookupItem, p.catalog.LookupService
	if line.Billing == model.BillingService {
		first, second = second, first
	}
	if e, ok := first(line.Code); ok {
		return e, true
	}
	return second(line.Code)
}

func (p *pricer) price(line model.ClaimLineItem) (model.ItemResult, error) {
	res := model.ItemResult{
		ItemCode:          line.Code,
		ItemName:          line.Name,
		Class:             model.ClassUnknown,
		RequestedQuantity: line.Quantity,
		ApprovedRate:      decimal.Zero,
		ApprovedAmount:    decimal.Zero,
		CopayAmount:       decimal.Zero,
		Warnings:          []model.Warning{},
	}
	warn := func(rule, format string, args ...any) {
		res.Warnings = append(res.Warnings, model.Warning{Rule: rule, ItemCode: line.Code, Message: fmt.Sprintf(format, args...)})
	}

	entry, ok := p.resolve(line)
	if !ok {
		warn(model.RuleItemNotInCatalog, "Item %s not found in catalog.", line.Code)
		return res, nil
	}
	res.Class = entry.Class

	rate := decimal.Min(entry.Rate, line.UnitCost)
	res.ApprovedRate = rate
	qty := line.Quantity

	limits := p.nonCoveredLimits(line.Name)
	for _, l := range limits {
		if l.item.AnnualThreshold == nil {
			warn(model.RuleNonCovered, "%s is not covered.", l.item.Name)
		}
	}

	code := normalize.Code(entry.Code)
	if perVisit := entry.Capping.MaxPerVisit; perVisit > 0 {
		allowed := max(perVisit-p.units[code], 0)
		if qty > allowed {
			warn(model.RuleMaxPerVisit, "Quantity %d exceeds max per visit (%d). Capped.", p.units[code]+qty, perVisit)
			qty = allowed
		}
	}

	if entry.Capping.HasWindow() {
		remaining := entry.Capping.WindowMaxUnits - p.usedInWindow(entry.Code, entry.Capping.WindowDays)
		if remaining <= 0 {
			return model.ItemResult{}, &Error{
				Kind:     KindNoUnitsRemainingInWindow,
				Rule:     model.RuleWindowExhausted,
				ItemCode: line.Code,
				Detail: fmt.Sprintf("no remaining units for %s, already fully used in the last %d-day window",
					line.Code, entry.Capping.WindowDays),
			}
		}
		remaining = max(remaining-p.units[code], 0)
		if qty > remaining {
			warn(model.RuleWindowCap, "Only %d units can be claimed in %d-day window for %s. %d units dropped.",
				remaining, entry.Capping.WindowDays, line.Code, qty-remaining)
			qty = remaining
		}
	}
	res.ApprovedQuantity = qty
	p.units[code] += qty

	amount := rate.Mul(decimal.NewFromInt(int64(qty)))
	for _, l := range limits {
		if l.item.AnnualThreshold != nil && amount.GreaterThan(l.limit) {
			warn(model.RuleNonCoveredLimit, "%s exceeds annual limit of NPR %s (NPR %s already claimed this year).",
				l.item.Name, l.item.AnnualThreshold.StringFixed(2), l.prior.StringFixed(2))
		}
		if amount.GreaterThan(l.limit) {
			amount = l.limit
		}
	}

	if pct, ok := p.rules.PercentagesFor(entry.Class); ok {
		key := string(entry.Class) + "|" + p.diagnosis
		p.occurrences[key]++
		order := p.occurrences[key]
		share := pct.For(order)
		amount = amount.Mul(share).Div(hundred)
		if share.LessThan(hundred) {
			warn(model.RuleRepeatDiagnosis, "%s #%d for the same diagnosis: %s%% claimable.",
				classLabel(entry.Class), order, share.String())
		}
	}

	if normalize.NameContains(line.Name, bedChargeMarker) && amount.GreaterThan(p.rules.MaxBedChargePerDay) {
		warn(model.RuleBedChargeCap, "Bed charge capped at NPR %s/day.", p.rules.MaxBedChargePerDay.StringFixed(2))
		amount = p.rules.MaxBedChargePerDay
	}

	res.ApprovedAmount = money.Truncate2(amount)
	for _, l := range limits {
		p.spend[l.item.Name] = p.spend[l.item.Name].Add(res.ApprovedAmount)
	}
	res.CopayAmount = money.Round2(p.copay.Apply(res.ApprovedAmount))
	res.Claimable = len(res.Warnings) == 0 || res.ApprovedAmount.IsPositive()
	return res, nil
}

// nonCoveredLimits returns the non-covered rules matching name. An item
// without an annual threshold has a zero limit; otherwise the limit is the
// threshold less this year's history and earlier lines of this claim.
func (p *pricer) nonCoveredLimits(name string) []nonCoveredLimit {
	var out []nonCoveredLimit
	for _, nc := range p.rules.NonCovered {
		if !normalize.NameContains(name, nc.Name) {
			continue
		}
		l := nonCoveredLimit{item: nc, prior: decimal.Zero, limit: decimal.Zero}
		if nc.AnnualThreshold != nil {
			l.prior = p.priorSpend(nc.Name).Add(p.spend[nc.Name])
			l.limit = decimal.Max(decimal.Zero, nc.AnnualThreshold.Sub(l.prior))
		}
		out = append(out, l)
	}
	return out
}

// priorSpend sums history items whose name matches in the visit's year.
func (p *pricer) priorSpend(name string) decimal.Decimal {
	total := decimal.Zero
	year := p.sub.VisitDate.Year()
	for _, h := range p.history {
		if h.Day().Year() != year {
			continue
		}
		for _, it := range h.Items {
			if normalize.NameContains(it.Name, name) {
				total = total.Add(it.UnitRate.Mul(decimal.NewFromInt(int64(it.Quantity))))
			}
		}
	}
	return total
}

// usedInWindow sums quantities of code claimed in [visit-days, visit].
func (p *pricer) usedInWindow(code string, days int) int {
	end := p.sub.VisitDate
	start := end.AddDays(-days)
	code = normalize.Code(code)
	used := 0
	for _, h := range p.history {
		d := h.Day()
		if d.Before(start) || d.After(end) {
			continue
		}
		for _, it := range h.Items {
			if normalize.Code(it.Code) == code {
				used += it.Quantity
			}
		}
	}
	return used
}

func classLabel(c model.ItemClass) string {
	if c == model.ClassSurgery {
		return "Surgery"
	}
	return "Medical management"
}
