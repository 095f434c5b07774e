package policy

import (
	"fmt"
	"os"
	"slices"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/gyeh/claimcheck/internal/model"
	"github.com/gyeh/claimcheck/internal/normalize"
)

// Defaults applied when the rules file leaves a field out.
const (
	defaultTicketValidDays = 7
	defaultFirstPercent    = 100
	defaultSubsequentPct   = 50
)

var hundred = decimal.NewFromInt(100)

// number decodes any YAML scalar (int, float or quoted string) into an
// exact decimal without passing through float64.
type number struct {
	set   bool
	value decimal.Decimal
}

func (n *number) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", node.Line)
	}
	if node.Tag == "!!null" || node.Value == "" {
		return nil
	}
	d, err := decimal.NewFromString(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %q is not a number", node.Line, node.Value)
	}
	n.set, n.value = true, d
	return nil
}

// rulesFile is the on-disk layout. It is the layout of the insurer's
// validation_rules.json, so that file can be loaded as-is.
type rulesFile struct {
	RulesVersion    string `yaml:"rules_version"`
	ClaimCategories map[string]struct {
		Rules categoryRules `yaml:"rules"`
	} `yaml:"claim_categories"`
	NonCoveredServices struct {
		Items []nonCoveredEntry `yaml:"items"`
	} `yaml:"non_covered_services"`
	GeneralRules struct {
		Surgery            percentageEntry `yaml:"surgery"`
		MedicalManagement  percentageEntry `yaml:"medical_management"`
		MaxBedChargePerDay number          `yaml:"max_bed_charge_per_day"`
	} `yaml:"general_rules"`
	Validity struct {
		BlockingCategoryWarnings *[]string `yaml:"blocking_category_warnings"`
	} `yaml:"validity"`
}

type categoryRules struct {
	TicketValidDays          *int  `yaml:"ticket_valid_days"`
	UseSameClaimCode         *bool `yaml:"use_same_claim_code_within_validity"`
	SubmitDailyAfterService  *bool `yaml:"submit_daily_after_service"`
	RequireReferralInterDept *bool `yaml:"require_referral_for_inter_department"`
	SubmitAtDischarge        *bool `yaml:"submit_at_discharge"`
}

type nonCoveredEntry struct {
	Name                   string `yaml:"name"`
	Claimable              bool   `yaml:"claimable"`
	AnnualCostThresholdNPR number `yaml:"annual_cost_threshold_npr"`
}

type percentageEntry struct {
	ClaimPercentage struct {
		FirstDisease  number `yaml:"first_disease"`
		SecondDisease number `yaml:"second_disease"`
	} `yaml:"claim_percentage"`
}

// Load reads and parses a rules file (YAML, or JSON which is valid YAML).
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// Parse builds a validated RuleSet from raw rules data. Any malformed or
// out-of-range value fails here rather than during adjudication.
func Parse(data []byte) (*RuleSet, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	rs := &RuleSet{
		Version:     f.RulesVersion,
		Fingerprint: normalize.BytesHash(data),
	}
	if rs.Version == "" {
		return nil, fmt.Errorf("rules_version is required")
	}

	for name := range f.ClaimCategories {
		if !model.ServiceCategory(name).Valid() {
			return nil, fmt.Errorf("claim_categories: unknown category %q", name)
		}
	}
	opd := f.ClaimCategories[string(model.CategoryOutpatient)].Rules
	rs.Outpatient = OutpatientRules{
		TicketValidDays:            intOr(opd.TicketValidDays, defaultTicketValidDays),
		UseSameClaimCode:           boolOr(opd.UseSameClaimCode, true),
		SameDaySubmission:          boolOr(opd.SubmitDailyAfterService, true),
		ReferralForInterDepartment: boolOr(opd.RequireReferralInterDept, true),
	}
	if rs.Outpatient.TicketValidDays <= 0 {
		return nil, fmt.Errorf("OPD ticket_valid_days must be positive, got %d", rs.Outpatient.TicketValidDays)
	}
	rs.Inpatient = DischargeRules{
		SubmitAtDischarge: boolOr(f.ClaimCategories[string(model.CategoryInpatient)].Rules.SubmitAtDischarge, true),
	}
	rs.Emergency = DischargeRules{
		SubmitAtDischarge: boolOr(f.ClaimCategories[string(model.CategoryEmergency)].Rules.SubmitAtDischarge, true),
	}

	for i, nc := range f.NonCoveredServices.Items {
		if nc.Claimable {
			continue
		}
		if normalize.Name(nc.Name) == "" {
			return nil, fmt.Errorf("non_covered_services.items[%d]: name is required", i)
		}
		item := NonCoveredItem{Name: nc.Name}
		if t := nc.AnnualCostThresholdNPR; t.set && !t.value.IsZero() {
			if t.value.IsNegative() {
				return nil, fmt.Errorf("non_covered_services.items[%d]: negative annual threshold %s", i, t.value)
			}
			v := t.value
			item.AnnualThreshold = &v
		}
		rs.NonCovered = append(rs.NonCovered, item)
	}

	var err error
	if rs.Surgery, err = percentages("surgery", f.GeneralRules.Surgery); err != nil {
		return nil, err
	}
	if rs.MedicalManagement, err = percentages("medical_management", f.GeneralRules.MedicalManagement); err != nil {
		return nil, err
	}

	bed := f.GeneralRules.MaxBedChargePerDay
	if !bed.set || !bed.value.IsPositive() {
		return nil, fmt.Errorf("general_rules.max_bed_charge_per_day must be a positive amount")
	}
	rs.MaxBedChargePerDay = bed.value

	blocking := model.DefaultBlockingCategoryWarnings
	if f.Validity.BlockingCategoryWarnings != nil {
		blocking = *f.Validity.BlockingCategoryWarnings
	}
	rs.blocking = make(map[string]bool, len(blocking))
	for _, rule := range blocking {
		if !slices.Contains(model.CategoryWarningRules, rule) {
			return nil, fmt.Errorf("validity.blocking_category_warnings: unknown rule %q", rule)
		}
		rs.blocking[rule] = true
	}

	return rs, nil
}

func percentages(section string, e percentageEntry) (Percentages, error) {
	p := Percentages{
		First:      decimal.NewFromInt(defaultFirstPercent),
		Subsequent: decimal.NewFromInt(defaultSubsequentPct),
	}
	if v := e.ClaimPercentage.FirstDisease; v.set {
		p.First = v.value
	}
	if v := e.ClaimPercentage.SecondDisease; v.set {
		p.Subsequent = v.value
	}
	for _, v := range []decimal.Decimal{p.First, p.Subsequent} {
		if v.IsNegative() || v.GreaterThan(hundred) {
			return Percentages{}, fmt.Errorf("general_rules.%s.claim_percentage: %s outside [0, 100]", section, v)
		}
	}
	return p, nil
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
