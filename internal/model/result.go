package model

import "github.com/shopspring/decimal"

// Warning is a non-fatal finding attached to a result or one of its items.
// Rule identifies the check that produced it.
type Warning struct {
	Rule     string `json:"rule"`
	ItemCode string `json:"item_code,omitempty"`
	Message  string `json:"message"`
}

// ItemResult is the adjudication of one submitted line item.
type ItemResult struct {
	ItemCode          string          `json:"item_code"`
	ItemName          string          `json:"item_name"`
	Class             ItemClass       `json:"type"`
	RequestedQuantity int             `json:"quantity"`
	ApprovedQuantity  int             `json:"approved_quantity"`
	ApprovedRate      decimal.Decimal `json:"approved_rate"`
	ApprovedAmount    decimal.Decimal `json:"approved_amount"`
	CopayAmount       decimal.Decimal `json:"copay_amount"`
	Claimable         bool            `json:"claimable"`
	Warnings          []Warning       `json:"warnings"`
}

// AdjudicationResult is the outcome of prevalidating one claim.
type AdjudicationResult struct {
	IsValid        bool            `json:"is_locally_valid"`
	Warnings       []Warning       `json:"warnings"`
	Items          []ItemResult    `json:"items"`
	TotalApproved  decimal.Decimal `json:"total_approved_local"`
	TotalCopay     decimal.Decimal `json:"total_copay"`
	NetClaimable   decimal.Decimal `json:"net_claimable"`
	AllowedMoney   decimal.Decimal `json:"allowed_money"`
	UsedMoney      decimal.Decimal `json:"used_money"`
	AvailableMoney decimal.Decimal `json:"available_money"`
	RulesVersion   string          `json:"applied_rules_version"`
}

// AllWarnings returns category warnings followed by item warnings in order.
func (r *AdjudicationResult) AllWarnings() []Warning {
	out := make([]Warning, 0, len(r.Warnings))
	out = append(out, r.Warnings...)
	for _, it := range r.Items {
		out = append(out, it.Warnings...)
	}
	return out
}
