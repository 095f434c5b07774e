package model

import (
	"github.com/shopspring/decimal"

	"github.com/gyeh/claimcheck/internal/money"
)

// BalanceSnapshot is the patient's benefit position at adjudication time.
type BalanceSnapshot struct {
	Allowed decimal.Decimal `json:"allowed_money"`
	Used    decimal.Decimal `json:"used_money"`
	Copay   money.CopayRate `json:"copay_rate"`
}

// Available is allowed minus used.
func (b BalanceSnapshot) Available() decimal.Decimal {
	return b.Allowed.Sub(b.Used)
}
