package money

import "github.com/shopspring/decimal"

// MinorUnits is the number of minor units (paisa) per rupee.
const MinorUnits = 100

// ToMinor converts an amount to integer paisa, rounding half away from zero.
func ToMinor(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// FromMinor converts integer paisa back to a rupee amount.
func FromMinor(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}

// FromMinorPtr is FromMinor for nullable columns; nil maps to zero.
func FromMinorPtr(v *int64) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return FromMinor(*v)
}

// Truncate2 truncates an amount to two decimal places. Approved amounts use
// it so rounding never lifts them above their rate × quantity bound.
func Truncate2(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(2)
}

// Round2 rounds an amount half away from zero to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
