package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMalformedRate is returned for copay values that cannot be read as a
// fraction or a percentage.
var ErrMalformedRate = errors.New("malformed copay rate")

var hundred = decimal.NewFromInt(100)

// CopayRate is a validated patient co-payment fraction in [0, 1].
// The zero value is a 0% rate.
type CopayRate struct {
	frac decimal.Decimal
}

// NewCopayRate wraps a fraction, rejecting values outside [0, 1].
func NewCopayRate(frac decimal.Decimal) (CopayRate, error) {
	if frac.IsNegative() || frac.GreaterThan(decimal.NewFromInt(1)) {
		return CopayRate{}, fmt.Errorf("%w: fraction %s outside [0, 1]", ErrMalformedRate, frac)
	}
	return CopayRate{frac: frac}, nil
}

// ParseCopayRate normalizes a copay value as it arrives from eligibility
// data: nil or "" is 0; "10%" is 0.10; a number in [0, 1] is a fraction and
// a number in (1, 100] is a percentage. Anything else is ErrMalformedRate.
func ParseCopayRate(raw any) (CopayRate, error) {
	switch v := raw.(type) {
	case nil:
		return CopayRate{}, nil
	case CopayRate:
		return v, nil
	case decimal.Decimal:
		return fromNumber(v)
	case *decimal.Decimal:
		if v == nil {
			return CopayRate{}, nil
		}
		return fromNumber(*v)
	case float64:
		return fromNumber(decimal.NewFromFloat(v))
	case float32:
		return fromNumber(decimal.NewFromFloat32(v))
	case int:
		return fromNumber(decimal.NewFromInt(int64(v)))
	case int64:
		return fromNumber(decimal.NewFromInt(v))
	case json.Number:
		return parseString(v.String())
	case string:
		return parseString(v)
	case *string:
		if v == nil {
			return CopayRate{}, nil
		}
		return parseString(*v)
	default:
		return CopayRate{}, fmt.Errorf("%w: unsupported type %T", ErrMalformedRate, raw)
	}
}

func parseString(s string) (CopayRate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CopayRate{}, nil
	}
	if pct, ok := strings.CutSuffix(s, "%"); ok {
		d, err := decimal.NewFromString(strings.TrimSpace(pct))
		if err != nil {
			return CopayRate{}, fmt.Errorf("%w: %q", ErrMalformedRate, s)
		}
		if d.IsNegative() || d.GreaterThan(hundred) {
			return CopayRate{}, fmt.Errorf("%w: percentage %q outside [0, 100]", ErrMalformedRate, s)
		}
		return CopayRate{frac: d.Div(hundred)}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return CopayRate{}, fmt.Errorf("%w: %q", ErrMalformedRate, s)
	}
	return fromNumber(d)
}

func fromNumber(d decimal.Decimal) (CopayRate, error) {
	switch {
	case d.IsNegative():
		return CopayRate{}, fmt.Errorf("%w: negative value %s", ErrMalformedRate, d)
	case d.LessThanOrEqual(decimal.NewFromInt(1)):
		return NewCopayRate(d)
	case d.LessThanOrEqual(hundred):
		return NewCopayRate(d.Div(hundred))
	default:
		return CopayRate{}, fmt.Errorf("%w: value %s above 100", ErrMalformedRate, d)
	}
}

// Fraction returns the rate as a fraction in [0, 1].
func (r CopayRate) Fraction() decimal.Decimal { return r.frac }

// Apply returns the patient-borne share of amount.
func (r CopayRate) Apply(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(r.frac)
}

func (r CopayRate) String() string { return r.frac.String() }

func (r CopayRate) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.frac.String())
}

func (r *CopayRate) UnmarshalJSON(b []byte) error {
	var raw any
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRate, err)
	}
	parsed, err := ParseCopayRate(raw)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
