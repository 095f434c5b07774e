package adjudicate

import (
	"github.com/shopspring/decimal"

	"github.com/gyeh/claimcheck/internal/model"
	"github.com/gyeh/claimcheck/internal/money"
)

// Kind classifies a hard failure.
type Kind string

const (
	KindPatientNotFound          Kind = "PatientNotFound"
	KindNoRemainingBalance       Kind = "NoRemainingBalance"
	KindNoUnitsRemainingInWindow Kind = "NoUnitsRemainingInWindow"
	KindMalformedCopayRate       Kind = "MalformedCopayRate"
	KindInvalidSubmission        Kind = "InvalidSubmission"
)

// Error is a hard failure that aborts an adjudication. No result is
// produced alongside it.
type Error struct {
	Kind     Kind
	Rule     string
	ItemCode string
	Detail   string
	Err      error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.ItemCode != "" {
		msg += " (" + e.ItemCode + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is works against the
// sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrPatientNotFound          = &Error{Kind: KindPatientNotFound}
	ErrNoRemainingBalance       = &Error{Kind: KindNoRemainingBalance}
	ErrNoUnitsRemainingInWindow = &Error{Kind: KindNoUnitsRemainingInWindow}
	ErrMalformedCopayRate       = &Error{Kind: KindMalformedCopayRate}
	ErrInvalidSubmission        = &Error{Kind: KindInvalidSubmission}
)

// NewBalance builds a BalanceSnapshot from raw eligibility figures. The
// copay value is normalized here so the engine only ever sees a fraction.
func NewBalance(allowed, used decimal.Decimal, rawCopay any) (model.BalanceSnapshot, error) {
	rate, err := money.ParseCopayRate(rawCopay)
	if err != nil {
		return model.BalanceSnapshot{}, &Error{
			Kind:   KindMalformedCopayRate,
			Rule:   model.RuleCopayRate,
			Detail: err.Error(),
			Err:    err,
		}
	}
	return model.BalanceSnapshot{Allowed: allowed, Used: used, Copay: rate}, nil
}
