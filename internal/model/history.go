package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Claim statuses as stored locally and reported by the insurer.
const (
	StatusDraft         = "draft"
	StatusPending       = "pending"
	StatusInvalid       = "invalid"
	StatusSubmitted     = "submitted"
	StatusForwardFailed = "forward_failed"
	StatusApproved      = "approved"
	StatusRejected      = "rejected"
	StatusUnknown       = "unknown"
)

// HistoryRecord is a previously submitted claim of the same patient.
type HistoryRecord struct {
	ClaimCode   string          `json:"claim_code,omitempty"`
	Category    ServiceCategory `json:"service_type"`
	ServiceCode string          `json:"service_code,omitempty"`
	Department  string          `json:"department,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	Status      string          `json:"status"`
	Items       []HistoryItem   `json:"items,omitempty"`
}

// HistoryItem is one line of a previous claim.
type HistoryItem struct {
	Code     string          `json:"item_code"`
	Name     string          `json:"item_name,omitempty"`
	Quantity int             `json:"quantity"`
	UnitRate decimal.Decimal `json:"unit_rate"`
}

// Counted reports whether the record takes part in temporal and usage
// rules. Rejected and unknown claims never do, and neither do drafts or
// invalid claims that were never forwarded.
func (h *HistoryRecord) Counted() bool {
	switch h.Status {
	case StatusRejected, StatusUnknown, StatusDraft, StatusInvalid:
		return false
	}
	return true
}

// Day returns the calendar day the record was created.
func (h *HistoryRecord) Day() Date {
	return DateOf(h.CreatedAt)
}
