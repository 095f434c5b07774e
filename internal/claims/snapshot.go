package claims

import (
	"sync/atomic"

	"github.com/gyeh/claimcheck/internal/catalog"
	"github.com/gyeh/claimcheck/internal/policy"
)

// Snapshot pairs a rule set with the catalog it was published alongside.
// An adjudication reads exactly one Snapshot.
type Snapshot struct {
	Rules   *policy.RuleSet
	Catalog *catalog.Catalog
}

// SnapshotHolder publishes the current Snapshot with a single atomic store.
type SnapshotHolder struct {
	p atomic.Pointer[Snapshot]
}

// NewSnapshotHolder returns a holder publishing rules and cat.
func NewSnapshotHolder(rules *policy.RuleSet, cat *catalog.Catalog) *SnapshotHolder {
	h := &SnapshotHolder{}
	h.p.Store(&Snapshot{Rules: rules, Catalog: cat})
	return h
}

// Current returns the published Snapshot.
func (h *SnapshotHolder) Current() *Snapshot {
	return h.p.Load()
}

// Swap publishes s and returns the previous Snapshot.
func (h *SnapshotHolder) Swap(s *Snapshot) *Snapshot {
	return h.p.Swap(s)
}
