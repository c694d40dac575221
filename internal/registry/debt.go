package registry

import (
	"sort"

	"RevLedger/internal/math"

	"github.com/google/uuid"
)

// DebtRecord is one share's side-table entry: for every reward kind it maps
// how much of acc*balance has already been attributed to the share. An
// absent entry reads as zero debt. The record lives exactly as long as its
// share and is only mutated through the registry.
type DebtRecord struct {
	shareID uuid.UUID
	entries map[string]math.SignedFixedInt
}

func newDebtRecord(shareID uuid.UUID) *DebtRecord {
	return &DebtRecord{
		shareID: shareID,
		entries: make(map[string]math.SignedFixedInt),
	}
}

func (d *DebtRecord) ShareID() uuid.UUID {
	return d.shareID
}

// Get returns the debt for a reward kind, zero when never touched.
func (d *DebtRecord) Get(rewardKind string) math.SignedFixedInt {
	return d.entries[rewardKind]
}

func (d *DebtRecord) set(rewardKind string, debt math.SignedFixedInt) {
	d.entries[rewardKind] = debt
}

// Entries returns a copy of the materialized entries, keys sorted, for
// snapshots and projections.
func (d *DebtRecord) Entries() []DebtEntry {
	kinds := make([]string, 0, len(d.entries))
	for kind := range d.entries {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	out := make([]DebtEntry, 0, len(kinds))
	for _, kind := range kinds {
		out = append(out, DebtEntry{RewardKind: kind, Debt: d.entries[kind]})
	}
	return out
}

// DebtEntry is one materialized (reward kind, debt) pair.
type DebtEntry struct {
	RewardKind string
	Debt       math.SignedFixedInt
}
