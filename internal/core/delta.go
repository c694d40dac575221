package core

import (
	"RevLedger/internal/registry"
	"RevLedger/internal/state"

	"github.com/google/uuid"
)

// StateDelta carries the class and registry rows an event changed, with
// values as of AFTER the event. Projections apply these rows directly;
// the digest folds them into the state hash alongside account balances.
type StateDelta struct {
	Classes []ClassState
	Shares  []ShareState
	Rewards []RewardState
	Debts   []DebtState
	Claims  []ClaimState
}

type ClassState struct {
	Kind              string
	TotalSupplyCap    uint64
	CirculatingSupply uint64
	Burnable          bool
	Version           int64
}

type ShareState struct {
	ShareID uuid.UUID
	Kind    string
	Balance uint64
	Live    bool
	Version int64
}

// RewardState is the post-event accumulator and vault for one reward kind
// of one asset kind. The accumulator is a decimal string since it outgrows
// any fixed-width integer.
type RewardState struct {
	Kind        string
	RewardKind  string
	Accumulator string
	VaultValue  uint64
}

// DebtState is the post-event reward debt of one share for one reward
// kind, as a signed decimal string.
type DebtState struct {
	ShareID    uuid.UUID
	Kind       string
	RewardKind string
	Debt       string
}

// ClaimState records one payout made by a claim event
type ClaimState struct {
	ShareID    uuid.UUID
	Kind       string
	RewardKind string
	Amount     uint64
}

func classState(class *state.ShareClass) ClassState {
	return ClassState{
		Kind:              class.AssetKind,
		TotalSupplyCap:    class.TotalSupplyCap,
		CirculatingSupply: class.CirculatingSupply,
		Burnable:          class.Burnable,
		Version:           class.Version,
	}
}

func shareState(share *state.ShareBalance) ShareState {
	return ShareState{
		ShareID: share.ShareID,
		Kind:    share.AssetKind,
		Balance: share.Balance,
		Live:    true,
		Version: share.Version,
	}
}

// tombstoneState marks a destroyed share so projections drop its rows
func tombstoneState(shareID uuid.UUID, kind string) ShareState {
	return ShareState{
		ShareID: shareID,
		Kind:    kind,
		Live:    false,
	}
}

func rewardState(reg *registry.RevenueRegistry, rewardKind string) RewardState {
	accStr := "0"
	if acc, ok := reg.Accumulator(rewardKind); ok {
		accStr = acc.String()
	}
	return RewardState{
		Kind:        reg.AssetKind(),
		RewardKind:  rewardKind,
		Accumulator: accStr,
		VaultValue:  reg.VaultValue(rewardKind),
	}
}

func debtState(reg *registry.RevenueRegistry, shareID uuid.UUID, rewardKind string) DebtState {
	return DebtState{
		ShareID:    shareID,
		Kind:       reg.AssetKind(),
		RewardKind: rewardKind,
		Debt:       reg.Debt(shareID, rewardKind).String(),
	}
}

// debtStates captures a share's debt across every registered reward kind,
// in registration order
func debtStates(reg *registry.RevenueRegistry, shareID uuid.UUID) []DebtState {
	kinds := reg.RegisteredKinds()
	out := make([]DebtState, 0, len(kinds))
	for _, rewardKind := range kinds {
		out = append(out, debtState(reg, shareID, rewardKind))
	}
	return out
}
