package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// BalanceTracker maintains in-memory account balances. It owns the asset
// registry so that two trackers in one process never share ID assignments.
type BalanceTracker struct {
	balances map[AccountKey]int64
	assets   *AssetRegistry
}

func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{
		balances: make(map[AccountKey]int64),
		assets:   NewAssetRegistry(),
	}
}

// Assets returns the tracker's asset registry.
func (bt *BalanceTracker) Assets() *AssetRegistry {
	return bt.assets
}

// ApplyJournal applies a single journal entry to balances
func (bt *BalanceTracker) ApplyJournal(j Journal) {
	bt.balances[j.DebitAccount] += j.Amount
	bt.balances[j.CreditAccount] -= j.Amount
}

// ApplyBatch applies all journals in a batch
func (bt *BalanceTracker) ApplyBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}

	for _, j := range batch.Journals {
		bt.ApplyJournal(j)
	}

	return nil
}

// GetBalance returns the current balance for an account
func (bt *BalanceTracker) GetBalance(key AccountKey) int64 {
	return bt.balances[key]
}

// SetBalance overwrites a single account balance. Used only when restoring
// from a snapshot; live mutation always goes through journals.
func (bt *BalanceTracker) SetBalance(key AccountKey, balance int64) {
	if balance == 0 {
		delete(bt.balances, key)
		return
	}
	bt.balances[key] = balance
}

// === Domain Balance Queries ===

// GetShareUnits returns the unit balance ledgered for a share
func (bt *BalanceTracker) GetShareUnits(shareID uuid.UUID, kindID AssetID) int64 {
	return bt.GetBalance(NewShareAccountKey(shareID, SubTypeUnits, kindID))
}

// GetVaultBalance returns the ledgered vault balance for a reward kind of
// one asset kind. Positive while deposits exceed claims.
func (bt *BalanceTracker) GetVaultBalance(assetKind string, rewardID AssetID) int64 {
	return bt.GetBalance(NewSystemAccountKey(bt.assets.Register(assetKind), SubTypeVault, rewardID))
}

// GetIssuedSupply returns the circulating supply ledgered against a class.
// The supply account is the contra side of every mint, so its balance is
// the negative of the units outstanding.
func (bt *BalanceTracker) GetIssuedSupply(assetKind string, kindID AssetID) int64 {
	return -bt.GetBalance(NewSystemAccountKey(bt.assets.Register(assetKind), SubTypeShareSupply, kindID))
}

// GetExternalDeposits returns cumulative revenue received for a reward kind
// (negated: the external source account goes negative as funds enter).
func (bt *BalanceTracker) GetExternalDeposits(rewardID AssetID) int64 {
	return -bt.GetBalance(NewExternalAccountKey(SubTypeExternalDeposits, rewardID))
}

// GetExternalPayouts returns cumulative revenue paid out for a reward kind
func (bt *BalanceTracker) GetExternalPayouts(rewardID AssetID) int64 {
	return bt.GetBalance(NewExternalAccountKey(SubTypeExternalPayouts, rewardID))
}

// === Invariant Checks ===

// ValidateSufficientVault checks the vault can cover a payout before the
// claim journal is generated
func (bt *BalanceTracker) ValidateSufficientVault(assetKind string, rewardID AssetID, required int64) error {
	balance := bt.GetVaultBalance(assetKind, rewardID)
	if balance < required {
		return fmt.Errorf("insufficient vault balance: have=%d, need=%d", balance, required)
	}
	return nil
}

// ValidateNonNegative checks that a specific account balance is >= 0
func (bt *BalanceTracker) ValidateNonNegative(key AccountKey) error {
	balance := bt.GetBalance(key)
	if balance < 0 {
		return fmt.Errorf("account %s has negative balance: %d", bt.assets.PathFor(key), balance)
	}
	return nil
}

// ComputeGlobalBalance sums all account balances (should be 0 per asset for
// a zero-sum ledger)
func (bt *BalanceTracker) ComputeGlobalBalance() map[AssetID]int64 {
	totals := make(map[AssetID]int64)

	for key, balance := range bt.balances {
		totals[key.AssetID] += balance
	}

	return totals
}

// Snapshot returns a copy of all balances (for state hashing)
func (bt *BalanceTracker) Snapshot() map[AccountKey]int64 {
	snapshot := make(map[AccountKey]int64, len(bt.balances))
	for k, v := range bt.balances {
		snapshot[k] = v
	}
	return snapshot
}
