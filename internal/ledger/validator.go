package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// InvariantValidator checks ledger invariants
type InvariantValidator struct {
	tracker *BalanceTracker
}

func NewInvariantValidator(tracker *BalanceTracker) *InvariantValidator {
	return &InvariantValidator{
		tracker: tracker,
	}
}

// ValidateBatchBalance verifies a batch is balanced
func (v *InvariantValidator) ValidateBatchBalance(batch *Batch) error {
	return batch.Validate()
}

// ValidateVaultNonNegative verifies a vault never pays out more than it
// received
func (v *InvariantValidator) ValidateVaultNonNegative(assetKind string, rewardID AssetID) error {
	assets := v.tracker.Assets()
	key := NewSystemAccountKey(assets.Register(assetKind), SubTypeVault, rewardID)
	balance := v.tracker.GetBalance(key)

	if balance < 0 {
		return fmt.Errorf("vault %s has negative balance: %d", assets.PathFor(key), balance)
	}

	return nil
}

// ValidateShareUnitsNonNegative checks a share's ledgered units >= 0
func (v *InvariantValidator) ValidateShareUnitsNonNegative(shareID uuid.UUID, kindID AssetID) error {
	key := NewShareAccountKey(shareID, SubTypeUnits, kindID)
	return v.tracker.ValidateNonNegative(key)
}

// ValidateGlobalBalance verifies the system is zero-sum per asset
func (v *InvariantValidator) ValidateGlobalBalance() error {
	totals := v.tracker.ComputeGlobalBalance()

	for assetID, total := range totals {
		if total != 0 {
			assetName, _ := v.tracker.Assets().Name(assetID)
			return fmt.Errorf("global balance for %s is non-zero: %d", assetName, total)
		}
	}

	return nil
}
