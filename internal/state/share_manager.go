package state

import (
	"fmt"

	"github.com/google/uuid"
)

// ShareManager owns every share class and every live share balance. It
// enforces the supply-cap and balance invariants on the physical side of
// mint, split, join, and burn. Revenue bookkeeping runs in the registry
// strictly before any physical mutation here, so each operation exposes a
// Validate* precondition check that mutating paths can run first.
//
// Not safe for concurrent use; the deterministic core is the only writer.
type ShareManager struct {
	classes map[string]*ShareClass
	shares  map[uuid.UUID]*ShareBalance
}

func NewShareManager() *ShareManager {
	return &ShareManager{
		classes: make(map[string]*ShareClass),
		shares:  make(map[uuid.UUID]*ShareBalance),
	}
}

// CreateClass registers a new fixed-supply asset class. The cap is immutable
// afterwards.
func (sm *ShareManager) CreateClass(assetKind string, supplyCap uint64, burnable bool) (*ShareClass, error) {
	if _, exists := sm.classes[assetKind]; exists {
		return nil, fmt.Errorf("create class %s: %w", assetKind, ErrClassExists)
	}
	if supplyCap == 0 {
		return nil, fmt.Errorf("create class %s with zero cap: %w", assetKind, ErrZeroAmount)
	}

	class := &ShareClass{
		AssetKind:      assetKind,
		TotalSupplyCap: supplyCap,
		Burnable:       burnable,
	}
	sm.classes[assetKind] = class
	return class, nil
}

func (sm *ShareManager) GetClass(assetKind string) (*ShareClass, bool) {
	class, ok := sm.classes[assetKind]
	return class, ok
}

func (sm *ShareManager) GetShare(shareID uuid.UUID) (*ShareBalance, bool) {
	share, ok := sm.shares[shareID]
	return share, ok
}

// Mint issues a new share carrying amount units. Fails without mutation on
// an unknown class, a zero amount, or a cap breach.
func (sm *ShareManager) Mint(assetKind string, shareID uuid.UUID, amount uint64) (*ShareBalance, error) {
	class, ok := sm.classes[assetKind]
	if !ok {
		return nil, fmt.Errorf("mint on %s: %w", assetKind, ErrUnknownClass)
	}
	if amount == 0 {
		return nil, fmt.Errorf("mint on %s: %w", assetKind, ErrZeroAmount)
	}
	if _, exists := sm.shares[shareID]; exists {
		return nil, fmt.Errorf("mint on %s: share %s already exists", assetKind, shareID)
	}
	// The second clause guards uint64 wrap.
	if class.CirculatingSupply+amount > class.TotalSupplyCap || class.CirculatingSupply+amount < class.CirculatingSupply {
		return nil, fmt.Errorf("mint %d on %s (circulating %d, cap %d): %w",
			amount, assetKind, class.CirculatingSupply, class.TotalSupplyCap, ErrSupplyExceeded)
	}

	class.CirculatingSupply += amount
	class.Version++

	share := &ShareBalance{
		ShareID:   shareID,
		AssetKind: assetKind,
		Balance:   amount,
	}
	sm.shares[shareID] = share
	return share, nil
}

// ValidateSplit checks every split precondition without mutating anything.
// Both resulting shares must end with a positive balance, so a one-unit
// share cannot be split and the split amount must be strictly below the
// current balance.
func (sm *ShareManager) ValidateSplit(shareID, newShareID uuid.UUID, amount uint64) error {
	share, ok := sm.shares[shareID]
	if !ok {
		return fmt.Errorf("split %s: %w", shareID, ErrUnknownShare)
	}
	if _, exists := sm.shares[newShareID]; exists {
		return fmt.Errorf("split %s: new share %s already exists", shareID, newShareID)
	}
	if amount == 0 {
		return fmt.Errorf("split %s: %w", shareID, ErrZeroAmount)
	}
	if share.Balance <= 1 || amount >= share.Balance {
		return fmt.Errorf("split %d from %s (balance %d): %w",
			amount, shareID, share.Balance, ErrInsufficientBalance)
	}
	return nil
}

// Split moves amount units out of an existing share into a freshly created
// one. The caller must have run ValidateSplit first.
func (sm *ShareManager) Split(shareID, newShareID uuid.UUID, amount uint64) (*ShareBalance, error) {
	if err := sm.ValidateSplit(shareID, newShareID, amount); err != nil {
		return nil, err
	}

	share := sm.shares[shareID]
	share.Balance -= amount
	share.Version++

	newShare := &ShareBalance{
		ShareID:   newShareID,
		AssetKind: share.AssetKind,
		Balance:   amount,
	}
	sm.shares[newShareID] = newShare
	return newShare, nil
}

// ValidateJoin checks that both shares exist, are distinct, and belong to
// the same asset class.
func (sm *ShareManager) ValidateJoin(targetID, sourceID uuid.UUID) error {
	if targetID == sourceID {
		return fmt.Errorf("join %s into itself", targetID)
	}
	target, ok := sm.shares[targetID]
	if !ok {
		return fmt.Errorf("join target %s: %w", targetID, ErrUnknownShare)
	}
	source, ok := sm.shares[sourceID]
	if !ok {
		return fmt.Errorf("join source %s: %w", sourceID, ErrUnknownShare)
	}
	if target.AssetKind != source.AssetKind {
		return fmt.Errorf("join across asset kinds %s and %s", target.AssetKind, source.AssetKind)
	}
	return nil
}

// Join absorbs the source share's whole balance into the target and deletes
// the source. Returns the absorbed amount. The caller must have run
// ValidateJoin first and settled the source's revenue bookkeeping.
func (sm *ShareManager) Join(targetID, sourceID uuid.UUID) (uint64, error) {
	if err := sm.ValidateJoin(targetID, sourceID); err != nil {
		return 0, err
	}

	target := sm.shares[targetID]
	source := sm.shares[sourceID]

	moved := source.Balance
	target.Balance += moved
	target.Version++
	delete(sm.shares, sourceID)

	return moved, nil
}

// ValidateBurn checks that the share exists and its class permits burning.
func (sm *ShareManager) ValidateBurn(shareID uuid.UUID) error {
	share, ok := sm.shares[shareID]
	if !ok {
		return fmt.Errorf("burn %s: %w", shareID, ErrUnknownShare)
	}
	class, ok := sm.classes[share.AssetKind]
	if !ok {
		return fmt.Errorf("burn %s: %w", share.AssetKind, ErrUnknownClass)
	}
	if !class.Burnable {
		return fmt.Errorf("burn %s on %s: %w", shareID, share.AssetKind, ErrNotBurnable)
	}
	return nil
}

// Burn retires a share, returning its balance to the uncirculated pool.
// Returns the retired amount. The caller must have run ValidateBurn first
// and settled the share's revenue bookkeeping.
func (sm *ShareManager) Burn(shareID uuid.UUID) (uint64, error) {
	if err := sm.ValidateBurn(shareID); err != nil {
		return 0, err
	}

	share := sm.shares[shareID]
	class := sm.classes[share.AssetKind]

	amount := share.Balance
	class.CirculatingSupply -= amount
	class.Version++
	delete(sm.shares, shareID)

	return amount, nil
}

// SharesOfClass returns the live balances of one asset kind. Used by
// invariant checks to reconcile circulating supply against the sum of
// live balances.
func (sm *ShareManager) SharesOfClass(assetKind string) []*ShareBalance {
	var out []*ShareBalance
	for _, share := range sm.shares {
		if share.AssetKind == assetKind {
			out = append(out, share)
		}
	}
	return out
}

// --- Snapshot accessors ---

// GetAllClasses returns copies of every class. The caller may hold them past
// the next event apply, so live structs are never handed out.
func (sm *ShareManager) GetAllClasses() []*ShareClass {
	out := make([]*ShareClass, 0, len(sm.classes))
	for _, class := range sm.classes {
		c := *class
		out = append(out, &c)
	}
	return out
}

// GetAllShares returns copies of every live share.
func (sm *ShareManager) GetAllShares() []*ShareBalance {
	out := make([]*ShareBalance, 0, len(sm.shares))
	for _, share := range sm.shares {
		s := *share
		out = append(out, &s)
	}
	return out
}

// RestoreClass installs a class during snapshot restore, bypassing the
// creation checks.
func (sm *ShareManager) RestoreClass(class *ShareClass) {
	sm.classes[class.AssetKind] = class
}

// RestoreShare installs a share during snapshot restore.
func (sm *ShareManager) RestoreShare(share *ShareBalance) {
	sm.shares[share.ShareID] = share
}
