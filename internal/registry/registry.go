// Package registry implements the reward accounting engine: one scaled
// accumulator per reward kind, a per-share debt side-table, and a vault of
// undistributed funds per kind. A deposit touches exactly one accumulator
// no matter how many shares exist; a balance mutation touches only the debt
// entries of the shares it names. No operation ever iterates all shares.
package registry

import (
	"fmt"
	"math/big"

	"RevLedger/internal/math"

	"github.com/google/uuid"
)

// RevenueRegistry holds the revenue accounting state of one asset class.
// The accumulator for a reward kind only ever grows; pending amounts are
// derived as acc*balance/RewardPrecision minus the share's debt.
//
// Not safe for concurrent use; the deterministic core is the only writer.
type RevenueRegistry struct {
	assetKind string

	// kinds preserves registration order so that every iteration over
	// reward kinds is deterministic across replicas and replays.
	kinds        []string
	accumulators map[string]*big.Int
	vaults       map[string]*RevenueVault
	debts        map[uuid.UUID]*DebtRecord
}

func NewRevenueRegistry(assetKind string) *RevenueRegistry {
	return &RevenueRegistry{
		assetKind:    assetKind,
		accumulators: make(map[string]*big.Int),
		vaults:       make(map[string]*RevenueVault),
		debts:        make(map[uuid.UUID]*DebtRecord),
	}
}

func (r *RevenueRegistry) AssetKind() string {
	return r.assetKind
}

// RegisteredKinds returns the reward kinds in registration order.
func (r *RevenueRegistry) RegisteredKinds() []string {
	out := make([]string, len(r.kinds))
	copy(out, r.kinds)
	return out
}

// Accumulator returns a copy of a reward kind's accumulator.
func (r *RevenueRegistry) Accumulator(rewardKind string) (*big.Int, bool) {
	acc, ok := r.accumulators[rewardKind]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(acc), true
}

// VaultValue returns the undistributed balance for a reward kind, zero when
// the kind was never deposited.
func (r *RevenueRegistry) VaultValue(rewardKind string) uint64 {
	vault, ok := r.vaults[rewardKind]
	if !ok {
		return 0
	}
	return vault.Value()
}

// Debt returns a share's recorded debt for a reward kind, zero when never
// touched.
func (r *RevenueRegistry) Debt(shareID uuid.UUID, rewardKind string) math.SignedFixedInt {
	record, ok := r.debts[shareID]
	if !ok {
		return math.ZeroSigned()
	}
	return record.Get(rewardKind)
}

// Deposit distributes amount across the current circulating supply by
// raising the reward kind's accumulator once, and credits the kind's vault.
// First-time kinds are registered lazily with a zero accumulator. Deposits
// before any supply exists are rejected: there is nobody to attribute the
// revenue to.
func (r *RevenueRegistry) Deposit(rewardKind string, amount, circulating uint64) error {
	if amount == 0 {
		return fmt.Errorf("deposit %s on %s: %w", rewardKind, r.assetKind, ErrZeroAmount)
	}
	if circulating == 0 {
		return fmt.Errorf("deposit %s on %s: %w", rewardKind, r.assetKind, ErrDivisionByZero)
	}

	acc, ok := r.accumulators[rewardKind]
	if !ok {
		acc = new(big.Int)
		r.accumulators[rewardKind] = acc
		r.vaults[rewardKind] = NewRevenueVault(rewardKind)
		r.kinds = append(r.kinds, rewardKind)
	}

	acc.Add(acc, math.AccrualPerShare(amount, circulating))
	r.vaults[rewardKind].Credit(amount)
	return nil
}

// Pending returns the currently claimable amount for one share and reward
// kind: acc*balance/RewardPrecision minus the recorded debt. A negative
// debt (possible after balance decreases) adds its magnitude.
func (r *RevenueRegistry) Pending(rewardKind string, shareID uuid.UUID, balance uint64) (uint64, error) {
	acc, ok := r.accumulators[rewardKind]
	if !ok {
		return 0, fmt.Errorf("pending %s for %s: %w", rewardKind, shareID, ErrUnregisteredRewardKind)
	}
	return r.pendingAmount(acc, rewardKind, shareID, balance), nil
}

func (r *RevenueRegistry) pendingAmount(acc *big.Int, rewardKind string, shareID uuid.UUID, balance uint64) uint64 {
	baseline := math.SignedFromUnsigned(math.DebtBaseline(acc, balance))
	pending := baseline.Sub(r.Debt(shareID, rewardKind))
	if pending.IsNegative() {
		// Unreachable through the public operations: debt never exceeds
		// the baseline of the balance it was set against, and the
		// accumulator never shrinks.
		panic(fmt.Sprintf("FATAL: negative pending %s for share %s kind %s", pending, shareID, rewardKind))
	}
	return pending.Uint64()
}

// Create fixes a freshly materialized share's debt baseline at its current
// balance for every registered reward kind, so its pending starts at
// exactly zero. A new share has no claim on revenue accrued before it
// existed.
func (r *RevenueRegistry) Create(shareID uuid.UUID, balance uint64) {
	record := newDebtRecord(shareID)
	for _, kind := range r.kinds {
		baseline := math.DebtBaseline(r.accumulators[kind], balance)
		record.set(kind, math.SignedFromUnsigned(baseline))
	}
	r.debts[shareID] = record
}

// Increase rebases a share's debt for a balance growing by amount, keeping
// the already-accrued pending unchanged. Called before the physical
// balance change.
func (r *RevenueRegistry) Increase(shareID uuid.UUID, balance, amount uint64) {
	r.rebase(shareID, balance, balance+amount)
}

// Decrease rebases a share's debt for a balance shrinking by amount,
// keeping pending unchanged. This is the one path where debt can go
// negative. Called before the physical balance change.
func (r *RevenueRegistry) Decrease(shareID uuid.UUID, balance, amount uint64) {
	r.rebase(shareID, balance, balance-amount)
}

// rebase sets debt = acc*newBalance/RewardPrecision - pending for every
// registered kind, where pending is computed at the old balance.
func (r *RevenueRegistry) rebase(shareID uuid.UUID, oldBalance, newBalance uint64) {
	record, ok := r.debts[shareID]
	if !ok {
		record = newDebtRecord(shareID)
		r.debts[shareID] = record
	}

	for _, kind := range r.kinds {
		acc := r.accumulators[kind]

		oldBaseline := math.SignedFromUnsigned(math.DebtBaseline(acc, oldBalance))
		pending := oldBaseline.Sub(record.Get(kind))

		newBaseline := math.SignedFromUnsigned(math.DebtBaseline(acc, newBalance))
		record.set(kind, newBaseline.Sub(pending))
	}
}

// Destroy removes a share's debt record. Refused while any reward kind has
// nonzero pending, because that revenue would become unclaimable; nothing
// is mutated on failure.
func (r *RevenueRegistry) Destroy(shareID uuid.UUID, balance uint64) error {
	for _, kind := range r.kinds {
		p := r.pendingAmount(r.accumulators[kind], kind, shareID, balance)
		if p != 0 {
			return fmt.Errorf("destroy %s with %d pending for %s: %w", shareID, p, kind, ErrPendingRevenue)
		}
	}
	delete(r.debts, shareID)
	return nil
}

// Claim settles one share's pending amount for one reward kind: the debt is
// raised to the current baseline and the vault pays out the difference.
// A zero pending is an error so that misuse surfaces instead of silently
// paying nothing.
func (r *RevenueRegistry) Claim(rewardKind string, shareID uuid.UUID, balance uint64) (uint64, error) {
	acc, ok := r.accumulators[rewardKind]
	if !ok {
		return 0, fmt.Errorf("claim %s for %s: %w", rewardKind, shareID, ErrUnregisteredRewardKind)
	}

	p := r.pendingAmount(acc, rewardKind, shareID, balance)
	if p == 0 {
		return 0, fmt.Errorf("claim %s for %s: %w", rewardKind, shareID, ErrNothingToClaim)
	}

	if err := r.vaults[rewardKind].Debit(p); err != nil {
		// The vault always covers pending amounts; see RevenueVault.Debit.
		panic(fmt.Sprintf("FATAL: %v", err))
	}

	record, ok := r.debts[shareID]
	if !ok {
		record = newDebtRecord(shareID)
		r.debts[shareID] = record
	}
	record.set(rewardKind, math.SignedFromUnsigned(math.DebtBaseline(acc, balance)))

	return p, nil
}

// ShareClaim names one share in a batch claim.
type ShareClaim struct {
	ShareID uuid.UUID
	Balance uint64
}

// ClaimBatch claims one reward kind across several shares atomically: every
// share's pending is verified nonzero before any debt is settled, so a
// failure anywhere leaves the whole batch unclaimed. A share listed twice
// fails the batch, because its second claim would find nothing left.
// Returns the per-share amounts in input order.
func (r *RevenueRegistry) ClaimBatch(rewardKind string, claims []ShareClaim) ([]uint64, error) {
	if len(claims) == 0 {
		return nil, fmt.Errorf("claim %s: %w", rewardKind, ErrEmptyBatch)
	}

	acc, ok := r.accumulators[rewardKind]
	if !ok {
		return nil, fmt.Errorf("claim %s: %w", rewardKind, ErrUnregisteredRewardKind)
	}

	seen := make(map[uuid.UUID]bool, len(claims))
	amounts := make([]uint64, len(claims))
	for i, claim := range claims {
		if seen[claim.ShareID] {
			return nil, fmt.Errorf("claim %s for %s listed twice: %w", rewardKind, claim.ShareID, ErrNothingToClaim)
		}
		seen[claim.ShareID] = true

		p := r.pendingAmount(acc, rewardKind, claim.ShareID, claim.Balance)
		if p == 0 {
			return nil, fmt.Errorf("claim %s for %s: %w", rewardKind, claim.ShareID, ErrNothingToClaim)
		}
		amounts[i] = p
	}

	for i, claim := range claims {
		if err := r.vaults[rewardKind].Debit(amounts[i]); err != nil {
			panic(fmt.Sprintf("FATAL: %v", err))
		}

		record, ok := r.debts[claim.ShareID]
		if !ok {
			record = newDebtRecord(claim.ShareID)
			r.debts[claim.ShareID] = record
		}
		record.set(rewardKind, math.SignedFromUnsigned(math.DebtBaseline(acc, claim.Balance)))
	}

	return amounts, nil
}

// --- Snapshot accessors ---

// GetAllDebts returns every live debt record.
func (r *RevenueRegistry) GetAllDebts() []*DebtRecord {
	out := make([]*DebtRecord, 0, len(r.debts))
	for _, record := range r.debts {
		out = append(out, record)
	}
	return out
}

// RestoreKind installs a reward kind during snapshot restore. Kinds must be
// restored in their original registration order.
func (r *RevenueRegistry) RestoreKind(rewardKind string, acc *big.Int, vaultBalance uint64) {
	if _, exists := r.accumulators[rewardKind]; !exists {
		r.kinds = append(r.kinds, rewardKind)
	}
	r.accumulators[rewardKind] = new(big.Int).Set(acc)
	vault := NewRevenueVault(rewardKind)
	vault.restore(vaultBalance)
	r.vaults[rewardKind] = vault
}

// RestoreDebt installs a share's debt entries during snapshot restore.
func (r *RevenueRegistry) RestoreDebt(shareID uuid.UUID, entries []DebtEntry) {
	record := newDebtRecord(shareID)
	for _, e := range entries {
		record.set(e.RewardKind, e.Debt)
	}
	r.debts[shareID] = record
}
