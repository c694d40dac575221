package registry

import "fmt"

// RevenueVault pools the deposited-but-unclaimed funds of one reward kind.
// Deposits credit it, claims debit it; the balance never goes below zero
// and always covers the sum of live shares' pending amounts (up to
// integer-division dust that stays in the vault).
type RevenueVault struct {
	rewardKind string
	balance    uint64
}

func NewRevenueVault(rewardKind string) *RevenueVault {
	return &RevenueVault{rewardKind: rewardKind}
}

func (v *RevenueVault) RewardKind() string {
	return v.rewardKind
}

func (v *RevenueVault) Value() uint64 {
	return v.balance
}

// Credit adds deposited funds to the pool.
func (v *RevenueVault) Credit(amount uint64) {
	v.balance += amount
}

// Debit removes claimed funds from the pool. Fails if the pool cannot
// cover the amount; the accounting rules make that unreachable, so a
// failure here means corrupted state upstream.
func (v *RevenueVault) Debit(amount uint64) error {
	if amount > v.balance {
		return fmt.Errorf("vault %s holds %d, debit of %d underflows", v.rewardKind, v.balance, amount)
	}
	v.balance -= amount
	return nil
}

// restore overwrites the balance during snapshot restore.
func (v *RevenueVault) restore(balance uint64) {
	v.balance = balance
}
