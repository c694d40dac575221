package query

import (
	"fmt"
	"math/big"

	"RevLedger/internal/math"
)

// computePending derives the claimable amount for one share and reward kind
// from projected values: floor(accumulator*balance/RewardPrecision) minus
// debt. Same arithmetic as the registry, so a query answer never disagrees
// with what a claim would pay.
func computePending(accumulator string, balance int64, debt string) (int64, error) {
	if balance < 0 {
		return 0, fmt.Errorf("negative projected balance %d", balance)
	}

	acc, ok := new(big.Int).SetString(accumulator, 10)
	if !ok {
		return 0, fmt.Errorf("bad accumulator %q", accumulator)
	}
	d, ok := new(big.Int).SetString(debt, 10)
	if !ok {
		return 0, fmt.Errorf("bad debt %q", debt)
	}

	earned := math.DebtBaseline(acc, uint64(balance))
	earned.Sub(earned, d)
	if !earned.IsInt64() {
		return 0, fmt.Errorf("pending amount out of int64 range")
	}
	return earned.Int64(), nil
}
