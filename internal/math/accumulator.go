// Package math implements the scaled integer arithmetic used by the revenue
// accounting core. All quantities are integers; products that can exceed 64
// bits are computed in big.Int before dividing the scale factor back out.
// No floating point anywhere.
package math

import (
	"math/big"
	"sync"
)

// RewardPrecision is the accumulator scale factor. Accumulators store
// reward-per-unit-share multiplied by this constant. At 10^9 the floor
// error of a single claim stays below one base unit for circulating
// supplies up to ~10^9; raising the supply ceiling requires raising this
// constant, not the other way around.
const RewardPrecision = 1_000_000_000

var rewardPrecisionInt = big.NewInt(RewardPrecision)

// wideIntPool recycles big.Int values used as transient intermediates.
// Pooled values never escape this package.
var wideIntPool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getWideInt() *big.Int {
	return wideIntPool.Get().(*big.Int)
}

func putWideInt(v *big.Int) {
	v.SetInt64(0)
	wideIntPool.Put(v)
}

// AccrualPerShare computes amount * RewardPrecision / circulating with floor
// division. Both operands are non-negative, so truncating division is floor
// division. The caller must have rejected circulating == 0 already.
// The result is freshly allocated and owned by the caller.
func AccrualPerShare(amount, circulating uint64) *big.Int {
	num := getWideInt()
	num.SetUint64(amount)
	num.Mul(num, rewardPrecisionInt)

	den := getWideInt()
	den.SetUint64(circulating)

	out := new(big.Int).Quo(num, den)

	putWideInt(num)
	putWideInt(den)
	return out
}

// DebtBaseline computes acc * balance / RewardPrecision with floor division.
// This is the debt value that makes a share's pending amount exactly zero at
// its current balance. The result is freshly allocated and owned by the
// caller; acc is not modified.
func DebtBaseline(acc *big.Int, balance uint64) *big.Int {
	num := getWideInt()
	num.SetUint64(balance)
	num.Mul(num, acc)

	out := new(big.Int).Quo(num, rewardPrecisionInt)

	putWideInt(num)
	return out
}
