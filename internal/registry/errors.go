package registry

import "errors"

// Sentinel failures for revenue accounting operations. All are synchronous
// and leave the registry untouched; callers wrap with context and match
// with errors.Is.
var (
	ErrUnregisteredRewardKind = errors.New("reward kind never deposited")
	ErrNothingToClaim         = errors.New("nothing to claim")
	ErrPendingRevenue         = errors.New("unclaimed pending revenue")
	ErrEmptyBatch             = errors.New("empty claim batch")
	ErrDivisionByZero         = errors.New("zero circulating supply")
	ErrZeroAmount             = errors.New("amount must be positive")
)
