package state

import "errors"

// Sentinel failures for share lifecycle operations. Callers wrap them with
// operation context and match with errors.Is. Every failure is synchronous
// and leaves state untouched.
var (
	ErrSupplyExceeded      = errors.New("mint exceeds total supply cap")
	ErrZeroAmount          = errors.New("amount must be positive")
	ErrNotBurnable         = errors.New("share class is not burnable")
	ErrInsufficientBalance = errors.New("insufficient share balance")
	ErrClassExists         = errors.New("share class already exists")
	ErrUnknownClass        = errors.New("unknown share class")
	ErrUnknownShare        = errors.New("unknown share")
)
