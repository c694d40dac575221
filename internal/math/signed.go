package math

import (
	"fmt"
	"math/big"
	"strings"
)

var bigZero = big.NewInt(0)

// SignedFixedInt is a sign-magnitude wrapper around an unsigned wide integer.
// Debt entries can dip below zero when a balance shrinks while carrying
// accrued revenue, so plain unsigned magnitudes are not enough. Zero is
// always normalized to non-negative, and the zero value of the type is a
// usable zero. Values are immutable; operations return new values.
type SignedFixedInt struct {
	magnitude *big.Int
	negative  bool
}

// ZeroSigned returns the zero value.
func ZeroSigned() SignedFixedInt {
	return SignedFixedInt{}
}

// SignedFromUnsigned wraps a non-negative magnitude. The input is copied.
// A negative input is a programming error.
func SignedFromUnsigned(magnitude *big.Int) SignedFixedInt {
	if magnitude == nil || magnitude.Sign() == 0 {
		return SignedFixedInt{}
	}
	if magnitude.Sign() < 0 {
		panic(fmt.Sprintf("FATAL: SignedFromUnsigned with negative magnitude %s", magnitude))
	}
	return SignedFixedInt{magnitude: new(big.Int).Set(magnitude)}
}

// mag returns a read-only view of the magnitude, never nil.
func (s SignedFixedInt) mag() *big.Int {
	if s.magnitude == nil {
		return bigZero
	}
	return s.magnitude
}

func (s SignedFixedInt) IsZero() bool {
	return s.mag().Sign() == 0
}

func (s SignedFixedInt) IsNegative() bool {
	return s.negative && !s.IsZero()
}

func (s SignedFixedInt) IsPositive() bool {
	return !s.negative && !s.IsZero()
}

// Neg returns the value with the sign flipped. Negating zero is zero.
func (s SignedFixedInt) Neg() SignedFixedInt {
	if s.IsZero() {
		return SignedFixedInt{}
	}
	return SignedFixedInt{magnitude: new(big.Int).Set(s.mag()), negative: !s.negative}
}

// Add returns s + o.
func (s SignedFixedInt) Add(o SignedFixedInt) SignedFixedInt {
	sm, om := s.mag(), o.mag()

	if s.IsNegative() == o.IsNegative() {
		sum := new(big.Int).Add(sm, om)
		return makeSigned(sum, s.IsNegative())
	}

	// Opposite signs: the result takes the sign of the larger magnitude.
	switch sm.Cmp(om) {
	case 0:
		return SignedFixedInt{}
	case 1:
		return makeSigned(new(big.Int).Sub(sm, om), s.IsNegative())
	default:
		return makeSigned(new(big.Int).Sub(om, sm), o.IsNegative())
	}
}

// Sub returns s - o.
func (s SignedFixedInt) Sub(o SignedFixedInt) SignedFixedInt {
	return s.Add(o.Neg())
}

// Abs returns a copy of the magnitude.
func (s SignedFixedInt) Abs() *big.Int {
	return new(big.Int).Set(s.mag())
}

// Unsigned returns the magnitude of a non-negative value. Fails on negative
// values; used only where the caller has already established non-negativity.
func (s SignedFixedInt) Unsigned() (*big.Int, error) {
	if s.IsNegative() {
		return nil, fmt.Errorf("signed value %s is negative", s)
	}
	return new(big.Int).Set(s.mag()), nil
}

// Uint64 returns the low 64 bits of the magnitude. Truncating; only for
// final amounts whose range the caller has already bounded.
func (s SignedFixedInt) Uint64() uint64 {
	return s.mag().Uint64()
}

// String renders the value as a signed decimal, e.g. "-1500".
func (s SignedFixedInt) String() string {
	if s.IsNegative() {
		return "-" + s.mag().String()
	}
	return s.mag().String()
}

// ParseSignedFixedInt parses a signed decimal produced by String.
func ParseSignedFixedInt(text string) (SignedFixedInt, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return SignedFixedInt{}, fmt.Errorf("parse signed value: empty input")
	}

	negative := false
	if strings.HasPrefix(trimmed, "-") {
		negative = true
		trimmed = trimmed[1:]
	}

	magnitude, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || magnitude.Sign() < 0 {
		return SignedFixedInt{}, fmt.Errorf("parse signed value: invalid decimal %q", text)
	}

	return makeSigned(magnitude, negative), nil
}

// makeSigned takes ownership of magnitude and normalizes zero.
func makeSigned(magnitude *big.Int, negative bool) SignedFixedInt {
	if magnitude.Sign() == 0 {
		return SignedFixedInt{}
	}
	return SignedFixedInt{magnitude: magnitude, negative: negative}
}
