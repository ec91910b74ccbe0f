// Package fixedpoint provides big.Int helpers for wei-scale (18 decimal)
// money and share arithmetic. All amounts in the engine are non-negative
// *big.Int values at this scale; division always floors, matching the
// reference contract's integer semantics.
package fixedpoint

import (
	"fmt"
	"math/big"
)

// Decimals is the fixed-point precision for both money and shares.
const Decimals = 18

var (
	// WeiScale is 10^18, one whole native unit / one whole share.
	WeiScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

	// BpsDenominator for basis-point fee math.
	BpsDenominator = big.NewInt(10_000)
)

// Zero returns a fresh zero value. Callers must never share big.Int
// instances across mutable state, so package-level constants are not exposed.
func Zero() *big.Int {
	return new(big.Int)
}

// Units converts a whole-unit count to wei scale.
func Units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), WeiScale)
}

// MilliUnits converts thousandths of a unit to wei scale (10^15 each).
func MilliUnits(n int64) *big.Int {
	milli := new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals-3), nil)
	return milli.Mul(milli, big.NewInt(n))
}

// MulDiv computes floor(a*b/den). den must be positive.
func MulDiv(a, b, den *big.Int) *big.Int {
	if den.Sign() <= 0 {
		panic(fmt.Sprintf("fixedpoint: non-positive denominator %s", den))
	}
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, den)
}

// BpsOf computes floor(amount*bps/10000).
func BpsOf(amount *big.Int, bps uint32) *big.Int {
	return MulDiv(amount, big.NewInt(int64(bps)), BpsDenominator)
}

// Max returns a copy of the larger of a and b.
func Max(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// Min returns a copy of the smaller of a and b.
func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// IsPositive reports amount > 0.
func IsPositive(amount *big.Int) bool {
	return amount != nil && amount.Sign() > 0
}

// IsZero reports amount == 0 (nil counts as zero).
func IsZero(amount *big.Int) bool {
	return amount == nil || amount.Sign() == 0
}

// Clone returns a defensive copy; nil maps to a fresh zero.
func Clone(amount *big.Int) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(amount)
}
