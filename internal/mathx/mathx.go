// Package mathx provides overflow-aware integer arithmetic for fixed-point
// accounting. Products are computed in 256 bits so x*y never wraps before
// the division.
package mathx

import (
	"math"

	"github.com/holiman/uint256"
)

// MulDiv returns floor(x*y/d). ok is false when d is zero or the quotient
// does not fit in 64 bits.
func MulDiv(x, y, d uint64) (result uint64, ok bool) {
	if d == 0 {
		return 0, false
	}
	z, overflow := new(uint256.Int).MulDivOverflow(uint256.NewInt(x), uint256.NewInt(y), uint256.NewInt(d))
	if overflow || !z.IsUint64() {
		return 0, false
	}
	return z.Uint64(), true
}

// MulDivSaturating is MulDiv clamped to math.MaxUint64. Division by zero yields zero.
func MulDivSaturating(x, y, d uint64) uint64 {
	if d == 0 {
		return 0
	}
	z, ok := MulDiv(x, y, d)
	if !ok {
		return math.MaxUint64
	}
	return z
}

// Add returns x+y and whether the sum fit in 64 bits
func Add(x, y uint64) (uint64, bool) {
	s := x + y
	return s, s >= x
}

// AddSaturating returns x+y clamped to math.MaxUint64
func AddSaturating(x, y uint64) uint64 {
	if s, ok := Add(x, y); ok {
		return s
	}
	return math.MaxUint64
}

// AbsDiff returns |a-b|
func AbsDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// Min returns the smaller of a and b
func Min(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
