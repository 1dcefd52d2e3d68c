package v3math

import (
	"math/bits"

	"github.com/holiman/uint256"
)

// MostSignificantBit returns the index of the highest set bit of x, so that
// 2^msb <= x < 2^(msb+1). Fails when x is zero.
func MostSignificantBit(x *uint256.Int) (uint, error) {
	if x.IsZero() {
		return 0, ErrValueOutOfRange
	}
	return uint(x.BitLen() - 1), nil
}

// LeastSignificantBit returns the index of the lowest set bit of x. Fails
// when x is zero.
func LeastSignificantBit(x *uint256.Int) (uint, error) {
	if x.IsZero() {
		return 0, ErrValueOutOfRange
	}
	for i := 0; i < 4; i++ {
		if w := x[i]; w != 0 {
			return uint(i*64 + bits.TrailingZeros64(w)), nil
		}
	}
	return 0, ErrValueOutOfRange
}
