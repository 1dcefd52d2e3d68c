package v3math

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	ErrDivisionByZero  = errors.New("division by zero")
	ErrMulDivOverflow  = errors.New("muldiv overflow")
	ErrAddOverflow     = errors.New("add overflow")
	ErrSubUnderflow    = errors.New("sub underflow")
	ErrCastOutOfRange  = errors.New("cast out of range")
	ErrValueOutOfRange = errors.New("value out of range")
)

var one = uint256.NewInt(1)

// MulDiv returns floor(a*b/denominator). The intermediate product is kept at
// full 512-bit width, so a*b may exceed 256 bits as long as the quotient fits.
func MulDiv(a, b, denominator *uint256.Int) (*uint256.Int, error) {
	if denominator.IsZero() {
		return nil, ErrDivisionByZero
	}
	p, overflow := new(uint256.Int).MulOverflow(a, b)
	if !overflow {
		return p.Div(p, denominator), nil
	}
	prod := new(big.Int).Mul(a.ToBig(), b.ToBig())
	prod.Quo(prod, denominator.ToBig())
	z, overflow := uint256.FromBig(prod)
	if overflow {
		return nil, ErrMulDivOverflow
	}
	return z, nil
}

// MulDivRoundingUp returns ceil(a*b/denominator).
func MulDivRoundingUp(a, b, denominator *uint256.Int) (*uint256.Int, error) {
	z, err := MulDiv(a, b, denominator)
	if err != nil {
		return nil, err
	}
	rem := new(uint256.Int).MulMod(a, b, denominator)
	if !rem.IsZero() {
		if z.Eq(MaxUint256) {
			return nil, ErrMulDivOverflow
		}
		z.Add(z, one)
	}
	return z, nil
}

// DivRoundingUp returns ceil(x/y). The caller guarantees y != 0.
func DivRoundingUp(x, y *uint256.Int) *uint256.Int {
	z := new(uint256.Int).Div(x, y)
	if !new(uint256.Int).Mod(x, y).IsZero() {
		z.Add(z, one)
	}
	return z
}

// CheckedAdd returns x+y or fails on 256-bit overflow.
func CheckedAdd(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrAddOverflow
	}
	return z, nil
}

// CheckedSub returns x-y or fails when y > x.
func CheckedSub(x, y *uint256.Int) (*uint256.Int, error) {
	if y.Gt(x) {
		return nil, ErrSubUnderflow
	}
	return new(uint256.Int).Sub(x, y), nil
}

// WrappingSub returns x-y modulo 2^256. Fee growth accumulators rely on this
// wrapping behavior when a snapshot is ahead of the current global value.
func WrappingSub(x, y *uint256.Int) *uint256.Int {
	return new(uint256.Int).Sub(x, y)
}

// WrappingAdd returns x+y modulo 2^256.
func WrappingAdd(x, y *uint256.Int) *uint256.Int {
	return new(uint256.Int).Add(x, y)
}
