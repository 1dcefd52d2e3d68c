package v3math

import "github.com/holiman/uint256"

// Signed quantities ride in uint256.Int values using two's complement, the
// same representation the EVM uses for int256. Narrower signed widths
// (int128 liquidity deltas) are range-checked on the way in.

var (
	maxInt128 = uint256.MustFromHex("0x7fffffffffffffffffffffffffffffff")
	minInt128 = new(uint256.Int).Neg(uint256.MustFromHex("0x80000000000000000000000000000000"))
	maxInt256 = uint256.MustFromHex("0x7fffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
)

// FromInt64 returns v as a two's-complement 256-bit value.
func FromInt64(v int64) *uint256.Int {
	z := new(uint256.Int)
	if v < 0 {
		z.SetUint64(uint64(-v))
		z.Neg(z)
		return z
	}
	return z.SetUint64(uint64(v))
}

// ToInt64 converts a two's-complement value known to fit in 64 bits.
func ToInt64(x *uint256.Int) int64 {
	if x.Sign() < 0 {
		return -int64(new(uint256.Int).Neg(x).Uint64())
	}
	return int64(x.Uint64())
}

// Neg returns -x in two's complement.
func Neg(x *uint256.Int) *uint256.Int {
	return new(uint256.Int).Neg(x)
}

// Abs returns |x| for a two's-complement value.
func Abs(x *uint256.Int) *uint256.Int {
	return new(uint256.Int).Abs(x)
}

// ToUint160 fails unless x fits in 160 bits.
func ToUint160(x *uint256.Int) (*uint256.Int, error) {
	if x.Gt(MaxUint160) {
		return nil, ErrCastOutOfRange
	}
	return x.Clone(), nil
}

// ToUint128 fails unless x fits in 128 bits.
func ToUint128(x *uint256.Int) (*uint256.Int, error) {
	if x.Gt(MaxUint128) {
		return nil, ErrCastOutOfRange
	}
	return x.Clone(), nil
}

// ToInt128 fails unless the two's-complement value x lies in the int128 range.
func ToInt128(x *uint256.Int) (*uint256.Int, error) {
	if x.Sign() >= 0 {
		if x.Gt(maxInt128) {
			return nil, ErrCastOutOfRange
		}
	} else if x.Slt(minInt128) {
		return nil, ErrCastOutOfRange
	}
	return x.Clone(), nil
}

// ToInt256 reinterprets an unsigned magnitude as int256, failing at 2^255 and
// above.
func ToInt256(x *uint256.Int) (*uint256.Int, error) {
	if x.Gt(maxInt256) {
		return nil, ErrCastOutOfRange
	}
	return x.Clone(), nil
}
