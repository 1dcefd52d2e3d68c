package v3math

import "github.com/holiman/uint256"

// Fixed-point scaling factors used across the price and fee arithmetic.
var (
	Q96  = uint256.MustFromHex("0x1000000000000000000000000")
	Q128 = uint256.MustFromHex("0x100000000000000000000000000000000")

	MaxUint256 = uint256.MustFromHex("0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	MaxUint160 = uint256.MustFromHex("0xffffffffffffffffffffffffffffffffffffffff")
	MaxUint128 = uint256.MustFromHex("0xffffffffffffffffffffffffffffffff")
)

// Resolution96 is the bit width of the fractional part of a Q64.96 value.
const Resolution96 = 96
