package v3math

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	ErrLiquiditySub = errors.New("LS")
	ErrLiquidityAdd = errors.New("LA")
)

// AddDelta applies a signed int128 delta y to the uint128 amount x, failing
// on underflow or on exceeding the uint128 range.
func AddDelta(x, y *uint256.Int) (*uint256.Int, error) {
	if y.Sign() < 0 {
		mag := new(uint256.Int).Neg(y)
		if mag.Gt(x) {
			return nil, ErrLiquiditySub
		}
		return new(uint256.Int).Sub(x, mag), nil
	}
	z := new(uint256.Int).Add(x, y)
	if z.Gt(MaxUint128) {
		return nil, ErrLiquidityAdd
	}
	return z, nil
}
