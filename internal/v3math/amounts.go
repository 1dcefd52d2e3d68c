package v3math

import "github.com/holiman/uint256"

// GetLiquidityForAmount0 returns the largest liquidity covered by amount0 of
// token0 over the price range [sqrtRatioA, sqrtRatioB].
func GetLiquidityForAmount0(sqrtRatioAX96, sqrtRatioBX96, amount0 *uint256.Int) (*uint256.Int, error) {
	if sqrtRatioAX96.Gt(sqrtRatioBX96) {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	intermediate, err := MulDiv(sqrtRatioAX96, sqrtRatioBX96, Q96)
	if err != nil {
		return nil, err
	}
	diff := new(uint256.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)
	z, err := MulDiv(amount0, intermediate, diff)
	if err != nil {
		return nil, err
	}
	return ToUint128(z)
}

// GetLiquidityForAmount1 returns the largest liquidity covered by amount1 of
// token1 over the price range [sqrtRatioA, sqrtRatioB].
func GetLiquidityForAmount1(sqrtRatioAX96, sqrtRatioBX96, amount1 *uint256.Int) (*uint256.Int, error) {
	if sqrtRatioAX96.Gt(sqrtRatioBX96) {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	diff := new(uint256.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)
	z, err := MulDiv(amount1, Q96, diff)
	if err != nil {
		return nil, err
	}
	return ToUint128(z)
}

// GetLiquidityForAmounts returns the largest liquidity funded by both token
// amounts given the current price and the range bounds.
func GetLiquidityForAmounts(sqrtRatioX96, sqrtRatioAX96, sqrtRatioBX96, amount0, amount1 *uint256.Int) (*uint256.Int, error) {
	if sqrtRatioAX96.Gt(sqrtRatioBX96) {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	switch {
	case !sqrtRatioX96.Gt(sqrtRatioAX96):
		return GetLiquidityForAmount0(sqrtRatioAX96, sqrtRatioBX96, amount0)
	case sqrtRatioX96.Lt(sqrtRatioBX96):
		liquidity0, err := GetLiquidityForAmount0(sqrtRatioX96, sqrtRatioBX96, amount0)
		if err != nil {
			return nil, err
		}
		liquidity1, err := GetLiquidityForAmount1(sqrtRatioAX96, sqrtRatioX96, amount1)
		if err != nil {
			return nil, err
		}
		if liquidity0.Lt(liquidity1) {
			return liquidity0, nil
		}
		return liquidity1, nil
	default:
		return GetLiquidityForAmount1(sqrtRatioAX96, sqrtRatioBX96, amount1)
	}
}

// GetAmount0ForLiquidity returns the token0 amount held by liquidity over the
// price range [sqrtRatioA, sqrtRatioB].
func GetAmount0ForLiquidity(sqrtRatioAX96, sqrtRatioBX96, liquidity *uint256.Int) (*uint256.Int, error) {
	if sqrtRatioAX96.Gt(sqrtRatioBX96) {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	if sqrtRatioAX96.IsZero() {
		return nil, ErrPriceZero
	}
	numerator := new(uint256.Int).Lsh(liquidity, Resolution96)
	diff := new(uint256.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)
	z, err := MulDiv(numerator, diff, sqrtRatioBX96)
	if err != nil {
		return nil, err
	}
	return z.Div(z, sqrtRatioAX96), nil
}

// GetAmount1ForLiquidity returns the token1 amount held by liquidity over the
// price range [sqrtRatioA, sqrtRatioB].
func GetAmount1ForLiquidity(sqrtRatioAX96, sqrtRatioBX96, liquidity *uint256.Int) (*uint256.Int, error) {
	if sqrtRatioAX96.Gt(sqrtRatioBX96) {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	diff := new(uint256.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)
	return MulDiv(liquidity, diff, Q96)
}

// GetAmountsForLiquidity returns both token amounts held by liquidity given
// the current price and the range bounds.
func GetAmountsForLiquidity(sqrtRatioX96, sqrtRatioAX96, sqrtRatioBX96, liquidity *uint256.Int) (amount0, amount1 *uint256.Int, err error) {
	if sqrtRatioAX96.Gt(sqrtRatioBX96) {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	amount0 = new(uint256.Int)
	amount1 = new(uint256.Int)
	switch {
	case !sqrtRatioX96.Gt(sqrtRatioAX96):
		amount0, err = GetAmount0ForLiquidity(sqrtRatioAX96, sqrtRatioBX96, liquidity)
	case sqrtRatioX96.Lt(sqrtRatioBX96):
		amount0, err = GetAmount0ForLiquidity(sqrtRatioX96, sqrtRatioBX96, liquidity)
		if err == nil {
			amount1, err = GetAmount1ForLiquidity(sqrtRatioAX96, sqrtRatioX96, liquidity)
		}
	default:
		amount1, err = GetAmount1ForLiquidity(sqrtRatioAX96, sqrtRatioBX96, liquidity)
	}
	return amount0, amount1, err
}
