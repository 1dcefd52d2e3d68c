package v3math

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	ErrPriceZero      = errors.New("sqrt price is zero")
	ErrLiquidityZero  = errors.New("liquidity is zero")
	ErrPriceUnderflow = errors.New("sqrt price underflow")
)

// GetNextSqrtPriceFromAmount0RoundingUp returns the price after adding or
// removing amount of token0, rounded up so the price moves conservatively
// against the pool.
func GetNextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amount *uint256.Int, add bool) (*uint256.Int, error) {
	if amount.IsZero() {
		return sqrtPX96.Clone(), nil
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, Resolution96)

	product, overflow := new(uint256.Int).MulOverflow(amount, sqrtPX96)
	if add {
		if !overflow {
			denominator, carry := new(uint256.Int).AddOverflow(numerator1, product)
			if !carry {
				next, err := MulDivRoundingUp(numerator1, sqrtPX96, denominator)
				if err != nil {
					return nil, err
				}
				return ToUint160(next)
			}
		}
		denominator := new(uint256.Int).Div(numerator1, sqrtPX96)
		denominator.Add(denominator, amount)
		return DivRoundingUp(numerator1, denominator), nil
	}

	if overflow || !numerator1.Gt(product) {
		return nil, ErrPriceUnderflow
	}
	denominator := new(uint256.Int).Sub(numerator1, product)
	next, err := MulDivRoundingUp(numerator1, sqrtPX96, denominator)
	if err != nil {
		return nil, err
	}
	return ToUint160(next)
}

// GetNextSqrtPriceFromAmount1RoundingDown returns the price after adding or
// removing amount of token1, rounded down.
func GetNextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amount *uint256.Int, add bool) (*uint256.Int, error) {
	if add {
		var quotient *uint256.Int
		if !amount.Gt(MaxUint160) {
			quotient = new(uint256.Int).Lsh(amount, Resolution96)
			quotient.Div(quotient, liquidity)
		} else {
			var err error
			quotient, err = MulDiv(amount, Q96, liquidity)
			if err != nil {
				return nil, err
			}
		}
		next, err := CheckedAdd(sqrtPX96, quotient)
		if err != nil {
			return nil, err
		}
		return ToUint160(next)
	}

	var quotient *uint256.Int
	if !amount.Gt(MaxUint160) {
		quotient = DivRoundingUp(new(uint256.Int).Lsh(amount, Resolution96), liquidity)
	} else {
		var err error
		quotient, err = MulDivRoundingUp(amount, Q96, liquidity)
		if err != nil {
			return nil, err
		}
	}
	if !sqrtPX96.Gt(quotient) {
		return nil, ErrPriceUnderflow
	}
	return new(uint256.Int).Sub(sqrtPX96, quotient), nil
}

// GetNextSqrtPriceFromInput returns the price after spending amountIn of the
// input token in the given direction.
func GetNextSqrtPriceFromInput(sqrtPX96, liquidity, amountIn *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if sqrtPX96.IsZero() {
		return nil, ErrPriceZero
	}
	if liquidity.IsZero() {
		return nil, ErrLiquidityZero
	}
	if zeroForOne {
		return GetNextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amountIn, true)
	}
	return GetNextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amountIn, true)
}

// GetNextSqrtPriceFromOutput returns the price after withdrawing amountOut of
// the output token in the given direction.
func GetNextSqrtPriceFromOutput(sqrtPX96, liquidity, amountOut *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if sqrtPX96.IsZero() {
		return nil, ErrPriceZero
	}
	if liquidity.IsZero() {
		return nil, ErrLiquidityZero
	}
	if zeroForOne {
		return GetNextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amountOut, false)
	}
	return GetNextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amountOut, false)
}

// GetAmount0Delta returns the token0 amount covering the price range
// [sqrtRatioA, sqrtRatioB] at the given liquidity.
func GetAmount0Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	if sqrtRatioAX96.Gt(sqrtRatioBX96) {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	if sqrtRatioAX96.IsZero() {
		return nil, ErrPriceZero
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, Resolution96)
	numerator2 := new(uint256.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)

	if roundUp {
		z, err := MulDivRoundingUp(numerator1, numerator2, sqrtRatioBX96)
		if err != nil {
			return nil, err
		}
		return DivRoundingUp(z, sqrtRatioAX96), nil
	}
	z, err := MulDiv(numerator1, numerator2, sqrtRatioBX96)
	if err != nil {
		return nil, err
	}
	return z.Div(z, sqrtRatioAX96), nil
}

// GetAmount1Delta returns the token1 amount covering the price range
// [sqrtRatioA, sqrtRatioB] at the given liquidity.
func GetAmount1Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	if sqrtRatioAX96.Gt(sqrtRatioBX96) {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	diff := new(uint256.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)
	if roundUp {
		return MulDivRoundingUp(liquidity, diff, Q96)
	}
	return MulDiv(liquidity, diff, Q96)
}

// GetAmount0DeltaSigned is GetAmount0Delta for a signed liquidity delta,
// returning a signed amount. Liquidity removal rounds down, addition rounds
// up.
func GetAmount0DeltaSigned(sqrtRatioAX96, sqrtRatioBX96, liquidity *uint256.Int) (*uint256.Int, error) {
	if liquidity.Sign() < 0 {
		z, err := GetAmount0Delta(sqrtRatioAX96, sqrtRatioBX96, Neg(liquidity), false)
		if err != nil {
			return nil, err
		}
		return Neg(z), nil
	}
	z, err := GetAmount0Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity, true)
	if err != nil {
		return nil, err
	}
	return ToInt256(z)
}

// GetAmount1DeltaSigned mirrors GetAmount0DeltaSigned for token1.
func GetAmount1DeltaSigned(sqrtRatioAX96, sqrtRatioBX96, liquidity *uint256.Int) (*uint256.Int, error) {
	if liquidity.Sign() < 0 {
		z, err := GetAmount1Delta(sqrtRatioAX96, sqrtRatioBX96, Neg(liquidity), false)
		if err != nil {
			return nil, err
		}
		return Neg(z), nil
	}
	z, err := GetAmount1Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity, true)
	if err != nil {
		return nil, err
	}
	return ToInt256(z)
}
