package v3math

import "github.com/holiman/uint256"

// FeeDenominator is the pip base for fee rates (100% == 1e6 pips).
var FeeDenominator = uint256.NewInt(1_000_000)

// SwapStep is the outcome of advancing a swap as far as one price target
// allows.
type SwapStep struct {
	SqrtRatioNextX96 *uint256.Int
	AmountIn         *uint256.Int
	AmountOut        *uint256.Int
	FeeAmount        *uint256.Int
}

// ComputeSwapStep moves the price from sqrtRatioCurrent toward
// sqrtRatioTarget, bounded by the remaining amount. amountRemaining is
// signed: positive means exact input (fee taken from it), negative means
// exact output. The step never overshoots the target price.
func ComputeSwapStep(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, amountRemaining *uint256.Int, feePips uint64) (SwapStep, error) {
	var (
		step SwapStep
		err  error
	)
	zeroForOne := !sqrtRatioCurrentX96.Lt(sqrtRatioTargetX96)
	exactIn := amountRemaining.Sign() >= 0
	fee := uint256.NewInt(feePips)

	if exactIn {
		feeComplement := new(uint256.Int).Sub(FeeDenominator, fee)
		amountRemainingLessFee, err := MulDiv(amountRemaining, feeComplement, FeeDenominator)
		if err != nil {
			return step, err
		}
		if zeroForOne {
			step.AmountIn, err = GetAmount0Delta(sqrtRatioTargetX96, sqrtRatioCurrentX96, liquidity, true)
		} else {
			step.AmountIn, err = GetAmount1Delta(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, true)
		}
		if err != nil {
			return step, err
		}
		if !amountRemainingLessFee.Lt(step.AmountIn) {
			step.SqrtRatioNextX96 = sqrtRatioTargetX96.Clone()
		} else {
			step.SqrtRatioNextX96, err = GetNextSqrtPriceFromInput(sqrtRatioCurrentX96, liquidity, amountRemainingLessFee, zeroForOne)
			if err != nil {
				return step, err
			}
		}
	} else {
		amountOutWanted := Neg(amountRemaining)
		if zeroForOne {
			step.AmountOut, err = GetAmount1Delta(sqrtRatioTargetX96, sqrtRatioCurrentX96, liquidity, false)
		} else {
			step.AmountOut, err = GetAmount0Delta(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, false)
		}
		if err != nil {
			return step, err
		}
		if !amountOutWanted.Lt(step.AmountOut) {
			step.SqrtRatioNextX96 = sqrtRatioTargetX96.Clone()
		} else {
			step.SqrtRatioNextX96, err = GetNextSqrtPriceFromOutput(sqrtRatioCurrentX96, liquidity, amountOutWanted, zeroForOne)
			if err != nil {
				return step, err
			}
		}
	}

	max := sqrtRatioTargetX96.Eq(step.SqrtRatioNextX96)

	if zeroForOne {
		if !(max && exactIn) {
			step.AmountIn, err = GetAmount0Delta(step.SqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, true)
			if err != nil {
				return step, err
			}
		}
		if !(max && !exactIn) {
			step.AmountOut, err = GetAmount1Delta(step.SqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, false)
			if err != nil {
				return step, err
			}
		}
	} else {
		if !(max && exactIn) {
			step.AmountIn, err = GetAmount1Delta(sqrtRatioCurrentX96, step.SqrtRatioNextX96, liquidity, true)
			if err != nil {
				return step, err
			}
		}
		if !(max && !exactIn) {
			step.AmountOut, err = GetAmount0Delta(sqrtRatioCurrentX96, step.SqrtRatioNextX96, liquidity, false)
			if err != nil {
				return step, err
			}
		}
	}

	if !exactIn {
		wanted := Neg(amountRemaining)
		if step.AmountOut.Gt(wanted) {
			step.AmountOut = wanted
		}
	}

	if exactIn && !step.SqrtRatioNextX96.Eq(sqrtRatioTargetX96) {
		// Input exhausted before the target: whatever is left is the fee.
		step.FeeAmount = new(uint256.Int).Sub(amountRemaining, step.AmountIn)
	} else {
		feeComplement := new(uint256.Int).Sub(FeeDenominator, fee)
		step.FeeAmount, err = MulDivRoundingUp(step.AmountIn, fee, feeComplement)
		if err != nil {
			return step, err
		}
	}
	return step, nil
}
