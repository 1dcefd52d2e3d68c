package v3math

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestComputeSwapStepReachesTarget(t *testing.T) {
	// Plenty of input: the step stops exactly at the target price.
	step, err := ComputeSwapStep(priceX96, priceX96Dbl, liq1024, FromInt64(1<<20), 0)
	require.NoError(t, err)
	require.Equal(t, priceX96Dbl.Hex(), step.SqrtRatioNextX96.Hex())
	require.Equal(t, uint64(1024), step.AmountIn.Uint64())
	require.Equal(t, uint64(512), step.AmountOut.Uint64())
	require.True(t, step.FeeAmount.IsZero())
}

func TestComputeSwapStepExhaustsInput(t *testing.T) {
	liquidity := uint256.NewInt(1_000_000)
	target, err := GetSqrtRatioAtTick(-60)
	require.NoError(t, err)

	step, err := ComputeSwapStep(priceX96, target, liquidity, FromInt64(1000), 3000)
	require.NoError(t, err)

	// Target not reached: price stays strictly between target and current.
	require.True(t, step.SqrtRatioNextX96.Gt(target))
	require.True(t, step.SqrtRatioNextX96.Lt(priceX96))

	// The whole remaining amount splits into input and fee.
	total := new(uint256.Int).Add(step.AmountIn, step.FeeAmount)
	require.Equal(t, uint64(1000), total.Uint64())
	require.False(t, step.FeeAmount.IsZero())
	require.True(t, step.AmountOut.Uint64() > 0)
	require.True(t, step.AmountOut.Uint64() < 1000)
}

func TestComputeSwapStepExactOut(t *testing.T) {
	step, err := ComputeSwapStep(priceX96, priceX96Half, liq1024, FromInt64(-512), 0)
	require.NoError(t, err)
	require.Equal(t, priceX96Half.Hex(), step.SqrtRatioNextX96.Hex())
	require.Equal(t, uint64(512), step.AmountOut.Uint64())
	require.Equal(t, uint64(1024), step.AmountIn.Uint64())
	require.True(t, step.FeeAmount.IsZero())
}

func TestComputeSwapStepExactOutCapped(t *testing.T) {
	// Wanting more than the range holds caps the output at the target.
	step, err := ComputeSwapStep(priceX96, priceX96Half, liq1024, FromInt64(-100000), 3000)
	require.NoError(t, err)
	require.Equal(t, priceX96Half.Hex(), step.SqrtRatioNextX96.Hex())
	require.Equal(t, uint64(512), step.AmountOut.Uint64())
	require.False(t, step.FeeAmount.IsZero())
}
