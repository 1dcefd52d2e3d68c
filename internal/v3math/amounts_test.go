package v3math

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestGetLiquidityForAmounts(t *testing.T) {
	sqrtLower := Q96.Clone()
	sqrtUpper := new(uint256.Int).Lsh(Q96, 1)
	sqrtMid := new(uint256.Int).Add(sqrtLower, new(uint256.Int).Rsh(Q96, 1))
	amount0 := uint256.NewInt(1000)
	amount1 := uint256.NewInt(1000)

	t.Run("at lower bound only token0 binds", func(t *testing.T) {
		liquidity, err := GetLiquidityForAmounts(sqrtLower, sqrtLower, sqrtUpper, amount0, amount1)
		require.NoError(t, err)
		require.Equal(t, uint64(2000), liquidity.Uint64())
	})

	t.Run("at upper bound only token1 binds", func(t *testing.T) {
		liquidity, err := GetLiquidityForAmounts(sqrtUpper, sqrtLower, sqrtUpper, amount0, amount1)
		require.NoError(t, err)
		require.Equal(t, uint64(1000), liquidity.Uint64())
	})

	t.Run("inside the range the scarcer side binds", func(t *testing.T) {
		liquidity, err := GetLiquidityForAmounts(sqrtMid, sqrtLower, sqrtUpper, amount0, amount1)
		require.NoError(t, err)
		// token0 alone would fund 6000, token1 only 2000.
		require.Equal(t, uint64(2000), liquidity.Uint64())
	})

	t.Run("reversed bounds are sorted", func(t *testing.T) {
		liquidity, err := GetLiquidityForAmounts(sqrtLower, sqrtUpper, sqrtLower, amount0, amount1)
		require.NoError(t, err)
		require.Equal(t, uint64(2000), liquidity.Uint64())
	})
}

func TestGetLiquidityForAmountsClampsToUint128(t *testing.T) {
	sqrtLower := Q96.Clone()
	sqrtUpper := new(uint256.Int).Lsh(Q96, 1)
	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 130)

	_, err := GetLiquidityForAmount1(sqrtLower, sqrtUpper, huge)
	require.ErrorIs(t, err, ErrCastOutOfRange)
}

func TestGetLiquidityForSingleSides(t *testing.T) {
	sqrtLower := Q96.Clone()
	sqrtUpper := new(uint256.Int).Lsh(Q96, 1)

	liquidity0, err := GetLiquidityForAmount0(sqrtLower, sqrtUpper, uint256.NewInt(1000))
	require.NoError(t, err)
	require.Equal(t, uint64(2000), liquidity0.Uint64())

	liquidity1, err := GetLiquidityForAmount1(sqrtLower, sqrtUpper, uint256.NewInt(1000))
	require.NoError(t, err)
	require.Equal(t, uint64(1000), liquidity1.Uint64())
}
