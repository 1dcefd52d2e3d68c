package v3math

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// Sqrt prices for spot prices of 1.0, 0.25 and 4.0.
var (
	priceX96     = Q96.Clone()
	priceX96Half = new(uint256.Int).Rsh(Q96, 1)
	priceX96Dbl  = new(uint256.Int).Lsh(Q96, 1)
	liq1024      = uint256.NewInt(1024)
)

func TestGetNextSqrtPriceFromInput(t *testing.T) {
	t.Run("zero amount keeps price", func(t *testing.T) {
		next, err := GetNextSqrtPriceFromInput(priceX96, liq1024, uint256.NewInt(0), true)
		require.NoError(t, err)
		require.Equal(t, priceX96.Hex(), next.Hex())
	})

	t.Run("token1 in moves price up", func(t *testing.T) {
		next, err := GetNextSqrtPriceFromInput(priceX96, liq1024, uint256.NewInt(1024), false)
		require.NoError(t, err)
		require.Equal(t, priceX96Dbl.Hex(), next.Hex())
	})

	t.Run("token0 in moves price down", func(t *testing.T) {
		next, err := GetNextSqrtPriceFromInput(priceX96, liq1024, uint256.NewInt(1024), true)
		require.NoError(t, err)
		require.Equal(t, priceX96Half.Hex(), next.Hex())
	})

	t.Run("rejects zero price or liquidity", func(t *testing.T) {
		_, err := GetNextSqrtPriceFromInput(uint256.NewInt(0), liq1024, uint256.NewInt(1), true)
		require.ErrorIs(t, err, ErrPriceZero)
		_, err = GetNextSqrtPriceFromInput(priceX96, uint256.NewInt(0), uint256.NewInt(1), true)
		require.ErrorIs(t, err, ErrLiquidityZero)
	})
}

func TestGetNextSqrtPriceFromOutput(t *testing.T) {
	t.Run("token1 out moves price down", func(t *testing.T) {
		next, err := GetNextSqrtPriceFromOutput(priceX96Dbl, liq1024, uint256.NewInt(1024), true)
		require.NoError(t, err)
		require.Equal(t, priceX96.Hex(), next.Hex())
	})

	t.Run("excessive token1 out underflows", func(t *testing.T) {
		_, err := GetNextSqrtPriceFromOutput(priceX96, liq1024, uint256.NewInt(1<<20), true)
		require.ErrorIs(t, err, ErrPriceUnderflow)
	})
}

func TestGetAmount0Delta(t *testing.T) {
	amount, err := GetAmount0Delta(priceX96, priceX96Dbl, uint256.NewInt(1000), false)
	require.NoError(t, err)
	require.Equal(t, uint64(500), amount.Uint64())

	// Rounding directions differ by exactly one on a non-exact quotient.
	down, err := GetAmount0Delta(priceX96, priceX96Dbl, uint256.NewInt(1001), false)
	require.NoError(t, err)
	up, err := GetAmount0Delta(priceX96, priceX96Dbl, uint256.NewInt(1001), true)
	require.NoError(t, err)
	require.Equal(t, uint64(500), down.Uint64())
	require.Equal(t, uint64(501), up.Uint64())
}

func TestGetAmount1Delta(t *testing.T) {
	amount, err := GetAmount1Delta(priceX96, priceX96Dbl, uint256.NewInt(1000), false)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), amount.Uint64())
}

func TestSignedAmountDeltas(t *testing.T) {
	pos, err := GetAmount1DeltaSigned(priceX96, priceX96Dbl, FromInt64(1000))
	require.NoError(t, err)
	require.True(t, pos.Sign() > 0)

	neg, err := GetAmount1DeltaSigned(priceX96, priceX96Dbl, FromInt64(-1000))
	require.NoError(t, err)
	require.True(t, neg.Sign() < 0)

	// Removal rounds down, addition rounds up, so |neg| <= pos.
	require.False(t, Abs(neg).Gt(pos))
}
