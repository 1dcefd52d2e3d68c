package v3math

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestAddDelta(t *testing.T) {
	z, err := AddDelta(uint256.NewInt(100), FromInt64(50))
	require.NoError(t, err)
	require.Equal(t, uint64(150), z.Uint64())

	z, err = AddDelta(uint256.NewInt(100), FromInt64(-50))
	require.NoError(t, err)
	require.Equal(t, uint64(50), z.Uint64())

	z, err = AddDelta(uint256.NewInt(100), FromInt64(0))
	require.NoError(t, err)
	require.Equal(t, uint64(100), z.Uint64())
}

func TestAddDeltaRoundTrip(t *testing.T) {
	start := uint256.NewInt(123456789)
	delta := FromInt64(987654)

	up, err := AddDelta(start, delta)
	require.NoError(t, err)
	back, err := AddDelta(up, Neg(delta))
	require.NoError(t, err)
	require.Equal(t, start.Hex(), back.Hex())
}

func TestAddDeltaUnderflow(t *testing.T) {
	_, err := AddDelta(uint256.NewInt(100), FromInt64(-101))
	require.ErrorIs(t, err, ErrLiquiditySub)
}

func TestAddDeltaOverflow(t *testing.T) {
	_, err := AddDelta(MaxUint128, FromInt64(1))
	require.ErrorIs(t, err, ErrLiquidityAdd)
}
