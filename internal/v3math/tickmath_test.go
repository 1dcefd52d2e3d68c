package v3math

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestGetSqrtRatioAtTickBounds(t *testing.T) {
	min, err := GetSqrtRatioAtTick(MinTick)
	require.NoError(t, err)
	require.Equal(t, MinSqrtRatio.Hex(), min.Hex())

	max, err := GetSqrtRatioAtTick(MaxTick)
	require.NoError(t, err)
	require.Equal(t, MaxSqrtRatio.Hex(), max.Hex())

	zero, err := GetSqrtRatioAtTick(0)
	require.NoError(t, err)
	require.Equal(t, Q96.Hex(), zero.Hex())

	_, err = GetSqrtRatioAtTick(MaxTick + 1)
	require.ErrorIs(t, err, ErrTickOutOfRange)
	_, err = GetSqrtRatioAtTick(MinTick - 1)
	require.ErrorIs(t, err, ErrTickOutOfRange)
}

func TestGetSqrtRatioAtTickMonotonic(t *testing.T) {
	ticks := []int{MinTick, -500000, -887, -60, -1, 0, 1, 60, 887, 500000, MaxTick}
	var prev *uint256.Int
	for _, tick := range ticks {
		ratio, err := GetSqrtRatioAtTick(tick)
		require.NoError(t, err)
		if prev != nil {
			require.True(t, prev.Lt(ratio), "ratio must grow with the tick, tick=%d", tick)
		}
		prev = ratio
	}
}

func TestGetTickAtSqrtRatioBounds(t *testing.T) {
	tick, err := GetTickAtSqrtRatio(MinSqrtRatio)
	require.NoError(t, err)
	require.Equal(t, MinTick, tick)

	// The maximum ratio itself is excluded.
	_, err = GetTickAtSqrtRatio(MaxSqrtRatio)
	require.ErrorIs(t, err, ErrSqrtRatioOutOfRange)

	justBelow := new(uint256.Int).Sub(MaxSqrtRatio, uint256.NewInt(1))
	tick, err = GetTickAtSqrtRatio(justBelow)
	require.NoError(t, err)
	require.Equal(t, MaxTick-1, tick)

	_, err = GetTickAtSqrtRatio(new(uint256.Int).Sub(MinSqrtRatio, uint256.NewInt(1)))
	require.ErrorIs(t, err, ErrSqrtRatioOutOfRange)
}

func TestTickRoundTrip(t *testing.T) {
	ticks := []int{MinTick, -887272 + 1, -100000, -60, -1, 0, 1, 60, 12345, 100000, MaxTick - 1}
	for _, tick := range ticks {
		ratio, err := GetSqrtRatioAtTick(tick)
		require.NoError(t, err)
		got, err := GetTickAtSqrtRatio(ratio)
		require.NoError(t, err)
		require.Equal(t, tick, got, "round trip at tick %d", tick)
	}
}

func TestGetTickAtSqrtRatioBetweenTicks(t *testing.T) {
	// A price strictly between tick 60 and 61 resolves to 60.
	at60, err := GetSqrtRatioAtTick(60)
	require.NoError(t, err)
	at61, err := GetSqrtRatioAtTick(61)
	require.NoError(t, err)

	mid := new(uint256.Int).Add(at60, at61)
	mid.Rsh(mid, 1)
	tick, err := GetTickAtSqrtRatio(mid)
	require.NoError(t, err)
	require.Equal(t, 60, tick)
}
