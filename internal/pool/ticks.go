package pool

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"poolmirror/internal/model"
	"poolmirror/internal/v3math"
)

// TickSpacingToMaxLiquidityPerTick returns the liquidity cap per tick such
// that the full tick range cannot overflow uint128.
func TickSpacingToMaxLiquidityPerTick(tickSpacing int32) *uint256.Int {
	spacing := int(tickSpacing)
	minTick := (v3math.MinTick / spacing) * spacing
	maxTick := (v3math.MaxTick / spacing) * spacing
	numTicks := uint64((maxTick-minTick)/spacing) + 1
	return new(uint256.Int).Div(v3math.MaxUint128, uint256.NewInt(numTicks))
}

func (p *Pool) tickOrNew(ctx context.Context, tick int32) (*model.TickInfo, error) {
	info, err := p.st.Ticks().Get(ctx, p.id, tick)
	if err != nil {
		return nil, err
	}
	if info == nil {
		info = &model.TickInfo{
			PoolID:                         p.id,
			Tick:                           tick,
			LiquidityGross:                 new(uint256.Int),
			LiquidityNet:                   new(uint256.Int),
			FeeGrowthOutside0X128:          new(uint256.Int),
			FeeGrowthOutside1X128:          new(uint256.Int),
			SecondsPerLiquidityOutsideX128: new(uint256.Int),
		}
	}
	return info, nil
}

// updateTick applies a liquidity delta to one tick and reports whether the
// tick flipped between initialized and uninitialized.
func (p *Pool) updateTick(
	ctx context.Context,
	tick, tickCurrent int32,
	liquidityDelta *uint256.Int,
	feeGrowthGlobal0X128, feeGrowthGlobal1X128 *uint256.Int,
	secondsPerLiquidityCumulativeX128 *uint256.Int,
	tickCumulative int64,
	time uint32,
	upper bool,
	maxLiquidity *uint256.Int,
) (flipped bool, err error) {
	info, err := p.tickOrNew(ctx, tick)
	if err != nil {
		return false, err
	}

	liquidityGrossBefore := info.LiquidityGross
	liquidityGrossAfter, err := v3math.AddDelta(liquidityGrossBefore, liquidityDelta)
	if err != nil {
		return false, err
	}
	if liquidityGrossAfter.Gt(maxLiquidity) {
		return false, fmt.Errorf("LO")
	}

	flipped = liquidityGrossAfter.IsZero() != liquidityGrossBefore.IsZero()

	if liquidityGrossBefore.IsZero() {
		// Ticks at or below the current tick inherit the running
		// accumulators as their initial "outside" values.
		if tick <= tickCurrent {
			info.FeeGrowthOutside0X128 = feeGrowthGlobal0X128.Clone()
			info.FeeGrowthOutside1X128 = feeGrowthGlobal1X128.Clone()
			info.SecondsPerLiquidityOutsideX128 = secondsPerLiquidityCumulativeX128.Clone()
			info.TickCumulativeOutside = tickCumulative
			info.SecondsOutside = time
		}
		info.Initialized = true
	}

	info.LiquidityGross = liquidityGrossAfter

	net := info.LiquidityNet
	if upper {
		net = new(uint256.Int).Sub(net, liquidityDelta)
	} else {
		net = new(uint256.Int).Add(net, liquidityDelta)
	}
	info.LiquidityNet, err = v3math.ToInt128(net)
	if err != nil {
		return false, err
	}

	if err := p.st.Ticks().Save(ctx, info); err != nil {
		return false, err
	}
	return flipped, nil
}

// crossTick moves the "outside" accumulators of the tick across the current
// price and returns the net liquidity change.
func (p *Pool) crossTick(
	ctx context.Context,
	tick int32,
	feeGrowthGlobal0X128, feeGrowthGlobal1X128 *uint256.Int,
	secondsPerLiquidityCumulativeX128 *uint256.Int,
	tickCumulative int64,
	time uint32,
) (*uint256.Int, error) {
	info, err := p.tickOrNew(ctx, tick)
	if err != nil {
		return nil, err
	}
	info.FeeGrowthOutside0X128 = v3math.WrappingSub(feeGrowthGlobal0X128, info.FeeGrowthOutside0X128)
	info.FeeGrowthOutside1X128 = v3math.WrappingSub(feeGrowthGlobal1X128, info.FeeGrowthOutside1X128)
	info.SecondsPerLiquidityOutsideX128 = v3math.WrappingSub(secondsPerLiquidityCumulativeX128, info.SecondsPerLiquidityOutsideX128)
	info.TickCumulativeOutside = tickCumulative - info.TickCumulativeOutside
	info.SecondsOutside = time - info.SecondsOutside
	if err := p.st.Ticks().Save(ctx, info); err != nil {
		return nil, err
	}
	return info.LiquidityNet, nil
}

func (p *Pool) clearTick(ctx context.Context, tick int32) error {
	return p.st.Ticks().Delete(ctx, p.id, tick)
}

// feeGrowthInside telescopes the global fee growth into the part accumulated
// strictly inside [tickLower, tickUpper]. Differences wrap mod 2^256.
func (p *Pool) feeGrowthInside(
	ctx context.Context,
	tickLower, tickUpper, tickCurrent int32,
	feeGrowthGlobal0X128, feeGrowthGlobal1X128 *uint256.Int,
) (inside0, inside1 *uint256.Int, err error) {
	lower, err := p.tickOrNew(ctx, tickLower)
	if err != nil {
		return nil, nil, err
	}
	upper, err := p.tickOrNew(ctx, tickUpper)
	if err != nil {
		return nil, nil, err
	}

	var below0, below1 *uint256.Int
	if tickCurrent >= tickLower {
		below0 = lower.FeeGrowthOutside0X128
		below1 = lower.FeeGrowthOutside1X128
	} else {
		below0 = v3math.WrappingSub(feeGrowthGlobal0X128, lower.FeeGrowthOutside0X128)
		below1 = v3math.WrappingSub(feeGrowthGlobal1X128, lower.FeeGrowthOutside1X128)
	}

	var above0, above1 *uint256.Int
	if tickCurrent < tickUpper {
		above0 = upper.FeeGrowthOutside0X128
		above1 = upper.FeeGrowthOutside1X128
	} else {
		above0 = v3math.WrappingSub(feeGrowthGlobal0X128, upper.FeeGrowthOutside0X128)
		above1 = v3math.WrappingSub(feeGrowthGlobal1X128, upper.FeeGrowthOutside1X128)
	}

	inside0 = v3math.WrappingSub(v3math.WrappingSub(feeGrowthGlobal0X128, below0), above0)
	inside1 = v3math.WrappingSub(v3math.WrappingSub(feeGrowthGlobal1X128, below1), above1)
	return inside0, inside1, nil
}
