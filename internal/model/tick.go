package model

import "github.com/holiman/uint256"

// TickInfo is the per-tick accounting row of a pool. LiquidityNet is a
// two's-complement int128.
type TickInfo struct {
	PoolID                         string       `json:"pool_id"`
	Tick                           int32        `json:"tick"`
	LiquidityGross                 *uint256.Int `json:"liquidity_gross"`
	LiquidityNet                   *uint256.Int `json:"liquidity_net"`
	FeeGrowthOutside0X128          *uint256.Int `json:"fee_growth_outside0_x128"`
	FeeGrowthOutside1X128          *uint256.Int `json:"fee_growth_outside1_x128"`
	TickCumulativeOutside          int64        `json:"tick_cumulative_outside"`
	SecondsPerLiquidityOutsideX128 *uint256.Int `json:"seconds_per_liquidity_outside_x128"`
	SecondsOutside                 uint32       `json:"seconds_outside"`
	Initialized                    bool         `json:"initialized"`
}

// BitmapWord is one 256-bit word of a pool's initialized-tick bitmap.
type BitmapWord struct {
	PoolID  string       `json:"pool_id"`
	WordPos int16        `json:"word_pos"`
	Word    *uint256.Int `json:"word"`
}

func (t *TickInfo) Clone() *TickInfo {
	c := *t
	c.LiquidityGross = cloneU(t.LiquidityGross)
	c.LiquidityNet = cloneU(t.LiquidityNet)
	c.FeeGrowthOutside0X128 = cloneU(t.FeeGrowthOutside0X128)
	c.FeeGrowthOutside1X128 = cloneU(t.FeeGrowthOutside1X128)
	c.SecondsPerLiquidityOutsideX128 = cloneU(t.SecondsPerLiquidityOutsideX128)
	return &c
}

func (w *BitmapWord) Clone() *BitmapWord {
	c := *w
	c.Word = cloneU(w.Word)
	return &c
}
