package model

import "github.com/holiman/uint256"

// FeeGrowthGlobal is one revision of a pool's global fee growth accumulators.
// Revisions are append-only; the latest revision is the live value.
type FeeGrowthGlobal struct {
	PoolID               string       `json:"pool_id"`
	Revision             uint64       `json:"revision"`
	BlockNumber          uint64       `json:"block_number"`
	BlockTimestamp       uint32       `json:"block_timestamp"`
	FeeGrowthGlobal0X128 *uint256.Int `json:"fee_growth_global0_x128"`
	FeeGrowthGlobal1X128 *uint256.Int `json:"fee_growth_global1_x128"`
}

// FeeAmount is an enabled fee tier.
type FeeAmount struct {
	Fee         uint32 `json:"fee"`
	TickSpacing int32  `json:"tick_spacing"`
}

func (f *FeeGrowthGlobal) Clone() *FeeGrowthGlobal {
	c := *f
	c.FeeGrowthGlobal0X128 = cloneU(f.FeeGrowthGlobal0X128)
	c.FeeGrowthGlobal1X128 = cloneU(f.FeeGrowthGlobal1X128)
	return &c
}
