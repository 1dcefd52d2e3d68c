package model

import "github.com/holiman/uint256"

// Observation is one slot of a pool's oracle ring buffer.
type Observation struct {
	PoolID                            string       `json:"pool_id"`
	Index                             uint16       `json:"index"`
	BlockTimestamp                    uint32       `json:"block_timestamp"`
	TickCumulative                    int64        `json:"tick_cumulative"`
	SecondsPerLiquidityCumulativeX128 *uint256.Int `json:"seconds_per_liquidity_cumulative_x128"`
	Initialized                       bool         `json:"initialized"`
}

func (o *Observation) Clone() *Observation {
	c := *o
	c.SecondsPerLiquidityCumulativeX128 = cloneU(o.SecondsPerLiquidityCumulativeX128)
	return &c
}
