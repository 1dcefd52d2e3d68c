package model

import "github.com/holiman/uint256"

// Pool is the immutable pool record plus its protocol fee balances.
type Pool struct {
	ID                  string       `json:"id"`
	Address             string       `json:"address"`
	Factory             string       `json:"factory"`
	Owner               string       `json:"owner"`
	Token0              string       `json:"token0"`
	Token1              string       `json:"token1"`
	Fee                 uint32       `json:"fee"`
	TickSpacing         int32        `json:"tick_spacing"`
	MaxLiquidityPerTick *uint256.Int `json:"max_liquidity_per_tick"`
	Liquidity           *uint256.Int `json:"liquidity"`
	ProtocolFeesToken0  *uint256.Int `json:"protocol_fees_token0"`
	ProtocolFeesToken1  *uint256.Int `json:"protocol_fees_token1"`
	CreatedBlock        uint64       `json:"created_block"`
}

// Slot is the frequently-mutated head state of a pool.
type Slot struct {
	PoolID                     string       `json:"pool_id"`
	SqrtPriceX96               *uint256.Int `json:"sqrt_price_x96"`
	Tick                       int32        `json:"tick"`
	ObservationIndex           uint16       `json:"observation_index"`
	ObservationCardinality     uint16       `json:"observation_cardinality"`
	ObservationCardinalityNext uint16       `json:"observation_cardinality_next"`
	FeeProtocol                uint8        `json:"fee_protocol"`
	Unlocked                   bool         `json:"unlocked"`
}

func (p *Pool) Clone() *Pool {
	c := *p
	c.MaxLiquidityPerTick = cloneU(p.MaxLiquidityPerTick)
	c.Liquidity = cloneU(p.Liquidity)
	c.ProtocolFeesToken0 = cloneU(p.ProtocolFeesToken0)
	c.ProtocolFeesToken1 = cloneU(p.ProtocolFeesToken1)
	return &c
}

func (s *Slot) Clone() *Slot {
	c := *s
	c.SqrtPriceX96 = cloneU(s.SqrtPriceX96)
	return &c
}

func cloneU(x *uint256.Int) *uint256.Int {
	if x == nil {
		return nil
	}
	return x.Clone()
}
