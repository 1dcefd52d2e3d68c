package model

import "github.com/holiman/uint256"

// PositionInfo is the pool-side ledger entry for one (owner, range) pair.
type PositionInfo struct {
	ID                       string       `json:"id"`
	PoolID                   string       `json:"pool_id"`
	Owner                    string       `json:"owner"`
	TickLower                int32        `json:"tick_lower"`
	TickUpper                int32        `json:"tick_upper"`
	Liquidity                *uint256.Int `json:"liquidity"`
	FeeGrowthInside0LastX128 *uint256.Int `json:"fee_growth_inside0_last_x128"`
	FeeGrowthInside1LastX128 *uint256.Int `json:"fee_growth_inside1_last_x128"`
	TokensOwed0              *uint256.Int `json:"tokens_owed0"`
	TokensOwed1              *uint256.Int `json:"tokens_owed1"`
}

// Position is the manager-side record of a minted position token.
type Position struct {
	ID                       string       `json:"id"`
	TokenID                  uint64       `json:"token_id"`
	Owner                    string       `json:"owner"`
	Operator                 string       `json:"operator"`
	PoolID                   string       `json:"pool_id"`
	TickLower                int32        `json:"tick_lower"`
	TickUpper                int32        `json:"tick_upper"`
	Liquidity                *uint256.Int `json:"liquidity"`
	FeeGrowthInside0LastX128 *uint256.Int `json:"fee_growth_inside0_last_x128"`
	FeeGrowthInside1LastX128 *uint256.Int `json:"fee_growth_inside1_last_x128"`
	TokensOwed0              *uint256.Int `json:"tokens_owed0"`
	TokensOwed1              *uint256.Int `json:"tokens_owed1"`
	Burned                   bool         `json:"burned"`
}

func (p *PositionInfo) Clone() *PositionInfo {
	c := *p
	c.Liquidity = cloneU(p.Liquidity)
	c.FeeGrowthInside0LastX128 = cloneU(p.FeeGrowthInside0LastX128)
	c.FeeGrowthInside1LastX128 = cloneU(p.FeeGrowthInside1LastX128)
	c.TokensOwed0 = cloneU(p.TokensOwed0)
	c.TokensOwed1 = cloneU(p.TokensOwed1)
	return &c
}

func (p *Position) Clone() *Position {
	c := *p
	c.Liquidity = cloneU(p.Liquidity)
	c.FeeGrowthInside0LastX128 = cloneU(p.FeeGrowthInside0LastX128)
	c.FeeGrowthInside1LastX128 = cloneU(p.FeeGrowthInside1LastX128)
	c.TokensOwed0 = cloneU(p.TokensOwed0)
	c.TokensOwed1 = cloneU(p.TokensOwed1)
	return &c
}
