package pool

import (
	"context"
	"errors"

	"github.com/holiman/uint256"

	"poolmirror/internal/model"
	"poolmirror/internal/v3math"
)

// ErrNoPosition is returned when poking a position with no liquidity.
var ErrNoPosition = errors.New("NP")

func (p *Pool) positionOrNew(ctx context.Context, owner string, tickLower, tickUpper int32) (*model.PositionInfo, error) {
	id := model.PositionInfoID(p.id, owner, tickLower, tickUpper)
	info, err := p.st.PositionInfos().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if info == nil {
		info = &model.PositionInfo{
			ID:                       id,
			PoolID:                   p.id,
			Owner:                    model.NormalizeAddress(owner),
			TickLower:                tickLower,
			TickUpper:                tickUpper,
			Liquidity:                new(uint256.Int),
			FeeGrowthInside0LastX128: new(uint256.Int),
			FeeGrowthInside1LastX128: new(uint256.Int),
			TokensOwed0:              new(uint256.Int),
			TokensOwed1:              new(uint256.Int),
		}
	}
	return info, nil
}

// updatePositionInfo credits accrued fees against the inside growth snapshots
// and applies the liquidity delta.
func (p *Pool) updatePositionInfo(ctx context.Context, info *model.PositionInfo, liquidityDelta, feeGrowthInside0X128, feeGrowthInside1X128 *uint256.Int) error {
	var liquidityNext *uint256.Int
	if liquidityDelta.IsZero() {
		if info.Liquidity.IsZero() {
			return ErrNoPosition
		}
		liquidityNext = info.Liquidity
	} else {
		var err error
		liquidityNext, err = v3math.AddDelta(info.Liquidity, liquidityDelta)
		if err != nil {
			return err
		}
	}

	owed0, err := v3math.MulDiv(v3math.WrappingSub(feeGrowthInside0X128, info.FeeGrowthInside0LastX128), info.Liquidity, v3math.Q128)
	if err != nil {
		return err
	}
	owed1, err := v3math.MulDiv(v3math.WrappingSub(feeGrowthInside1X128, info.FeeGrowthInside1LastX128), info.Liquidity, v3math.Q128)
	if err != nil {
		return err
	}

	info.Liquidity = liquidityNext
	info.FeeGrowthInside0LastX128 = feeGrowthInside0X128.Clone()
	info.FeeGrowthInside1LastX128 = feeGrowthInside1X128.Clone()
	info.TokensOwed0 = new(uint256.Int).Add(info.TokensOwed0, owed0)
	info.TokensOwed1 = new(uint256.Int).Add(info.TokensOwed1, owed1)

	return p.st.PositionInfos().Save(ctx, info)
}
