// Package manager keeps the logical position ledger on top of the pool
// engines, mirroring how positions are tracked by token id rather than by
// owner and range.
package manager

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"poolmirror/internal/factory"
	"poolmirror/internal/model"
	"poolmirror/internal/pool"
	"poolmirror/internal/state"
	"poolmirror/internal/v3math"
)

var (
	ErrPositionNotFound = errors.New("position not found")
	ErrPoolNotFound     = errors.New("pool not found")
	ErrPriceSlippage    = errors.New("price slippage check")
	ErrNotCleared       = errors.New("not cleared")
	ErrCollectNothing   = errors.New("must collect at least one token")
	ErrInsufficient     = errors.New("insufficient liquidity")
)

// tokenIDCounter names the checkpoint row holding the last issued token id.
const tokenIDCounter = "position_token_id"

// Manager owns the pool-side positions it opens, so every pool position is
// keyed by the manager address and the tick range.
type Manager struct {
	st   state.Store
	log  *zap.Logger
	fac  *factory.Factory
	addr string
	blk  pool.BlockContext
}

func New(st state.Store, log *zap.Logger, fac *factory.Factory, addr string, blk pool.BlockContext) *Manager {
	return &Manager{st: st, log: log, fac: fac, addr: model.NormalizeAddress(addr), blk: blk}
}

// Address returns the manager's nominal owner address.
func (m *Manager) Address() string { return m.addr }

func (m *Manager) engine(poolID string) *pool.Pool {
	return pool.New(m.st, m.log, poolID, m.blk)
}

func (m *Manager) nextTokenID(ctx context.Context) (uint64, error) {
	last, _, err := m.st.LoadCheckpoint(ctx, tokenIDCounter)
	if err != nil {
		return 0, err
	}
	next := last + 1
	if err := m.st.SaveCheckpoint(ctx, tokenIDCounter, next); err != nil {
		return 0, err
	}
	return next, nil
}

// CreateAndInitializePoolIfNecessary creates the pool if it is missing and
// sets the starting price if it has none. Idempotent otherwise.
func (m *Manager) CreateAndInitializePoolIfNecessary(ctx context.Context, tokenA, tokenB string, fee uint32, sqrtPriceX96 *uint256.Int) (*model.Pool, error) {
	row, err := m.fac.GetPool(ctx, tokenA, tokenB, fee)
	if err != nil {
		return nil, err
	}
	if row == nil {
		row, err = m.fac.CreatePool(ctx, m.blk.Number, tokenA, tokenB, fee)
		if err != nil {
			return nil, err
		}
		if err := m.engine(row.ID).Initialize(ctx, sqrtPriceX96); err != nil {
			return nil, err
		}
		return row, nil
	}
	slot, err := m.st.Slots().Get(ctx, row.ID)
	if err != nil {
		return nil, err
	}
	if slot != nil && (slot.SqrtPriceX96 == nil || slot.SqrtPriceX96.IsZero()) {
		if err := m.engine(row.ID).Initialize(ctx, sqrtPriceX96); err != nil {
			return nil, err
		}
	}
	return row, nil
}

// addLiquidity converts desired token amounts into a liquidity figure at the
// current price and mints it on the pool.
func (m *Manager) addLiquidity(ctx context.Context, poolRow *model.Pool, tickLower, tickUpper int32, amount0Desired, amount1Desired, amount0Min, amount1Min *uint256.Int) (*uint256.Int, *uint256.Int, *uint256.Int, error) {
	slot, err := m.st.Slots().Get(ctx, poolRow.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	if slot == nil || slot.SqrtPriceX96 == nil || slot.SqrtPriceX96.IsZero() {
		return nil, nil, nil, fmt.Errorf("%w: %s not initialized", ErrPoolNotFound, poolRow.ID)
	}
	sqrtRatioLower, err := v3math.GetSqrtRatioAtTick(int(tickLower))
	if err != nil {
		return nil, nil, nil, err
	}
	sqrtRatioUpper, err := v3math.GetSqrtRatioAtTick(int(tickUpper))
	if err != nil {
		return nil, nil, nil, err
	}
	liquidity, err := v3math.GetLiquidityForAmounts(slot.SqrtPriceX96, sqrtRatioLower, sqrtRatioUpper, amount0Desired, amount1Desired)
	if err != nil {
		return nil, nil, nil, err
	}

	amount0, amount1, err := m.engine(poolRow.ID).Mint(ctx, m.addr, tickLower, tickUpper, liquidity)
	if err != nil {
		return nil, nil, nil, err
	}
	if (amount0Min != nil && amount0.Lt(amount0Min)) || (amount1Min != nil && amount1.Lt(amount1Min)) {
		return nil, nil, nil, ErrPriceSlippage
	}
	return liquidity, amount0, amount1, nil
}

// positionInfo fetches the pool-side record backing a managed position.
func (m *Manager) positionInfo(ctx context.Context, pos *model.Position) (*model.PositionInfo, error) {
	info, err := m.st.PositionInfos().Get(ctx, model.PositionInfoID(pos.PoolID, m.addr, pos.TickLower, pos.TickUpper))
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("%w: pool record for token %d", ErrPositionNotFound, pos.TokenID)
	}
	return info, nil
}

// settleFees folds fee growth accrued since the last snapshot into the
// position's owed balances. Uses the pre-change liquidity.
func settleFees(pos *model.Position, info *model.PositionInfo) error {
	diff0 := v3math.WrappingSub(info.FeeGrowthInside0LastX128, pos.FeeGrowthInside0LastX128)
	diff1 := v3math.WrappingSub(info.FeeGrowthInside1LastX128, pos.FeeGrowthInside1LastX128)
	owed0, err := v3math.MulDiv(diff0, pos.Liquidity, v3math.Q128)
	if err != nil {
		return err
	}
	owed1, err := v3math.MulDiv(diff1, pos.Liquidity, v3math.Q128)
	if err != nil {
		return err
	}
	pos.TokensOwed0 = new(uint256.Int).Add(pos.TokensOwed0, owed0)
	pos.TokensOwed1 = new(uint256.Int).Add(pos.TokensOwed1, owed1)
	pos.FeeGrowthInside0LastX128 = info.FeeGrowthInside0LastX128.Clone()
	pos.FeeGrowthInside1LastX128 = info.FeeGrowthInside1LastX128.Clone()
	return nil
}

type MintParams struct {
	Token0         string
	Token1         string
	Fee            uint32
	TickLower      int32
	TickUpper      int32
	Amount0Desired *uint256.Int
	Amount1Desired *uint256.Int
	Amount0Min     *uint256.Int
	Amount1Min     *uint256.Int
	Recipient      string
}

// Mint opens a new managed position and returns it with the token amounts
// deposited.
func (m *Manager) Mint(ctx context.Context, params MintParams) (*model.Position, *uint256.Int, *uint256.Int, error) {
	poolRow, err := m.fac.GetPool(ctx, params.Token0, params.Token1, params.Fee)
	if err != nil {
		return nil, nil, nil, err
	}
	if poolRow == nil {
		return nil, nil, nil, fmt.Errorf("%w: %s/%s fee %d", ErrPoolNotFound, params.Token0, params.Token1, params.Fee)
	}

	liquidity, amount0, amount1, err := m.addLiquidity(ctx, poolRow, params.TickLower, params.TickUpper, params.Amount0Desired, params.Amount1Desired, params.Amount0Min, params.Amount1Min)
	if err != nil {
		return nil, nil, nil, err
	}

	info, err := m.st.PositionInfos().Get(ctx, model.PositionInfoID(poolRow.ID, m.addr, params.TickLower, params.TickUpper))
	if err != nil {
		return nil, nil, nil, err
	}
	if info == nil {
		return nil, nil, nil, fmt.Errorf("%w: pool record missing after mint", ErrPositionNotFound)
	}

	tokenID, err := m.nextTokenID(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	pos := &model.Position{
		ID:                       strconv.FormatUint(tokenID, 10),
		TokenID:                  tokenID,
		Owner:                    model.NormalizeAddress(params.Recipient),
		PoolID:                   poolRow.ID,
		TickLower:                params.TickLower,
		TickUpper:                params.TickUpper,
		Liquidity:                liquidity.Clone(),
		FeeGrowthInside0LastX128: info.FeeGrowthInside0LastX128.Clone(),
		FeeGrowthInside1LastX128: info.FeeGrowthInside1LastX128.Clone(),
		TokensOwed0:              new(uint256.Int),
		TokensOwed1:              new(uint256.Int),
	}
	if err := m.st.Positions().Save(ctx, pos); err != nil {
		return nil, nil, nil, err
	}
	m.log.Info("position minted",
		zap.Uint64("token_id", tokenID),
		zap.String("pool", poolRow.ID),
		zap.Int32("tick_lower", params.TickLower),
		zap.Int32("tick_upper", params.TickUpper),
	)
	return pos, amount0, amount1, nil
}

func (m *Manager) position(ctx context.Context, tokenID uint64) (*model.Position, error) {
	pos, err := m.st.Positions().GetByTokenID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if pos == nil || pos.Burned {
		return nil, fmt.Errorf("%w: token %d", ErrPositionNotFound, tokenID)
	}
	return pos, nil
}

// IncreaseLiquidity adds to an existing position, settling accrued fees
// before the liquidity changes.
func (m *Manager) IncreaseLiquidity(ctx context.Context, tokenID uint64, amount0Desired, amount1Desired, amount0Min, amount1Min *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	pos, err := m.position(ctx, tokenID)
	if err != nil {
		return nil, nil, err
	}
	poolRow, err := m.st.Pools().Get(ctx, pos.PoolID)
	if err != nil {
		return nil, nil, err
	}
	if poolRow == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrPoolNotFound, pos.PoolID)
	}

	liquidity, amount0, amount1, err := m.addLiquidity(ctx, poolRow, pos.TickLower, pos.TickUpper, amount0Desired, amount1Desired, amount0Min, amount1Min)
	if err != nil {
		return nil, nil, err
	}
	info, err := m.positionInfo(ctx, pos)
	if err != nil {
		return nil, nil, err
	}
	if err := settleFees(pos, info); err != nil {
		return nil, nil, err
	}
	pos.Liquidity = new(uint256.Int).Add(pos.Liquidity, liquidity)
	if err := m.st.Positions().Save(ctx, pos); err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// DecreaseLiquidity burns part of a position's liquidity, crediting the
// amounts and any accrued fees to the position's owed balances.
func (m *Manager) DecreaseLiquidity(ctx context.Context, tokenID uint64, liquidity, amount0Min, amount1Min *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if liquidity.IsZero() {
		return nil, nil, fmt.Errorf("%w: zero liquidity", ErrInsufficient)
	}
	pos, err := m.position(ctx, tokenID)
	if err != nil {
		return nil, nil, err
	}
	if pos.Liquidity.Lt(liquidity) {
		return nil, nil, fmt.Errorf("%w: token %d holds %s", ErrInsufficient, tokenID, pos.Liquidity.Dec())
	}

	amount0, amount1, err := m.engine(pos.PoolID).Burn(ctx, m.addr, pos.TickLower, pos.TickUpper, liquidity)
	if err != nil {
		return nil, nil, err
	}
	if (amount0Min != nil && amount0.Lt(amount0Min)) || (amount1Min != nil && amount1.Lt(amount1Min)) {
		return nil, nil, ErrPriceSlippage
	}

	info, err := m.positionInfo(ctx, pos)
	if err != nil {
		return nil, nil, err
	}
	if err := settleFees(pos, info); err != nil {
		return nil, nil, err
	}
	pos.TokensOwed0 = new(uint256.Int).Add(pos.TokensOwed0, amount0)
	pos.TokensOwed1 = new(uint256.Int).Add(pos.TokensOwed1, amount1)
	pos.Liquidity = new(uint256.Int).Sub(pos.Liquidity, liquidity)
	if err := m.st.Positions().Save(ctx, pos); err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// Collect withdraws owed tokens from a position, poking the pool first so
// pending fees are counted.
func (m *Manager) Collect(ctx context.Context, tokenID uint64, recipient string, amount0Max, amount1Max *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if amount0Max.IsZero() && amount1Max.IsZero() {
		return nil, nil, ErrCollectNothing
	}
	pos, err := m.position(ctx, tokenID)
	if err != nil {
		return nil, nil, err
	}
	eng := m.engine(pos.PoolID)

	if !pos.Liquidity.IsZero() {
		// Zero-size burn refreshes the fee growth snapshot.
		if _, _, err := eng.Burn(ctx, m.addr, pos.TickLower, pos.TickUpper, new(uint256.Int)); err != nil {
			return nil, nil, err
		}
		info, err := m.positionInfo(ctx, pos)
		if err != nil {
			return nil, nil, err
		}
		if err := settleFees(pos, info); err != nil {
			return nil, nil, err
		}
	}

	amount0 := amount0Max.Clone()
	if amount0.Gt(pos.TokensOwed0) {
		amount0 = pos.TokensOwed0.Clone()
	}
	amount1 := amount1Max.Clone()
	if amount1.Gt(pos.TokensOwed1) {
		amount1 = pos.TokensOwed1.Clone()
	}

	collected0, collected1, err := eng.Collect(ctx, m.addr, pos.TickLower, pos.TickUpper, amount0, amount1)
	if err != nil {
		return nil, nil, err
	}
	pos.TokensOwed0 = new(uint256.Int).Sub(pos.TokensOwed0, collected0)
	pos.TokensOwed1 = new(uint256.Int).Sub(pos.TokensOwed1, collected1)
	if err := m.st.Positions().Save(ctx, pos); err != nil {
		return nil, nil, err
	}
	m.log.Debug("position collected",
		zap.Uint64("token_id", tokenID),
		zap.String("recipient", recipient),
	)
	return collected0, collected1, nil
}

// Burn marks an emptied position as removed.
func (m *Manager) Burn(ctx context.Context, tokenID uint64) error {
	pos, err := m.position(ctx, tokenID)
	if err != nil {
		return err
	}
	if !pos.Liquidity.IsZero() || !pos.TokensOwed0.IsZero() || !pos.TokensOwed1.IsZero() {
		return fmt.Errorf("%w: token %d", ErrNotCleared, tokenID)
	}
	pos.Burned = true
	return m.st.Positions().Save(ctx, pos)
}
