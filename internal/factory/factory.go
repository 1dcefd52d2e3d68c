// Package factory tracks the pool registry and the enabled fee tiers.
package factory

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"poolmirror/internal/model"
	"poolmirror/internal/pool"
	"poolmirror/internal/state"
)

var (
	ErrIdenticalTokens    = errors.New("identical tokens")
	ErrFeeNotEnabled      = errors.New("fee tier not enabled")
	ErrPoolExists         = errors.New("pool already exists")
	ErrFeeTooHigh         = errors.New("fee too high")
	ErrInvalidTickSpacing = errors.New("invalid tick spacing")
	ErrFeeAmountExists    = errors.New("fee amount already enabled")
	ErrZeroAddress        = errors.New("zero token address")
)

// Factory creates pools and manages fee tiers.
type Factory struct {
	st    state.Store
	log   *zap.Logger
	owner string
}

func New(st state.Store, log *zap.Logger, owner string) *Factory {
	return &Factory{st: st, log: log, owner: model.NormalizeAddress(owner)}
}

// Owner returns the factory owner address.
func (f *Factory) Owner() string { return f.owner }

// EnsureDefaultFeeAmounts enables the standard fee tiers if they are not
// already present.
func (f *Factory) EnsureDefaultFeeAmounts(ctx context.Context) error {
	defaults := []model.FeeAmount{
		{Fee: 500, TickSpacing: 10},
		{Fee: 3000, TickSpacing: 60},
		{Fee: 10000, TickSpacing: 200},
	}
	for _, fa := range defaults {
		existing, err := f.st.FeeAmounts().Get(ctx, fa.Fee)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if err := f.st.FeeAmounts().Save(ctx, &fa); err != nil {
			return err
		}
	}
	return nil
}

// EnableFeeAmount registers a new fee tier.
func (f *Factory) EnableFeeAmount(ctx context.Context, fee uint32, tickSpacing int32) error {
	if fee >= 1_000_000 {
		return fmt.Errorf("%w: %d", ErrFeeTooHigh, fee)
	}
	if tickSpacing <= 0 || tickSpacing >= 16384 {
		return fmt.Errorf("%w: %d", ErrInvalidTickSpacing, tickSpacing)
	}
	existing, err := f.st.FeeAmounts().Get(ctx, fee)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %d", ErrFeeAmountExists, fee)
	}
	if err := f.st.FeeAmounts().Save(ctx, &model.FeeAmount{Fee: fee, TickSpacing: tickSpacing}); err != nil {
		return err
	}
	f.log.Info("fee amount enabled",
		zap.Uint32("fee", fee),
		zap.Int32("tick_spacing", tickSpacing),
	)
	return nil
}

// CreatePool registers a pool row and its slot for a token pair and fee
// tier. Token order does not matter; the pair is stored canonically.
func (f *Factory) CreatePool(ctx context.Context, blockNumber uint64, tokenA, tokenB string, fee uint32) (*model.Pool, error) {
	token0, token1 := model.SortTokens(tokenA, tokenB)
	if token0 == token1 {
		return nil, ErrIdenticalTokens
	}
	if common.HexToAddress(token0) == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	fa, err := f.st.FeeAmounts().Get(ctx, fee)
	if err != nil {
		return nil, err
	}
	if fa == nil {
		return nil, fmt.Errorf("%w: %d", ErrFeeNotEnabled, fee)
	}

	id := model.PoolID(token0, token1, fee)
	existing, err := f.st.Pools().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrPoolExists, id)
	}

	row := &model.Pool{
		ID:                  id,
		Address:             id,
		Owner:               f.owner,
		Token0:              token0,
		Token1:              token1,
		Fee:                 fee,
		TickSpacing:         fa.TickSpacing,
		MaxLiquidityPerTick: pool.TickSpacingToMaxLiquidityPerTick(fa.TickSpacing),
		Liquidity:           new(uint256.Int),
		ProtocolFeesToken0:  new(uint256.Int),
		ProtocolFeesToken1:  new(uint256.Int),
		CreatedBlock:        blockNumber,
	}
	if err := f.st.Pools().Save(ctx, row); err != nil {
		return nil, err
	}
	if err := f.st.Slots().Save(ctx, &model.Slot{PoolID: id, SqrtPriceX96: new(uint256.Int)}); err != nil {
		return nil, err
	}

	f.log.Info("pool created",
		zap.String("pool", id),
		zap.String("token0", token0),
		zap.String("token1", token1),
		zap.Uint32("fee", fee),
		zap.Uint64("block", blockNumber),
	)
	return row, nil
}

// GetPool looks up a pool by unordered token pair and fee. Returns nil when
// the pool does not exist.
func (f *Factory) GetPool(ctx context.Context, tokenA, tokenB string, fee uint32) (*model.Pool, error) {
	token0, token1 := model.SortTokens(tokenA, tokenB)
	return f.st.Pools().Get(ctx, model.PoolID(token0, token1, fee))
}

// PoolCount returns the number of registered pools.
func (f *Factory) PoolCount(ctx context.Context) (int64, error) {
	return f.st.Pools().Count(ctx)
}
