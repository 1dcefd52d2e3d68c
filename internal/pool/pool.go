package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"poolmirror/internal/model"
	"poolmirror/internal/state"
	"poolmirror/internal/v3math"
)

var (
	ErrAlreadyInitialized = errors.New("AI")
	ErrNotInitialized     = errors.New("pool not initialized")
	ErrLocked             = errors.New("LOK")
	ErrTicksOutOfOrder    = errors.New("TLU")
	ErrTickTooLow         = errors.New("TLM")
	ErrTickTooHigh        = errors.New("TUM")
	ErrZeroAmount         = errors.New("AS")
	ErrPriceLimit         = errors.New("SPL")
	ErrInfiniteLoop       = errors.New("infinite loop detected")
	ErrPoolNotFound       = errors.New("pool not found")
	ErrPositionNotFound   = errors.New("position not found")
	ErrBadFeeProtocol     = errors.New("invalid protocol fee value")
)

// BlockContext pins the engine to the block being replayed. The oracle and
// the fee growth history take their timestamps from it.
type BlockContext struct {
	Number    uint64
	Timestamp uint32
}

// SwapCallback receives the signed swap amounts before they are returned.
// Multi-hop exact-output routing uses it to chain pools.
type SwapCallback func(ctx context.Context, amount0, amount1 *uint256.Int, data []byte) error

// Pool executes state transitions for one pool against a state.Store.
type Pool struct {
	st  state.Store
	log *zap.Logger
	id  string
	blk BlockContext
}

// New binds an engine to a pool id.
func New(st state.Store, log *zap.Logger, id string, blk BlockContext) *Pool {
	return &Pool{st: st, log: log, id: id, blk: blk}
}

// ID returns the pool id the engine is bound to.
func (p *Pool) ID() string { return p.id }

func (p *Pool) loadPool(ctx context.Context) (*model.Pool, error) {
	row, err := p.st.Pools().Get(ctx, p.id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, p.id)
	}
	return row, nil
}

func (p *Pool) loadSlot(ctx context.Context) (*model.Slot, error) {
	slot, err := p.st.Slots().Get(ctx, p.id)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, p.id)
	}
	return slot, nil
}

func (p *Pool) loadFeeGrowth(ctx context.Context) (fg0, fg1 *uint256.Int, revision uint64, err error) {
	latest, err := p.st.FeeGrowth().Latest(ctx, p.id)
	if err != nil {
		return nil, nil, 0, err
	}
	if latest == nil {
		return new(uint256.Int), new(uint256.Int), 0, nil
	}
	return latest.FeeGrowthGlobal0X128, latest.FeeGrowthGlobal1X128, latest.Revision, nil
}

func (p *Pool) appendFeeGrowth(ctx context.Context, revision uint64, fg0, fg1 *uint256.Int) error {
	return p.st.FeeGrowth().Append(ctx, &model.FeeGrowthGlobal{
		PoolID:               p.id,
		Revision:             revision + 1,
		BlockNumber:          p.blk.Number,
		BlockTimestamp:       p.blk.Timestamp,
		FeeGrowthGlobal0X128: fg0.Clone(),
		FeeGrowthGlobal1X128: fg1.Clone(),
	})
}

func checkTicks(tickLower, tickUpper int32) error {
	if tickLower >= tickUpper {
		return ErrTicksOutOfOrder
	}
	if tickLower < v3math.MinTick {
		return ErrTickTooLow
	}
	if tickUpper > v3math.MaxTick {
		return ErrTickTooHigh
	}
	return nil
}

// Initialize sets the starting price and opens the pool.
func (p *Pool) Initialize(ctx context.Context, sqrtPriceX96 *uint256.Int) error {
	slot, err := p.loadSlot(ctx)
	if err != nil {
		return err
	}
	if slot.SqrtPriceX96 != nil && !slot.SqrtPriceX96.IsZero() {
		return ErrAlreadyInitialized
	}
	tick, err := v3math.GetTickAtSqrtRatio(sqrtPriceX96)
	if err != nil {
		return err
	}
	cardinality, cardinalityNext, err := p.oracleInitialize(ctx, p.blk.Timestamp)
	if err != nil {
		return err
	}

	slot.SqrtPriceX96 = sqrtPriceX96.Clone()
	slot.Tick = int32(tick)
	slot.ObservationIndex = 0
	slot.ObservationCardinality = cardinality
	slot.ObservationCardinalityNext = cardinalityNext
	slot.Unlocked = true
	if err := p.st.Slots().Save(ctx, slot); err != nil {
		return err
	}
	p.log.Info("pool initialized",
		zap.String("pool", p.id),
		zap.String("sqrt_price_x96", sqrtPriceX96.Hex()),
		zap.Int("tick", tick),
	)
	return nil
}

// IncreaseObservationCardinalityNext prepares the oracle ring for a larger
// cardinality.
func (p *Pool) IncreaseObservationCardinalityNext(ctx context.Context, next uint16) error {
	slot, err := p.loadSlot(ctx)
	if err != nil {
		return err
	}
	if !slot.Unlocked {
		return ErrLocked
	}
	grown, err := p.oracleGrow(ctx, slot.ObservationCardinalityNext, next)
	if err != nil {
		return err
	}
	if grown != slot.ObservationCardinalityNext {
		slot.ObservationCardinalityNext = grown
		if err := p.st.Slots().Save(ctx, slot); err != nil {
			return err
		}
	}
	return nil
}

// updatePosition maintains the tick ledger, bitmap and position info for a
// liquidity change.
func (p *Pool) updatePosition(ctx context.Context, poolRow *model.Pool, slot *model.Slot, owner string, tickLower, tickUpper int32, liquidityDelta *uint256.Int) (*model.PositionInfo, error) {
	info, err := p.positionOrNew(ctx, owner, tickLower, tickUpper)
	if err != nil {
		return nil, err
	}
	fg0, fg1, _, err := p.loadFeeGrowth(ctx)
	if err != nil {
		return nil, err
	}

	var flippedLower, flippedUpper bool
	if !liquidityDelta.IsZero() {
		tickCumulative, spl, err := p.observeSingle(ctx, p.blk.Timestamp, 0, slot.Tick, slot.ObservationIndex, poolRow.Liquidity, slot.ObservationCardinality)
		if err != nil {
			return nil, err
		}
		flippedLower, err = p.updateTick(ctx, tickLower, slot.Tick, liquidityDelta, fg0, fg1, spl, tickCumulative, p.blk.Timestamp, false, poolRow.MaxLiquidityPerTick)
		if err != nil {
			return nil, err
		}
		flippedUpper, err = p.updateTick(ctx, tickUpper, slot.Tick, liquidityDelta, fg0, fg1, spl, tickCumulative, p.blk.Timestamp, true, poolRow.MaxLiquidityPerTick)
		if err != nil {
			return nil, err
		}
		if flippedLower {
			if err := p.flipTick(ctx, tickLower, poolRow.TickSpacing); err != nil {
				return nil, err
			}
		}
		if flippedUpper {
			if err := p.flipTick(ctx, tickUpper, poolRow.TickSpacing); err != nil {
				return nil, err
			}
		}
	}

	inside0, inside1, err := p.feeGrowthInside(ctx, tickLower, tickUpper, slot.Tick, fg0, fg1)
	if err != nil {
		return nil, err
	}
	if err := p.updatePositionInfo(ctx, info, liquidityDelta, inside0, inside1); err != nil {
		return nil, err
	}

	if liquidityDelta.Sign() < 0 {
		if flippedLower {
			if err := p.clearTick(ctx, tickLower); err != nil {
				return nil, err
			}
		}
		if flippedUpper {
			if err := p.clearTick(ctx, tickUpper); err != nil {
				return nil, err
			}
		}
	}
	return info, nil
}

// modifyPosition applies a signed liquidity delta and returns the signed
// token amounts the change is worth.
func (p *Pool) modifyPosition(ctx context.Context, owner string, tickLower, tickUpper int32, liquidityDelta *uint256.Int) (*model.PositionInfo, *uint256.Int, *uint256.Int, error) {
	if err := checkTicks(tickLower, tickUpper); err != nil {
		return nil, nil, nil, err
	}
	poolRow, err := p.loadPool(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	slot, err := p.loadSlot(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	if slot.SqrtPriceX96 == nil || slot.SqrtPriceX96.IsZero() {
		return nil, nil, nil, ErrNotInitialized
	}

	info, err := p.updatePosition(ctx, poolRow, slot, owner, tickLower, tickUpper, liquidityDelta)
	if err != nil {
		return nil, nil, nil, err
	}

	amount0 := new(uint256.Int)
	amount1 := new(uint256.Int)
	if !liquidityDelta.IsZero() {
		ratioLower, err := v3math.GetSqrtRatioAtTick(int(tickLower))
		if err != nil {
			return nil, nil, nil, err
		}
		ratioUpper, err := v3math.GetSqrtRatioAtTick(int(tickUpper))
		if err != nil {
			return nil, nil, nil, err
		}

		switch {
		case slot.Tick < tickLower:
			// Range entirely above the price: token0 only.
			amount0, err = v3math.GetAmount0DeltaSigned(ratioLower, ratioUpper, liquidityDelta)
			if err != nil {
				return nil, nil, nil, err
			}
		case slot.Tick < tickUpper:
			// Active range also records an oracle entry.
			obsIndex, obsCardinality, err := p.oracleWrite(ctx, slot.ObservationIndex, p.blk.Timestamp, slot.Tick, poolRow.Liquidity, slot.ObservationCardinality, slot.ObservationCardinalityNext)
			if err != nil {
				return nil, nil, nil, err
			}
			slot.ObservationIndex = obsIndex
			slot.ObservationCardinality = obsCardinality

			amount0, err = v3math.GetAmount0DeltaSigned(slot.SqrtPriceX96, ratioUpper, liquidityDelta)
			if err != nil {
				return nil, nil, nil, err
			}
			amount1, err = v3math.GetAmount1DeltaSigned(ratioLower, slot.SqrtPriceX96, liquidityDelta)
			if err != nil {
				return nil, nil, nil, err
			}

			poolRow.Liquidity, err = v3math.AddDelta(poolRow.Liquidity, liquidityDelta)
			if err != nil {
				return nil, nil, nil, err
			}
			if err := p.st.Pools().Save(ctx, poolRow); err != nil {
				return nil, nil, nil, err
			}
			if err := p.st.Slots().Save(ctx, slot); err != nil {
				return nil, nil, nil, err
			}
		default:
			// Range entirely below the price: token1 only.
			amount1, err = v3math.GetAmount1DeltaSigned(ratioLower, ratioUpper, liquidityDelta)
			if err != nil {
				return nil, nil, nil, err
			}
		}
	}
	return info, amount0, amount1, nil
}

// Mint adds liquidity to a range and returns the token amounts it costs.
func (p *Pool) Mint(ctx context.Context, owner string, tickLower, tickUpper int32, amount *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if amount.IsZero() {
		return nil, nil, ErrZeroAmount
	}
	delta, err := v3math.ToInt128(amount)
	if err != nil {
		return nil, nil, err
	}
	_, amount0, amount1, err := p.modifyPosition(ctx, owner, tickLower, tickUpper, delta)
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// Burn removes liquidity from a range and credits the amounts as tokens owed
// on the position.
func (p *Pool) Burn(ctx context.Context, owner string, tickLower, tickUpper int32, amount *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	delta, err := v3math.ToInt128(amount)
	if err != nil {
		return nil, nil, err
	}
	info, amount0Signed, amount1Signed, err := p.modifyPosition(ctx, owner, tickLower, tickUpper, v3math.Neg(delta))
	if err != nil {
		return nil, nil, err
	}

	amount0 := v3math.Abs(amount0Signed)
	amount1 := v3math.Abs(amount1Signed)
	if !amount0.IsZero() || !amount1.IsZero() {
		info.TokensOwed0 = new(uint256.Int).Add(info.TokensOwed0, amount0)
		info.TokensOwed1 = new(uint256.Int).Add(info.TokensOwed1, amount1)
		if err := p.st.PositionInfos().Save(ctx, info); err != nil {
			return nil, nil, err
		}
	}
	return amount0, amount1, nil
}

// Collect withdraws owed tokens from a position, capped at what is owed.
func (p *Pool) Collect(ctx context.Context, owner string, tickLower, tickUpper int32, amount0Requested, amount1Requested *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	id := model.PositionInfoID(p.id, owner, tickLower, tickUpper)
	info, err := p.st.PositionInfos().Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if info == nil {
		return nil, nil, ErrPositionNotFound
	}

	amount0 := amount0Requested.Clone()
	if amount0.Gt(info.TokensOwed0) {
		amount0 = info.TokensOwed0.Clone()
	}
	amount1 := amount1Requested.Clone()
	if amount1.Gt(info.TokensOwed1) {
		amount1 = info.TokensOwed1.Clone()
	}

	info.TokensOwed0 = new(uint256.Int).Sub(info.TokensOwed0, amount0)
	info.TokensOwed1 = new(uint256.Int).Sub(info.TokensOwed1, amount1)
	if err := p.st.PositionInfos().Save(ctx, info); err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

type swapState struct {
	amountSpecifiedRemaining *uint256.Int
	amountCalculated         *uint256.Int
	sqrtPriceX96             *uint256.Int
	tick                     int32
	feeGrowthGlobalX128      *uint256.Int
	protocolFee              *uint256.Int
	liquidity                *uint256.Int
}

// Swap trades along the price curve until the amount is consumed or the
// price limit is hit. amountSpecified is signed: positive for exact input,
// negative for exact output. Returns the signed balance deltas for token0 and
// token1.
func (p *Pool) Swap(ctx context.Context, recipient string, zeroForOne bool, amountSpecified, sqrtPriceLimitX96 *uint256.Int, data []byte, cb SwapCallback) (*uint256.Int, *uint256.Int, error) {
	if amountSpecified.IsZero() {
		return nil, nil, ErrZeroAmount
	}
	poolRow, err := p.loadPool(ctx)
	if err != nil {
		return nil, nil, err
	}
	slot, err := p.loadSlot(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !slot.Unlocked {
		return nil, nil, ErrLocked
	}
	if slot.SqrtPriceX96 == nil || slot.SqrtPriceX96.IsZero() {
		return nil, nil, ErrNotInitialized
	}

	if zeroForOne {
		if !sqrtPriceLimitX96.Lt(slot.SqrtPriceX96) || !sqrtPriceLimitX96.Gt(v3math.MinSqrtRatio) {
			return nil, nil, ErrPriceLimit
		}
	} else {
		if !sqrtPriceLimitX96.Gt(slot.SqrtPriceX96) || !sqrtPriceLimitX96.Lt(v3math.MaxSqrtRatio) {
			return nil, nil, ErrPriceLimit
		}
	}

	slot.Unlocked = false
	if err := p.st.Slots().Save(ctx, slot); err != nil {
		return nil, nil, err
	}

	amount0, amount1, err := p.swapLocked(ctx, poolRow, slot, recipient, zeroForOne, amountSpecified, sqrtPriceLimitX96, data, cb)
	if err != nil {
		// A failed swap rejects only its transaction; the pool must not
		// stay locked for the ones that follow.
		if fresh, loadErr := p.loadSlot(ctx); loadErr == nil && fresh != nil {
			fresh.Unlocked = true
			if saveErr := p.st.Slots().Save(ctx, fresh); saveErr != nil {
				return nil, nil, fmt.Errorf("unlock after failed swap: %w", saveErr)
			}
		}
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// swapLocked runs the step loop and persists the results. The slot arrives
// locked; it is saved with the new price while still locked, the callback
// runs, and only then is the lock released.
func (p *Pool) swapLocked(ctx context.Context, poolRow *model.Pool, slot *model.Slot, recipient string, zeroForOne bool, amountSpecified, sqrtPriceLimitX96 *uint256.Int, data []byte, cb SwapCallback) (*uint256.Int, *uint256.Int, error) {
	exactInput := amountSpecified.Sign() > 0

	var feeProtocol uint8
	if zeroForOne {
		feeProtocol = slot.FeeProtocol % 16
	} else {
		feeProtocol = slot.FeeProtocol >> 4
	}

	fg0, fg1, revision, err := p.loadFeeGrowth(ctx)
	if err != nil {
		return nil, nil, err
	}

	st := swapState{
		amountSpecifiedRemaining: amountSpecified.Clone(),
		amountCalculated:         new(uint256.Int),
		sqrtPriceX96:             slot.SqrtPriceX96.Clone(),
		tick:                     slot.Tick,
		protocolFee:              new(uint256.Int),
		liquidity:                poolRow.Liquidity.Clone(),
	}
	if zeroForOne {
		st.feeGrowthGlobalX128 = fg0.Clone()
	} else {
		st.feeGrowthGlobalX128 = fg1.Clone()
	}

	cacheLiquidityStart := poolRow.Liquidity.Clone()
	cacheTime := p.blk.Timestamp
	var (
		cacheComputedObservation bool
		cacheTickCumulative      int64
		cacheSPL                 *uint256.Int
	)

	// A step that lands on the current tick consumes nothing before the
	// scan restarts from the next word, so a single stalled iteration is
	// normal. Two in a row with no price, tick, or amount progress is not.
	var (
		prevRemaining *uint256.Int
		prevPrice     *uint256.Int
		prevTick      int32
		stalled       bool
	)
	for !st.amountSpecifiedRemaining.IsZero() && !st.sqrtPriceX96.Eq(sqrtPriceLimitX96) {
		if prevRemaining != nil &&
			prevRemaining.Eq(st.amountSpecifiedRemaining) &&
			prevPrice.Eq(st.sqrtPriceX96) &&
			prevTick == st.tick {
			if stalled {
				return nil, nil, fmt.Errorf("%w: pool %s", ErrInfiniteLoop, p.id)
			}
			stalled = true
		} else {
			stalled = false
		}
		prevRemaining = st.amountSpecifiedRemaining.Clone()
		prevPrice = st.sqrtPriceX96.Clone()
		prevTick = st.tick

		sqrtPriceStartX96 := st.sqrtPriceX96.Clone()

		tickNext, initialized, err := p.nextInitializedTickWithinOneWord(ctx, st.tick, poolRow.TickSpacing, zeroForOne)
		if err != nil {
			return nil, nil, err
		}
		if tickNext < v3math.MinTick {
			tickNext = v3math.MinTick
		} else if tickNext > v3math.MaxTick {
			tickNext = v3math.MaxTick
		}
		sqrtPriceNextX96, err := v3math.GetSqrtRatioAtTick(int(tickNext))
		if err != nil {
			return nil, nil, err
		}

		target := sqrtPriceNextX96
		if zeroForOne {
			if sqrtPriceNextX96.Lt(sqrtPriceLimitX96) {
				target = sqrtPriceLimitX96
			}
		} else {
			if sqrtPriceNextX96.Gt(sqrtPriceLimitX96) {
				target = sqrtPriceLimitX96
			}
		}

		step, err := v3math.ComputeSwapStep(st.sqrtPriceX96, target, st.liquidity, st.amountSpecifiedRemaining, uint64(poolRow.Fee))
		if err != nil {
			return nil, nil, err
		}
		st.sqrtPriceX96 = step.SqrtRatioNextX96

		inPlusFee := new(uint256.Int).Add(step.AmountIn, step.FeeAmount)
		if exactInput {
			st.amountSpecifiedRemaining = v3math.WrappingSub(st.amountSpecifiedRemaining, inPlusFee)
			st.amountCalculated = v3math.WrappingSub(st.amountCalculated, step.AmountOut)
		} else {
			st.amountSpecifiedRemaining = v3math.WrappingAdd(st.amountSpecifiedRemaining, step.AmountOut)
			st.amountCalculated = v3math.WrappingAdd(st.amountCalculated, inPlusFee)
		}

		feeAmount := step.FeeAmount
		if feeProtocol > 0 {
			delta := new(uint256.Int).Div(feeAmount, uint256.NewInt(uint64(feeProtocol)))
			feeAmount = new(uint256.Int).Sub(feeAmount, delta)
			st.protocolFee = new(uint256.Int).Add(st.protocolFee, delta)
		}
		if !st.liquidity.IsZero() {
			growth, err := v3math.MulDiv(feeAmount, v3math.Q128, st.liquidity)
			if err != nil {
				return nil, nil, err
			}
			st.feeGrowthGlobalX128 = v3math.WrappingAdd(st.feeGrowthGlobalX128, growth)
		}

		if st.sqrtPriceX96.Eq(sqrtPriceNextX96) {
			if initialized {
				if !cacheComputedObservation {
					cacheTickCumulative, cacheSPL, err = p.observeSingle(ctx, cacheTime, 0, slot.Tick, slot.ObservationIndex, cacheLiquidityStart, slot.ObservationCardinality)
					if err != nil {
						return nil, nil, err
					}
					cacheComputedObservation = true
				}
				crossFg0, crossFg1 := fg0, fg1
				if zeroForOne {
					crossFg0 = st.feeGrowthGlobalX128
				} else {
					crossFg1 = st.feeGrowthGlobalX128
				}
				liquidityNet, err := p.crossTick(ctx, tickNext, crossFg0, crossFg1, cacheSPL, cacheTickCumulative, cacheTime)
				if err != nil {
					return nil, nil, err
				}
				if zeroForOne {
					liquidityNet = v3math.Neg(liquidityNet)
				}
				st.liquidity, err = v3math.AddDelta(st.liquidity, liquidityNet)
				if err != nil {
					return nil, nil, err
				}
			}
			if zeroForOne {
				st.tick = tickNext - 1
			} else {
				st.tick = tickNext
			}
		} else if !st.sqrtPriceX96.Eq(sqrtPriceStartX96) {
			newTick, err := v3math.GetTickAtSqrtRatio(st.sqrtPriceX96)
			if err != nil {
				return nil, nil, err
			}
			st.tick = int32(newTick)
		}
	}

	if st.tick != slot.Tick {
		obsIndex, obsCardinality, err := p.oracleWrite(ctx, slot.ObservationIndex, cacheTime, slot.Tick, cacheLiquidityStart, slot.ObservationCardinality, slot.ObservationCardinalityNext)
		if err != nil {
			return nil, nil, err
		}
		slot.ObservationIndex = obsIndex
		slot.ObservationCardinality = obsCardinality
		slot.Tick = st.tick
	}
	slot.SqrtPriceX96 = st.sqrtPriceX96

	if !poolRow.Liquidity.Eq(st.liquidity) {
		poolRow.Liquidity = st.liquidity
	}

	if zeroForOne {
		fg0 = st.feeGrowthGlobalX128
		if !st.protocolFee.IsZero() {
			poolRow.ProtocolFeesToken0 = new(uint256.Int).Add(poolRow.ProtocolFeesToken0, st.protocolFee)
		}
	} else {
		fg1 = st.feeGrowthGlobalX128
		if !st.protocolFee.IsZero() {
			poolRow.ProtocolFeesToken1 = new(uint256.Int).Add(poolRow.ProtocolFeesToken1, st.protocolFee)
		}
	}
	if err := p.appendFeeGrowth(ctx, revision, fg0, fg1); err != nil {
		return nil, nil, err
	}
	if err := p.st.Pools().Save(ctx, poolRow); err != nil {
		return nil, nil, err
	}
	if err := p.st.Slots().Save(ctx, slot); err != nil {
		return nil, nil, err
	}

	var amount0, amount1 *uint256.Int
	if zeroForOne == exactInput {
		amount0 = v3math.WrappingSub(amountSpecified, st.amountSpecifiedRemaining)
		amount1 = st.amountCalculated
	} else {
		amount0 = st.amountCalculated
		amount1 = v3math.WrappingSub(amountSpecified, st.amountSpecifiedRemaining)
	}

	p.log.Debug("swap applied",
		zap.String("pool", p.id),
		zap.String("recipient", recipient),
		zap.Bool("zero_for_one", zeroForOne),
		zap.Int32("tick", slot.Tick),
	)

	if cb != nil {
		if err := cb(ctx, amount0, amount1, data); err != nil {
			return nil, nil, err
		}
	}

	slot.Unlocked = true
	if err := p.st.Slots().Save(ctx, slot); err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// SetFeeProtocol sets the protocol fee denominators, each zero or 4..10.
func (p *Pool) SetFeeProtocol(ctx context.Context, feeProtocol0, feeProtocol1 uint8) error {
	validFraction := func(v uint8) bool { return v == 0 || (v >= 4 && v <= 10) }
	if !validFraction(feeProtocol0) || !validFraction(feeProtocol1) {
		return ErrBadFeeProtocol
	}
	slot, err := p.loadSlot(ctx)
	if err != nil {
		return err
	}
	if !slot.Unlocked {
		return ErrLocked
	}
	slot.FeeProtocol = feeProtocol0 + (feeProtocol1 << 4)
	return p.st.Slots().Save(ctx, slot)
}

// CollectProtocol withdraws accrued protocol fees, capped at the balances.
func (p *Pool) CollectProtocol(ctx context.Context, recipient string, amount0Requested, amount1Requested *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	poolRow, err := p.loadPool(ctx)
	if err != nil {
		return nil, nil, err
	}
	slot, err := p.loadSlot(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !slot.Unlocked {
		return nil, nil, ErrLocked
	}

	amount0 := amount0Requested.Clone()
	if amount0.Gt(poolRow.ProtocolFeesToken0) {
		amount0 = poolRow.ProtocolFeesToken0.Clone()
	}
	amount1 := amount1Requested.Clone()
	if amount1.Gt(poolRow.ProtocolFeesToken1) {
		amount1 = poolRow.ProtocolFeesToken1.Clone()
	}

	poolRow.ProtocolFeesToken0 = new(uint256.Int).Sub(poolRow.ProtocolFeesToken0, amount0)
	poolRow.ProtocolFeesToken1 = new(uint256.Int).Sub(poolRow.ProtocolFeesToken1, amount1)
	if err := p.st.Pools().Save(ctx, poolRow); err != nil {
		return nil, nil, err
	}
	p.log.Debug("protocol fees collected",
		zap.String("pool", p.id),
		zap.String("recipient", recipient),
	)
	return amount0, amount1, nil
}
