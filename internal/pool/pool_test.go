package pool

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"poolmirror/internal/model"
	"poolmirror/internal/state"
	"poolmirror/internal/v3math"
)

const (
	testOwner  = "0x00000000000000000000000000000000000000aa"
	testToken0 = "0x0000000000000000000000000000000000000001"
	testToken1 = "0x0000000000000000000000000000000000000002"
)

func newTestPool(t *testing.T) (context.Context, state.Store, *Pool) {
	t.Helper()
	ctx := context.Background()
	st := state.NewMemory()

	id := model.PoolID(testToken0, testToken1, 3000)
	row := &model.Pool{
		ID:                  id,
		Address:             id,
		Token0:              testToken0,
		Token1:              testToken1,
		Fee:                 3000,
		TickSpacing:         60,
		MaxLiquidityPerTick: TickSpacingToMaxLiquidityPerTick(60),
		Liquidity:           new(uint256.Int),
		ProtocolFeesToken0:  new(uint256.Int),
		ProtocolFeesToken1:  new(uint256.Int),
	}
	if err := st.Pools().Save(ctx, row); err != nil {
		t.Fatalf("save pool: %v", err)
	}
	if err := st.Slots().Save(ctx, &model.Slot{PoolID: id, SqrtPriceX96: new(uint256.Int)}); err != nil {
		t.Fatalf("save slot: %v", err)
	}
	return ctx, st, New(st, zap.NewNop(), id, BlockContext{Number: 100, Timestamp: 1000})
}

func initTestPool(t *testing.T, ctx context.Context, p *Pool) {
	t.Helper()
	if err := p.Initialize(ctx, v3math.Q96.Clone()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
}

func TestInitialize(t *testing.T) {
	ctx, st, p := newTestPool(t)
	initTestPool(t, ctx, p)

	slot, err := st.Slots().Get(ctx, p.ID())
	if err != nil {
		t.Fatalf("slot: %v", err)
	}
	if !slot.SqrtPriceX96.Eq(v3math.Q96) {
		t.Fatalf("price = %s, want Q96", slot.SqrtPriceX96.Hex())
	}
	if slot.Tick != 0 {
		t.Fatalf("tick = %d, want 0", slot.Tick)
	}
	if slot.ObservationCardinality != 1 || slot.ObservationCardinalityNext != 1 {
		t.Fatalf("cardinality = (%d, %d)", slot.ObservationCardinality, slot.ObservationCardinalityNext)
	}
	if !slot.Unlocked {
		t.Fatal("pool not unlocked")
	}

	if err := p.Initialize(ctx, v3math.Q96.Clone()); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("second initialize: %v", err)
	}
}

func TestMintAmounts(t *testing.T) {
	ctx, st, p := newTestPool(t)
	initTestPool(t, ctx, p)

	amount0, amount1, err := p.Mint(ctx, testOwner, -60, 60, uint256.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	// In-range mint at price 1 costs a little of both tokens.
	if amount0.IsZero() || amount1.IsZero() {
		t.Fatalf("amounts = (%s, %s), want both nonzero", amount0.Dec(), amount1.Dec())
	}
	if amount0.GtUint64(5000) || amount1.GtUint64(5000) {
		t.Fatalf("amounts = (%s, %s), unexpectedly large", amount0.Dec(), amount1.Dec())
	}

	row, err := st.Pools().Get(ctx, p.ID())
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if !row.Liquidity.Eq(uint256.NewInt(1_000_000)) {
		t.Fatalf("liquidity = %s, want 1000000", row.Liquidity.Dec())
	}

	for _, tick := range []int32{-60, 60} {
		info, err := st.Ticks().Get(ctx, p.ID(), tick)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		if info == nil || !info.Initialized {
			t.Fatalf("tick %d not initialized", tick)
		}
		if !info.LiquidityGross.Eq(uint256.NewInt(1_000_000)) {
			t.Fatalf("tick %d gross = %s", tick, info.LiquidityGross.Dec())
		}
	}
}

func TestMintValidation(t *testing.T) {
	ctx, _, p := newTestPool(t)
	initTestPool(t, ctx, p)

	if _, _, err := p.Mint(ctx, testOwner, -60, 60, new(uint256.Int)); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("zero amount: %v", err)
	}
	if _, _, err := p.Mint(ctx, testOwner, 60, -60, uint256.NewInt(1)); !errors.Is(err, ErrTicksOutOfOrder) {
		t.Fatalf("reversed ticks: %v", err)
	}
	if _, _, err := p.Mint(ctx, testOwner, -887280, 60, uint256.NewInt(1)); !errors.Is(err, ErrTickTooLow) {
		t.Fatalf("tick too low: %v", err)
	}
	if _, _, err := p.Mint(ctx, testOwner, -60, 887280, uint256.NewInt(1)); !errors.Is(err, ErrTickTooHigh) {
		t.Fatalf("tick too high: %v", err)
	}
}

func TestSwapValidation(t *testing.T) {
	ctx, st, p := newTestPool(t)
	initTestPool(t, ctx, p)

	one := uint256.NewInt(1)
	belowPrice := new(uint256.Int).Sub(v3math.Q96, one)
	abovePrice := new(uint256.Int).Add(v3math.Q96, one)

	if _, _, err := p.Swap(ctx, testOwner, true, new(uint256.Int), belowPrice, nil, nil); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("zero amount: %v", err)
	}
	// zeroForOne pushes the price down, so the limit must sit below it.
	if _, _, err := p.Swap(ctx, testOwner, true, uint256.NewInt(100), abovePrice, nil, nil); !errors.Is(err, ErrPriceLimit) {
		t.Fatalf("limit above price: %v", err)
	}
	if _, _, err := p.Swap(ctx, testOwner, false, uint256.NewInt(100), belowPrice, nil, nil); !errors.Is(err, ErrPriceLimit) {
		t.Fatalf("limit below price: %v", err)
	}

	slot, err := st.Slots().Get(ctx, p.ID())
	if err != nil {
		t.Fatalf("slot: %v", err)
	}
	slot.Unlocked = false
	if err := st.Slots().Save(ctx, slot); err != nil {
		t.Fatalf("save slot: %v", err)
	}
	if _, _, err := p.Swap(ctx, testOwner, true, uint256.NewInt(100), belowPrice, nil, nil); !errors.Is(err, ErrLocked) {
		t.Fatalf("locked pool: %v", err)
	}
}

func TestSwapExactInput(t *testing.T) {
	ctx, st, p := newTestPool(t)
	initTestPool(t, ctx, p)
	if _, _, err := p.Mint(ctx, testOwner, -60, 60, uint256.NewInt(1_000_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	limit := new(uint256.Int).Add(v3math.MinSqrtRatio, uint256.NewInt(1))
	var cbAmount0, cbAmount1 *uint256.Int
	cb := func(_ context.Context, a0, a1 *uint256.Int, _ []byte) error {
		cbAmount0, cbAmount1 = a0, a1
		return nil
	}
	amount0, amount1, err := p.Swap(ctx, testOwner, true, uint256.NewInt(1000), limit, nil, cb)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}

	// Exact input of token0: the pool takes all 1000 and pays out token1.
	if !amount0.Eq(uint256.NewInt(1000)) {
		t.Fatalf("amount0 = %s, want 1000", amount0.Dec())
	}
	out := v3math.Abs(amount1)
	if amount1.Sign() >= 0 || out.IsZero() || !out.LtUint64(1000) {
		t.Fatalf("amount1 = %s, want negative output below input", amount1.Dec())
	}
	if cbAmount0 == nil || !cbAmount0.Eq(amount0) || !cbAmount1.Eq(amount1) {
		t.Fatal("callback amounts do not match return values")
	}

	slot, err := st.Slots().Get(ctx, p.ID())
	if err != nil {
		t.Fatalf("slot: %v", err)
	}
	if slot.Tick >= 0 {
		t.Fatalf("tick = %d, want below zero after selling token0", slot.Tick)
	}
	if !slot.SqrtPriceX96.Lt(v3math.Q96) {
		t.Fatal("price did not move down")
	}
	if !slot.Unlocked {
		t.Fatal("pool left locked")
	}

	latest, err := st.FeeGrowth().Latest(ctx, p.ID())
	if err != nil {
		t.Fatalf("fee growth: %v", err)
	}
	if latest == nil || latest.FeeGrowthGlobal0X128.IsZero() {
		t.Fatal("fee growth for token0 not recorded")
	}
	if latest.Revision != 1 || latest.BlockNumber != 100 {
		t.Fatalf("revision = %d block %d", latest.Revision, latest.BlockNumber)
	}
}

func TestSwapFeesAccrueToPosition(t *testing.T) {
	ctx, _, p := newTestPool(t)
	initTestPool(t, ctx, p)
	if _, _, err := p.Mint(ctx, testOwner, -60, 60, uint256.NewInt(1_000_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	limit := new(uint256.Int).Add(v3math.MinSqrtRatio, uint256.NewInt(1))
	if _, _, err := p.Swap(ctx, testOwner, true, uint256.NewInt(1000), limit, nil, nil); err != nil {
		t.Fatalf("swap: %v", err)
	}

	// A zero-size burn pokes the position so its fee debt materializes.
	if _, _, err := p.Burn(ctx, testOwner, -60, 60, new(uint256.Int)); err != nil {
		t.Fatalf("poke: %v", err)
	}

	owed0, owed1, err := p.Collect(ctx, testOwner, -60, 60, v3math.MaxUint128.Clone(), v3math.MaxUint128.Clone())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	// The 0.3% tier charges 3 on an input of 1000; rounding keeps it in [2, 3].
	if owed0.IsZero() || owed0.GtUint64(3) {
		t.Fatalf("owed0 = %s, want within [1, 3]", owed0.Dec())
	}
	if !owed1.IsZero() {
		t.Fatalf("owed1 = %s, want 0", owed1.Dec())
	}
}

func TestBurnCollectRoundTrip(t *testing.T) {
	ctx, st, p := newTestPool(t)
	initTestPool(t, ctx, p)

	minted0, minted1, err := p.Mint(ctx, testOwner, -60, 60, uint256.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	burned0, burned1, err := p.Burn(ctx, testOwner, -60, 60, uint256.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("burn: %v", err)
	}

	// Burning rounds down where minting rounds up.
	if burned0.Gt(minted0) || burned1.Gt(minted1) {
		t.Fatalf("burn (%s, %s) exceeds mint (%s, %s)", burned0.Dec(), burned1.Dec(), minted0.Dec(), minted1.Dec())
	}
	diff0 := new(uint256.Int).Sub(minted0, burned0)
	diff1 := new(uint256.Int).Sub(minted1, burned1)
	if diff0.GtUint64(1) || diff1.GtUint64(1) {
		t.Fatalf("round trip lost more than dust: (%s, %s)", diff0.Dec(), diff1.Dec())
	}

	collected0, collected1, err := p.Collect(ctx, testOwner, -60, 60, v3math.MaxUint128.Clone(), v3math.MaxUint128.Clone())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if !collected0.Eq(burned0) || !collected1.Eq(burned1) {
		t.Fatalf("collected (%s, %s), want (%s, %s)", collected0.Dec(), collected1.Dec(), burned0.Dec(), burned1.Dec())
	}

	row, err := st.Pools().Get(ctx, p.ID())
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if !row.Liquidity.IsZero() {
		t.Fatalf("liquidity = %s, want 0", row.Liquidity.Dec())
	}
	// Both boundary ticks flipped off and were cleared.
	for _, tick := range []int32{-60, 60} {
		info, err := st.Ticks().Get(ctx, p.ID(), tick)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		if info != nil {
			t.Fatalf("tick %d still present", tick)
		}
	}
}

func TestCollectUnknownPosition(t *testing.T) {
	ctx, _, p := newTestPool(t)
	initTestPool(t, ctx, p)

	_, _, err := p.Collect(ctx, testOwner, -60, 60, uint256.NewInt(1), uint256.NewInt(1))
	if !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("collect: %v", err)
	}
}

func TestProtocolFees(t *testing.T) {
	ctx, st, p := newTestPool(t)
	initTestPool(t, ctx, p)

	if err := p.SetFeeProtocol(ctx, 3, 0); !errors.Is(err, ErrBadFeeProtocol) {
		t.Fatalf("fraction 3: %v", err)
	}
	if err := p.SetFeeProtocol(ctx, 0, 11); !errors.Is(err, ErrBadFeeProtocol) {
		t.Fatalf("fraction 11: %v", err)
	}
	if err := p.SetFeeProtocol(ctx, 4, 5); err != nil {
		t.Fatalf("set: %v", err)
	}
	slot, err := st.Slots().Get(ctx, p.ID())
	if err != nil {
		t.Fatalf("slot: %v", err)
	}
	if slot.FeeProtocol != 4+(5<<4) {
		t.Fatalf("fee protocol = %d", slot.FeeProtocol)
	}

	if _, _, err := p.Mint(ctx, testOwner, -60, 60, uint256.NewInt(1_000_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	limit := new(uint256.Int).Add(v3math.MinSqrtRatio, uint256.NewInt(1))
	if _, _, err := p.Swap(ctx, testOwner, true, uint256.NewInt(2000), limit, nil, nil); err != nil {
		t.Fatalf("swap: %v", err)
	}

	// Fee on 2000 at 0.3% is 6, a quarter of which goes to the protocol.
	row, err := st.Pools().Get(ctx, p.ID())
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if !row.ProtocolFeesToken0.Eq(uint256.NewInt(1)) {
		t.Fatalf("protocol fees token0 = %s, want 1", row.ProtocolFeesToken0.Dec())
	}
	if !row.ProtocolFeesToken1.IsZero() {
		t.Fatalf("protocol fees token1 = %s, want 0", row.ProtocolFeesToken1.Dec())
	}

	got0, got1, err := p.CollectProtocol(ctx, testOwner, uint256.NewInt(100), uint256.NewInt(100))
	if err != nil {
		t.Fatalf("collect protocol: %v", err)
	}
	if !got0.Eq(uint256.NewInt(1)) || !got1.IsZero() {
		t.Fatalf("collected = (%s, %s), want (1, 0)", got0.Dec(), got1.Dec())
	}
	row, err = st.Pools().Get(ctx, p.ID())
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if !row.ProtocolFeesToken0.IsZero() {
		t.Fatalf("protocol fees not drained: %s", row.ProtocolFeesToken0.Dec())
	}
}

func TestIncreaseObservationCardinalityNext(t *testing.T) {
	ctx, st, p := newTestPool(t)
	initTestPool(t, ctx, p)

	if err := p.IncreaseObservationCardinalityNext(ctx, 4); err != nil {
		t.Fatalf("increase: %v", err)
	}
	slot, err := st.Slots().Get(ctx, p.ID())
	if err != nil {
		t.Fatalf("slot: %v", err)
	}
	if slot.ObservationCardinalityNext != 4 {
		t.Fatalf("cardinality next = %d, want 4", slot.ObservationCardinalityNext)
	}
	// Cardinality itself only promotes on the next overflowing write.
	if slot.ObservationCardinality != 1 {
		t.Fatalf("cardinality = %d, want 1", slot.ObservationCardinality)
	}
}

func TestSwapLockHeldDuringCallback(t *testing.T) {
	ctx, st, p := newTestPool(t)
	initTestPool(t, ctx, p)
	if _, _, err := p.Mint(ctx, testOwner, -60, 60, uint256.NewInt(1_000_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	limit := new(uint256.Int).Add(v3math.MinSqrtRatio, uint256.NewInt(1))
	var nestedErr error
	cb := func(cbCtx context.Context, _, _ *uint256.Int, _ []byte) error {
		_, _, nestedErr = p.Swap(cbCtx, testOwner, true, uint256.NewInt(10), limit, nil, nil)
		return nil
	}
	if _, _, err := p.Swap(ctx, testOwner, true, uint256.NewInt(1000), limit, nil, cb); err != nil {
		t.Fatalf("swap: %v", err)
	}
	if !errors.Is(nestedErr, ErrLocked) {
		t.Fatalf("nested swap: got %v, want %v", nestedErr, ErrLocked)
	}

	slot, err := st.Slots().Get(ctx, p.ID())
	if err != nil {
		t.Fatalf("slot: %v", err)
	}
	if !slot.Unlocked {
		t.Fatal("pool left locked after swap")
	}
}

func TestSwapRoundTripAccruesBothFees(t *testing.T) {
	ctx, st, p := newTestPool(t)
	initTestPool(t, ctx, p)
	if _, _, err := p.Mint(ctx, testOwner, -60, 60, uint256.NewInt(1_000_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	downLimit := new(uint256.Int).Add(v3math.MinSqrtRatio, uint256.NewInt(1))
	_, out, err := p.Swap(ctx, testOwner, true, uint256.NewInt(1000), downLimit, nil, nil)
	if err != nil {
		t.Fatalf("forward swap: %v", err)
	}
	received := v3math.Abs(out)
	if received.IsZero() || !received.Lt(uint256.NewInt(1000)) {
		t.Fatalf("forward output = %s", received.Dec())
	}

	// Feed the received token1 straight back.
	upLimit := new(uint256.Int).Sub(v3math.MaxSqrtRatio, uint256.NewInt(1))
	back, _, err := p.Swap(ctx, testOwner, false, received.Clone(), upLimit, nil, nil)
	if err != nil {
		t.Fatalf("return swap: %v", err)
	}
	returned := v3math.Abs(back)
	if returned.IsZero() || !returned.Lt(uint256.NewInt(1000)) {
		t.Fatalf("round trip returned %s of 1000", returned.Dec())
	}

	// One fee charge per direction, nothing more.
	fg, err := st.FeeGrowth().Latest(ctx, p.ID())
	if err != nil {
		t.Fatalf("fee growth: %v", err)
	}
	if fg.Revision != 2 {
		t.Fatalf("revision = %d, want 2", fg.Revision)
	}
	if fg.FeeGrowthGlobal0X128.IsZero() || fg.FeeGrowthGlobal1X128.IsZero() {
		t.Fatalf("fee growth = (%s, %s), want both sides charged",
			fg.FeeGrowthGlobal0X128.Dec(), fg.FeeGrowthGlobal1X128.Dec())
	}
}
