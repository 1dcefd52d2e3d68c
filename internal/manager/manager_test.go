package manager

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"poolmirror/internal/factory"
	"poolmirror/internal/model"
	"poolmirror/internal/pool"
	"poolmirror/internal/state"
	"poolmirror/internal/v3math"
)

const (
	tokenA      = "0x0000000000000000000000000000000000000001"
	tokenB      = "0x0000000000000000000000000000000000000002"
	managerAddr = "0x00000000000000000000000000000000000000cc"
	recipient   = "0x00000000000000000000000000000000000000aa"
)

func newManager(t *testing.T) (context.Context, state.Store, *Manager) {
	t.Helper()
	ctx := context.Background()
	st := state.NewMemory()
	log := zap.NewNop()
	fac := factory.New(st, log, managerAddr)
	if err := fac.EnsureDefaultFeeAmounts(ctx); err != nil {
		t.Fatalf("defaults: %v", err)
	}
	return ctx, st, New(st, log, fac, managerAddr, pool.BlockContext{Number: 100, Timestamp: 1000})
}

func mintStandard(t *testing.T, ctx context.Context, m *Manager) uint64 {
	t.Helper()
	if _, err := m.CreateAndInitializePoolIfNecessary(ctx, tokenA, tokenB, 3000, v3math.Q96.Clone()); err != nil {
		t.Fatalf("create pool: %v", err)
	}
	pos, _, _, err := m.Mint(ctx, MintParams{
		Token0:         tokenA,
		Token1:         tokenB,
		Fee:            3000,
		TickLower:      -60,
		TickUpper:      60,
		Amount0Desired: uint256.NewInt(3000),
		Amount1Desired: uint256.NewInt(3000),
		Recipient:      recipient,
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return pos.TokenID
}

func TestCreateAndInitializePoolIfNecessary(t *testing.T) {
	ctx, st, m := newManager(t)

	row, err := m.CreateAndInitializePoolIfNecessary(ctx, tokenA, tokenB, 3000, v3math.Q96.Clone())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	slot, err := st.Slots().Get(ctx, row.ID)
	if err != nil {
		t.Fatalf("slot: %v", err)
	}
	if !slot.SqrtPriceX96.Eq(v3math.Q96) {
		t.Fatalf("price = %s", slot.SqrtPriceX96.Hex())
	}

	// Calling again with a different price is a no-op.
	other := new(uint256.Int).Lsh(v3math.Q96, 1)
	again, err := m.CreateAndInitializePoolIfNecessary(ctx, tokenB, tokenA, 3000, other)
	if err != nil {
		t.Fatalf("repeat: %v", err)
	}
	if again.ID != row.ID {
		t.Fatal("repeat returned a different pool")
	}
	slot, err = st.Slots().Get(ctx, row.ID)
	if err != nil {
		t.Fatalf("slot: %v", err)
	}
	if !slot.SqrtPriceX96.Eq(v3math.Q96) {
		t.Fatal("repeat changed the price")
	}
}

func TestMintAssignsSequentialTokenIDs(t *testing.T) {
	ctx, st, m := newManager(t)

	first := mintStandard(t, ctx, m)
	if first != 1 {
		t.Fatalf("first token id = %d, want 1", first)
	}
	pos, _, _, err := m.Mint(ctx, MintParams{
		Token0:         tokenA,
		Token1:         tokenB,
		Fee:            3000,
		TickLower:      -120,
		TickUpper:      120,
		Amount0Desired: uint256.NewInt(1000),
		Amount1Desired: uint256.NewInt(1000),
		Recipient:      recipient,
	})
	if err != nil {
		t.Fatalf("second mint: %v", err)
	}
	if pos.TokenID != 2 {
		t.Fatalf("second token id = %d, want 2", pos.TokenID)
	}

	stored, err := st.Positions().GetByTokenID(ctx, 1)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if stored == nil || stored.Owner != recipient {
		t.Fatal("token 1 not stored with its recipient")
	}
	// In-range mint at price 1 lands close to the single-sided figures.
	if stored.Liquidity.LtUint64(900_000) {
		t.Fatalf("liquidity = %s, want about a million", stored.Liquidity.Dec())
	}
}

func TestMintSlippage(t *testing.T) {
	ctx, _, m := newManager(t)
	if _, err := m.CreateAndInitializePoolIfNecessary(ctx, tokenA, tokenB, 3000, v3math.Q96.Clone()); err != nil {
		t.Fatalf("create pool: %v", err)
	}

	_, _, _, err := m.Mint(ctx, MintParams{
		Token0:         tokenA,
		Token1:         tokenB,
		Fee:            3000,
		TickLower:      -60,
		TickUpper:      60,
		Amount0Desired: uint256.NewInt(3000),
		Amount1Desired: uint256.NewInt(3000),
		Amount0Min:     uint256.NewInt(4000),
		Recipient:      recipient,
	})
	if !errors.Is(err, ErrPriceSlippage) {
		t.Fatalf("expected slippage failure, got %v", err)
	}
}

func TestIncreaseAndDecreaseLiquidity(t *testing.T) {
	ctx, st, m := newManager(t)
	tokenID := mintStandard(t, ctx, m)

	before, err := st.Positions().GetByTokenID(ctx, tokenID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	if _, _, err := m.IncreaseLiquidity(ctx, tokenID, uint256.NewInt(1000), uint256.NewInt(1000), nil, nil); err != nil {
		t.Fatalf("increase: %v", err)
	}
	after, err := st.Positions().GetByTokenID(ctx, tokenID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !after.Liquidity.Gt(before.Liquidity) {
		t.Fatal("liquidity did not grow")
	}

	half := new(uint256.Int).Rsh(after.Liquidity, 1)
	amount0, amount1, err := m.DecreaseLiquidity(ctx, tokenID, half, nil, nil)
	if err != nil {
		t.Fatalf("decrease: %v", err)
	}
	if amount0.IsZero() || amount1.IsZero() {
		t.Fatalf("decrease amounts = (%s, %s)", amount0.Dec(), amount1.Dec())
	}
	final, err := st.Positions().GetByTokenID(ctx, tokenID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !final.TokensOwed0.Eq(amount0) || !final.TokensOwed1.Eq(amount1) {
		t.Fatal("burned amounts not credited as owed")
	}

	// Removing more than the position holds must fail.
	if _, _, err := m.DecreaseLiquidity(ctx, tokenID, new(uint256.Int).Lsh(final.Liquidity, 1), nil, nil); !errors.Is(err, ErrInsufficient) {
		t.Fatalf("over-decrease: %v", err)
	}
}

func TestCollectAndBurn(t *testing.T) {
	ctx, st, m := newManager(t)
	tokenID := mintStandard(t, ctx, m)

	if _, _, err := m.Collect(ctx, tokenID, recipient, new(uint256.Int), new(uint256.Int)); !errors.Is(err, ErrCollectNothing) {
		t.Fatalf("zero caps: %v", err)
	}

	pos, err := st.Positions().GetByTokenID(ctx, tokenID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if _, _, err := m.DecreaseLiquidity(ctx, tokenID, pos.Liquidity, nil, nil); err != nil {
		t.Fatalf("decrease: %v", err)
	}

	if err := m.Burn(ctx, tokenID); !errors.Is(err, ErrNotCleared) {
		t.Fatalf("burn with owed balances: %v", err)
	}

	max := v3math.MaxUint128.Clone()
	got0, got1, err := m.Collect(ctx, tokenID, recipient, max, max)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if got0.IsZero() || got1.IsZero() {
		t.Fatalf("collected = (%s, %s)", got0.Dec(), got1.Dec())
	}

	if err := m.Burn(ctx, tokenID); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if _, _, err := m.Collect(ctx, tokenID, recipient, max, max); !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("collect after burn: %v", err)
	}
}

func TestCollectIncludesSwapFees(t *testing.T) {
	ctx, st, m := newManager(t)
	tokenID := mintStandard(t, ctx, m)

	pos, err := st.Positions().GetByTokenID(ctx, tokenID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	eng := pool.New(st, zap.NewNop(), pos.PoolID, pool.BlockContext{Number: 101, Timestamp: 1012})
	limit := new(uint256.Int).Add(v3math.MinSqrtRatio, uint256.NewInt(1))
	if _, _, err := eng.Swap(ctx, recipient, true, uint256.NewInt(1000), limit, nil, nil); err != nil {
		t.Fatalf("swap: %v", err)
	}

	max := v3math.MaxUint128.Clone()
	got0, got1, err := m.Collect(ctx, tokenID, recipient, max, max)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	// Fees accrued in token0 only; the position keeps its liquidity.
	if got0.IsZero() {
		t.Fatal("no token0 fees collected")
	}
	if !got1.IsZero() {
		t.Fatalf("unexpected token1 fees: %s", got1.Dec())
	}
}

func TestSameRangeInDistinctPoolsStaysSeparate(t *testing.T) {
	ctx, st, m := newManager(t)

	idA := mintStandard(t, ctx, m)
	if _, err := m.CreateAndInitializePoolIfNecessary(ctx, tokenA, tokenB, 500, v3math.Q96.Clone()); err != nil {
		t.Fatalf("create second pool: %v", err)
	}
	posB, _, _, err := m.Mint(ctx, MintParams{
		Token0:         tokenA,
		Token1:         tokenB,
		Fee:            500,
		TickLower:      -60,
		TickUpper:      60,
		Amount0Desired: uint256.NewInt(5),
		Amount1Desired: uint256.NewInt(5),
		Recipient:      recipient,
	})
	if err != nil {
		t.Fatalf("mint second pool: %v", err)
	}

	posA, err := st.Positions().GetByTokenID(ctx, idA)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if posA.PoolID == posB.PoolID {
		t.Fatal("expected distinct pools")
	}

	// Same owner and range, different pools: two independent ledger rows.
	infoA, err := st.PositionInfos().Get(ctx, model.PositionInfoID(posA.PoolID, managerAddr, -60, 60))
	if err != nil {
		t.Fatalf("info A: %v", err)
	}
	infoB, err := st.PositionInfos().Get(ctx, model.PositionInfoID(posB.PoolID, managerAddr, -60, 60))
	if err != nil {
		t.Fatalf("info B: %v", err)
	}
	if infoA == nil || infoB == nil {
		t.Fatal("missing ledger rows")
	}
	if infoA.ID == infoB.ID {
		t.Fatal("ledger rows merged across pools")
	}
	if !infoA.Liquidity.Eq(posA.Liquidity) {
		t.Fatalf("pool A liquidity = %s, want %s", infoA.Liquidity.Dec(), posA.Liquidity.Dec())
	}
	if !infoB.Liquidity.Eq(posB.Liquidity) {
		t.Fatalf("pool B liquidity = %s, want %s", infoB.Liquidity.Dec(), posB.Liquidity.Dec())
	}
}
