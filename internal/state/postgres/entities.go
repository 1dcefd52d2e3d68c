package postgres

import (
	"context"
	"errors"

	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"

	"poolmirror/internal/model"
)

// scanPositionAmounts parses the five shared value columns of the two
// position tables.
func scanPositionAmounts(liq, fg0, fg1, owed0, owed1 **uint256.Int, sLiq, sFg0, sFg1, sOwed0, sOwed1 string) error {
	var err error
	if *liq, err = u256parse(sLiq); err != nil {
		return err
	}
	if *fg0, err = u256parse(sFg0); err != nil {
		return err
	}
	if *fg1, err = u256parse(sFg1); err != nil {
		return err
	}
	if *owed0, err = u256parse(sOwed0); err != nil {
		return err
	}
	*owed1, err = u256parse(sOwed1)
	return err
}

type (
	pgPools         Store
	pgSlots         Store
	pgTicks         Store
	pgBitmaps       Store
	pgObservations  Store
	pgFeeGrowth     Store
	pgPositionInfos Store
	pgPositions     Store
	pgFeeAmounts    Store
)

func (s *pgPools) Get(ctx context.Context, id string) (*model.Pool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, address, factory, owner, token0, token1, fee, tick_spacing,
		       max_liquidity_per_tick, liquidity,
		       protocol_fees_token0, protocol_fees_token1, created_block
		FROM pools WHERE id=$1
	`, id)
	var p model.Pool
	var maxLiq, liq, pf0, pf1 string
	err := row.Scan(&p.ID, &p.Address, &p.Factory, &p.Owner, &p.Token0, &p.Token1,
		&p.Fee, &p.TickSpacing, &maxLiq, &liq, &pf0, &pf1, &p.CreatedBlock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if p.MaxLiquidityPerTick, err = u256parse(maxLiq); err != nil {
		return nil, err
	}
	if p.Liquidity, err = u256parse(liq); err != nil {
		return nil, err
	}
	if p.ProtocolFeesToken0, err = u256parse(pf0); err != nil {
		return nil, err
	}
	if p.ProtocolFeesToken1, err = u256parse(pf1); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *pgPools) Save(ctx context.Context, p *model.Pool) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pools (id, address, factory, owner, token0, token1, fee,
			tick_spacing, max_liquidity_per_tick, liquidity,
			protocol_fees_token0, protocol_fees_token1, created_block, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now())
		ON CONFLICT (id) DO UPDATE SET
			liquidity = EXCLUDED.liquidity,
			protocol_fees_token0 = EXCLUDED.protocol_fees_token0,
			protocol_fees_token1 = EXCLUDED.protocol_fees_token1,
			updated_at = now()
	`, p.ID, p.Address, p.Factory, p.Owner, p.Token0, p.Token1, p.Fee,
		p.TickSpacing, u256str(p.MaxLiquidityPerTick), u256str(p.Liquidity),
		u256str(p.ProtocolFeesToken0), u256str(p.ProtocolFeesToken1), p.CreatedBlock)
	return err
}

func (s *pgPools) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM pools`).Scan(&n)
	return n, err
}

func (s *pgSlots) Get(ctx context.Context, poolID string) (*model.Slot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT pool_id, sqrt_price_x96, tick, observation_index,
		       observation_cardinality, observation_cardinality_next,
		       fee_protocol, unlocked
		FROM slots WHERE pool_id=$1
	`, poolID)
	var sl model.Slot
	var price string
	err := row.Scan(&sl.PoolID, &price, &sl.Tick, &sl.ObservationIndex,
		&sl.ObservationCardinality, &sl.ObservationCardinalityNext,
		&sl.FeeProtocol, &sl.Unlocked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if sl.SqrtPriceX96, err = u256parse(price); err != nil {
		return nil, err
	}
	return &sl, nil
}

func (s *pgSlots) Save(ctx context.Context, sl *model.Slot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO slots (pool_id, sqrt_price_x96, tick, observation_index,
			observation_cardinality, observation_cardinality_next,
			fee_protocol, unlocked, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
		ON CONFLICT (pool_id) DO UPDATE SET
			sqrt_price_x96 = EXCLUDED.sqrt_price_x96,
			tick = EXCLUDED.tick,
			observation_index = EXCLUDED.observation_index,
			observation_cardinality = EXCLUDED.observation_cardinality,
			observation_cardinality_next = EXCLUDED.observation_cardinality_next,
			fee_protocol = EXCLUDED.fee_protocol,
			unlocked = EXCLUDED.unlocked,
			updated_at = now()
	`, sl.PoolID, u256str(sl.SqrtPriceX96), sl.Tick, sl.ObservationIndex,
		sl.ObservationCardinality, sl.ObservationCardinalityNext,
		sl.FeeProtocol, sl.Unlocked)
	return err
}

func (s *pgTicks) Get(ctx context.Context, poolID string, tick int32) (*model.TickInfo, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT pool_id, tick, liquidity_gross, liquidity_net,
		       fee_growth_outside0_x128, fee_growth_outside1_x128,
		       tick_cumulative_outside, seconds_per_liquidity_outside_x128,
		       seconds_outside, initialized
		FROM ticks WHERE pool_id=$1 AND tick=$2
	`, poolID, tick)
	var t model.TickInfo
	var gross, net, fg0, fg1, spl string
	err := row.Scan(&t.PoolID, &t.Tick, &gross, &net, &fg0, &fg1,
		&t.TickCumulativeOutside, &spl, &t.SecondsOutside, &t.Initialized)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if t.LiquidityGross, err = u256parse(gross); err != nil {
		return nil, err
	}
	if t.LiquidityNet, err = u256parse(net); err != nil {
		return nil, err
	}
	if t.FeeGrowthOutside0X128, err = u256parse(fg0); err != nil {
		return nil, err
	}
	if t.FeeGrowthOutside1X128, err = u256parse(fg1); err != nil {
		return nil, err
	}
	if t.SecondsPerLiquidityOutsideX128, err = u256parse(spl); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *pgTicks) Save(ctx context.Context, t *model.TickInfo) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ticks (pool_id, tick, liquidity_gross, liquidity_net,
			fee_growth_outside0_x128, fee_growth_outside1_x128,
			tick_cumulative_outside, seconds_per_liquidity_outside_x128,
			seconds_outside, initialized)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (pool_id, tick) DO UPDATE SET
			liquidity_gross = EXCLUDED.liquidity_gross,
			liquidity_net = EXCLUDED.liquidity_net,
			fee_growth_outside0_x128 = EXCLUDED.fee_growth_outside0_x128,
			fee_growth_outside1_x128 = EXCLUDED.fee_growth_outside1_x128,
			tick_cumulative_outside = EXCLUDED.tick_cumulative_outside,
			seconds_per_liquidity_outside_x128 = EXCLUDED.seconds_per_liquidity_outside_x128,
			seconds_outside = EXCLUDED.seconds_outside,
			initialized = EXCLUDED.initialized
	`, t.PoolID, t.Tick, u256str(t.LiquidityGross), u256str(t.LiquidityNet),
		u256str(t.FeeGrowthOutside0X128), u256str(t.FeeGrowthOutside1X128),
		t.TickCumulativeOutside, u256str(t.SecondsPerLiquidityOutsideX128),
		t.SecondsOutside, t.Initialized)
	return err
}

func (s *pgTicks) Delete(ctx context.Context, poolID string, tick int32) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM ticks WHERE pool_id=$1 AND tick=$2`, poolID, tick)
	return err
}

func (s *pgBitmaps) Get(ctx context.Context, poolID string, wordPos int16) (*model.BitmapWord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT pool_id, word_pos, word FROM bitmap_words
		WHERE pool_id=$1 AND word_pos=$2
	`, poolID, wordPos)
	var w model.BitmapWord
	var word string
	err := row.Scan(&w.PoolID, &w.WordPos, &word)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if w.Word, err = u256parse(word); err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *pgBitmaps) Save(ctx context.Context, w *model.BitmapWord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bitmap_words (pool_id, word_pos, word)
		VALUES ($1,$2,$3)
		ON CONFLICT (pool_id, word_pos) DO UPDATE SET word = EXCLUDED.word
	`, w.PoolID, w.WordPos, u256str(w.Word))
	return err
}

func (s *pgObservations) Get(ctx context.Context, poolID string, index uint16) (*model.Observation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT pool_id, idx, block_timestamp, tick_cumulative,
		       seconds_per_liquidity_cumulative_x128, initialized
		FROM observations WHERE pool_id=$1 AND idx=$2
	`, poolID, index)
	var o model.Observation
	var spl string
	err := row.Scan(&o.PoolID, &o.Index, &o.BlockTimestamp, &o.TickCumulative,
		&spl, &o.Initialized)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if o.SecondsPerLiquidityCumulativeX128, err = u256parse(spl); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *pgObservations) Save(ctx context.Context, o *model.Observation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO observations (pool_id, idx, block_timestamp, tick_cumulative,
			seconds_per_liquidity_cumulative_x128, initialized)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (pool_id, idx) DO UPDATE SET
			block_timestamp = EXCLUDED.block_timestamp,
			tick_cumulative = EXCLUDED.tick_cumulative,
			seconds_per_liquidity_cumulative_x128 = EXCLUDED.seconds_per_liquidity_cumulative_x128,
			initialized = EXCLUDED.initialized
	`, o.PoolID, o.Index, o.BlockTimestamp, o.TickCumulative,
		u256str(o.SecondsPerLiquidityCumulativeX128), o.Initialized)
	return err
}

func (s *pgFeeGrowth) Latest(ctx context.Context, poolID string) (*model.FeeGrowthGlobal, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT pool_id, revision, block_number, block_timestamp,
		       fee_growth_global0_x128, fee_growth_global1_x128
		FROM fee_growth_globals WHERE pool_id=$1
		ORDER BY revision DESC LIMIT 1
	`, poolID)
	var fg model.FeeGrowthGlobal
	var g0, g1 string
	err := row.Scan(&fg.PoolID, &fg.Revision, &fg.BlockNumber, &fg.BlockTimestamp, &g0, &g1)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if fg.FeeGrowthGlobal0X128, err = u256parse(g0); err != nil {
		return nil, err
	}
	if fg.FeeGrowthGlobal1X128, err = u256parse(g1); err != nil {
		return nil, err
	}
	return &fg, nil
}

func (s *pgFeeGrowth) Append(ctx context.Context, fg *model.FeeGrowthGlobal) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fee_growth_globals (pool_id, revision, block_number,
			block_timestamp, fee_growth_global0_x128, fee_growth_global1_x128)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (pool_id, revision) DO UPDATE SET
			block_number = EXCLUDED.block_number,
			block_timestamp = EXCLUDED.block_timestamp,
			fee_growth_global0_x128 = EXCLUDED.fee_growth_global0_x128,
			fee_growth_global1_x128 = EXCLUDED.fee_growth_global1_x128
	`, fg.PoolID, fg.Revision, fg.BlockNumber, fg.BlockTimestamp,
		u256str(fg.FeeGrowthGlobal0X128), u256str(fg.FeeGrowthGlobal1X128))
	return err
}

func (s *pgPositionInfos) Get(ctx context.Context, id string) (*model.PositionInfo, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, pool_id, owner, tick_lower, tick_upper, liquidity,
		       fee_growth_inside0_last_x128, fee_growth_inside1_last_x128,
		       tokens_owed0, tokens_owed1
		FROM position_infos WHERE id=$1
	`, id)
	var p model.PositionInfo
	var liq, fg0, fg1, owed0, owed1 string
	err := row.Scan(&p.ID, &p.PoolID, &p.Owner, &p.TickLower, &p.TickUpper,
		&liq, &fg0, &fg1, &owed0, &owed1)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, scanPositionAmounts(&p.Liquidity, &p.FeeGrowthInside0LastX128,
		&p.FeeGrowthInside1LastX128, &p.TokensOwed0, &p.TokensOwed1,
		liq, fg0, fg1, owed0, owed1)
}

func (s *pgPositionInfos) Save(ctx context.Context, p *model.PositionInfo) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO position_infos (id, pool_id, owner, tick_lower, tick_upper,
			liquidity, fee_growth_inside0_last_x128, fee_growth_inside1_last_x128,
			tokens_owed0, tokens_owed1)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET
			liquidity = EXCLUDED.liquidity,
			fee_growth_inside0_last_x128 = EXCLUDED.fee_growth_inside0_last_x128,
			fee_growth_inside1_last_x128 = EXCLUDED.fee_growth_inside1_last_x128,
			tokens_owed0 = EXCLUDED.tokens_owed0,
			tokens_owed1 = EXCLUDED.tokens_owed1
	`, p.ID, p.PoolID, p.Owner, p.TickLower, p.TickUpper,
		u256str(p.Liquidity), u256str(p.FeeGrowthInside0LastX128),
		u256str(p.FeeGrowthInside1LastX128), u256str(p.TokensOwed0), u256str(p.TokensOwed1))
	return err
}

const positionColumns = `id, token_id, owner, operator, pool_id, tick_lower,
	tick_upper, liquidity, fee_growth_inside0_last_x128,
	fee_growth_inside1_last_x128, tokens_owed0, tokens_owed1, burned`

func scanPosition(row pgx.Row) (*model.Position, error) {
	var p model.Position
	var liq, fg0, fg1, owed0, owed1 string
	err := row.Scan(&p.ID, &p.TokenID, &p.Owner, &p.Operator, &p.PoolID,
		&p.TickLower, &p.TickUpper, &liq, &fg0, &fg1, &owed0, &owed1, &p.Burned)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, scanPositionAmounts(&p.Liquidity, &p.FeeGrowthInside0LastX128,
		&p.FeeGrowthInside1LastX128, &p.TokensOwed0, &p.TokensOwed1,
		liq, fg0, fg1, owed0, owed1)
}

func (s *pgPositions) Get(ctx context.Context, id string) (*model.Position, error) {
	return scanPosition(s.pool.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE id=$1`, id))
}

func (s *pgPositions) GetByTokenID(ctx context.Context, tokenID uint64) (*model.Position, error) {
	return scanPosition(s.pool.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE token_id=$1`, tokenID))
}

func (s *pgPositions) Save(ctx context.Context, p *model.Position) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO positions (id, token_id, owner, operator, pool_id,
			tick_lower, tick_upper, liquidity, fee_growth_inside0_last_x128,
			fee_growth_inside1_last_x128, tokens_owed0, tokens_owed1, burned)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			operator = EXCLUDED.operator,
			liquidity = EXCLUDED.liquidity,
			fee_growth_inside0_last_x128 = EXCLUDED.fee_growth_inside0_last_x128,
			fee_growth_inside1_last_x128 = EXCLUDED.fee_growth_inside1_last_x128,
			tokens_owed0 = EXCLUDED.tokens_owed0,
			tokens_owed1 = EXCLUDED.tokens_owed1,
			burned = EXCLUDED.burned
	`, p.ID, p.TokenID, p.Owner, p.Operator, p.PoolID, p.TickLower, p.TickUpper,
		u256str(p.Liquidity), u256str(p.FeeGrowthInside0LastX128),
		u256str(p.FeeGrowthInside1LastX128), u256str(p.TokensOwed0),
		u256str(p.TokensOwed1), p.Burned)
	return err
}

func (s *pgFeeAmounts) Get(ctx context.Context, fee uint32) (*model.FeeAmount, error) {
	row := s.pool.QueryRow(ctx, `SELECT fee, tick_spacing FROM fee_amounts WHERE fee=$1`, fee)
	var fa model.FeeAmount
	if err := row.Scan(&fa.Fee, &fa.TickSpacing); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &fa, nil
}

func (s *pgFeeAmounts) Save(ctx context.Context, fa *model.FeeAmount) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fee_amounts (fee, tick_spacing) VALUES ($1,$2)
		ON CONFLICT (fee) DO UPDATE SET tick_spacing = EXCLUDED.tick_spacing
	`, fa.Fee, fa.TickSpacing)
	return err
}
