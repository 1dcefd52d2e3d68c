// Package postgres persists replica state with jackc/pgx. 256-bit values
// are stored as decimal text so nothing is truncated.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poolmirror/internal/state"
)

// Store provides Postgres persistence for the replica state.
type Store struct {
	pool *pgxpool.Pool
}

var _ state.Store = (*Store)(nil)

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS pools (
		id TEXT PRIMARY KEY,
		address TEXT NOT NULL,
		factory TEXT NOT NULL DEFAULT '',
		owner TEXT NOT NULL DEFAULT '',
		token0 TEXT NOT NULL,
		token1 TEXT NOT NULL,
		fee BIGINT NOT NULL,
		tick_spacing BIGINT NOT NULL,
		max_liquidity_per_tick TEXT NOT NULL,
		liquidity TEXT NOT NULL,
		protocol_fees_token0 TEXT NOT NULL,
		protocol_fees_token1 TEXT NOT NULL,
		created_block BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS slots (
		pool_id TEXT PRIMARY KEY,
		sqrt_price_x96 TEXT NOT NULL,
		tick BIGINT NOT NULL,
		observation_index INT NOT NULL,
		observation_cardinality INT NOT NULL,
		observation_cardinality_next INT NOT NULL,
		fee_protocol INT NOT NULL,
		unlocked BOOLEAN NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS ticks (
		pool_id TEXT NOT NULL,
		tick BIGINT NOT NULL,
		liquidity_gross TEXT NOT NULL,
		liquidity_net TEXT NOT NULL,
		fee_growth_outside0_x128 TEXT NOT NULL,
		fee_growth_outside1_x128 TEXT NOT NULL,
		seconds_per_liquidity_outside_x128 TEXT NOT NULL,
		tick_cumulative_outside BIGINT NOT NULL,
		seconds_outside BIGINT NOT NULL,
		initialized BOOLEAN NOT NULL,
		PRIMARY KEY (pool_id, tick)
	)`,
	`CREATE TABLE IF NOT EXISTS bitmap_words (
		pool_id TEXT NOT NULL,
		word_pos INT NOT NULL,
		word TEXT NOT NULL,
		PRIMARY KEY (pool_id, word_pos)
	)`,
	`CREATE TABLE IF NOT EXISTS observations (
		pool_id TEXT NOT NULL,
		idx INT NOT NULL,
		block_timestamp BIGINT NOT NULL,
		tick_cumulative BIGINT NOT NULL,
		seconds_per_liquidity_cumulative_x128 TEXT NOT NULL,
		initialized BOOLEAN NOT NULL,
		PRIMARY KEY (pool_id, idx)
	)`,
	`CREATE TABLE IF NOT EXISTS fee_growth_globals (
		pool_id TEXT NOT NULL,
		revision BIGINT NOT NULL,
		block_number BIGINT NOT NULL,
		block_timestamp BIGINT NOT NULL,
		fee_growth_global0_x128 TEXT NOT NULL,
		fee_growth_global1_x128 TEXT NOT NULL,
		PRIMARY KEY (pool_id, revision)
	)`,
	`CREATE TABLE IF NOT EXISTS position_infos (
		id TEXT PRIMARY KEY,
		pool_id TEXT NOT NULL DEFAULT '',
		owner TEXT NOT NULL DEFAULT '',
		tick_lower BIGINT NOT NULL,
		tick_upper BIGINT NOT NULL,
		liquidity TEXT NOT NULL,
		fee_growth_inside0_last_x128 TEXT NOT NULL,
		fee_growth_inside1_last_x128 TEXT NOT NULL,
		tokens_owed0 TEXT NOT NULL,
		tokens_owed1 TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS positions (
		id TEXT PRIMARY KEY,
		token_id BIGINT NOT NULL UNIQUE,
		owner TEXT NOT NULL,
		operator TEXT NOT NULL DEFAULT '',
		pool_id TEXT NOT NULL,
		tick_lower BIGINT NOT NULL,
		tick_upper BIGINT NOT NULL,
		liquidity TEXT NOT NULL,
		fee_growth_inside0_last_x128 TEXT NOT NULL,
		fee_growth_inside1_last_x128 TEXT NOT NULL,
		tokens_owed0 TEXT NOT NULL,
		tokens_owed1 TEXT NOT NULL,
		burned BOOLEAN NOT NULL DEFAULT false
	)`,
	`CREATE TABLE IF NOT EXISTS fee_amounts (
		fee BIGINT PRIMARY KEY,
		tick_spacing BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS replay_state (
		name TEXT PRIMARY KEY,
		last_block BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schema {
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// u256str renders a value for a TEXT column. Nil means zero.
func u256str(x *uint256.Int) string {
	if x == nil {
		return "0"
	}
	return x.Dec()
}

func u256parse(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	return uint256.FromDecimal(s)
}

// LoadCheckpoint returns the last applied block for a name.
func (s *Store) LoadCheckpoint(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("checkpoint name required")
	}
	var block uint64
	row := s.pool.QueryRow(ctx, `SELECT last_block FROM replay_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return block, true, nil
}

// SaveCheckpoint upserts the last applied block for a name.
func (s *Store) SaveCheckpoint(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("checkpoint name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO replay_state (name, last_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_block = EXCLUDED.last_block, updated_at = now()
	`, name, block)
	return err
}

func (s *Store) Pools() state.PoolStore                 { return (*pgPools)(s) }
func (s *Store) Slots() state.SlotStore                 { return (*pgSlots)(s) }
func (s *Store) Ticks() state.TickStore                 { return (*pgTicks)(s) }
func (s *Store) Bitmaps() state.BitmapStore             { return (*pgBitmaps)(s) }
func (s *Store) Observations() state.ObservationStore   { return (*pgObservations)(s) }
func (s *Store) FeeGrowth() state.FeeGrowthStore        { return (*pgFeeGrowth)(s) }
func (s *Store) PositionInfos() state.PositionInfoStore { return (*pgPositionInfos)(s) }
func (s *Store) Positions() state.PositionStore         { return (*pgPositions)(s) }
func (s *Store) FeeAmounts() state.FeeAmountStore       { return (*pgFeeAmounts)(s) }
