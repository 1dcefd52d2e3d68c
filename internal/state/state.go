package state

import (
	"context"

	"poolmirror/internal/model"
)

// Store is the persistence boundary of the replica. Getters return
// (nil, nil) when the row does not exist. Implementations must return rows
// the caller may mutate freely.
type Store interface {
	Pools() PoolStore
	Slots() SlotStore
	Ticks() TickStore
	Bitmaps() BitmapStore
	Observations() ObservationStore
	FeeGrowth() FeeGrowthStore
	PositionInfos() PositionInfoStore
	Positions() PositionStore
	FeeAmounts() FeeAmountStore

	// LoadCheckpoint and SaveCheckpoint track the last fully applied
	// transaction so a replay can resume.
	LoadCheckpoint(ctx context.Context, name string) (uint64, bool, error)
	SaveCheckpoint(ctx context.Context, name string, block uint64) error
}

type PoolStore interface {
	Get(ctx context.Context, id string) (*model.Pool, error)
	Save(ctx context.Context, pool *model.Pool) error
	Count(ctx context.Context) (int64, error)
}

type SlotStore interface {
	Get(ctx context.Context, poolID string) (*model.Slot, error)
	Save(ctx context.Context, slot *model.Slot) error
}

type TickStore interface {
	Get(ctx context.Context, poolID string, tick int32) (*model.TickInfo, error)
	Save(ctx context.Context, info *model.TickInfo) error
	Delete(ctx context.Context, poolID string, tick int32) error
}

type BitmapStore interface {
	Get(ctx context.Context, poolID string, wordPos int16) (*model.BitmapWord, error)
	Save(ctx context.Context, word *model.BitmapWord) error
}

type ObservationStore interface {
	Get(ctx context.Context, poolID string, index uint16) (*model.Observation, error)
	Save(ctx context.Context, obs *model.Observation) error
}

type FeeGrowthStore interface {
	// Latest returns the highest revision for the pool, or (nil, nil).
	Latest(ctx context.Context, poolID string) (*model.FeeGrowthGlobal, error)
	// Append stores the next revision. The caller sets Revision.
	Append(ctx context.Context, fg *model.FeeGrowthGlobal) error
}

type PositionInfoStore interface {
	Get(ctx context.Context, id string) (*model.PositionInfo, error)
	Save(ctx context.Context, info *model.PositionInfo) error
}

type PositionStore interface {
	Get(ctx context.Context, id string) (*model.Position, error)
	GetByTokenID(ctx context.Context, tokenID uint64) (*model.Position, error)
	Save(ctx context.Context, pos *model.Position) error
}

type FeeAmountStore interface {
	Get(ctx context.Context, fee uint32) (*model.FeeAmount, error)
	Save(ctx context.Context, fa *model.FeeAmount) error
}
