package state

import (
	"context"
	"fmt"
	"sync"

	"poolmirror/internal/model"
)

// Memory is an in-process Store. Rows are deep-copied on both save and get so
// callers never alias the arena.
type Memory struct {
	mu            sync.Mutex
	pools         map[string]*model.Pool
	slots         map[string]*model.Slot
	ticks         map[string]*model.TickInfo
	bitmaps       map[string]*model.BitmapWord
	observations  map[string]*model.Observation
	feeGrowth     map[string][]*model.FeeGrowthGlobal
	positionInfos map[string]*model.PositionInfo
	positions     map[string]*model.Position
	feeAmounts    map[uint32]*model.FeeAmount
	checkpoints   map[string]uint64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		pools:         make(map[string]*model.Pool),
		slots:         make(map[string]*model.Slot),
		ticks:         make(map[string]*model.TickInfo),
		bitmaps:       make(map[string]*model.BitmapWord),
		observations:  make(map[string]*model.Observation),
		feeGrowth:     make(map[string][]*model.FeeGrowthGlobal),
		positionInfos: make(map[string]*model.PositionInfo),
		positions:     make(map[string]*model.Position),
		feeAmounts:    make(map[uint32]*model.FeeAmount),
		checkpoints:   make(map[string]uint64),
	}
}

func (m *Memory) Pools() PoolStore                 { return (*memPools)(m) }
func (m *Memory) Slots() SlotStore                 { return (*memSlots)(m) }
func (m *Memory) Ticks() TickStore                 { return (*memTicks)(m) }
func (m *Memory) Bitmaps() BitmapStore             { return (*memBitmaps)(m) }
func (m *Memory) Observations() ObservationStore   { return (*memObservations)(m) }
func (m *Memory) FeeGrowth() FeeGrowthStore        { return (*memFeeGrowth)(m) }
func (m *Memory) PositionInfos() PositionInfoStore { return (*memPositionInfos)(m) }
func (m *Memory) Positions() PositionStore         { return (*memPositions)(m) }
func (m *Memory) FeeAmounts() FeeAmountStore       { return (*memFeeAmounts)(m) }

func (m *Memory) LoadCheckpoint(_ context.Context, name string) (uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	block, ok := m.checkpoints[name]
	return block, ok, nil
}

func (m *Memory) SaveCheckpoint(_ context.Context, name string, block uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[name] = block
	return nil
}

func tickKey(poolID string, tick int32) string {
	return fmt.Sprintf("%s:%d", poolID, tick)
}

func wordKey(poolID string, wordPos int16) string {
	return fmt.Sprintf("%s:%d", poolID, wordPos)
}

func obsKey(poolID string, index uint16) string {
	return fmt.Sprintf("%s:%d", poolID, index)
}

type memPools Memory

func (m *memPools) Get(_ context.Context, id string) (*model.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pools[id]; ok {
		return p.Clone(), nil
	}
	return nil, nil
}

func (m *memPools) Save(_ context.Context, pool *model.Pool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools[pool.ID] = pool.Clone()
	return nil
}

func (m *memPools) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.pools)), nil
}

type memSlots Memory

func (m *memSlots) Get(_ context.Context, poolID string) (*model.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.slots[poolID]; ok {
		return s.Clone(), nil
	}
	return nil, nil
}

func (m *memSlots) Save(_ context.Context, slot *model.Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[slot.PoolID] = slot.Clone()
	return nil
}

type memTicks Memory

func (m *memTicks) Get(_ context.Context, poolID string, tick int32) (*model.TickInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.ticks[tickKey(poolID, tick)]; ok {
		return t.Clone(), nil
	}
	return nil, nil
}

func (m *memTicks) Save(_ context.Context, info *model.TickInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks[tickKey(info.PoolID, info.Tick)] = info.Clone()
	return nil
}

func (m *memTicks) Delete(_ context.Context, poolID string, tick int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ticks, tickKey(poolID, tick))
	return nil
}

type memBitmaps Memory

func (m *memBitmaps) Get(_ context.Context, poolID string, wordPos int16) (*model.BitmapWord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.bitmaps[wordKey(poolID, wordPos)]; ok {
		return w.Clone(), nil
	}
	return nil, nil
}

func (m *memBitmaps) Save(_ context.Context, word *model.BitmapWord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bitmaps[wordKey(word.PoolID, word.WordPos)] = word.Clone()
	return nil
}

type memObservations Memory

func (m *memObservations) Get(_ context.Context, poolID string, index uint16) (*model.Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.observations[obsKey(poolID, index)]; ok {
		return o.Clone(), nil
	}
	return nil, nil
}

func (m *memObservations) Save(_ context.Context, obs *model.Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observations[obsKey(obs.PoolID, obs.Index)] = obs.Clone()
	return nil
}

type memFeeGrowth Memory

func (m *memFeeGrowth) Latest(_ context.Context, poolID string) (*model.FeeGrowthGlobal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	revisions := m.feeGrowth[poolID]
	if len(revisions) == 0 {
		return nil, nil
	}
	return revisions[len(revisions)-1].Clone(), nil
}

func (m *memFeeGrowth) Append(_ context.Context, fg *model.FeeGrowthGlobal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feeGrowth[fg.PoolID] = append(m.feeGrowth[fg.PoolID], fg.Clone())
	return nil
}

type memPositionInfos Memory

func (m *memPositionInfos) Get(_ context.Context, id string) (*model.PositionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.positionInfos[id]; ok {
		return p.Clone(), nil
	}
	return nil, nil
}

func (m *memPositionInfos) Save(_ context.Context, info *model.PositionInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positionInfos[info.ID] = info.Clone()
	return nil
}

type memPositions Memory

func (m *memPositions) Get(_ context.Context, id string) (*model.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.positions[id]; ok {
		return p.Clone(), nil
	}
	return nil, nil
}

func (m *memPositions) GetByTokenID(_ context.Context, tokenID uint64) (*model.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.positions {
		if p.TokenID == tokenID {
			return p.Clone(), nil
		}
	}
	return nil, nil
}

func (m *memPositions) Save(_ context.Context, pos *model.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[pos.ID] = pos.Clone()
	return nil
}

type memFeeAmounts Memory

func (m *memFeeAmounts) Get(_ context.Context, fee uint32) (*model.FeeAmount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fa, ok := m.feeAmounts[fee]; ok {
		copied := *fa
		return &copied, nil
	}
	return nil, nil
}

func (m *memFeeAmounts) Save(_ context.Context, fa *model.FeeAmount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *fa
	m.feeAmounts[fa.Fee] = &copied
	return nil
}
