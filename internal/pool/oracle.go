package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"poolmirror/internal/model"
	"poolmirror/internal/v3math"
)

var (
	// ErrOracleUninitialized is returned when the ring buffer has no slots.
	ErrOracleUninitialized = errors.New("I")
	// ErrOracleTooOld is returned when a target time precedes the oldest
	// stored observation.
	ErrOracleTooOld = errors.New("OLD")
)

func (p *Pool) observationOrEmpty(ctx context.Context, index uint16) (*model.Observation, error) {
	obs, err := p.st.Observations().Get(ctx, p.id, index)
	if err != nil {
		return nil, err
	}
	if obs == nil {
		obs = &model.Observation{
			PoolID:                            p.id,
			Index:                             index,
			SecondsPerLiquidityCumulativeX128: new(uint256.Int),
		}
	}
	return obs, nil
}

// transformObservation rolls an observation forward to blockTimestamp without
// storing it.
func transformObservation(last *model.Observation, blockTimestamp uint32, tick int32, liquidity *uint256.Int) *model.Observation {
	delta := blockTimestamp - last.BlockTimestamp
	liq := liquidity
	if liq.IsZero() {
		liq = uint256.NewInt(1)
	}
	splDelta := new(uint256.Int).Lsh(uint256.NewInt(uint64(delta)), 128)
	splDelta.Div(splDelta, liq)
	return &model.Observation{
		PoolID:                            last.PoolID,
		BlockTimestamp:                    blockTimestamp,
		TickCumulative:                    last.TickCumulative + int64(tick)*int64(delta),
		SecondsPerLiquidityCumulativeX128: new(uint256.Int).Add(last.SecondsPerLiquidityCumulativeX128, splDelta),
		Initialized:                       true,
	}
}

// oracleInitialize writes the first observation and returns the starting
// cardinality pair (1, 1).
func (p *Pool) oracleInitialize(ctx context.Context, time uint32) (cardinality, cardinalityNext uint16, err error) {
	obs := &model.Observation{
		PoolID:                            p.id,
		Index:                             0,
		BlockTimestamp:                    time,
		SecondsPerLiquidityCumulativeX128: new(uint256.Int),
		Initialized:                       true,
	}
	if err := p.st.Observations().Save(ctx, obs); err != nil {
		return 0, 0, err
	}
	return 1, 1, nil
}

// oracleWrite appends an observation, at most once per timestamp, promoting
// the cardinality when a prepared larger ring is reached.
func (p *Pool) oracleWrite(ctx context.Context, index uint16, blockTimestamp uint32, tick int32, liquidity *uint256.Int, cardinality, cardinalityNext uint16) (indexUpdated, cardinalityUpdated uint16, err error) {
	last, err := p.observationOrEmpty(ctx, index)
	if err != nil {
		return 0, 0, err
	}
	if last.BlockTimestamp == blockTimestamp {
		return index, cardinality, nil
	}

	if cardinalityNext > cardinality && index == cardinality-1 {
		cardinalityUpdated = cardinalityNext
	} else {
		cardinalityUpdated = cardinality
	}
	indexUpdated = (index + 1) % cardinalityUpdated

	next := transformObservation(last, blockTimestamp, tick, liquidity)
	next.Index = indexUpdated
	if err := p.st.Observations().Save(ctx, next); err != nil {
		return 0, 0, err
	}
	return indexUpdated, cardinalityUpdated, nil
}

// oracleGrow prepares ring slots up to next. Slots receive a nonzero
// placeholder timestamp so the write path can tell them apart from never
// allocated storage.
func (p *Pool) oracleGrow(ctx context.Context, current, next uint16) (uint16, error) {
	if current == 0 {
		return 0, ErrOracleUninitialized
	}
	if next <= current {
		return current, nil
	}
	for i := current; i < next; i++ {
		obs, err := p.observationOrEmpty(ctx, i)
		if err != nil {
			return 0, err
		}
		obs.BlockTimestamp = 1
		obs.Initialized = false
		if err := p.st.Observations().Save(ctx, obs); err != nil {
			return 0, err
		}
	}
	return next, nil
}

// timeLte reports a <= b on the 32-bit timestamp circle, anchored at the
// current time.
func timeLte(time, a, b uint32) bool {
	if a <= time && b <= time {
		return a <= b
	}
	aAdj := uint64(a)
	if a <= time {
		aAdj += 1 << 32
	}
	bAdj := uint64(b)
	if b <= time {
		bAdj += 1 << 32
	}
	return aAdj <= bAdj
}

func (p *Pool) binarySearchObservations(ctx context.Context, time, target uint32, index, cardinality uint16) (beforeOrAt, atOrAfter *model.Observation, err error) {
	l := uint32(index+1) % uint32(cardinality)
	r := l + uint32(cardinality) - 1

	for {
		mid := (l + r) / 2
		beforeOrAt, err = p.observationOrEmpty(ctx, uint16(mid%uint32(cardinality)))
		if err != nil {
			return nil, nil, err
		}
		if !beforeOrAt.Initialized {
			l = mid + 1
			continue
		}
		atOrAfter, err = p.observationOrEmpty(ctx, uint16((mid+1)%uint32(cardinality)))
		if err != nil {
			return nil, nil, err
		}

		targetAtOrAfter := timeLte(time, beforeOrAt.BlockTimestamp, target)
		if targetAtOrAfter && timeLte(time, target, atOrAfter.BlockTimestamp) {
			return beforeOrAt, atOrAfter, nil
		}
		if !targetAtOrAfter {
			r = mid - 1
		} else {
			l = mid + 1
		}
	}
}

func (p *Pool) surroundingObservations(ctx context.Context, time, target uint32, tick int32, index uint16, liquidity *uint256.Int, cardinality uint16) (beforeOrAt, atOrAfter *model.Observation, err error) {
	beforeOrAt, err = p.observationOrEmpty(ctx, index)
	if err != nil {
		return nil, nil, err
	}

	if timeLte(time, beforeOrAt.BlockTimestamp, target) {
		if beforeOrAt.BlockTimestamp == target {
			return beforeOrAt, nil, nil
		}
		return beforeOrAt, transformObservation(beforeOrAt, target, tick, liquidity), nil
	}

	beforeOrAt, err = p.observationOrEmpty(ctx, (index+1)%cardinality)
	if err != nil {
		return nil, nil, err
	}
	if !beforeOrAt.Initialized {
		beforeOrAt, err = p.observationOrEmpty(ctx, 0)
		if err != nil {
			return nil, nil, err
		}
	}
	if !timeLte(time, beforeOrAt.BlockTimestamp, target) {
		return nil, nil, ErrOracleTooOld
	}
	return p.binarySearchObservations(ctx, time, target, index, cardinality)
}

// observeSingle reconstructs the cumulative values as of secondsAgo before
// time, interpolating between stored observations when needed.
func (p *Pool) observeSingle(ctx context.Context, time uint32, secondsAgo uint32, tick int32, index uint16, liquidity *uint256.Int, cardinality uint16) (tickCumulative int64, secondsPerLiquidityCumulativeX128 *uint256.Int, err error) {
	if cardinality == 0 {
		return 0, nil, ErrOracleUninitialized
	}
	if secondsAgo == 0 {
		last, err := p.observationOrEmpty(ctx, index)
		if err != nil {
			return 0, nil, err
		}
		if last.BlockTimestamp != time {
			last = transformObservation(last, time, tick, liquidity)
		}
		return last.TickCumulative, last.SecondsPerLiquidityCumulativeX128, nil
	}

	target := time - secondsAgo
	beforeOrAt, atOrAfter, err := p.surroundingObservations(ctx, time, target, tick, index, liquidity, cardinality)
	if err != nil {
		return 0, nil, err
	}

	switch {
	case beforeOrAt.BlockTimestamp == target:
		return beforeOrAt.TickCumulative, beforeOrAt.SecondsPerLiquidityCumulativeX128, nil
	case atOrAfter != nil && atOrAfter.BlockTimestamp == target:
		return atOrAfter.TickCumulative, atOrAfter.SecondsPerLiquidityCumulativeX128, nil
	default:
		obsDelta := atOrAfter.BlockTimestamp - beforeOrAt.BlockTimestamp
		targetDelta := target - beforeOrAt.BlockTimestamp
		if obsDelta == 0 {
			return 0, nil, fmt.Errorf("zero width observation window")
		}
		tickCumulative = beforeOrAt.TickCumulative +
			(atOrAfter.TickCumulative-beforeOrAt.TickCumulative)/int64(obsDelta)*int64(targetDelta)
		splDiff := v3math.WrappingSub(atOrAfter.SecondsPerLiquidityCumulativeX128, beforeOrAt.SecondsPerLiquidityCumulativeX128)
		splDiff.Mul(splDiff, uint256.NewInt(uint64(targetDelta)))
		splDiff.Div(splDiff, uint256.NewInt(uint64(obsDelta)))
		return tickCumulative, new(uint256.Int).Add(beforeOrAt.SecondsPerLiquidityCumulativeX128, splDiff), nil
	}
}

// observe returns the cumulative values for each requested age.
func (p *Pool) observe(ctx context.Context, time uint32, secondsAgos []uint32, tick int32, index uint16, liquidity *uint256.Int, cardinality uint16) ([]int64, []*uint256.Int, error) {
	if cardinality == 0 {
		return nil, nil, ErrOracleUninitialized
	}
	tickCums := make([]int64, len(secondsAgos))
	splCums := make([]*uint256.Int, len(secondsAgos))
	for i, ago := range secondsAgos {
		tc, spl, err := p.observeSingle(ctx, time, ago, tick, index, liquidity, cardinality)
		if err != nil {
			return nil, nil, err
		}
		tickCums[i] = tc
		splCums[i] = spl
	}
	return tickCums, splCums, nil
}
