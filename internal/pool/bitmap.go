package pool

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"poolmirror/internal/model"
	"poolmirror/internal/v3math"
)

// bitmapPosition splits a compressed tick into its word and bit, matching the
// EVM int16/uint8 truncation for negative ticks.
func bitmapPosition(compressed int32) (wordPos int16, bitPos uint8) {
	return int16(compressed >> 8), uint8(compressed & 0xff)
}

func (p *Pool) bitmapWord(ctx context.Context, wordPos int16) (*model.BitmapWord, error) {
	word, err := p.st.Bitmaps().Get(ctx, p.id, wordPos)
	if err != nil {
		return nil, err
	}
	if word == nil {
		word = &model.BitmapWord{PoolID: p.id, WordPos: wordPos, Word: new(uint256.Int)}
	}
	return word, nil
}

// flipTick toggles the initialized bit for a tick. The tick must sit on the
// pool's spacing grid.
func (p *Pool) flipTick(ctx context.Context, tick, tickSpacing int32) error {
	if tick%tickSpacing != 0 {
		return fmt.Errorf("tick %d not aligned to spacing %d", tick, tickSpacing)
	}
	wordPos, bitPos := bitmapPosition(tick / tickSpacing)
	word, err := p.bitmapWord(ctx, wordPos)
	if err != nil {
		return err
	}
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bitPos))
	word.Word = new(uint256.Int).Xor(word.Word, mask)
	return p.st.Bitmaps().Save(ctx, word)
}

// nextInitializedTickWithinOneWord scans at most one bitmap word from tick in
// the given direction. When no initialized tick exists in the word it returns
// the word-boundary tick with initialized=false.
func (p *Pool) nextInitializedTickWithinOneWord(ctx context.Context, tick, tickSpacing int32, lte bool) (next int32, initialized bool, err error) {
	compressed := tick / tickSpacing
	if tick < 0 && tick%tickSpacing != 0 {
		compressed-- // round toward negative infinity
	}

	if lte {
		wordPos, bitPos := bitmapPosition(compressed)
		word, err := p.bitmapWord(ctx, wordPos)
		if err != nil {
			return 0, false, err
		}
		// All bits at or below bitPos.
		mask := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bitPos))
		mask.Sub(mask, uint256.NewInt(1))
		mask.Or(mask, new(uint256.Int).Lsh(uint256.NewInt(1), uint(bitPos)))
		masked := new(uint256.Int).And(word.Word, mask)

		if masked.IsZero() {
			return (compressed - int32(bitPos)) * tickSpacing, false, nil
		}
		msb, err := v3math.MostSignificantBit(masked)
		if err != nil {
			return 0, false, err
		}
		return (compressed - int32(bitPos) + int32(msb)) * tickSpacing, true, nil
	}

	// Scanning left to right starts just above the current tick.
	wordPos, bitPos := bitmapPosition(compressed + 1)
	word, err := p.bitmapWord(ctx, wordPos)
	if err != nil {
		return 0, false, err
	}
	// All bits at or above bitPos.
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bitPos))
	mask.Sub(mask, uint256.NewInt(1))
	mask.Not(mask)
	masked := new(uint256.Int).And(word.Word, mask)

	if masked.IsZero() {
		return (compressed + 1 + int32(255-bitPos)) * tickSpacing, false, nil
	}
	lsb, err := v3math.LeastSignificantBit(masked)
	if err != nil {
		return 0, false, err
	}
	return (compressed + 1 + int32(lsb) - int32(bitPos)) * tickSpacing, true, nil
}
