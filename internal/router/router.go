// Package router executes single and multi-hop swaps against registered
// pools.
package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"poolmirror/internal/factory"
	"poolmirror/internal/model"
	"poolmirror/internal/pool"
	"poolmirror/internal/state"
	"poolmirror/internal/v3math"
)

var (
	ErrTooLittleReceived = errors.New("too little received")
	ErrTooMuchRequested  = errors.New("too much requested")
	ErrPoolNotFound      = errors.New("pool not found for route")
)

// Router resolves routes through the factory registry and drives the pool
// engines.
type Router struct {
	st  state.Store
	log *zap.Logger
	fac *factory.Factory
	blk pool.BlockContext

	// amountInCached carries the computed input through the exact-output
	// callback chain.
	amountInCached *uint256.Int
}

func New(st state.Store, log *zap.Logger, fac *factory.Factory, blk pool.BlockContext) *Router {
	return &Router{st: st, log: log, fac: fac, blk: blk, amountInCached: v3math.MaxUint256.Clone()}
}

type ExactInputSingleParams struct {
	TokenIn           string
	TokenOut          string
	Fee               uint32
	Recipient         string
	AmountIn          *uint256.Int
	AmountOutMinimum  *uint256.Int
	SqrtPriceLimitX96 *uint256.Int
}

type ExactInputParams struct {
	Path             Path
	Recipient        string
	AmountIn         *uint256.Int
	AmountOutMinimum *uint256.Int
}

type ExactOutputSingleParams struct {
	TokenIn           string
	TokenOut          string
	Fee               uint32
	Recipient         string
	AmountOut         *uint256.Int
	AmountInMaximum   *uint256.Int
	SqrtPriceLimitX96 *uint256.Int
}

type ExactOutputParams struct {
	Path            Path
	Recipient       string
	AmountOut       *uint256.Int
	AmountInMaximum *uint256.Int
}

func (r *Router) poolFor(ctx context.Context, tokenIn, tokenOut string, fee uint32) (*pool.Pool, bool, error) {
	row, err := r.fac.GetPool(ctx, tokenIn, tokenOut, fee)
	if err != nil {
		return nil, false, err
	}
	if row == nil {
		return nil, false, fmt.Errorf("%w: %s/%s fee %d", ErrPoolNotFound, tokenIn, tokenOut, fee)
	}
	zeroForOne := model.NormalizeAddress(tokenIn) == row.Token0
	return pool.New(r.st, r.log, row.ID, r.blk), zeroForOne, nil
}

func defaultSqrtPriceLimit(zeroForOne bool) *uint256.Int {
	one := uint256.NewInt(1)
	if zeroForOne {
		return new(uint256.Int).Add(v3math.MinSqrtRatio, one)
	}
	return new(uint256.Int).Sub(v3math.MaxSqrtRatio, one)
}

func (r *Router) exactInputInternal(ctx context.Context, amountIn *uint256.Int, recipient string, sqrtPriceLimitX96 *uint256.Int, tokenIn, tokenOut string, fee uint32) (*uint256.Int, error) {
	p, zeroForOne, err := r.poolFor(ctx, tokenIn, tokenOut, fee)
	if err != nil {
		return nil, err
	}
	limit := sqrtPriceLimitX96
	if limit == nil || limit.IsZero() {
		limit = defaultSqrtPriceLimit(zeroForOne)
	}
	amount0, amount1, err := p.Swap(ctx, recipient, zeroForOne, amountIn.Clone(), limit, nil, nil)
	if err != nil {
		return nil, err
	}
	if zeroForOne {
		return v3math.Abs(amount1), nil
	}
	return v3math.Abs(amount0), nil
}

// ExactInputSingle swaps a fixed input through one pool.
func (r *Router) ExactInputSingle(ctx context.Context, params ExactInputSingleParams) (*uint256.Int, error) {
	amountOut, err := r.exactInputInternal(ctx, params.AmountIn, params.Recipient, params.SqrtPriceLimitX96, params.TokenIn, params.TokenOut, params.Fee)
	if err != nil {
		return nil, err
	}
	if params.AmountOutMinimum != nil && amountOut.Lt(params.AmountOutMinimum) {
		return nil, fmt.Errorf("%w: got %s, want at least %s", ErrTooLittleReceived, amountOut.Dec(), params.AmountOutMinimum.Dec())
	}
	return amountOut, nil
}

// ExactInput swaps a fixed input along a multi-hop path, feeding each hop's
// output into the next.
func (r *Router) ExactInput(ctx context.Context, params ExactInputParams) (*uint256.Int, error) {
	amount := params.AmountIn.Clone()
	path := params.Path
	for {
		hasMultiplePools := path.HasMultiplePools()
		tokenIn, tokenOut, fee, err := path.DecodeFirstPool()
		if err != nil {
			return nil, err
		}
		amount, err = r.exactInputInternal(ctx, amount, params.Recipient, nil, tokenIn, tokenOut, fee)
		if err != nil {
			return nil, err
		}
		if !hasMultiplePools {
			break
		}
		path = path.SkipToken()
	}
	if params.AmountOutMinimum != nil && amount.Lt(params.AmountOutMinimum) {
		return nil, fmt.Errorf("%w: got %s, want at least %s", ErrTooLittleReceived, amount.Dec(), params.AmountOutMinimum.Dec())
	}
	return amount, nil
}

// exactOutputInternal swaps for a fixed output on the first pool of path.
// Exact-output paths are encoded output-first, so hops unwind from the end
// of the route: paying for one hop triggers the swap that produces its
// input.
func (r *Router) exactOutputInternal(ctx context.Context, amountOut *uint256.Int, recipient string, sqrtPriceLimitX96 *uint256.Int, path Path) (*uint256.Int, error) {
	tokenOut, tokenIn, fee, err := path.DecodeFirstPool()
	if err != nil {
		return nil, err
	}
	p, _, err := r.poolFor(ctx, tokenIn, tokenOut, fee)
	if err != nil {
		return nil, err
	}
	zeroForOne := model.NormalizeAddress(tokenIn) < model.NormalizeAddress(tokenOut)

	limit := sqrtPriceLimitX96
	hasLimit := limit != nil && !limit.IsZero()
	if !hasLimit {
		limit = defaultSqrtPriceLimit(zeroForOne)
	}

	cb := func(cbCtx context.Context, amount0, amount1 *uint256.Int, _ []byte) error {
		amountToPay := amount0
		if !zeroForOne {
			amountToPay = amount1
		}
		if path.HasMultiplePools() {
			_, err := r.exactOutputInternal(cbCtx, amountToPay, recipient, nil, path.SkipToken())
			return err
		}
		r.amountInCached = amountToPay.Clone()
		return nil
	}

	amount0, amount1, err := p.Swap(ctx, recipient, zeroForOne, v3math.Neg(amountOut), limit, nil, cb)
	if err != nil {
		return nil, err
	}
	var amountIn, amountOutReceived *uint256.Int
	if zeroForOne {
		amountIn, amountOutReceived = amount0, v3math.Abs(amount1)
	} else {
		amountIn, amountOutReceived = amount1, v3math.Abs(amount0)
	}
	// Without an explicit price limit the full output must be available.
	if !hasLimit && !amountOutReceived.Eq(amountOut) {
		return nil, fmt.Errorf("%w: received %s of %s", ErrTooLittleReceived, amountOutReceived.Dec(), amountOut.Dec())
	}
	return amountIn, nil
}

// ExactOutputSingle swaps through one pool for a fixed output.
func (r *Router) ExactOutputSingle(ctx context.Context, params ExactOutputSingleParams) (*uint256.Int, error) {
	path, err := EncodePath([]string{params.TokenOut, params.TokenIn}, []uint32{params.Fee})
	if err != nil {
		return nil, err
	}
	amountIn, err := r.exactOutputInternal(ctx, params.AmountOut, params.Recipient, params.SqrtPriceLimitX96, path)
	if err != nil {
		return nil, err
	}
	if params.AmountInMaximum != nil && amountIn.Gt(params.AmountInMaximum) {
		return nil, fmt.Errorf("%w: need %s, cap %s", ErrTooMuchRequested, amountIn.Dec(), params.AmountInMaximum.Dec())
	}
	r.amountInCached = v3math.MaxUint256.Clone()
	return amountIn, nil
}

// ExactOutput swaps along a multi-hop path for a fixed output. The path is
// encoded output-first.
func (r *Router) ExactOutput(ctx context.Context, params ExactOutputParams) (*uint256.Int, error) {
	if _, err := r.exactOutputInternal(ctx, params.AmountOut, params.Recipient, nil, params.Path); err != nil {
		return nil, err
	}
	amountIn := r.amountInCached
	r.amountInCached = v3math.MaxUint256.Clone()
	if params.AmountInMaximum != nil && amountIn.Gt(params.AmountInMaximum) {
		return nil, fmt.Errorf("%w: need %s, cap %s", ErrTooMuchRequested, amountIn.Dec(), params.AmountInMaximum.Dec())
	}
	return amountIn, nil
}
