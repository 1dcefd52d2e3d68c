package replay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"poolmirror/internal/factory"
	"poolmirror/internal/manager"
	"poolmirror/internal/pool"
	"poolmirror/internal/router"
)

type createPoolParams struct {
	TokenA string `json:"token_a"`
	TokenB string `json:"token_b"`
	Fee    uint32 `json:"fee"`
}

type enableFeeAmountParams struct {
	Fee         uint32 `json:"fee"`
	TickSpacing int32  `json:"tick_spacing"`
}

type initializeParams struct {
	Token0       string `json:"token0"`
	Token1       string `json:"token1"`
	Fee          uint32 `json:"fee"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
}

type mintParams struct {
	Token0         string `json:"token0"`
	Token1         string `json:"token1"`
	Fee            uint32 `json:"fee"`
	TickLower      int32  `json:"tick_lower"`
	TickUpper      int32  `json:"tick_upper"`
	Amount0Desired string `json:"amount0_desired"`
	Amount1Desired string `json:"amount1_desired"`
	Amount0Min     string `json:"amount0_min"`
	Amount1Min     string `json:"amount1_min"`
	Recipient      string `json:"recipient"`
}

type increaseLiquidityParams struct {
	TokenID        uint64 `json:"token_id"`
	Amount0Desired string `json:"amount0_desired"`
	Amount1Desired string `json:"amount1_desired"`
	Amount0Min     string `json:"amount0_min"`
	Amount1Min     string `json:"amount1_min"`
}

type decreaseLiquidityParams struct {
	TokenID    uint64 `json:"token_id"`
	Liquidity  string `json:"liquidity"`
	Amount0Min string `json:"amount0_min"`
	Amount1Min string `json:"amount1_min"`
}

type collectParams struct {
	TokenID    uint64 `json:"token_id"`
	Recipient  string `json:"recipient"`
	Amount0Max string `json:"amount0_max"`
	Amount1Max string `json:"amount1_max"`
}

type burnParams struct {
	TokenID uint64 `json:"token_id"`
}

type exactSingleParams struct {
	TokenIn           string `json:"token_in"`
	TokenOut          string `json:"token_out"`
	Fee               uint32 `json:"fee"`
	Recipient         string `json:"recipient"`
	AmountIn          string `json:"amount_in"`
	AmountOut         string `json:"amount_out"`
	AmountOutMinimum  string `json:"amount_out_minimum"`
	AmountInMaximum   string `json:"amount_in_maximum"`
	SqrtPriceLimitX96 string `json:"sqrt_price_limit_x96"`
}

type exactPathParams struct {
	Path             string `json:"path"`
	Recipient        string `json:"recipient"`
	AmountIn         string `json:"amount_in"`
	AmountOut        string `json:"amount_out"`
	AmountOutMinimum string `json:"amount_out_minimum"`
	AmountInMaximum  string `json:"amount_in_maximum"`
}

type setFeeProtocolParams struct {
	Token0       string `json:"token0"`
	Token1       string `json:"token1"`
	Fee          uint32 `json:"fee"`
	FeeProtocol0 uint8  `json:"fee_protocol0"`
	FeeProtocol1 uint8  `json:"fee_protocol1"`
}

type collectProtocolParams struct {
	Token0           string `json:"token0"`
	Token1           string `json:"token1"`
	Fee              uint32 `json:"fee"`
	Recipient        string `json:"recipient"`
	Amount0Requested string `json:"amount0_requested"`
	Amount1Requested string `json:"amount1_requested"`
}

type increaseCardinalityParams struct {
	Token0          string `json:"token0"`
	Token1          string `json:"token1"`
	Fee             uint32 `json:"fee"`
	CardinalityNext uint16 `json:"observation_cardinality_next"`
}

func decodeParams(method string, raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%s: missing params", method)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%s: decode params: %w", method, err)
	}
	return nil
}

// poolEngine resolves an engine for pool-level operations.
func (r *Runner) poolEngine(ctx context.Context, fac *factory.Factory, blk pool.BlockContext, token0, token1 string, fee uint32) (*pool.Pool, error) {
	row, err := fac.GetPool(ctx, token0, token1, fee)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("pool not found: %s/%s fee %d", token0, token1, fee)
	}
	return pool.New(r.st, r.log, row.ID, blk), nil
}

func (r *Runner) dispatch(ctx context.Context, fac *factory.Factory, mgr *manager.Manager, rtr *router.Router, blk pool.BlockContext, method string, raw json.RawMessage) error {
	switch method {
	case "createPool":
		var p createPoolParams
		if err := decodeParams(method, raw, &p); err != nil {
			return err
		}
		_, err := fac.CreatePool(ctx, blk.Number, p.TokenA, p.TokenB, p.Fee)
		return err

	case "enableFeeAmount":
		var p enableFeeAmountParams
		if err := decodeParams(method, raw, &p); err != nil {
			return err
		}
		return fac.EnableFeeAmount(ctx, p.Fee, p.TickSpacing)

	case "initialize":
		var p initializeParams
		if err := decodeParams(method, raw, &p); err != nil {
			return err
		}
		price, err := requireU256("sqrt_price_x96", p.SqrtPriceX96)
		if err != nil {
			return err
		}
		eng, err := r.poolEngine(ctx, fac, blk, p.Token0, p.Token1, p.Fee)
		if err != nil {
			return err
		}
		return eng.Initialize(ctx, price)

	case "createAndInitializePoolIfNecessary":
		var p initializeParams
		if err := decodeParams(method, raw, &p); err != nil {
			return err
		}
		price, err := requireU256("sqrt_price_x96", p.SqrtPriceX96)
		if err != nil {
			return err
		}
		_, err = mgr.CreateAndInitializePoolIfNecessary(ctx, p.Token0, p.Token1, p.Fee, price)
		return err

	case "mint":
		var p mintParams
		if err := decodeParams(method, raw, &p); err != nil {
			return err
		}
		amount0Desired, err := requireU256("amount0_desired", p.Amount0Desired)
		if err != nil {
			return err
		}
		amount1Desired, err := requireU256("amount1_desired", p.Amount1Desired)
		if err != nil {
			return err
		}
		amount0Min, err := parseU256(p.Amount0Min)
		if err != nil {
			return err
		}
		amount1Min, err := parseU256(p.Amount1Min)
		if err != nil {
			return err
		}
		_, _, _, err = mgr.Mint(ctx, manager.MintParams{
			Token0:         p.Token0,
			Token1:         p.Token1,
			Fee:            p.Fee,
			TickLower:      p.TickLower,
			TickUpper:      p.TickUpper,
			Amount0Desired: amount0Desired,
			Amount1Desired: amount1Desired,
			Amount0Min:     amount0Min,
			Amount1Min:     amount1Min,
			Recipient:      p.Recipient,
		})
		return err

	case "increaseLiquidity":
		var p increaseLiquidityParams
		if err := decodeParams(method, raw, &p); err != nil {
			return err
		}
		amount0Desired, err := requireU256("amount0_desired", p.Amount0Desired)
		if err != nil {
			return err
		}
		amount1Desired, err := requireU256("amount1_desired", p.Amount1Desired)
		if err != nil {
			return err
		}
		amount0Min, err := parseU256(p.Amount0Min)
		if err != nil {
			return err
		}
		amount1Min, err := parseU256(p.Amount1Min)
		if err != nil {
			return err
		}
		_, _, err = mgr.IncreaseLiquidity(ctx, p.TokenID, amount0Desired, amount1Desired, amount0Min, amount1Min)
		return err

	case "decreaseLiquidity":
		var p decreaseLiquidityParams
		if err := decodeParams(method, raw, &p); err != nil {
			return err
		}
		liquidity, err := requireU256("liquidity", p.Liquidity)
		if err != nil {
			return err
		}
		amount0Min, err := parseU256(p.Amount0Min)
		if err != nil {
			return err
		}
		amount1Min, err := parseU256(p.Amount1Min)
		if err != nil {
			return err
		}
		_, _, err = mgr.DecreaseLiquidity(ctx, p.TokenID, liquidity, amount0Min, amount1Min)
		return err

	case "collect":
		var p collectParams
		if err := decodeParams(method, raw, &p); err != nil {
			return err
		}
		amount0Max, err := requireU256("amount0_max", p.Amount0Max)
		if err != nil {
			return err
		}
		amount1Max, err := requireU256("amount1_max", p.Amount1Max)
		if err != nil {
			return err
		}
		_, _, err = mgr.Collect(ctx, p.TokenID, p.Recipient, amount0Max, amount1Max)
		return err

	case "burn":
		var p burnParams
		if err := decodeParams(method, raw, &p); err != nil {
			return err
		}
		return mgr.Burn(ctx, p.TokenID)

	case "exactInputSingle":
		var p exactSingleParams
		if err := decodeParams(method, raw, &p); err != nil {
			return err
		}
		amountIn, err := requireU256("amount_in", p.AmountIn)
		if err != nil {
			return err
		}
		amountOutMinimum, err := parseU256(p.AmountOutMinimum)
		if err != nil {
			return err
		}
		limit, err := parseU256(p.SqrtPriceLimitX96)
		if err != nil {
			return err
		}
		_, err = rtr.ExactInputSingle(ctx, router.ExactInputSingleParams{
			TokenIn:           p.TokenIn,
			TokenOut:          p.TokenOut,
			Fee:               p.Fee,
			Recipient:         p.Recipient,
			AmountIn:          amountIn,
			AmountOutMinimum:  amountOutMinimum,
			SqrtPriceLimitX96: limit,
		})
		return err

	case "exactInput":
		var p exactPathParams
		if err := decodeParams(method, raw, &p); err != nil {
			return err
		}
		path, err := hexutil.Decode(p.Path)
		if err != nil {
			return fmt.Errorf("decode path: %w", err)
		}
		amountIn, err := requireU256("amount_in", p.AmountIn)
		if err != nil {
			return err
		}
		amountOutMinimum, err := parseU256(p.AmountOutMinimum)
		if err != nil {
			return err
		}
		_, err = rtr.ExactInput(ctx, router.ExactInputParams{
			Path:             router.Path(path),
			Recipient:        p.Recipient,
			AmountIn:         amountIn,
			AmountOutMinimum: amountOutMinimum,
		})
		return err

	case "exactOutputSingle":
		var p exactSingleParams
		if err := decodeParams(method, raw, &p); err != nil {
			return err
		}
		amountOut, err := requireU256("amount_out", p.AmountOut)
		if err != nil {
			return err
		}
		amountInMaximum, err := parseU256(p.AmountInMaximum)
		if err != nil {
			return err
		}
		limit, err := parseU256(p.SqrtPriceLimitX96)
		if err != nil {
			return err
		}
		_, err = rtr.ExactOutputSingle(ctx, router.ExactOutputSingleParams{
			TokenIn:           p.TokenIn,
			TokenOut:          p.TokenOut,
			Fee:               p.Fee,
			Recipient:         p.Recipient,
			AmountOut:         amountOut,
			AmountInMaximum:   amountInMaximum,
			SqrtPriceLimitX96: limit,
		})
		return err

	case "exactOutput":
		var p exactPathParams
		if err := decodeParams(method, raw, &p); err != nil {
			return err
		}
		path, err := hexutil.Decode(p.Path)
		if err != nil {
			return fmt.Errorf("decode path: %w", err)
		}
		amountOut, err := requireU256("amount_out", p.AmountOut)
		if err != nil {
			return err
		}
		amountInMaximum, err := parseU256(p.AmountInMaximum)
		if err != nil {
			return err
		}
		_, err = rtr.ExactOutput(ctx, router.ExactOutputParams{
			Path:            router.Path(path),
			Recipient:       p.Recipient,
			AmountOut:       amountOut,
			AmountInMaximum: amountInMaximum,
		})
		return err

	case "setFeeProtocol":
		var p setFeeProtocolParams
		if err := decodeParams(method, raw, &p); err != nil {
			return err
		}
		eng, err := r.poolEngine(ctx, fac, blk, p.Token0, p.Token1, p.Fee)
		if err != nil {
			return err
		}
		return eng.SetFeeProtocol(ctx, p.FeeProtocol0, p.FeeProtocol1)

	case "collectProtocol":
		var p collectProtocolParams
		if err := decodeParams(method, raw, &p); err != nil {
			return err
		}
		amount0, err := requireU256("amount0_requested", p.Amount0Requested)
		if err != nil {
			return err
		}
		amount1, err := requireU256("amount1_requested", p.Amount1Requested)
		if err != nil {
			return err
		}
		eng, err := r.poolEngine(ctx, fac, blk, p.Token0, p.Token1, p.Fee)
		if err != nil {
			return err
		}
		_, _, err = eng.CollectProtocol(ctx, p.Recipient, amount0, amount1)
		return err

	case "increaseObservationCardinalityNext":
		var p increaseCardinalityParams
		if err := decodeParams(method, raw, &p); err != nil {
			return err
		}
		eng, err := r.poolEngine(ctx, fac, blk, p.Token0, p.Token1, p.Fee)
		if err != nil {
			return err
		}
		return eng.IncreaseObservationCardinalityNext(ctx, p.CardinalityNext)

	default:
		return fmt.Errorf("unknown method %q", method)
	}
}
