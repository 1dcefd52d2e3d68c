package replay

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"poolmirror/internal/factory"
	"poolmirror/internal/manager"
	"poolmirror/internal/pool"
	"poolmirror/internal/router"
	"poolmirror/internal/state"
)

// replayCheckpoint names the checkpoint row holding the last applied block.
const replayCheckpoint = "replay"

// RunConfig holds runtime settings for a replay.
type RunConfig struct {
	FactoryOwner   string
	ManagerAddress string
	Resume         bool
}

// Stats counts what happened to each transaction in the stream.
type Stats struct {
	Applied          uint64
	Rejected         uint64
	SkippedReverted  uint64
	SkippedResumed   uint64
	LastBlockApplied uint64
}

// Runner replays a transaction stream against a state store. Replay is
// strictly sequential: fee growth and tick crossings are only correct in
// chain order.
type Runner struct {
	cfg RunConfig
	st  state.Store
	log *zap.Logger
}

func NewRunner(cfg RunConfig, st state.Store, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, st: st, log: logger}
}

// Run consumes the source until EOF. A rejected transaction is logged and
// skipped; the replay itself only fails on storage or stream errors.
func (r *Runner) Run(ctx context.Context, src Source) (*Stats, error) {
	if r.st == nil {
		return nil, fmt.Errorf("state store is nil")
	}
	if src == nil {
		return nil, fmt.Errorf("transaction source is nil")
	}
	if r.cfg.ManagerAddress == "" {
		return nil, fmt.Errorf("manager address is required")
	}

	fac := factory.New(r.st, r.log, r.cfg.FactoryOwner)
	if err := fac.EnsureDefaultFeeAmounts(ctx); err != nil {
		return nil, fmt.Errorf("ensure fee tiers: %w", err)
	}

	var resumeBlock uint64
	if r.cfg.Resume {
		block, ok, err := r.st.LoadCheckpoint(ctx, replayCheckpoint)
		if err != nil {
			return nil, fmt.Errorf("load checkpoint: %w", err)
		}
		if ok {
			resumeBlock = block
			r.log.Info("resume from checkpoint", zap.Uint64("last_applied", block))
		}
	}

	stats := &Stats{}
	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		tx, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, err
		}

		if !tx.Success {
			stats.SkippedReverted++
			continue
		}
		if resumeBlock > 0 && tx.BlockNumber <= resumeBlock {
			stats.SkippedResumed++
			continue
		}

		blk := pool.BlockContext{Number: tx.BlockNumber, Timestamp: tx.BlockTimestamp}
		mgr := manager.New(r.st, r.log, fac, r.cfg.ManagerAddress, blk)
		rtr := router.New(r.st, r.log, fac, blk)

		if err := r.applyTransaction(ctx, fac, mgr, rtr, blk, tx); err != nil {
			stats.Rejected++
			r.log.Warn("transaction rejected",
				zap.String("hash", tx.Hash),
				zap.String("method", tx.Method),
				zap.Uint64("block", tx.BlockNumber),
				zap.Error(err),
			)
			continue
		}

		stats.Applied++
		stats.LastBlockApplied = tx.BlockNumber
		if err := r.st.SaveCheckpoint(ctx, replayCheckpoint, tx.BlockNumber); err != nil {
			return stats, fmt.Errorf("save checkpoint: %w", err)
		}
	}

	r.log.Info("replay finished",
		zap.Uint64("applied", stats.Applied),
		zap.Uint64("rejected", stats.Rejected),
		zap.Uint64("skipped_reverted", stats.SkippedReverted),
		zap.Uint64("skipped_resumed", stats.SkippedResumed),
		zap.Uint64("last_block", stats.LastBlockApplied),
	)
	return stats, nil
}

// applyTransaction unrolls multicalls and dispatches each call. Any failing
// inner call rejects the whole transaction.
func (r *Runner) applyTransaction(ctx context.Context, fac *factory.Factory, mgr *manager.Manager, rtr *router.Router, blk pool.BlockContext, tx *Transaction) error {
	if tx.Method == "multicall" || len(tx.Multicall) > 0 {
		if len(tx.Multicall) == 0 {
			return fmt.Errorf("multicall with no inner calls")
		}
		for i, call := range tx.Multicall {
			if err := r.dispatch(ctx, fac, mgr, rtr, blk, call.Method, call.Params); err != nil {
				return fmt.Errorf("multicall %d (%s): %w", i, call.Method, err)
			}
		}
		return nil
	}
	return r.dispatch(ctx, fac, mgr, rtr, blk, tx.Method, tx.Params)
}
