package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"poolmirror/internal/config"
	"poolmirror/internal/model"
	"poolmirror/internal/replay"
	"poolmirror/internal/state"
	"poolmirror/internal/state/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "replayer",
		Short:        "Off-chain concentrated-liquidity pool replayer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a decoded transaction stream into the state store",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("in", "", "input transactions JSONL")
	replayCmd.Flags().String("store", "memory", "state store backend (memory, postgres)")
	replayCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	replayCmd.Flags().String("factory-owner", "0x0000000000000000000000000000000000000001", "factory owner address")
	replayCmd.Flags().String("manager-address", "0x0000000000000000000000000000000000000002", "position manager address")
	replayCmd.Flags().Bool("resume", true, "skip blocks at or below the saved checkpoint")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the stored state of one pool as JSON",
		RunE:  runInspect,
	}

	inspectCmd.Flags().String("store", "memory", "state store backend (memory, postgres)")
	inspectCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	inspectCmd.Flags().String("token0", "", "first token address")
	inspectCmd.Flags().String("token1", "", "second token address")
	inspectCmd.Flags().Uint32("fee", 0, "fee tier in hundredths of a bip")
	inspectCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(inspectCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	src, err := replay.OpenJSONL(cfg.Input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer src.Close()

	runner := replay.NewRunner(replay.RunConfig{
		FactoryOwner:   cfg.FactoryOwner,
		ManagerAddress: cfg.ManagerAddress,
		Resume:         cfg.Resume,
	}, st, logger)

	logger.Info("replay start",
		zap.String("in", cfg.Input),
		zap.String("store", cfg.Store),
		zap.Bool("resume", cfg.Resume),
	)

	stats, err := runner.Run(ctx, src)
	if err != nil {
		return err
	}

	fmt.Printf("applied=%d rejected=%d skipped_reverted=%d skipped_resumed=%d last_block=%d\n",
		stats.Applied, stats.Rejected, stats.SkippedReverted, stats.SkippedResumed, stats.LastBlockApplied)
	return nil
}

func runInspect(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	token0, _ := cmd.Flags().GetString("token0")
	token1, _ := cmd.Flags().GetString("token1")
	fee, _ := cmd.Flags().GetUint32("fee")
	if token0 == "" || token1 == "" || fee == 0 {
		return fmt.Errorf("token0, token1 and fee are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	id := model.PoolID(token0, token1, fee)
	poolRow, err := st.Pools().Get(ctx, id)
	if err != nil {
		return err
	}
	if poolRow == nil {
		return fmt.Errorf("pool %s not found", id)
	}
	slot, err := st.Slots().Get(ctx, id)
	if err != nil {
		return err
	}
	fg, err := st.FeeGrowth().Latest(ctx, id)
	if err != nil {
		return err
	}

	out := struct {
		Pool      *model.Pool            `json:"pool"`
		Slot      *model.Slot            `json:"slot"`
		FeeGrowth *model.FeeGrowthGlobal `json:"fee_growth"`
	}{poolRow, slot, fg}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// openStore builds the configured backend. Postgres gets its schema
// created on open.
func openStore(ctx context.Context, cfg config.Config) (state.Store, func(), error) {
	switch cfg.Store {
	case "postgres":
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return state.NewMemory(), func() {}, nil
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
