package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"assetflow/internal/config"
	"assetflow/internal/daemon"
	"assetflow/internal/logging"
	"assetflow/internal/metrics"
	"assetflow/internal/objectstore"
	"assetflow/internal/store"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and session sweep in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx)
		},
	}
}

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Abort upload sessions that outlived their TTL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			comps, err := bootstrap(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer comps.Store.Close()

			n, err := comps.Uploads.SweepExpired(cmd.Context())
			if err != nil {
				return fmt.Errorf("sweep sessions: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Aborted %d expired session(s)\n", n)
			return nil
		},
	}
}

func runServe(cmdCtx context.Context, ctx *commandContext) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	comps, err := bootstrap(signalCtx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", logging.Error(err))
		return err
	}

	d, err := daemon.New(cfg, comps, logger)
	if err != nil {
		_ = comps.Store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("assetflow shutting down")
	return nil
}

// bootstrap opens the store and object storage and wires every service.
// The caller owns the returned store.
func bootstrap(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*daemon.Components, error) {
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	storage, err := objectstore.NewMinIO(cfg.Storage)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("object storage: %w", err)
	}
	if err := storage.EnsureBucket(ctx, cfg.Storage.Region); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("ensure bucket %s: %w", storage.Bucket(), err)
	}
	comps, err := daemon.Wire(cfg, st, storage, logger, metrics.New())
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return comps, nil
}
