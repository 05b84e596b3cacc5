package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"slidecast/internal/deps"
	"slidecast/internal/logging"
	"slidecast/internal/pipeline"
	"slidecast/internal/registry"
	"slidecast/internal/server"
	"slidecast/internal/services/poppler"
	"slidecast/internal/services/soffice"
	"slidecast/internal/workspace"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the conversion service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx)
		},
	}
}

func runServe(cmdCtx context.Context, ctx *commandContext) error {
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

	// One service instance per work root; a second instance would race
	// workspace and output directories.
	instanceLock := flock.New(filepath.Join(cfg.Paths.LogDir, "slidecast.lock"))
	locked, err := instanceLock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another slidecast instance is already running for %s", cfg.Paths.WorkRoot)
	}
	defer func() { _ = instanceLock.Unlock() }()

	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		if !status.Available {
			logger.Warn("external tool unavailable",
				logging.String("tool", status.Name),
				logging.String("detail", status.Detail))
		}
	}

	workspaces, err := workspace.NewManager(cfg.Paths.WorkRoot)
	if err != nil {
		return fmt.Errorf("init workspace manager: %w", err)
	}

	converter, err := soffice.New(cfg.Converter.Binary, cfg.Paths.ProfileDir, cfg.Converter.TimeoutSeconds)
	if err != nil {
		return fmt.Errorf("init converter: %w", err)
	}
	rasterizer, err := poppler.New(cfg.Rasterizer.Binary, cfg.Rasterizer.TimeoutSeconds, cfg.Rasterizer.MaxDPI)
	if err != nil {
		return fmt.Errorf("init rasterizer: %w", err)
	}

	reg := registry.New()

	var history *registry.History
	if cfg.History.Enabled {
		history, err = registry.OpenHistory(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer history.Close()
	}

	orch := pipeline.New(cfg, logger, reg, history, workspaces, converter, rasterizer)
	go orch.RunSweeper(signalCtx)

	srv := server.New(cfg, logger, reg, history, orch)
	if err := srv.Start(signalCtx); err != nil {
		return err
	}
	defer srv.Stop()

	logger.Info("slidecast serving",
		logging.String("bind", srv.Addr()),
		logging.String("base_url", cfg.Server.BaseURL),
		logging.Int("workers", cfg.Pipeline.Workers))

	<-signalCtx.Done()
	logger.Info("slidecast shutting down")

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer drainCancel()
	if err := orch.Shutdown(drainCtx); err != nil {
		logger.Warn("pipeline drain incomplete", logging.Error(err))
	}
	return nil
}
