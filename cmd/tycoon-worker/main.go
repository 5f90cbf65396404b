package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tycoon/internal/catalog"
	"tycoon/internal/config"
	"tycoon/internal/save"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		slog.Error("load .env", "err", err)
		os.Exit(1)
	}
	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Error("catalog load failed", "path", cfg.CatalogPath, "err", err)
		os.Exit(1)
	}

	store, closeStore, err := save.Open(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("save store init failed", "err", err)
		os.Exit(1)
	}
	defer closeStore()

	saver := save.NewSaver(store, save.NewCodec(cat.Rules()), cfg.Store.BackupEvery, logger)

	if cfg.RunOnce {
		if err := sweep(ctx, saver, logger); err != nil {
			closeStore()
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	ticker := time.NewTicker(cfg.SweepEvery)
	defer ticker.Stop()

	logger.Info("worker started", "sweep_every", cfg.SweepEvery.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			_ = sweep(ctx, saver, logger)
		}
	}
}

func sweep(ctx context.Context, saver *save.Saver, logger *slog.Logger) error {
	started := time.Now()
	report, err := saver.Sweep(ctx)
	if err != nil {
		logger.Error("save sweep failed", "err", err)
		return err
	}
	logger.Info("save sweep complete",
		"checked", report.Checked,
		"ok", report.Statuses[save.VerifyOK],
		"repaired", report.Statuses[save.VerifyRepaired],
		"upgraded", report.Statuses[save.VerifyUpgraded],
		"corrupt", report.Statuses[save.VerifyCorrupt],
		"changed", report.Statuses[save.VerifyChanged],
		"failed", len(report.Failed),
		"took", time.Since(started).String(),
	)
	return nil
}
