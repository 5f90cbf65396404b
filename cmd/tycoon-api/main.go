package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tycoon/internal/api"
	"tycoon/internal/catalog"
	"tycoon/internal/config"
	"tycoon/internal/events"
	"tycoon/internal/game"
	"tycoon/internal/save"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		slog.Error("load .env", "err", err)
		os.Exit(1)
	}
	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

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
	hub := events.NewHub(logger)
	go hub.Run(ctx)

	gameSvc := game.NewService(game.NewEngine(cat, nil), saver, hub, logger)
	gameSvc.SetIdleAfter(cfg.SessionIdle)
	timersDone := make(chan struct{})
	go func() {
		defer close(timersDone)
		gameSvc.Run(ctx, cfg.TickEvery, cfg.AutosaveEvery)
	}()

	server := api.New(cfg, logger, gameSvc, saver, hub)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("tycoon api listening", "addr", cfg.Addr, "upgrades", len(cat.Upgrades()), "bosses", len(cat.Bosses()))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
	<-timersDone
}
