package save

import (
	"context"
	"fmt"
	"log/slog"

	"tycoon/internal/config"
	"tycoon/internal/db"

	"github.com/redis/go-redis/v9"
)

// Open picks a store from configuration: Postgres when DATABASE_URL is set
// (optionally fronted by Redis), then a save directory, then memory. The
// returned cleanup releases any connections.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (Store, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	var cleanup []func()
	closeAll := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}

	var st Store
	switch {
	case cfg.DatabaseURL != "":
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		cleanup = append(cleanup, pool.Close)
		if err := db.EnsureSchema(ctx, pool); err != nil {
			closeAll()
			return nil, nil, err
		}
		st = NewPostgresStore(pool)
		logger.Info("save store ready", "backend", "postgres")
	case cfg.SaveDir != "":
		fs, err := NewFileStore(cfg.SaveDir)
		if err != nil {
			return nil, nil, err
		}
		st = fs
		logger.Info("save store ready", "backend", "file", "dir", cfg.SaveDir)
	default:
		st = NewMemoryStore()
		logger.Warn("no DATABASE_URL or TYCOON_SAVE_DIR, saves kept in memory only")
	}

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, cache will degrade to primary reads", "err", err)
		}
		st = NewCachedStore(st, rdb, cfg.CacheTTL, logger)
		logger.Info("save cache enabled", "ttl", cfg.CacheTTL)
	}
	return st, closeAll, nil
}
