package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const minTickEvery = time.Second

type StoreConfig struct {
	DatabaseURL string
	RedisURL    string
	SaveDir     string
	CacheTTL    time.Duration
	BackupEvery int
}

type APIConfig struct {
	Addr          string
	CatalogPath   string
	Store         StoreConfig
	TickEvery     time.Duration
	AutosaveEvery time.Duration
	SessionIdle   time.Duration
}

type WorkerConfig struct {
	CatalogPath string
	Store       StoreConfig
	SweepEvery  time.Duration
	RunOnce     bool
}

type CLIConfig struct {
	APIBaseURL string
}

// LoadDotEnv reads a .env file from the working directory when one exists.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("TYCOON_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:          addr,
		CatalogPath:   strings.TrimSpace(os.Getenv("TYCOON_CATALOG")),
		Store:         loadStore(),
		TickEvery:     envDurationDefault("TYCOON_TICK_EVERY", time.Second),
		AutosaveEvery: envDurationDefault("TYCOON_AUTOSAVE_EVERY", 30*time.Second),
		SessionIdle:   envDurationDefault("TYCOON_SESSION_IDLE", 30*time.Minute),
	}
	if cfg.TickEvery < minTickEvery {
		return cfg, fmt.Errorf("TYCOON_TICK_EVERY must be at least %s, got %s", minTickEvery, cfg.TickEvery)
	}
	if cfg.AutosaveEvery <= 0 {
		return cfg, fmt.Errorf("TYCOON_AUTOSAVE_EVERY must be positive")
	}
	if cfg.Store.BackupEvery < 1 {
		return cfg, fmt.Errorf("TYCOON_BACKUP_EVERY must be at least 1")
	}
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	cfg := WorkerConfig{
		CatalogPath: strings.TrimSpace(os.Getenv("TYCOON_CATALOG")),
		Store:       loadStore(),
		SweepEvery:  envDurationDefault("TYCOON_SWEEP_EVERY", 10*time.Minute),
		RunOnce:     envBoolDefault("TYCOON_WORKER_RUN_ONCE", false),
	}
	if cfg.Store.DatabaseURL == "" && cfg.Store.SaveDir == "" {
		return cfg, fmt.Errorf("DATABASE_URL or TYCOON_SAVE_DIR is required")
	}
	if cfg.SweepEvery <= 0 {
		return cfg, fmt.Errorf("TYCOON_SWEEP_EVERY must be positive")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("TYC_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func loadStore() StoreConfig {
	return StoreConfig{
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:    strings.TrimSpace(os.Getenv("REDIS_URL")),
		SaveDir:     strings.TrimSpace(os.Getenv("TYCOON_SAVE_DIR")),
		CacheTTL:    envDurationDefault("TYCOON_CACHE_TTL", 5*time.Minute),
		BackupEvery: envIntDefault("TYCOON_BACKUP_EVERY", 10),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
