package save

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cachePrefix   = "tycoon:cache:"
	versionPrefix = "tycoon:cachever:"
)

// CachedStore wraps a primary store with a Redis read-through cache. Writes go
// to the primary and invalidate the cached copy. Redis failures degrade to
// primary reads.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
	log     *slog.Logger
}

func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{primary: primary, rdb: rdb, ttl: ttl, log: logger}
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func cacheKey(key string) string   { return cachePrefix + key }
func versionKey(key string) string { return versionPrefix + key }

func (c *CachedStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, cacheKey(key)).Bytes()
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, redis.Nil) {
		c.log.Warn("save cache read failed", "key", key, "error", err)
	}

	ver, verErr := c.version(ctx, c.rdb, key)
	data, err = c.primary.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if verErr == nil {
		c.fill(ctx, key, ver, data)
	}
	return data, nil
}

func (c *CachedStore) version(ctx context.Context, cmd stringGetter, key string) (string, error) {
	ver, err := cmd.Get(ctx, versionKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return ver, err
}

// fill caches data unless a write bumped the version since ver was read.
func (c *CachedStore) fill(ctx context.Context, key, ver string, data []byte) {
	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := c.version(ctx, tx, key)
		if err != nil {
			return err
		}
		if cur != ver {
			return redis.TxFailedErr
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey(key), data, c.ttl)
			return nil
		})
		return err
	}, versionKey(key))
	switch {
	case errors.Is(err, redis.TxFailedErr):
		c.log.Debug("save cache fill skipped", "key", key)
	case err != nil:
		c.log.Warn("save cache fill failed", "key", key, "error", err)
	}
}

func (c *CachedStore) Set(ctx context.Context, key string, value []byte) error {
	if err := c.primary.Set(ctx, key, value); err != nil {
		return err
	}
	c.invalidate(ctx, key)
	return nil
}

func (c *CachedStore) Remove(ctx context.Context, key string) error {
	if err := c.primary.Remove(ctx, key); err != nil {
		return err
	}
	c.invalidate(ctx, key)
	return nil
}

func (c *CachedStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	return c.primary.Keys(ctx, prefix)
}

func (c *CachedStore) invalidate(ctx context.Context, key string) {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(key))
		pipe.Expire(ctx, versionKey(key), c.versionTTL())
		pipe.Del(ctx, cacheKey(key))
		return nil
	})
	if err != nil {
		c.log.Warn("save cache invalidate failed", "key", key, "error", err)
	}
}

// The version must outlive any fill that read it.
func (c *CachedStore) versionTTL() time.Duration {
	if c.ttl <= 0 {
		return time.Hour
	}
	return 2 * c.ttl
}
