// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisOpTimeout = 2 * time.Second

// RedisConfig holds the connection settings for a Redis-backed cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Prefix namespaces this cache's keys so the instance can share a
	// database with the URL registry.
	Prefix string
}

// Redis is a Redis-backed cache. Values round-trip through JSON, so V must
// be JSON-serializable.
type Redis[V any] struct {
	client *redis.Client
	logger zerolog.Logger
	prefix string

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

// NewRedis connects to Redis and verifies the connection before returning.
func NewRedis[V any](cfg RedisConfig, logger zerolog.Logger) (*Redis[V], error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("connected to redis cache")
	return &Redis[V]{
		client: client,
		logger: logger,
		prefix: cfg.Prefix,
	}, nil
}

func (c *Redis[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		c.misses.Add(1)
		return zero, false
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis get failed")
		c.misses.Add(1)
		return zero, false
	}

	var out V
	if err := json.Unmarshal(val, &out); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cached entry is not valid JSON")
		c.misses.Add(1)
		return zero, false
	}
	c.hits.Add(1)
	return out, true
}

func (c *Redis[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache entry does not serialize")
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis set failed")
		return
	}
	c.sets.Add(1)
}

func (c *Redis[V]) Delete(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis delete failed")
	}
}

// Stats reports the counter values. Size is -1: counting prefixed keys
// would need a SCAN over the shared database.
func (c *Redis[V]) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Sets:   c.sets.Load(),
		Size:   -1,
	}
}

// Ping checks connectivity, for readiness probes.
func (c *Redis[V]) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the connection pool.
func (c *Redis[V]) Close() error {
	return c.client.Close()
}
