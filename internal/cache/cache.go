// Package cache keeps hot catalog rows in Redis.
//
// Only movies are cached. They are written by the catalog import and read on
// almost every request, while users, ratings and lists change under the
// caller's feet and always come from the store. A cache failure is never
// fatal: callers log it and fall back to the store.
//
// STALE WRITES:
// A reader that loaded a movie before it was deleted or re-imported must not
// put the old row back. Delete therefore leaves a tombstone for
// TombstoneTTL instead of removing the key, and Set only writes when the key
// is absent (SET NX). A Set that lost the race is silently dropped.
// TombstoneTTL is longer than any request may run, so every read that
// started before the invalidation has finished when the tombstone expires.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/moviecatalog/internal/model"
)

// ErrMiss is returned by Get when the movie is not cached.
var ErrMiss = errors.New("cache: miss")

const keyPrefix = "moviecatalog:movie:"

// TombstoneTTL is how long an invalidated key refuses new entries.
const TombstoneTTL = time.Minute

// tombstone is never a valid msgpack-encoded movie.
const tombstone = "\xc1deleted"

type MovieCache interface {
	Get(ctx context.Context, id string) (*model.Movie, error)
	// Set stores m unless the key holds an entry or a tombstone.
	Set(ctx context.Context, m *model.Movie) error
	// Delete invalidates the entry and blocks Set for TombstoneTTL.
	Delete(ctx context.Context, id string) error
}

// kv is the part of redis.Cmdable the cache needs.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

// RedisMovieCache stores movies msgpack-encoded under "moviecatalog:movie:<id>".
type RedisMovieCache struct {
	rdb kv
	ttl time.Duration
}

func NewRedisMovieCache(rdb redis.Cmdable, ttl time.Duration) *RedisMovieCache {
	return &RedisMovieCache{rdb: rdb, ttl: ttl}
}

func movieKey(id string) string {
	return keyPrefix + id
}

func (c *RedisMovieCache) Get(ctx context.Context, id string) (*model.Movie, error) {
	raw, err := c.rdb.Get(ctx, movieKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get movie %s: %w", id, err)
	}
	if string(raw) == tombstone {
		return nil, ErrMiss
	}

	m, err := decodeMovie(raw)
	if err != nil {
		return nil, fmt.Errorf("cache: decode movie %s: %w", id, err)
	}
	return m, nil
}

func (c *RedisMovieCache) Set(ctx context.Context, m *model.Movie) error {
	raw, err := encodeMovie(m)
	if err != nil {
		return fmt.Errorf("cache: encode movie %s: %w", m.ID, err)
	}
	if err := c.rdb.SetNX(ctx, movieKey(m.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set movie %s: %w", m.ID, err)
	}
	return nil
}

func (c *RedisMovieCache) Delete(ctx context.Context, id string) error {
	if err := c.rdb.Set(ctx, movieKey(id), tombstone, TombstoneTTL).Err(); err != nil {
		return fmt.Errorf("cache: delete movie %s: %w", id, err)
	}
	return nil
}

// Nop is the MovieCache used when Redis is not configured. Every Get misses.
type Nop struct{}

func (Nop) Get(context.Context, string) (*model.Movie, error) { return nil, ErrMiss }
func (Nop) Set(context.Context, *model.Movie) error           { return nil }
func (Nop) Delete(context.Context, string) error              { return nil }

// NewRedisClient connects to addr and pings it. It returns nil when the
// server cannot be reached, and the caller falls back to Nop.
func NewRedisClient(ctx context.Context, addr, password string, db int, logger *slog.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, movie cache disabled",
			slog.String("addr", addr),
			slog.String("error", err.Error()),
		)
		_ = client.Close()
		return nil
	}
	return client
}
