package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores JSON values under a key prefix with a fixed TTL. The prefix
// doubles as the cache label in metrics.
type Cache[T any] struct {
	client *Client
	prefix string
	ttl    time.Duration
}

// NewCache creates a cache on top of client.
func NewCache[T any](client *Client, prefix string, ttl time.Duration) (*Cache[T], error) {
	switch {
	case client == nil:
		return nil, errors.New("redis: cache needs a client")
	case prefix == "":
		return nil, errors.New("redis: cache needs a key prefix")
	case ttl <= 0:
		return nil, fmt.Errorf("redis: cache ttl must be positive, got %s", ttl)
	}
	return &Cache[T]{client: client, prefix: prefix, ttl: ttl}, nil
}

func (c *Cache[T]) key(k string) string {
	return c.prefix + ":" + k
}

// Get returns ErrCacheMiss for absent or expired keys.
func (c *Cache[T]) Get(ctx context.Context, k string) (_ *T, err error) {
	done := Timed("cache_get")
	defer func() { done(ignoreMiss(err)) }()

	data, err := c.client.rdb.Get(ctx, c.key(k)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		DefaultMetrics.RecordCacheMiss(c.prefix)
		return nil, ErrCacheMiss
	case err != nil:
		return nil, fmt.Errorf("redis: get %s: %w", k, err)
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("redis: decode %s: %w", k, err)
	}
	DefaultMetrics.RecordCacheHit(c.prefix)
	return &v, nil
}

// Set stores v for the cache TTL.
func (c *Cache[T]) Set(ctx context.Context, k string, v T) (err error) {
	done := Timed("cache_set")
	defer func() { done(err) }()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: encode %s: %w", k, err)
	}
	if err := c.client.rdb.Set(ctx, c.key(k), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", k, err)
	}
	return nil
}

func ignoreMiss(err error) error {
	if errors.Is(err, ErrCacheMiss) {
		return nil
	}
	return err
}
