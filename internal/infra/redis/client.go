package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kaliumosint/api/internal/config"
	"github.com/kaliumosint/api/pkg/logger"
)

// Client is the shared connection pool.
type Client struct {
	rdb    *redis.Client
	logger *logger.Logger
}

// New returns ErrDisabled when Redis is off. Otherwise it pings the server,
// backing off between attempts, and fails once cfg.MaxRetries retries are
// used up.
func New(cfg *config.RedisConfig, log *logger.Logger) (*Client, error) {
	if cfg == nil || log == nil {
		return nil, errors.New("redis: config and logger are required")
	}
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	rdb := redis.NewClient(options(cfg))
	log = log.With("component", "redis", "addr", cfg.Addr())

	var err error
	for attempt := 0; ; attempt++ {
		if err = ping(rdb, cfg.DialTimeout); err == nil {
			log.Info("redis connected", "pool_size", cfg.PoolSize)
			return &Client{rdb: rdb, logger: log}, nil
		}
		if attempt == cfg.MaxRetries {
			break
		}
		wait := min(cfg.MinRetryDelay<<attempt, cfg.MaxRetryDelay)
		log.Warn("redis ping failed, retrying", "attempt", attempt+1, "backoff", wait, "error", err)
		time.Sleep(wait)
	}

	_ = rdb.Close()
	return nil, fmt.Errorf("redis: unreachable after %d attempts: %w", cfg.MaxRetries+1, err)
}

func options(cfg *config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:            cfg.Addr(),
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: cfg.MinRetryDelay,
		MaxRetryBackoff: cfg.MaxRetryDelay,
	}
}

func ping(rdb *redis.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return rdb.Ping(ctx).Err()
}

// Close releases the pool.
func (c *Client) Close() error {
	c.logger.Info("closing redis connection")
	return c.rdb.Close()
}

// Ping backs the readiness probe.
func (c *Client) Ping(ctx context.Context) (err error) {
	done := Timed("ping")
	defer func() { done(err) }()
	return c.rdb.Ping(ctx).Err()
}

// PoolStats returns connection pool statistics.
func (c *Client) PoolStats() *redis.PoolStats {
	return c.rdb.PoolStats()
}
