package main

import (
	"errors"
	"fmt"

	"github.com/kaliumosint/api/internal/app/dashboard"
	scansvc "github.com/kaliumosint/api/internal/app/scan"
	"github.com/kaliumosint/api/internal/config"
	"github.com/kaliumosint/api/internal/infra/providers"
	"github.com/kaliumosint/api/internal/infra/redis"
	"github.com/kaliumosint/api/internal/infra/websocket"
	"github.com/kaliumosint/api/pkg/logger"
)

// proxyCachePrefix namespaces proxy bodies in Redis.
const proxyCachePrefix = "proxy"

// Services holds all application services.
type Services struct {
	Providers    *providers.Set
	Scan         *scansvc.Service
	Supervisor   *scansvc.Supervisor
	Dashboard    *dashboard.Service
	WebSocketHub *websocket.Hub
}

// ServiceDeps contains dependencies needed to create services.
type ServiceDeps struct {
	Config      *config.Config
	Log         *logger.Logger
	RedisClient *redis.Client // nil when Redis is disabled
}

// NewServices initializes all application services.
func NewServices(deps *ServiceDeps) (*Services, error) {
	cfg := deps.Config
	log := deps.Log

	s := &Services{
		Providers:    providers.NewSet(cfg.Providers, log),
		WebSocketHub: websocket.NewHub(log),
	}

	s.Scan = scansvc.NewService(s.Providers.Registry(), s.Providers.Synthetic, scansvc.Config{
		PacingDelay:       cfg.Scan.PacingDelay,
		MaxFactsPerSource: cfg.Scan.MaxFactsPerSource,
		AdapterTimeout:    cfg.Providers.Timeout,
	}, log)
	s.Supervisor = scansvc.NewSupervisor(s.Scan, cfg.Scan.RunTimeout, log)

	var cache dashboard.ResponseCache
	if deps.RedisClient != nil {
		c, err := redis.NewCache[dashboard.CachedResponse](deps.RedisClient, proxyCachePrefix, cfg.Dashboard.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("proxy cache: %w", err)
		}
		cache = c
	}
	s.Dashboard = dashboard.NewService(s.Providers.Shodan, s.Providers.URLScan, s.Providers.Synthetic, cache, log,
		dashboard.WithLoadTimeout(2*cfg.Providers.CallBudget()))

	return s, nil
}

// connectRedis returns nil without error when Redis is disabled.
func connectRedis(cfg *config.Config, log *logger.Logger) (*redis.Client, error) {
	client, err := redis.New(&cfg.Redis, log)
	if errors.Is(err, redis.ErrDisabled) {
		log.Info("redis disabled, proxy responses are not cached")
		return nil, nil
	}
	return client, err
}
