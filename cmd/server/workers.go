package main

import (
	"context"

	"github.com/kaliumosint/api/internal/app/dashboard"
	"github.com/kaliumosint/api/internal/config"
	"github.com/kaliumosint/api/internal/infra/redis"
	"github.com/kaliumosint/api/pkg/logger"
)

// Workers holds all background worker instances.
type Workers struct {
	Refresher *dashboard.Refresher
	stopPool  func()
}

// WorkerDeps contains dependencies needed to create workers.
type WorkerDeps struct {
	Config      *config.Config
	Log         *logger.Logger
	RedisClient *redis.Client
	Services    *Services
}

// NewWorkers initializes all background workers.
func NewWorkers(deps *WorkerDeps) (*Workers, error) {
	w := &Workers{}

	// Refreshing only pays off when responses are cached.
	if deps.RedisClient != nil && deps.Config.Dashboard.RefreshSchedule != "" {
		refresher, err := dashboard.NewRefresher(deps.Services.Dashboard, deps.Config.Dashboard.RefreshSchedule, deps.Log)
		if err != nil {
			return nil, err
		}
		w.Refresher = refresher
	}
	return w, nil
}

// Start starts all background workers.
func (w *Workers) Start(ctx context.Context, client *redis.Client, log *logger.Logger) {
	if w.Refresher != nil {
		w.Refresher.Start()
	}
	if client != nil {
		w.stopPool = redis.StartPoolStatsCollector(ctx, client, 0)
		log.Info("redis pool stats collector started")
	}
}

// Stop stops all background workers.
func (w *Workers) Stop(ctx context.Context, log *logger.Logger) {
	if w.Refresher != nil {
		w.Refresher.Stop(ctx)
		log.Info("dashboard refresher stopped")
	}
	if w.stopPool != nil {
		w.stopPool()
	}
}
