package main

import (
	"github.com/kaliumosint/api/internal/config"
	"github.com/kaliumosint/api/internal/infra/http/handler"
	"github.com/kaliumosint/api/internal/infra/http/routes"
	"github.com/kaliumosint/api/internal/infra/redis"
	"github.com/kaliumosint/api/internal/infra/websocket"
	"github.com/kaliumosint/api/pkg/logger"
	"github.com/kaliumosint/api/pkg/validator"
)

// HandlerDeps contains dependencies needed to create handlers.
type HandlerDeps struct {
	Config      *config.Config
	Log         *logger.Logger
	Validator   *validator.Validator
	RedisClient *redis.Client
	Services    *Services
}

// NewHandlers creates all HTTP handlers.
func NewHandlers(deps *HandlerDeps) routes.Handlers {
	cfg := deps.Config
	log := deps.Log
	svc := deps.Services

	var healthOpts []handler.HealthHandlerOption
	if deps.RedisClient != nil {
		healthOpts = append(healthOpts, handler.WithDependency("redis", deps.RedisClient))
	}

	return routes.Handlers{
		Health:    handler.NewHealthHandler(cfg.App.Name, cfg.App.Version, healthOpts...),
		Scan:      handler.NewScanHandler(svc.Scan, svc.Supervisor, svc.WebSocketHub, deps.Validator, log),
		Proxy:     handler.NewProxyHandler(svc.Dashboard, cfg.Dashboard.OverviewTimeout, log),
		WebSocket: websocket.NewHandler(svc.WebSocketHub, cfg.CORS.AllowedOrigins, log),
	}
}
