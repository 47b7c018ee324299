package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kaliumosint/api/internal/config"
	"github.com/kaliumosint/api/internal/infra/http"
	"github.com/kaliumosint/api/internal/infra/http/routes"
	"github.com/kaliumosint/api/internal/telemetry"
	"github.com/kaliumosint/api/pkg/logger"
	"github.com/kaliumosint/api/pkg/validator"
)

// Command line flags.
var showRoutes = flag.Bool("routes", false, "Print all registered routes and exit")

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	// ==========================================================================
	// Configuration & Logger
	// ==========================================================================
	cfg, err := config.Load()
	if err != nil {
		log := logger.NewDefault()
		log.Error("failed to load configuration", "error", err)
		return 1
	}

	log := initLogger(cfg)
	log.Info("starting application", "app", cfg.App.Name, "env", cfg.App.Env, "version", cfg.App.Version)

	shutdownTracing, err := telemetry.Setup(cfg.Telemetry, cfg.App, log)
	if err != nil {
		log.Error("failed to initialize tracing", "error", err)
		return 1
	}

	// ==========================================================================
	// Infrastructure
	// ==========================================================================
	redisClient, err := connectRedis(cfg, log)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		return 1
	}
	if redisClient != nil {
		defer closeWithLog(redisClient, "redis", log)
	}

	// ==========================================================================
	// Services & Handlers
	// ==========================================================================
	services, err := NewServices(&ServiceDeps{
		Config:      cfg,
		Log:         log,
		RedisClient: redisClient,
	})
	if err != nil {
		log.Error("failed to initialize services", "error", err)
		return 1
	}
	log.Info("services initialized")

	handlers := NewHandlers(&HandlerDeps{
		Config:      cfg,
		Log:         log,
		Validator:   validator.New(),
		RedisClient: redisClient,
		Services:    services,
	})

	// ==========================================================================
	// HTTP Server
	// ==========================================================================
	server := http.NewServer(cfg, log, []string{routes.WebSocketPath})
	routes.Register(server.Router(), handlers)

	if *showRoutes {
		if err := http.PrintRoutes(os.Stdout, http.CollectRoutes(server.Router())); err != nil {
			log.Error("failed to print routes", "error", err)
			return 1
		}
		return 0
	}

	// ==========================================================================
	// WebSocket Hub & Workers
	// ==========================================================================
	wsCtx, wsCancel := context.WithCancel(ctx)
	defer wsCancel()

	go services.WebSocketHub.Run(wsCtx)
	log.Info("websocket hub started")

	workers, err := NewWorkers(&WorkerDeps{
		Config:      cfg,
		Log:         log,
		RedisClient: redisClient,
		Services:    services,
	})
	if err != nil {
		log.Error("failed to initialize workers", "error", err)
		return 1
	}
	workers.Start(wsCtx, redisClient, log)

	// ==========================================================================
	// Start Server
	// ==========================================================================
	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", "error", err)
		}
	}()
	log.Info("application started", "http_addr", cfg.Server.Addr(), "proxy_strategy", services.Dashboard.Strategy())

	// ==========================================================================
	// Graceful Shutdown
	// ==========================================================================
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Cancel running scans before the hub goes away so their sinks fail fast.
	if err := services.Supervisor.Shutdown(shutdownCtx); err != nil {
		log.Warn("scan runs did not finish in time", "error", err)
	}

	wsCancel()
	log.Info("websocket hub stopped")

	workers.Stop(shutdownCtx, log)

	exitCode := 0
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		exitCode = 1
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracer shutdown failed", "error", err)
	}

	log.Info("application stopped")
	return exitCode
}

// =============================================================================
// Helper Functions
// =============================================================================

func initLogger(cfg *config.Config) *logger.Logger {
	var log *logger.Logger
	if cfg.IsProduction() {
		// SamplingThreshold is validated to be non-negative in config validation
		//nolint:gosec // G115: safe conversion, value validated non-negative in config.Validate()
		threshold := uint64(cfg.Log.SamplingThreshold)
		log = logger.New(logger.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: os.Stdout,
			Sampling: logger.SamplingConfig{
				Enabled:   cfg.Log.SamplingEnabled,
				Tick:      time.Second,
				Threshold: threshold,
				Rate:      cfg.Log.SamplingRate,
				ErrorRate: logger.DefaultSamplingErrorRate,
			},
		})
	} else {
		log = logger.NewDevelopment()
	}
	log.SetDefault()
	return log
}

type closer interface {
	Close() error
}

func closeWithLog(c closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+name, "error", err)
	}
}
