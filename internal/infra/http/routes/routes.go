// Package routes registers all HTTP routes for the API.
package routes

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	infrahttp "github.com/kaliumosint/api/internal/infra/http"
	"github.com/kaliumosint/api/internal/infra/http/handler"
	"github.com/kaliumosint/api/internal/infra/websocket"
)

// Router is an alias to the http package's Router interface.
type Router = infrahttp.Router

// Handlers holds all HTTP handlers for route registration.
type Handlers struct {
	Health    *handler.HealthHandler
	Scan      *handler.ScanHandler
	Proxy     *handler.ProxyHandler
	WebSocket *websocket.Handler
}

// WebSocketPath is excluded from request timeouts and access logs.
const WebSocketPath = "/api/v1/ws"

// Register registers all application routes. Nil handlers are skipped.
func Register(router Router, h Handlers) {
	if h.Health != nil {
		registerHealthRoutes(router, h.Health)
	}

	if h.Proxy != nil {
		registerProxyRoutes(router, h.Proxy)
	}

	if h.Scan != nil {
		registerScanRoutes(router, h.Scan)
	}

	if h.WebSocket != nil {
		router.GET(WebSocketPath, h.WebSocket.ServeWS)
	}
}

func registerHealthRoutes(router Router, h *handler.HealthHandler) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	metrics := promhttp.Handler()
	router.GET("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.ServeHTTP(w, r)
	})
}

// registerProxyRoutes keeps the dashboard's original /api/proxy path next to
// the versioned overview.
func registerProxyRoutes(router Router, h *handler.ProxyHandler) {
	router.GET("/api/proxy", h.Proxy)
	router.GET("/api/v1/dashboard/overview", h.Overview)
}

func registerScanRoutes(router Router, h *handler.ScanHandler) {
	router.Group("/api/v1/scans", func(r Router) {
		r.GET("/estimate", h.Estimate)
		r.POST("/", h.Start)
		r.POST("/run", h.Run)
		r.DELETE("/{sessionID}", h.Cancel)
	})
}
