package handler

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Pinger interface for health check dependencies.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	name    string
	version string
	checks  map[string]Pinger
}

// HealthHandlerOption configures the health handler.
type HealthHandlerOption func(*HealthHandler)

// WithDependency adds a readiness check under name.
func WithDependency(name string, p Pinger) HealthHandlerOption {
	return func(h *HealthHandler) {
		if p != nil {
			h.checks[name] = p
		}
	}
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(name, version string, opts ...HealthHandlerOption) *HealthHandler {
	h := &HealthHandler{name: name, version: version, checks: make(map[string]Pinger)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// Health handles the /health endpoint (liveness probe).
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Service:   h.name,
		Version:   h.version,
		Timestamp: time.Now().UTC(),
	})
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult represents a single health check result.
type CheckResult struct {
	Status   string `json:"status"`
	Duration string `json:"duration,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Ready handles the /ready endpoint. It answers 503 if any dependency
// fails its ping.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]CheckResult, len(h.checks))
	healthy := true

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, p := range h.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := checkDependency(ctx, p)
			mu.Lock()
			defer mu.Unlock()
			checks[name] = result
			if result.Status != "ok" {
				healthy = false
			}
		}()
	}
	wg.Wait()

	resp := ReadyResponse{Status: "ready", Timestamp: time.Now().UTC(), Checks: checks}
	status := http.StatusOK
	if !healthy {
		resp.Status = "not_ready"
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, status, resp)
}

func checkDependency(ctx context.Context, p Pinger) CheckResult {
	start := time.Now()
	err := p.Ping(ctx)
	result := CheckResult{Status: "ok", Duration: time.Since(start).Round(time.Microsecond).String()}
	if err != nil {
		result.Status = "error"
		result.Error = "ping failed"
	}
	return result
}
