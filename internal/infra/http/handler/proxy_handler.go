package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/kaliumosint/api/internal/app/dashboard"
	"github.com/kaliumosint/api/internal/infra/http/middleware"
	"github.com/kaliumosint/api/pkg/apierror"
	"github.com/kaliumosint/api/pkg/logger"
)

// DataSourceHeader reports where a proxied body came from.
const DataSourceHeader = "X-Data-Source"

// ProxyHandler serves the provider proxy and the dashboard overview.
type ProxyHandler struct {
	service         *dashboard.Service
	overviewTimeout time.Duration
	logger          *logger.Logger
}

// NewProxyHandler creates a new ProxyHandler.
func NewProxyHandler(service *dashboard.Service, overviewTimeout time.Duration, log *logger.Logger) *ProxyHandler {
	return &ProxyHandler{
		service:         service,
		overviewTimeout: overviewTimeout,
		logger:          log.With("handler", "proxy"),
	}
}

type proxyError struct {
	Error string `json:"error"`
}

// Proxy returns the raw provider body for an endpoint. Errors use the flat
// {"error": "..."} body dashboards already parse.
// GET /api/proxy?endpoint=<scans|sources|activity|threats>&target=<t>
func (h *ProxyHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	endpoint, err := dashboard.ParseEndpoint(q.Get("endpoint"))
	switch {
	case errors.Is(err, dashboard.ErrEndpointRequired):
		writeJSON(w, http.StatusBadRequest, proxyError{Error: "No endpoint specified"})
		return
	case err != nil:
		writeJSON(w, http.StatusBadRequest, proxyError{Error: "Invalid endpoint"})
		return
	}

	resp, err := h.service.Fetch(r.Context(), endpoint, q.Get("target"))
	switch {
	case errors.Is(err, dashboard.ErrTargetRequired):
		writeJSON(w, http.StatusBadRequest, proxyError{Error: "Target required for " + string(endpoint) + " endpoint"})
		return
	case err != nil:
		h.logger.WithContext(r.Context()).Error("proxy fetch failed", "endpoint", endpoint, "error", err)
		writeJSON(w, http.StatusInternalServerError, proxyError{Error: "Failed to fetch data"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(DataSourceHeader, string(resp.Source))
	w.Header().Set("Last-Modified", resp.FetchedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp.Body)
}

// Overview aggregates the four proxy endpoints into chart series.
// GET /api/v1/dashboard/overview?target=<t>
func (h *ProxyHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context(), r.URL.Query().Get("target"), h.overviewTimeout)
	switch {
	case errors.Is(err, dashboard.ErrTargetRequired):
		apierror.BadRequest("Invalid target").WriteJSONWithRequestID(w, middleware.GetRequestID(r.Context()))
		return
	case err != nil:
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}
