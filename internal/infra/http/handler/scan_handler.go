package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	scansvc "github.com/kaliumosint/api/internal/app/scan"
	"github.com/kaliumosint/api/internal/infra/websocket"
	"github.com/kaliumosint/api/pkg/apierror"
	"github.com/kaliumosint/api/pkg/domain/intel"
	"github.com/kaliumosint/api/pkg/domain/scan"
	"github.com/kaliumosint/api/pkg/domain/shared"
	"github.com/kaliumosint/api/pkg/logger"
	"github.com/kaliumosint/api/pkg/validator"
)

// publishTimeout bounds the outcome message sent after a background run.
const publishTimeout = 5 * time.Second

// ScanHandler handles HTTP requests for scans.
type ScanHandler struct {
	service    *scansvc.Service
	supervisor *scansvc.Supervisor
	hub        *websocket.Hub
	validator  *validator.Validator
	logger     *logger.Logger
}

// NewScanHandler creates a new ScanHandler.
func NewScanHandler(service *scansvc.Service, supervisor *scansvc.Supervisor, hub *websocket.Hub, v *validator.Validator, log *logger.Logger) *ScanHandler {
	return &ScanHandler{
		service:    service,
		supervisor: supervisor,
		hub:        hub,
		validator:  v,
		logger:     log.With("handler", "scan"),
	}
}

// --- Request/Response Types ---

// ScanRequest is the body of both scan endpoints. SessionID is required to
// start a streamed run and optional for a synchronous one.
type ScanRequest struct {
	ScanType  string            `json:"scan_type" validate:"max=32"`
	Target    string            `json:"target" validate:"required,max=2048,scan_target"`
	Config    map[string]string `json:"config" validate:"max=16,dive,keys,max=64,endkeys,max=256"`
	SessionID string            `json:"session_id" validate:"omitempty,session_id"`
}

func (r ScanRequest) toDomain() scan.Request {
	return scan.NewRequest(scan.Type(r.ScanType), r.Target, r.Config)
}

// estimateQuery mirrors the query string of the estimate endpoint.
type estimateQuery struct {
	ScanType   string `json:"scan_type" validate:"max=32"`
	PortRange  string `json:"portRange" validate:"port_range"`
	EngineType string `json:"engineType" validate:"engine_type"`
	ScanTypes  string `json:"scanTypes" validate:"max=64"`
}

// SourcePlanResponse describes one source a run would query.
type SourcePlanResponse struct {
	Capability intel.Capability `json:"capability"`
	Provider   string           `json:"provider"`
	Strategy   intel.Strategy   `json:"strategy"`
}

// EstimateResponse is the response of the estimate endpoint.
type EstimateResponse struct {
	TotalSteps int                  `json:"total_steps"`
	Sources    []SourcePlanResponse `json:"sources"`
}

// StartScanResponse is returned when a streamed run is accepted.
type StartScanResponse struct {
	RunID      string `json:"run_id"`
	Channel    string `json:"channel"`
	TotalSteps int    `json:"total_steps"`
}

// RunScanResponse is the result of a synchronous run.
type RunScanResponse struct {
	Outcome scan.Outcome         `json:"outcome"`
	Events  []scan.ProgressEvent `json:"events"`
}

// --- Handlers ---

// Estimate returns the step count and source plan of a would-be run.
// GET /api/v1/scans/estimate
func (h *ScanHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := estimateQuery{
		ScanType:   q.Get("scan_type"),
		PortRange:  q.Get(scan.ConfigPortRange),
		EngineType: q.Get(scan.ConfigEngineType),
		ScanTypes:  q.Get(scan.ConfigScanTypes),
	}
	if err := h.validator.Validate(query); err != nil {
		writeValidationError(w, r, err)
		return
	}

	config := configFromQuery(r, scan.ConfigPortRange, scan.ConfigScanTypes, scan.ConfigEngineType)
	// The estimate does not need a target; a placeholder keeps the plan valid.
	req := scan.NewRequest(scan.Type(query.ScanType), "estimate", config)

	plans := h.service.Plan(req)
	sources := make([]SourcePlanResponse, 0, len(plans))
	for _, p := range plans {
		sources = append(sources, SourcePlanResponse{
			Capability: p.Capability,
			Provider:   p.Provider(),
			Strategy:   p.Strategy,
		})
	}

	writeJSON(w, http.StatusOK, EstimateResponse{
		TotalSteps: h.service.Estimate(req),
		Sources:    sources,
	})
}

// Start accepts a run and streams its events on the session's websocket
// channel. A newer run for the same session supersedes this one.
// POST /api/v1/scans
func (h *ScanHandler) Start(w http.ResponseWriter, r *http.Request) {
	var body ScanRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.SessionID == "" {
		apierror.New(http.StatusBadRequest, apierror.CodeInvalidRequest, "Invalid scan request").
			WithDetails(apierror.ValidationErrors{{Field: "session_id", Message: "is required"}}).
			WriteJSON(w)
		return
	}
	if err := h.validator.Validate(body); err != nil {
		writeValidationError(w, r, err)
		return
	}

	req := body.toDomain()
	sink := websocket.NewScanSink(h.hub, body.SessionID)
	log := h.logger.WithContext(r.Context())

	ticket, err := h.supervisor.Start(body.SessionID, req, sink, func(runID shared.ID, outcome scan.Outcome, err error) {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		var pubErr error
		switch {
		case err == nil:
			pubErr = sink.Outcome(ctx, outcome)
		case errors.Is(err, scan.ErrRunCanceled):
			// Superseded or shut down; the session already moved on.
			return
		default:
			apiErr := apierror.FromError(err)
			pubErr = sink.Failure(ctx, string(apiErr.Code), apiErr.Message)
		}
		if pubErr != nil {
			log.Debug("scan result not delivered", "run_id", runID.Short(), "error", pubErr)
		}
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	log.Info("scan started",
		"run_id", ticket.RunID.String(),
		"scan_type", req.Type().String(),
		"channel", sink.Channel(),
	)
	writeJSON(w, http.StatusAccepted, StartScanResponse{
		RunID:      ticket.RunID.String(),
		Channel:    sink.Channel(),
		TotalSteps: ticket.TotalSteps,
	})
}

// Run executes a scan within the request and returns every event with the
// outcome. When session_id is set the run supersedes that session's active
// run.
// POST /api/v1/scans/run
func (h *ScanHandler) Run(w http.ResponseWriter, r *http.Request) {
	var body ScanRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := h.validator.Validate(body); err != nil {
		writeValidationError(w, r, err)
		return
	}

	req := body.toDomain()
	sink := scansvc.NewMemorySink()

	var (
		outcome scan.Outcome
		err     error
	)
	if body.SessionID != "" {
		outcome, err = h.supervisor.Run(r.Context(), body.SessionID, req, sink)
	} else {
		outcome, err = h.service.Run(r.Context(), req, sink)
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, RunScanResponse{Outcome: outcome, Events: sink.Events()})
}

// Cancel stops the active run of a session.
// DELETE /api/v1/scans/{sessionID}
func (h *ScanHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "sessionID")
	if !websocket.SessionPattern.MatchString(session) {
		apierror.BadRequest("Invalid session id").WriteJSON(w)
		return
	}
	if !h.supervisor.Cancel(session) {
		apierror.NotFound("Active scan").WriteJSON(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
