package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scansvc "github.com/kaliumosint/api/internal/app/scan"
	"github.com/kaliumosint/api/internal/infra/providers"
	"github.com/kaliumosint/api/internal/infra/websocket"
	"github.com/kaliumosint/api/pkg/apierror"
	"github.com/kaliumosint/api/pkg/domain/intel"
	"github.com/kaliumosint/api/pkg/domain/scan"
	"github.com/kaliumosint/api/pkg/domain/shared"
	"github.com/kaliumosint/api/pkg/logger"
	"github.com/kaliumosint/api/pkg/validator"
)

type scanFixture struct {
	router     http.Handler
	supervisor *scansvc.Supervisor
}

func newScanFixture(t *testing.T, pacing time.Duration) scanFixture {
	t.Helper()
	log := logger.NewNop()

	svc := scansvc.NewService(intel.NewRegistry(), providers.NewSynthetic(providers.WithSeed(5)),
		scansvc.Config{PacingDelay: pacing}, log)
	supervisor := scansvc.NewSupervisor(svc, time.Minute, log)
	hub := websocket.NewHub(log)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = supervisor.Shutdown(shutdownCtx)
		cancel()
	})

	h := NewScanHandler(svc, supervisor, hub, validator.New(), log)
	r := chi.NewRouter()
	r.Route("/api/v1/scans", func(r chi.Router) {
		r.Get("/estimate", h.Estimate)
		r.Post("/", h.Start)
		r.Post("/run", h.Run)
		r.Delete("/{sessionID}", h.Cancel)
	})
	return scanFixture{router: r, supervisor: supervisor}
}

func (f scanFixture) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) apierror.Response {
	t.Helper()
	var resp apierror.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestScanHandler_Estimate(t *testing.T) {
	f := newScanFixture(t, 0)

	tests := []struct {
		name       string
		query      string
		wantSteps  int
		wantFirst  intel.Capability
		wantSource int
	}{
		{name: "quick", query: "scan_type=quick", wantSteps: 8, wantFirst: intel.CapabilityHostPortExposure, wantSource: 1},
		{name: "ports full", query: "scan_type=ports&portRange=full", wantSteps: 20, wantFirst: intel.CapabilityHostPortExposure, wantSource: 2},
		{name: "web all", query: "scan_type=web&scanTypes=all", wantSteps: 18, wantFirst: intel.CapabilityWebThreatSearch, wantSource: 2},
		{name: "malware deep", query: "scan_type=malware&engineType=deep", wantSteps: 15, wantFirst: intel.CapabilityWebThreatSearch, wantSource: 2},
		{name: "unknown type", query: "scan_type=recon", wantSteps: 8, wantFirst: intel.CapabilityHostPortExposure, wantSource: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodGet, "/api/v1/scans/estimate?"+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code)

			var resp EstimateResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantSteps, resp.TotalSteps)
			require.Len(t, resp.Sources, tt.wantSource)
			assert.Equal(t, tt.wantFirst, resp.Sources[0].Capability)
			for _, s := range resp.Sources {
				assert.Equal(t, intel.StrategySynthetic, s.Strategy)
			}
		})
	}
}

func TestScanHandler_EstimateRejectsUnknownValues(t *testing.T) {
	f := newScanFixture(t, 0)

	for _, query := range []string{"scan_type=ports&portRange=huge", "scan_type=malware&engineType=turbo"} {
		rec := f.do(http.MethodGet, "/api/v1/scans/estimate?"+query, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
		assert.Equal(t, apierror.CodeInvalidRequest, decodeAPIError(t, rec).Code, query)
	}
}

func TestScanHandler_Run(t *testing.T) {
	f := newScanFixture(t, 0)

	rec := f.do(http.MethodPost, "/api/v1/scans/run", `{"scan_type":"quick","target":"example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp RunScanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, 8, resp.Outcome.TotalSteps)
	assert.Equal(t, "example.com", resp.Outcome.Target)
	assert.Equal(t, scan.OutcomeUnavailable, resp.Outcome.PerSource[intel.CapabilityHostPortExposure])
	require.NotEmpty(t, resp.Events)

	last := resp.Events[len(resp.Events)-1]
	assert.Equal(t, 8, last.StepIndex)
	assert.Equal(t, 100, last.ProgressPercent)
	for i := 1; i < len(resp.Events); i++ {
		assert.Greater(t, resp.Events[i].StepIndex, resp.Events[i-1].StepIndex)
	}
}

func TestScanHandler_RunWithSession(t *testing.T) {
	f := newScanFixture(t, 0)

	rec := f.do(http.MethodPost, "/api/v1/scans/run", `{"target":"example.com","session_id":"tab-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, f.supervisor.Active())
}

func TestScanHandler_RunInvalid(t *testing.T) {
	f := newScanFixture(t, 0)

	tests := []struct {
		name     string
		body     string
		wantCode apierror.Code
	}{
		{name: "malformed json", body: `{"target":`, wantCode: apierror.CodeBadRequest},
		{name: "empty body", body: ``, wantCode: apierror.CodeBadRequest},
		{name: "trailing data", body: `{"target":"a"} {"target":"b"}`, wantCode: apierror.CodeBadRequest},
		{name: "missing target", body: `{"scan_type":"quick"}`, wantCode: apierror.CodeInvalidRequest},
		{name: "blank target", body: `{"target":"   "}`, wantCode: apierror.CodeInvalidRequest},
		{name: "bad port range", body: `{"target":"example.com","config":{"portRange":"all"}}`, wantCode: apierror.CodeInvalidRequest},
		{name: "bad engine", body: `{"target":"example.com","config":{"engineType":"fast"}}`, wantCode: apierror.CodeInvalidRequest},
		{name: "bad session", body: `{"target":"example.com","session_id":"a b"}`, wantCode: apierror.CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/v1/scans/run", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantCode, decodeAPIError(t, rec).Code)
		})
	}
}

func TestScanHandler_Start(t *testing.T) {
	f := newScanFixture(t, 0)

	rec := f.do(http.MethodPost, "/api/v1/scans", `{"scan_type":"ports","target":"example.com","config":{"portRange":"full"},"session_id":"sess-1"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp StartScanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "scan:sess-1", resp.Channel)
	assert.Equal(t, 20, resp.TotalSteps)
	_, err := shared.ParseID(resp.RunID)
	assert.NoError(t, err)

	assert.Eventually(t, func() bool { return f.supervisor.Active() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestScanHandler_StartRequiresSession(t *testing.T) {
	f := newScanFixture(t, 0)

	rec := f.do(http.MethodPost, "/api/v1/scans", `{"target":"example.com"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeAPIError(t, rec)
	assert.Equal(t, apierror.CodeInvalidRequest, resp.Code)

	rec = f.do(http.MethodPost, "/api/v1/scans", `{"target":"","session_id":"sess-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, f.supervisor.Active())
}

func TestScanHandler_Cancel(t *testing.T) {
	f := newScanFixture(t, 200*time.Millisecond)

	rec := f.do(http.MethodDelete, "/api/v1/scans/nobody", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodDelete, "/api/v1/scans/bad.id", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/v1/scans", `{"target":"example.com","session_id":"sess-2"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 1, f.supervisor.Active())

	rec = f.do(http.MethodDelete, "/api/v1/scans/sess-2", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Eventually(t, func() bool { return f.supervisor.Active() == 0 }, 5*time.Second, 10*time.Millisecond)
}
