package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaliumosint/api/internal/app/dashboard"
	"github.com/kaliumosint/api/internal/infra/providers"
	"github.com/kaliumosint/api/pkg/logger"
)

// upstream fakes the Shodan and urlscan.io endpoints the proxy calls.
type upstream struct {
	mu      sync.Mutex
	queries []string
}

func (u *upstream) handler() http.Handler {
	mux := http.NewServeMux()
	record := func(r *http.Request) {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.queries = append(u.queries, r.URL.Path+"?"+r.URL.Query().Get("query")+r.URL.Query().Get("q"))
	}
	mux.HandleFunc("/shodan/host/count", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_, _ = w.Write([]byte(`{"matches":[],"total":4242}`))
	})
	mux.HandleFunc("/shodan/ports", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_, _ = w.Write([]byte(`[21,22,80,443,8080]`))
	})
	mux.HandleFunc("/shodan/host/search", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_, _ = w.Write([]byte(`{"matches":[{"ip_str":"93.184.216.34","port":443,"transport":"tcp","timestamp":"2026-10-19T07:45:00.000000"}],"total":1}`))
	})
	mux.HandleFunc("/api/v1/search/", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_, _ = w.Write([]byte(`{"results":[{"task":{"url":"https://example.com/","time":"2026-10-19T06:30:00.000Z"},"page":{"domain":"example.com","ip":"93.184.216.34"},"stats":{"malicious":2}}],"total":1,"has_more":false}`))
	})
	return mux
}

func (u *upstream) seen() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.queries...)
}

func newProxyRouter(t *testing.T, baseURL, apiKey string) http.Handler {
	t.Helper()
	log := logger.NewNop()

	shodan := providers.NewShodan(providers.ClientConfig{BaseURL: baseURL, APIKey: apiKey, Timeout: 2 * time.Second}, log)
	urlscan := providers.NewURLScan(providers.ClientConfig{BaseURL: baseURL, APIKey: apiKey, Timeout: 2 * time.Second}, false, log)
	svc := dashboard.NewService(shodan, urlscan, providers.NewSynthetic(providers.WithSeed(11)), nil, log)

	h := NewProxyHandler(svc, 5*time.Second, log)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/proxy", h.Proxy)
	mux.HandleFunc("GET /api/v1/dashboard/overview", h.Overview)
	return mux
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestProxyHandler_RequestErrors(t *testing.T) {
	h := newProxyRouter(t, "http://127.0.0.1:1", "")

	tests := []struct {
		name    string
		target  string
		wantErr string
	}{
		{name: "missing endpoint", target: "/api/proxy", wantErr: "No endpoint specified"},
		{name: "unknown endpoint", target: "/api/proxy?endpoint=users", wantErr: "Invalid endpoint"},
		{name: "activity without target", target: "/api/proxy?endpoint=activity", wantErr: "Target required for activity endpoint"},
		{name: "threats without target", target: "/api/proxy?endpoint=threats&target=%20", wantErr: "Target required for threats endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(h, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"`+tt.wantErr+`"}`, rec.Body.String())
		})
	}
}

func TestProxyHandler_SyntheticWithoutCredentials(t *testing.T) {
	h := newProxyRouter(t, "http://127.0.0.1:1", "")

	for _, target := range []string{
		"/api/proxy?endpoint=scans",
		"/api/proxy?endpoint=sources",
		"/api/proxy?endpoint=activity&target=example.com",
		"/api/proxy?endpoint=threats&target=https://example.com/login",
	} {
		rec := get(h, target)
		require.Equal(t, http.StatusOK, rec.Code, target)
		assert.Equal(t, "synthetic", rec.Header().Get(DataSourceHeader), target)
		assert.True(t, json.Valid(rec.Body.Bytes()), target)
	}
}

func TestProxyHandler_Upstream(t *testing.T) {
	up := &upstream{}
	srv := httptest.NewServer(up.handler())
	defer srv.Close()

	h := newProxyRouter(t, srv.URL, "test-key")

	rec := get(h, "/api/proxy?endpoint=scans")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "upstream", rec.Header().Get(DataSourceHeader))
	assert.JSONEq(t, `{"matches":[],"total":4242}`, rec.Body.String())

	rec = get(h, "/api/proxy?endpoint=activity&target=www.example.com")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = get(h, "/api/proxy?endpoint=threats&target=www.example.com")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{
		"/shodan/host/count?port:22,80,443",
		"/shodan/host/search?hostname:www.example.com",
		"/api/v1/search/?domain:example.com",
	}, up.seen())
}

func TestProxyHandler_Overview(t *testing.T) {
	up := &upstream{}
	srv := httptest.NewServer(up.handler())
	defer srv.Close()

	h := newProxyRouter(t, srv.URL, "test-key")

	rec := get(h, "/api/v1/dashboard/overview?target=example.com")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var overview dashboard.Overview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &overview))
	assert.Equal(t, 4242, overview.RecentScans)
	assert.Equal(t, 5, overview.DataSources)
	assert.Equal(t, []dashboard.ActivityPoint{{Timestamp: "07:45", Value: 1}}, overview.Activity)
	require.Len(t, overview.Threats, 1)
	assert.Equal(t, 2, overview.Threats[0].Count)
	assert.Equal(t, "malicious", overview.Threats[0].Type)
	assert.Equal(t, dashboard.SourceUpstream, overview.Sources["threats"])
}
