package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaliumosint/api/pkg/domain/intel"
)

const urlSearchFixture = `{
  "results": [
    {"_id": "a1", "task": {"time": "2024-05-01T10:00:00Z", "url": "https://example.com/", "domain": "example.com"},
     "page": {"url": "https://example.com/", "domain": "example.com", "ip": "93.184.216.34", "country": "US", "server": "ECS"},
     "stats": {"malicious": 0, "uniqIPs": 2}, "verdicts": {"overall": {"score": 0, "malicious": false}}}
  ],
  "total": 1,
  "has_more": false
}`

func TestURLScan_FetchSubmitsThenSearches(t *testing.T) {
	var submitted, searched atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("API-Key"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/scan/":
			submitted.Add(1)
			var body intel.URLSubmission
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "https://www.example.com/login", body.URL)
			assert.Equal(t, "public", body.Visibility)
			_, _ = w.Write([]byte(`{"message":"Submission successful","uuid":"x"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/search/":
			searched.Add(1)
			assert.Equal(t, "domain:example.com", r.URL.Query().Get("q"))
			assert.Equal(t, "100", r.URL.Query().Get("size"))
			_, _ = w.Write([]byte(urlSearchFixture))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	u := NewURLScan(testConfig(server.URL), true, nil)
	result, err := u.Fetch(context.Background(), intel.CapabilityWebThreatSearch, mustTarget(t, "https://www.example.com/login"))
	require.NoError(t, err)

	assert.Equal(t, URLScanName, result.Provider)
	assert.Equal(t, int32(1), submitted.Load())
	assert.Equal(t, int32(1), searched.Load())
	assert.JSONEq(t, urlSearchFixture, string(result.Data))
}

func TestURLScan_RejectedSubmissionStillSearches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"DNS Error - Could not resolve domain"}`))
			return
		}
		_, _ = w.Write([]byte(urlSearchFixture))
	}))
	defer server.Close()

	u := NewURLScan(testConfig(server.URL), true, nil)
	data, err := u.Lookup(context.Background(), mustTarget(t, "example.com"))
	require.NoError(t, err)
	assert.JSONEq(t, urlSearchFixture, string(data))
}

func TestURLScan_SubmitDisabled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method, "no submission expected")
		_, _ = w.Write([]byte(urlSearchFixture))
	}))
	defer server.Close()

	u := NewURLScan(testConfig(server.URL), false, nil)
	_, err := u.Fetch(context.Background(), intel.CapabilityWebThreatSearch, mustTarget(t, "example.com"))
	require.NoError(t, err)
}

func TestURLScan_SearchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	u := NewURLScan(testConfig(server.URL), false, nil)
	_, err := u.Fetch(context.Background(), intel.CapabilityWebThreatSearch, mustTarget(t, "example.com"))

	var upstream *intel.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusForbidden, upstream.StatusCode)
}
