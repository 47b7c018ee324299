package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kaliumosint/api/pkg/domain/intel"
	"github.com/kaliumosint/api/pkg/logger"
)

// URLScanName is the provider name reported in results and metrics.
const URLScanName = "urlscan"

// DefaultSearchSize is the number of results requested per search.
const DefaultSearchSize = 100

// URLScan answers web threat searches against urlscan.io.
type URLScan struct {
	*client
	submit bool
}

// NewURLScan creates a urlscan.io adapter. When submit is true every fetch
// first queues a fresh public scan of the target URL.
func NewURLScan(cfg ClientConfig, submit bool, log *logger.Logger) *URLScan {
	return &URLScan{client: newClient(URLScanName, cfg, log), submit: submit}
}

// Name returns the provider name.
func (u *URLScan) Name() string { return URLScanName }

// Configured reports whether an API key is present.
func (u *URLScan) Configured() bool { return u.configured() }

// Supports reports whether the capability is web threat search.
func (u *URLScan) Supports(capability intel.Capability) bool {
	return capability == intel.CapabilityWebThreatSearch
}

// Fetch optionally submits the target and then searches for its domain.
func (u *URLScan) Fetch(ctx context.Context, capability intel.Capability, target intel.Target) (intel.RawResult, error) {
	if !u.Supports(capability) {
		return intel.RawResult{}, intel.ErrUnsupportedCapability
	}

	data, err := u.Lookup(ctx, target)
	if err != nil {
		return intel.RawResult{}, err
	}

	return intel.RawResult{
		Capability: capability,
		Provider:   URLScanName,
		Data:       data,
		FetchedAt:  time.Now().UTC(),
	}, nil
}

// Lookup submits the target when enabled and returns the domain search.
// A rejected submission does not fail the lookup; existing public scans are
// still worth returning.
func (u *URLScan) Lookup(ctx context.Context, target intel.Target) (json.RawMessage, error) {
	if u.submit {
		if err := u.Submit(ctx, target.URL); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, intel.ErrTimeout) || errors.Is(err, intel.ErrUnauthenticated) {
				return nil, err
			}
			u.logger.Warn("urlscan submission rejected", "target", target.Host, "error", err)
		}
	}
	return u.Search(ctx, "domain:"+target.Domain, DefaultSearchSize)
}

// Submit queues a public scan of the URL.
func (u *URLScan) Submit(ctx context.Context, rawURL string) error {
	_, err := u.do(ctx, request{
		op:      "submit",
		method:  http.MethodPost,
		path:    "/api/v1/scan/",
		body:    intel.URLSubmission{URL: rawURL, Visibility: "public"},
		headers: map[string]string{"API-Key": u.apiKey},
	})
	return err
}

// Search runs a search query and returns at most size results.
func (u *URLScan) Search(ctx context.Context, query string, size int) (json.RawMessage, error) {
	if size <= 0 {
		size = DefaultSearchSize
	}
	body, err := u.do(ctx, request{
		op:      "search",
		method:  http.MethodGet,
		path:    "/api/v1/search/",
		query:   url.Values{"q": {query}, "size": {strconv.Itoa(size)}},
		headers: map[string]string{"API-Key": u.apiKey},
	})
	if err != nil {
		return nil, err
	}
	return validJSON(URLScanName, body)
}
