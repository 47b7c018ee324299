package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/kaliumosint/api/pkg/domain/intel"
	"github.com/kaliumosint/api/pkg/logger"
)

// ShodanName is the provider name reported in results and metrics.
const ShodanName = "shodan"

// Shodan answers host/port exposure queries. The API key travels as the
// "key" query parameter.
type Shodan struct {
	*client
}

// NewShodan creates a Shodan adapter. A missing API key is not an error; the
// adapter then reports itself as not configured.
func NewShodan(cfg ClientConfig, log *logger.Logger) *Shodan {
	return &Shodan{client: newClient(ShodanName, cfg, log)}
}

// Name returns the provider name.
func (s *Shodan) Name() string { return ShodanName }

// Configured reports whether an API key is present.
func (s *Shodan) Configured() bool { return s.configured() }

// Supports reports whether the capability is host/port exposure.
func (s *Shodan) Supports(capability intel.Capability) bool {
	return capability == intel.CapabilityHostPortExposure
}

// Fetch runs a host search for the target.
func (s *Shodan) Fetch(ctx context.Context, capability intel.Capability, target intel.Target) (intel.RawResult, error) {
	if !s.Supports(capability) {
		return intel.RawResult{}, intel.ErrUnsupportedCapability
	}

	data, err := s.HostSearch(ctx, target.HostSearchQuery())
	if err != nil {
		return intel.RawResult{}, err
	}

	return intel.RawResult{
		Capability: capability,
		Provider:   ShodanName,
		Data:       data,
		FetchedAt:  time.Now().UTC(),
	}, nil
}

// HostCount returns the number of hosts matching the query without results.
func (s *Shodan) HostCount(ctx context.Context, query string) (json.RawMessage, error) {
	return s.get(ctx, "host_count", "/shodan/host/count", url.Values{"query": {query}})
}

// Ports returns the list of ports Shodan crawls.
func (s *Shodan) Ports(ctx context.Context) (json.RawMessage, error) {
	return s.get(ctx, "ports", "/shodan/ports", url.Values{})
}

// HostSearch returns banners matching the query.
func (s *Shodan) HostSearch(ctx context.Context, query string) (json.RawMessage, error) {
	return s.get(ctx, "host_search", "/shodan/host/search", url.Values{"query": {query}})
}

func (s *Shodan) get(ctx context.Context, op, path string, query url.Values) (json.RawMessage, error) {
	query.Set("key", s.apiKey)
	body, err := s.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   path,
		query:  query,
	})
	if err != nil {
		return nil, err
	}
	return validJSON(ShodanName, body)
}
