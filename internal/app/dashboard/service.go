// Package dashboard serves the proxy boundary in front of the intelligence
// providers and the aggregated dashboard overview.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kaliumosint/api/internal/metrics"
	"github.com/kaliumosint/api/pkg/domain/intel"
	"github.com/kaliumosint/api/pkg/logger"
)

// Endpoint names one proxied provider query.
type Endpoint string

const (
	EndpointScans    Endpoint = "scans"
	EndpointSources  Endpoint = "sources"
	EndpointActivity Endpoint = "activity"
	EndpointThreats  Endpoint = "threats"
)

// Query used for the global scan counter.
const recentScansQuery = "port:22,80,443"

const defaultLoadTimeout = 30 * time.Second

var (
	ErrEndpointRequired = errors.New("endpoint required")
	ErrInvalidEndpoint  = errors.New("invalid endpoint")
	ErrTargetRequired   = errors.New("target required")
)

// ParseEndpoint validates a raw endpoint name.
func ParseEndpoint(raw string) (Endpoint, error) {
	switch e := Endpoint(strings.TrimSpace(raw)); e {
	case "":
		return "", ErrEndpointRequired
	case EndpointScans, EndpointSources, EndpointActivity, EndpointThreats:
		return e, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidEndpoint, raw)
	}
}

// NeedsTarget reports whether the endpoint is target-specific.
func (e Endpoint) NeedsTarget() bool {
	return e == EndpointActivity || e == EndpointThreats
}

// Source tells where a proxied body came from.
type Source string

const (
	SourceUpstream  Source = "upstream"
	SourceCache     Source = "cache"
	SourceSynthetic Source = "synthetic"
)

// Response is a proxied provider body.
type Response struct {
	Endpoint  Endpoint
	Body      json.RawMessage
	Source    Source
	FetchedAt time.Time
}

// CachedResponse is the cached form of an upstream body.
type CachedResponse struct {
	Body      json.RawMessage `json:"body"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// ResponseCache stores upstream bodies. *redis.Cache[CachedResponse]
// satisfies it.
type ResponseCache interface {
	Get(ctx context.Context, key string) (*CachedResponse, error)
	Set(ctx context.Context, key string, value CachedResponse) error
}

// HostProvider is the host exposure provider as seen by the proxy.
type HostProvider interface {
	Configured() bool
	HostCount(ctx context.Context, query string) (json.RawMessage, error)
	Ports(ctx context.Context) (json.RawMessage, error)
	HostSearch(ctx context.Context, query string) (json.RawMessage, error)
}

// WebProvider is the web threat provider as seen by the proxy.
type WebProvider interface {
	Configured() bool
	Lookup(ctx context.Context, target intel.Target) (json.RawMessage, error)
}

// Fallback produces synthetic bodies shaped like the provider responses.
type Fallback interface {
	HostCount() json.RawMessage
	Ports() json.RawMessage
	HostSearch(host string) json.RawMessage
	URLSearch(domain string) json.RawMessage
}

// Service answers proxy requests.
type Service struct {
	host     HostProvider
	web      WebProvider
	fallback Fallback
	cache    ResponseCache
	strategy intel.Strategy
	group    singleflight.Group
	timeout  time.Duration
	logger   *logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLoadTimeout bounds a shared upstream load. It should cover one
// provider call with its retries.
func WithLoadTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewService creates the proxy service. cache may be nil. When either
// provider lacks credentials every endpoint answers synthetically.
func NewService(host HostProvider, web WebProvider, fallback Fallback, cache ResponseCache, log *logger.Logger, opts ...Option) *Service {
	strategy := intel.StrategyReal
	if host == nil || web == nil || !host.Configured() || !web.Configured() {
		strategy = intel.StrategySynthetic
	}

	s := &Service{
		host:     host,
		web:      web,
		fallback: fallback,
		cache:    cache,
		strategy: strategy,
		timeout:  defaultLoadTimeout,
		logger:   log.With("service", "dashboard"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger.Info("proxy strategy selected", "strategy", strategy, "cache", cache != nil)
	return s
}

// Strategy returns how the service answers requests.
func (s *Service) Strategy() intel.Strategy {
	return s.strategy
}

// Fetch returns the body for endpoint. Upstream failures are answered with
// synthetic data; the only errors are request-shape errors and ctx ending.
func (s *Service) Fetch(ctx context.Context, endpoint Endpoint, rawTarget string) (Response, error) {
	target, err := s.resolveTarget(endpoint, rawTarget)
	if err != nil {
		return Response{}, err
	}

	if s.strategy == intel.StrategySynthetic {
		return s.synthetic(endpoint, target), nil
	}

	// Coalesced callers share one load; it outlives the caller that started it.
	key := cacheKey(endpoint, target)
	ch := s.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.load(loadCtx, endpoint, target, key), nil
	})

	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Response{}, res.Err
		}
		if res.Shared {
			s.logger.Debug("proxy request coalesced", "endpoint", endpoint)
		}
		return res.Val.(Response), nil
	}
}

// Refresh fetches endpoint upstream and stores the body in the cache,
// skipping the cache read.
func (s *Service) Refresh(ctx context.Context, endpoint Endpoint) error {
	if endpoint.NeedsTarget() {
		return fmt.Errorf("%w: %s", ErrTargetRequired, endpoint)
	}
	if s.strategy == intel.StrategySynthetic || s.cache == nil {
		return nil
	}

	body, err := s.upstream(ctx, endpoint, intel.Target{})
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, cacheKey(endpoint, intel.Target{}), CachedResponse{Body: body, FetchedAt: time.Now().UTC()})
}

func (s *Service) resolveTarget(endpoint Endpoint, raw string) (intel.Target, error) {
	if !endpoint.NeedsTarget() {
		return intel.Target{}, nil
	}
	if strings.TrimSpace(raw) == "" {
		return intel.Target{}, fmt.Errorf("%w: %s", ErrTargetRequired, endpoint)
	}
	target, err := intel.ParseTarget(raw)
	if err != nil {
		return intel.Target{}, fmt.Errorf("%w: %s: %w", ErrTargetRequired, endpoint, err)
	}
	return target, nil
}

// load never fails: a cache miss goes upstream and an upstream failure,
// including the load timeout, is answered synthetically.
func (s *Service) load(ctx context.Context, endpoint Endpoint, target intel.Target, key string) Response {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err == nil && cached != nil {
			metrics.ProxyResponsesTotal.WithLabelValues(string(endpoint), string(SourceCache)).Inc()
			return Response{Endpoint: endpoint, Body: cached.Body, Source: SourceCache, FetchedAt: cached.FetchedAt}
		}
	}

	body, err := s.upstream(ctx, endpoint, target)
	if err != nil {
		s.logger.Warn("upstream request failed, serving synthetic data",
			"endpoint", endpoint,
			"reason", intel.Describe(err),
			"error", err,
		)
		return s.synthetic(endpoint, target)
	}

	now := time.Now().UTC()
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, CachedResponse{Body: body, FetchedAt: now}); err != nil {
			s.logger.Warn("proxy cache set failed", "endpoint", endpoint, "error", err)
		}
	}
	metrics.ProxyResponsesTotal.WithLabelValues(string(endpoint), string(SourceUpstream)).Inc()
	return Response{Endpoint: endpoint, Body: body, Source: SourceUpstream, FetchedAt: now}
}

func (s *Service) upstream(ctx context.Context, endpoint Endpoint, target intel.Target) (json.RawMessage, error) {
	switch endpoint {
	case EndpointScans:
		return s.host.HostCount(ctx, recentScansQuery)
	case EndpointSources:
		return s.host.Ports(ctx)
	case EndpointActivity:
		return s.host.HostSearch(ctx, target.HostSearchQuery())
	case EndpointThreats:
		return s.web.Lookup(ctx, target)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}
}

func (s *Service) synthetic(endpoint Endpoint, target intel.Target) Response {
	var body json.RawMessage
	switch endpoint {
	case EndpointScans:
		body = s.fallback.HostCount()
	case EndpointSources:
		body = s.fallback.Ports()
	case EndpointActivity:
		body = s.fallback.HostSearch(target.Host)
	case EndpointThreats:
		body = s.fallback.URLSearch(target.Domain)
	}
	metrics.ProxyResponsesTotal.WithLabelValues(string(endpoint), string(SourceSynthetic)).Inc()
	return Response{Endpoint: endpoint, Body: body, Source: SourceSynthetic, FetchedAt: time.Now().UTC()}
}

func cacheKey(endpoint Endpoint, target intel.Target) string {
	switch endpoint {
	case EndpointActivity:
		return string(endpoint) + ":" + target.Host
	case EndpointThreats:
		return string(endpoint) + ":" + target.Domain
	default:
		return string(endpoint)
	}
}
