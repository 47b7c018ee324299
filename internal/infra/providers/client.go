// Package providers implements the upstream intelligence providers and the
// synthetic fallback generator behind the intel.Adapter contract.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/kaliumosint/api/internal/metrics"
	"github.com/kaliumosint/api/pkg/domain/intel"
	"github.com/kaliumosint/api/pkg/logger"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultRetryDelay = 500 * time.Millisecond
	maxResponseBytes  = 10 << 20
)

var tracer = otel.Tracer("github.com/kaliumosint/api/internal/infra/providers")

// ClientConfig holds the settings shared by provider clients.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	// RateLimit is the sustained requests per second. Zero disables limiting.
	RateLimit float64
	UserAgent string
	// HTTPClient overrides the default client. Its timeout is left untouched.
	HTTPClient *http.Client
}

// client executes provider requests with auth, rate limiting, retries and
// response decoding. Provider types embed it.
type client struct {
	provider   string
	baseURL    string
	apiKey     string
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
	userAgent  string
	logger     *logger.Logger
}

func newClient(provider string, cfg ClientConfig, log *logger.Logger) *client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &client{
		provider:   provider,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		http:       httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: cfg.MaxRetries,
		retryDelay: retryDelay,
		userAgent:  cfg.UserAgent,
		logger:     log.With("provider", provider),
	}
}

// configured reports whether the provider has an API key.
func (c *client) configured() bool {
	return c.apiKey != ""
}

// request describes one provider call.
type request struct {
	op      string
	method  string
	path    string
	query   url.Values
	body    any
	headers map[string]string
}

// do runs the request and returns the decoded response body.
func (c *client) do(ctx context.Context, r request) (_ []byte, err error) {
	if !c.configured() {
		return nil, intel.ErrUnauthenticated
	}

	ctx, span := tracer.Start(ctx, c.provider+"."+r.op)
	span.SetAttributes(
		attribute.String("provider", c.provider),
		attribute.String("http.method", r.method),
		attribute.String("url.path", r.path),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var payload []byte
	if r.body != nil {
		payload, err = json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", c.provider, err)
		}
	}

	start := time.Now()
	defer func() {
		metrics.ProviderRequestDuration.WithLabelValues(c.provider, r.op).Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.ProviderRetriesTotal.WithLabelValues(c.provider).Inc()
			delay := c.retryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, mapContextError(ctx.Err())
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, mapContextError(err)
		}

		body, status, err := c.attempt(ctx, r, payload)
		metrics.ProviderRequestsTotal.WithLabelValues(c.provider, r.op, statusLabel(status, err)).Inc()
		if err == nil {
			span.SetAttributes(attribute.Int("http.status_code", status), attribute.Int("attempts", attempt+1))
			return body, nil
		}

		lastErr = err
		if !retryable(err) {
			break
		}
		c.logger.Debug("retrying provider request", "op", r.op, "attempt", attempt+1, "error", err)
	}

	return nil, lastErr
}

func (c *client) attempt(ctx context.Context, r request, payload []byte) ([]byte, int, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	endpoint := c.baseURL + r.path
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("create %s request: %w", c.provider, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, zstd")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, mapTransportError(err)
	}
	defer resp.Body.Close()

	reader, err := decodeBody(resp)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: %w", intel.ErrMalformedResponse, err)
	}
	defer reader.Close()

	body, err := io.ReadAll(io.LimitReader(reader, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, mapTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, &intel.UpstreamError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Message:    upstreamMessage(body),
		}
	}
	return body, resp.StatusCode, nil
}

// decodeBody unwraps gzip or zstd content encodings. Setting Accept-Encoding
// by hand turns off the transport's transparent gzip handling.
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
		return io.NopCloser(resp.Body), nil
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		return zr, nil
	case "zstd":
		dec, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}
}

// upstreamMessage extracts a short error message from common error bodies.
func upstreamMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		return payload.Message
	}
	return ""
}

func mapContextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", intel.ErrTimeout, err)
	}
	return err
}

func mapTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", intel.ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", intel.ErrTimeout, err)
	}
	return err
}

func retryable(err error) bool {
	if errors.Is(err, intel.ErrTimeout) || errors.Is(err, context.Canceled) || errors.Is(err, intel.ErrMalformedResponse) {
		return false
	}
	var upstream *intel.UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Retryable()
	}
	return true
}

func statusLabel(status int, err error) string {
	switch {
	case status > 0:
		return strconv.Itoa(status)
	case errors.Is(err, intel.ErrTimeout):
		return "timeout"
	case err != nil:
		return "error"
	default:
		return "ok"
	}
}

// validJSON returns body as a raw message or ErrMalformedResponse.
func validJSON(provider string, body []byte) (json.RawMessage, error) {
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: %s returned invalid JSON", intel.ErrMalformedResponse, provider)
	}
	return json.RawMessage(body), nil
}
