package intel

import (
	"errors"
	"fmt"
)

// Adapter-level errors.
var (
	ErrUnauthenticated       = errors.New("provider credentials not configured")
	ErrTimeout               = errors.New("provider call timed out")
	ErrUnsupportedCapability = errors.New("capability not supported by provider")
	ErrMalformedResponse     = errors.New("malformed provider response")
	ErrEmptyTarget           = errors.New("target is empty")
)

// UpstreamError is returned when a provider answers with a non-success status.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s upstream returned %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s upstream returned %d", e.Provider, e.StatusCode)
}

// Retryable reports whether the status is worth another attempt.
func (e *UpstreamError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// Describe folds an adapter error into a short reason for a degraded event.
func Describe(err error) string {
	var upstream *UpstreamError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return "credentials missing"
	case errors.Is(err, ErrTimeout):
		return "request timed out"
	case errors.As(err, &upstream):
		return fmt.Sprintf("upstream status %d", upstream.StatusCode)
	case errors.Is(err, ErrMalformedResponse):
		return "unreadable response"
	case errors.Is(err, ErrUnsupportedCapability):
		return "capability not supported"
	default:
		return "request failed"
	}
}
