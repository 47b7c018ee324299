package intel

import (
	"context"
	"encoding/json"
	"time"
)

// RawResult is an opaque provider response. It is owned by the caller for the
// duration of one stage and then discarded.
type RawResult struct {
	Capability Capability      `json:"capability"`
	Provider   string          `json:"provider"`
	Data       json.RawMessage `json:"data"`
	Synthetic  bool            `json:"synthetic"`
	FetchedAt  time.Time       `json:"fetched_at"`
}

// Adapter wraps one upstream provider behind a uniform fetch contract.
//
// Implementations must be safe for concurrent use by independent runs.
// Fetch fails with ErrUnauthenticated when credentials are absent, with an
// *UpstreamError for non-success responses and with ErrTimeout when the call
// exceeds its bound.
type Adapter interface {
	// Name returns the provider name used in logs and summaries.
	Name() string
	// Configured reports whether the credentials the adapter needs are present.
	Configured() bool
	// Supports reports whether the adapter can answer the capability.
	Supports(capability Capability) bool
	// Fetch runs the provider query for the capability and target.
	Fetch(ctx context.Context, capability Capability, target Target) (RawResult, error)
}

// Generator produces placeholder results with the same shape as a real
// adapter response for the capability.
type Generator interface {
	Generate(capability Capability, target Target) RawResult
}

// Strategy tells a run whether a source is queried for real or answered
// synthetically. It is decided once, before the pipeline starts.
type Strategy string

const (
	StrategyReal      Strategy = "real"
	StrategySynthetic Strategy = "synthetic"
)

// SelectStrategy picks the strategy for an adapter.
func SelectStrategy(a Adapter) Strategy {
	if a == nil || !a.Configured() {
		return StrategySynthetic
	}
	return StrategyReal
}
