package scan

import (
	"fmt"
	"time"

	"github.com/kaliumosint/api/pkg/domain/intel"
)

// OutcomeTag tells how a source was answered.
type OutcomeTag string

const (
	// OutcomeOK means the real provider answered.
	OutcomeOK OutcomeTag = "ok"
	// OutcomeUnavailable means credentials were absent and synthetic data was
	// used without calling the provider.
	OutcomeUnavailable OutcomeTag = "unavailable"
	// OutcomeFailed means the provider call failed and synthetic data was used.
	OutcomeFailed OutcomeTag = "failed"
)

// IsDegraded reports whether synthetic data replaced real data.
func (t OutcomeTag) IsDegraded() bool {
	return t != OutcomeOK
}

// SourceReport describes what happened to one source of a run.
type SourceReport struct {
	Capability intel.Capability `json:"capability"`
	Provider   string           `json:"provider"`
	Strategy   intel.Strategy   `json:"strategy"`
	Outcome    OutcomeTag       `json:"outcome"`
	Reason     string           `json:"reason,omitempty"`
	Facts      int              `json:"facts"`
	Emitted    int              `json:"emitted"`
}

// Err returns nil for a source answered by its provider and an error
// wrapping ErrSourceDegraded otherwise.
func (r SourceReport) Err() error {
	if !r.Outcome.IsDegraded() {
		return nil
	}
	if r.Reason == "" {
		return fmt.Errorf("%s %s: %w", r.Capability, r.Outcome, ErrSourceDegraded)
	}
	return fmt.Errorf("%s %s (%s): %w", r.Capability, r.Outcome, r.Reason, ErrSourceDegraded)
}

// Outcome is the result of a completed run.
type Outcome struct {
	RunID      string                          `json:"run_id"`
	ScanType   Type                            `json:"scan_type"`
	Target     string                          `json:"target"`
	TotalSteps int                             `json:"total_steps"`
	PerSource  map[intel.Capability]OutcomeTag `json:"per_source_outcomes"`
	Sources    []SourceReport                  `json:"sources"`
	Summary    string                          `json:"final_summary"`
	StartedAt  time.Time                       `json:"started_at"`
	FinishedAt time.Time                       `json:"finished_at"`
}

// Degraded returns the number of sources answered with synthetic data.
func (o Outcome) Degraded() int {
	n := 0
	for _, tag := range o.PerSource {
		if tag.IsDegraded() {
			n++
		}
	}
	return n
}
