package scan

import (
	"time"

	"github.com/kaliumosint/api/pkg/domain/intel"
	"github.com/kaliumosint/api/pkg/domain/scan"
	"github.com/kaliumosint/api/pkg/domain/shared"
)

// Status labels of the fixed pipeline stages.
const (
	StatusInitializing   = "Initializing scan"
	StatusValidating     = "Validating target"
	StatusDegraded       = "Source degraded"
	StatusAggregating    = "Aggregating results"
	StatusCompleted      = "Scan complete"
	summaryStatusPattern = "%s summary"
)

// SourcePlan is one source of a run with its strategy, decided before the
// first stage executes.
type SourcePlan struct {
	Capability intel.Capability
	Adapter    intel.Adapter
	Strategy   intel.Strategy
}

// Provider returns the name reported for the source.
func (p SourcePlan) Provider() string {
	if p.Adapter == nil {
		return "none"
	}
	return p.Adapter.Name()
}

// PlanCapabilities returns the capabilities queried for a scan type, in
// query order. Unknown types get the single lightweight source.
func PlanCapabilities(t scan.Type) []intel.Capability {
	switch t {
	case scan.TypeFull, scan.TypePorts:
		return []intel.Capability{intel.CapabilityHostPortExposure, intel.CapabilityWebThreatSearch}
	case scan.TypeWeb, scan.TypeMalware:
		return []intel.Capability{intel.CapabilityWebThreatSearch, intel.CapabilityHostPortExposure}
	default:
		return []intel.Capability{intel.CapabilityHostPortExposure}
	}
}

// RunContext carries the position of a run through its stages. Stage
// functions take it by value and return the advanced copy.
type RunContext struct {
	RunID      shared.ID
	Request    scan.Request
	Target     intel.Target
	Sources    []SourcePlan
	TotalSteps int
	Step       int
	StartedAt  time.Time
}

// Event advances the context by one step and returns the event for it.
func (rc RunContext) Event(status, details string) (RunContext, scan.ProgressEvent) {
	return rc.EventAt(rc.Step+1, status, details)
}

// EventAt moves the context to step and returns the event for it. Steps
// only move forward; a step at or behind the current one becomes the next.
func (rc RunContext) EventAt(step int, status, details string) (RunContext, scan.ProgressEvent) {
	if step <= rc.Step {
		step = rc.Step + 1
	}
	rc.Step = step
	return rc, scan.ProgressEvent{
		RunID:           rc.RunID.String(),
		StepIndex:       step,
		TotalSteps:      rc.TotalSteps,
		ProgressPercent: scan.Percent(step, rc.TotalSteps),
		Status:          status,
		Details:         details,
		Timestamp:       time.Now().UTC(),
	}
}

// lastSourceStep is the highest step a source stage may use. The two steps
// after it belong to aggregation and finalization.
func (rc RunContext) lastSourceStep() int {
	return rc.TotalSteps - 2
}

// FactAllowance returns how many fact events source i may emit from the
// current step, reserving one summary step for it and a degraded plus a
// summary step for every later source.
func (rc RunContext) FactAllowance(i, maxFacts int) int {
	later := len(rc.Sources) - i - 1
	n := rc.lastSourceStep() - rc.Step - 1 - 2*later
	return max(0, min(n, maxFacts))
}
