package scan

import (
	"context"
	"time"
)

// ProgressEvent reports one step of a run. Events are never mutated after
// they are emitted.
type ProgressEvent struct {
	RunID           string    `json:"run_id"`
	StepIndex       int       `json:"step_index"`
	TotalSteps      int       `json:"total_steps"`
	ProgressPercent int       `json:"progress_percent"`
	Status          string    `json:"status"`
	Details         string    `json:"details,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Percent returns round(step/total*100) clamped to [0,100].
func Percent(step, total int) int {
	if total <= 0 || step >= total {
		return 100
	}
	if step <= 0 {
		return 0
	}
	return (step*200 + total) / (2 * total)
}

// Sink receives the events of a run in order. A sink is never invoked
// concurrently for the same run. Returning an error aborts the run.
type Sink interface {
	Push(ctx context.Context, event ProgressEvent) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, event ProgressEvent) error

// Push calls f.
func (f SinkFunc) Push(ctx context.Context, event ProgressEvent) error {
	return f(ctx, event)
}
