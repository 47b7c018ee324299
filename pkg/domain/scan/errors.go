package scan

import "errors"

// Run-level errors. Adapter failures never surface here; they are folded
// into degraded source outcomes.
var (
	// ErrInvalidRequest is returned before any stage executes.
	ErrInvalidRequest = errors.New("invalid scan request")
	// ErrSinkUnavailable is returned when the sink rejects an event. Events
	// pushed before the failure remain valid.
	ErrSinkUnavailable = errors.New("progress sink unavailable")
	// ErrRunCanceled is returned when the run context is canceled, including
	// when a newer run supersedes this one.
	ErrRunCanceled = errors.New("scan run canceled")
	// ErrSourceDegraded classifies a source that fell back to synthetic data.
	ErrSourceDegraded = errors.New("source degraded")
)

// IsInvalidRequest reports whether err is an InvalidRequest error.
func IsInvalidRequest(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}
