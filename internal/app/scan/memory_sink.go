package scan

import (
	"context"
	"sync"

	"github.com/kaliumosint/api/pkg/domain/scan"
)

// MemorySink collects events in memory. The synchronous scan API and the
// CLI's JSON output use it.
type MemorySink struct {
	mu     sync.Mutex
	events []scan.ProgressEvent
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Push appends the event.
func (m *MemorySink) Push(_ context.Context, event scan.ProgressEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of the collected events.
func (m *MemorySink) Events() []scan.ProgressEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]scan.ProgressEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Len returns the number of collected events.
func (m *MemorySink) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}
