package scan

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kaliumosint/api/internal/metrics"
	"github.com/kaliumosint/api/pkg/domain/scan"
	"github.com/kaliumosint/api/pkg/domain/shared"
	"github.com/kaliumosint/api/pkg/logger"
)

// Runner executes a single scan run.
type Runner interface {
	RunWithID(ctx context.Context, runID shared.ID, req scan.Request, sink scan.Sink) (scan.Outcome, error)
}

var errSuperseded = errors.New("run superseded")

// Ticket identifies a run started in the background.
type Ticket struct {
	RunID      shared.ID
	TotalSteps int
}

// DoneFunc receives the result of a background run.
type DoneFunc func(runID shared.ID, outcome scan.Outcome, err error)

// Supervisor keeps at most one active run per sink key. Starting a run on a
// key cancels the previous run on it, and no event of the previous run
// reaches the sink once the new run is registered.
type Supervisor struct {
	runner     Runner
	runTimeout time.Duration
	logger     *logger.Logger

	mu    sync.Mutex
	slots map[string]*slot

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type slot struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	refs   int
}

// NewSupervisor creates a supervisor. A zero runTimeout leaves runs unbounded.
func NewSupervisor(runner Runner, runTimeout time.Duration, log *logger.Logger) *Supervisor {
	root, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		runner:     runner,
		runTimeout: runTimeout,
		logger:     log.With("component", "scan_supervisor"),
		slots:      make(map[string]*slot),
		root:       root,
		cancel:     cancel,
	}
}

// Run executes a run for key synchronously, superseding any active run on
// the same key. Invalid requests fail before anything is superseded.
func (s *Supervisor) Run(ctx context.Context, key string, req scan.Request, sink scan.Sink) (scan.Outcome, error) {
	if err := req.Validate(); err != nil {
		return scan.Outcome{}, err
	}
	runID := shared.NewID()
	ctx, lease := s.acquire(ctx, key, sink)
	defer lease.release()
	return s.runner.RunWithID(ctx, runID, req, lease.sink)
}

// Start runs in the background and returns as soon as the run is registered.
// onDone may be nil.
func (s *Supervisor) Start(key string, req scan.Request, sink scan.Sink, onDone DoneFunc) (Ticket, error) {
	if err := req.Validate(); err != nil {
		return Ticket{}, err
	}
	if err := s.root.Err(); err != nil {
		return Ticket{}, scan.ErrRunCanceled
	}

	ticket := Ticket{RunID: shared.NewID(), TotalSteps: scan.EstimateRequest(req)}
	ctx := s.root
	var cancelTimeout context.CancelFunc = func() {}
	if s.runTimeout > 0 {
		ctx, cancelTimeout = context.WithTimeout(ctx, s.runTimeout)
	}
	ctx, lease := s.acquire(ctx, key, sink)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		outcome, err := s.runner.RunWithID(ctx, ticket.RunID, req, lease.sink)
		lease.release()
		cancelTimeout()

		switch {
		case err == nil:
		case errors.Is(err, scan.ErrRunCanceled):
			s.logger.Debug("background scan canceled", "key", key, "run_id", ticket.RunID.Short())
		default:
			s.logger.Warn("background scan failed", "key", key, "run_id", ticket.RunID.Short(), "error", err)
		}
		if onDone != nil {
			onDone(ticket.RunID, outcome, err)
		}
	}()
	return ticket, nil
}

// Cancel stops the active run on key, if any.
func (s *Supervisor) Cancel(key string) bool {
	s.mu.Lock()
	sl, ok := s.slots[key]
	s.mu.Unlock()
	if !ok {
		return false
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.gen++
	if sl.cancel != nil {
		sl.cancel()
		sl.cancel = nil
	}
	return true
}

// Active returns the number of keys with a registered run.
func (s *Supervisor) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// Shutdown cancels every background run and waits for them to return or
// for ctx to end.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLease holds a slot registration and the guarded sink of the run.
type runLease struct {
	release func()
	sink    scan.Sink
}

// acquire registers a new generation on key, canceling the one before it.
func (s *Supervisor) acquire(parent context.Context, key string, sink scan.Sink) (context.Context, *runLease) {
	s.mu.Lock()
	sl, ok := s.slots[key]
	if !ok {
		sl = &slot{}
		s.slots[key] = sl
	}
	sl.refs++
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(parent)

	sl.mu.Lock()
	if sl.cancel != nil {
		sl.cancel()
		metrics.ScanRunsSupersededTotal.Inc()
		s.logger.Debug("scan superseded", "key", key)
	}
	sl.gen++
	gen := sl.gen
	sl.cancel = cancel
	sl.mu.Unlock()

	l := &runLease{
		sink: &guardedSink{slot: sl, gen: gen, sink: sink},
	}
	l.release = func() {
		cancel()
		sl.mu.Lock()
		if sl.gen == gen {
			sl.cancel = nil
		}
		sl.mu.Unlock()

		s.mu.Lock()
		sl.refs--
		if sl.refs == 0 && s.slots[key] == sl {
			delete(s.slots, key)
		}
		s.mu.Unlock()
	}
	return ctx, l
}

// guardedSink forwards events only while its generation is current. The
// slot lock is held across the push so a newer run cannot register between
// the check and the delivery.
type guardedSink struct {
	slot *slot
	gen  uint64
	sink scan.Sink
}

func (g *guardedSink) Push(ctx context.Context, event scan.ProgressEvent) error {
	g.slot.mu.Lock()
	defer g.slot.mu.Unlock()
	if g.slot.gen != g.gen {
		return errSuperseded
	}
	return g.sink.Push(ctx, event)
}
