// Package scan runs staged OSINT scans: it queries each planned source,
// turns the findings into progress events and resolves to an outcome.
package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kaliumosint/api/internal/metrics"
	"github.com/kaliumosint/api/pkg/domain/intel"
	"github.com/kaliumosint/api/pkg/domain/scan"
	"github.com/kaliumosint/api/pkg/domain/shared"
	"github.com/kaliumosint/api/pkg/logger"
)

var tracer = otel.Tracer("github.com/kaliumosint/api/internal/app/scan")

// Defaults applied when Config leaves a field zero.
const (
	DefaultMaxFactsPerSource = 5
	DefaultAdapterTimeout    = 10 * time.Second
)

// Config holds orchestration settings.
type Config struct {
	// PacingDelay is waited between consecutive events of a run.
	PacingDelay time.Duration
	// MaxFactsPerSource caps the fact events of one source.
	MaxFactsPerSource int
	// AdapterTimeout bounds every adapter call.
	AdapterTimeout time.Duration
}

// Service is the scan orchestrator. It holds no per-run state and is safe
// for concurrent runs targeting different sinks.
type Service struct {
	registry  *intel.Registry
	generator intel.Generator
	cfg       Config
	logger    *logger.Logger
}

// NewService creates a new orchestrator.
func NewService(registry *intel.Registry, generator intel.Generator, cfg Config, log *logger.Logger) *Service {
	if cfg.MaxFactsPerSource <= 0 {
		cfg.MaxFactsPerSource = DefaultMaxFactsPerSource
	}
	if cfg.AdapterTimeout <= 0 {
		cfg.AdapterTimeout = DefaultAdapterTimeout
	}
	return &Service{
		registry:  registry,
		generator: generator,
		cfg:       cfg,
		logger:    log.With("service", "scan"),
	}
}

// Estimate returns the total steps a run of the request will report.
func (s *Service) Estimate(req scan.Request) int {
	return scan.EstimateRequest(req)
}

// Plan returns the sources a run of the request would query and the
// strategy each would use.
func (s *Service) Plan(req scan.Request) []SourcePlan {
	caps := PlanCapabilities(req.Type())
	plans := make([]SourcePlan, 0, len(caps))
	for _, c := range caps {
		adapter := s.registry.For(c)
		plans = append(plans, SourcePlan{
			Capability: c,
			Adapter:    adapter,
			Strategy:   intel.SelectStrategy(adapter),
		})
	}
	return plans
}

// Run executes a scan and pushes its events to sink in step order.
//
// Run fails only with ErrInvalidRequest (before any event), ErrSinkUnavailable
// (events already pushed stay valid) or ErrRunCanceled. Provider failures are
// absorbed into degraded source outcomes.
func (s *Service) Run(ctx context.Context, req scan.Request, sink scan.Sink) (scan.Outcome, error) {
	return s.RunWithID(ctx, shared.NewID(), req, sink)
}

// RunWithID is Run with a caller-chosen run id.
func (s *Service) RunWithID(ctx context.Context, runID shared.ID, req scan.Request, sink scan.Sink) (outcome scan.Outcome, err error) {
	if err := req.Validate(); err != nil {
		metrics.ScanRunsTotal.WithLabelValues(metricType(req.Type()), "invalid").Inc()
		return scan.Outcome{}, err
	}
	target, err := intel.ParseTarget(req.Target())
	if err != nil {
		metrics.ScanRunsTotal.WithLabelValues(metricType(req.Type()), "invalid").Inc()
		return scan.Outcome{}, fmt.Errorf("%w: %w", scan.ErrInvalidRequest, err)
	}

	rc := RunContext{
		RunID:      runID,
		Request:    req,
		Target:     target,
		Sources:    s.Plan(req),
		TotalSteps: scan.EstimateRequest(req),
		StartedAt:  time.Now().UTC(),
	}

	ctx, span := tracer.Start(ctx, "scan.run", trace.WithAttributes(
		attribute.String("scan.run_id", runID.String()),
		attribute.String("scan.type", req.Type().String()),
		attribute.String("scan.target", target.Host),
		attribute.Int("scan.total_steps", rc.TotalSteps),
	))
	log := s.logger.With("run_id", runID.Short(), "scan_type", req.Type(), "target", target.Host)

	metrics.ScanRunsInProgress.Inc()
	defer func() {
		metrics.ScanRunsInProgress.Dec()
		metrics.ScanRunsTotal.WithLabelValues(metricType(req.Type()), resultLabel(err)).Inc()
		metrics.ScanRunDuration.WithLabelValues(metricType(req.Type())).Observe(time.Since(rc.StartedAt).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log.Info("scan started", "total_steps", rc.TotalSteps, "sources", len(rc.Sources))

	pub := &publisher{sink: sink, pacing: s.cfg.PacingDelay}

	var events []scan.ProgressEvent
	rc, events = initialize(rc)
	if err := pub.publish(ctx, events); err != nil {
		return scan.Outcome{}, s.abort(log, err)
	}

	rc, events = validateTarget(rc)
	if err := pub.publish(ctx, events); err != nil {
		return scan.Outcome{}, s.abort(log, err)
	}

	results := make([]sourceResult, 0, len(rc.Sources))
	for i := range rc.Sources {
		if err := ctx.Err(); err != nil {
			return scan.Outcome{}, s.abort(log, err)
		}

		var res sourceResult
		rc, res, err = s.querySource(ctx, rc, i)
		if err != nil {
			return scan.Outcome{}, s.abort(log, err)
		}
		if err := pub.publish(ctx, res.events); err != nil {
			return scan.Outcome{}, s.abort(log, err)
		}
		results = append(results, res)

		metrics.SourceOutcomesTotal.WithLabelValues(res.report.Capability.String(), string(res.report.Outcome)).Inc()
		if derr := res.report.Err(); derr != nil {
			log.Warn("source degraded", "error", derr, "provider", res.report.Provider)
		} else {
			log.Info("source finished",
				"capability", res.report.Capability,
				"provider", res.report.Provider,
				"facts", res.report.Facts,
				"emitted", res.report.Emitted,
			)
		}
	}

	rc, events = aggregate(rc, results)
	if err := pub.publish(ctx, events); err != nil {
		return scan.Outcome{}, s.abort(log, err)
	}

	rc, events, outcome = finalize(rc, results)
	if err := pub.publish(ctx, events); err != nil {
		return scan.Outcome{}, s.abort(log, err)
	}

	log.Info("scan completed", "summary", outcome.Summary, "degraded", outcome.Degraded())
	return outcome, nil
}

func (s *Service) abort(log *logger.Logger, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Info("scan canceled", "reason", err)
		return fmt.Errorf("%w: %w", scan.ErrRunCanceled, err)
	case errors.Is(err, scan.ErrRunCanceled):
		log.Info("scan canceled", "reason", err)
		return err
	default:
		log.Warn("scan aborted", "error", err)
		return err
	}
}

// publisher pushes events to the sink with pacing. The pacing wait is the
// only point besides adapter calls where a run yields.
type publisher struct {
	sink   scan.Sink
	pacing time.Duration
	pushed int
}

func (p *publisher) publish(ctx context.Context, events []scan.ProgressEvent) error {
	for _, ev := range events {
		if p.pushed > 0 && p.pacing > 0 {
			timer := time.NewTimer(p.pacing)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := p.sink.Push(ctx, ev); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("%w: step %d: %w", scan.ErrSinkUnavailable, ev.StepIndex, err)
		}
		p.pushed++
		metrics.ProgressEventsTotal.Inc()
	}
	return nil
}

func metricType(t scan.Type) string {
	if t.IsKnown() {
		return t.String()
	}
	return "unknown"
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, scan.ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, scan.ErrSinkUnavailable):
		return "sink_unavailable"
	case errors.Is(err, scan.ErrRunCanceled):
		return "canceled"
	default:
		return "error"
	}
}
