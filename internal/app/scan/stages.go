package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kaliumosint/api/pkg/domain/intel"
	"github.com/kaliumosint/api/pkg/domain/scan"
)

// sourceResult is what one Querying stage produced.
type sourceResult struct {
	report    scan.SourceReport
	facts     []Fact
	truncated []Fact
	events    []scan.ProgressEvent
}

func initialize(rc RunContext) (RunContext, []scan.ProgressEvent) {
	details := fmt.Sprintf("%s scan of %s with %d %s", scanLabel(rc.Request.Type()), rc.Target.Raw, len(rc.Sources), plural(len(rc.Sources), "source", "sources"))
	rc, ev := rc.EventAt(1, StatusInitializing, details)
	return rc, []scan.ProgressEvent{ev}
}

func validateTarget(rc RunContext) (RunContext, []scan.ProgressEvent) {
	details := fmt.Sprintf("%s resolved as %s", rc.Target.Host, rc.Target.Kind)
	if rc.Target.Registrable != "" && rc.Target.Registrable != rc.Target.Host {
		details += fmt.Sprintf(" (registrable domain %s)", rc.Target.Registrable)
	}
	rc, ev := rc.EventAt(2, StatusValidating, details)
	return rc, []scan.ProgressEvent{ev}
}

// querySource runs Querying[i]. Provider errors never leave this function;
// the only error returned is the run's own cancellation.
func (s *Service) querySource(ctx context.Context, rc RunContext, i int) (RunContext, sourceResult, error) {
	plan := rc.Sources[i]
	ctx, span := tracer.Start(ctx, "scan.source", trace.WithAttributes(
		attribute.String("scan.capability", plan.Capability.String()),
		attribute.String("scan.provider", plan.Provider()),
		attribute.String("scan.strategy", string(plan.Strategy)),
	))
	defer span.End()

	res := sourceResult{report: scan.SourceReport{
		Capability: plan.Capability,
		Provider:   plan.Provider(),
		Strategy:   plan.Strategy,
		Outcome:    scan.OutcomeOK,
	}}

	var raw intel.RawResult
	switch plan.Strategy {
	case intel.StrategySynthetic:
		res.report.Outcome = scan.OutcomeUnavailable
		res.report.Reason = "credentials missing"
		raw = s.generator.Generate(plan.Capability, rc.Target)
	default:
		var err error
		raw, err = s.fetch(ctx, plan, rc.Target)
		if err != nil {
			if ctx.Err() != nil {
				return rc, res, ctx.Err()
			}
			res.report.Outcome = scan.OutcomeFailed
			res.report.Reason = intel.Describe(err)
			s.logger.Debug("source fetch failed",
				"run_id", rc.RunID.Short(),
				"capability", plan.Capability,
				"provider", plan.Provider(),
				"error", err,
			)
			raw = s.generator.Generate(plan.Capability, rc.Target)
		}
	}

	if res.report.Outcome == scan.OutcomeFailed {
		var ev scan.ProgressEvent
		rc, ev = degradedEvent(rc, plan, res.report.Reason)
		res.events = append(res.events, ev)
	}

	facts, err := Translate(plan.Capability, raw.Data)
	if err != nil && !raw.Synthetic {
		// A real answer we cannot read is a failed source like any other.
		res.report.Outcome = scan.OutcomeFailed
		res.report.Reason = intel.Describe(err)
		var ev scan.ProgressEvent
		rc, ev = degradedEvent(rc, plan, res.report.Reason)
		res.events = append(res.events, ev)
		facts, err = Translate(plan.Capability, s.generator.Generate(plan.Capability, rc.Target).Data)
	}
	if err != nil {
		s.logger.Error("synthetic data unreadable", "capability", plan.Capability, "error", err)
		facts = nil
	}
	res.facts = facts
	res.report.Facts = len(facts)

	allowance := rc.FactAllowance(i, s.cfg.MaxFactsPerSource)
	if allowance < len(facts) {
		res.truncated = facts[allowance:]
		facts = facts[:allowance]
	}
	for _, f := range facts {
		var ev scan.ProgressEvent
		rc, ev = rc.Event(f.Status, f.Details)
		res.events = append(res.events, ev)
	}
	res.report.Emitted = len(facts)

	details := CountFacts(res.facts)
	if res.report.Outcome.IsDegraded() {
		details += " (synthetic data)"
	}
	var ev scan.ProgressEvent
	rc, ev = rc.Event(fmt.Sprintf(summaryStatusPattern, plan.Capability.Label()), details)
	res.events = append(res.events, ev)

	span.SetAttributes(
		attribute.String("scan.outcome", string(res.report.Outcome)),
		attribute.Int("scan.facts", res.report.Facts),
	)
	return rc, res, nil
}

// degradedEvent is the one degraded-status event of a failed source.
func degradedEvent(rc RunContext, plan SourcePlan, reason string) (RunContext, scan.ProgressEvent) {
	return rc.Event(StatusDegraded, fmt.Sprintf("%s via %s unavailable (%s); using synthetic data",
		plan.Capability.Label(), plan.Provider(), reason))
}

func (s *Service) fetch(ctx context.Context, plan SourcePlan, target intel.Target) (intel.RawResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.AdapterTimeout)
	defer cancel()

	raw, err := plan.Adapter.Fetch(ctx, plan.Capability, target)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, intel.ErrTimeout) {
			err = fmt.Errorf("%w: %w", intel.ErrTimeout, err)
		}
		return intel.RawResult{}, err
	}
	return raw, nil
}

func aggregate(rc RunContext, results []sourceResult) (RunContext, []scan.ProgressEvent) {
	total := 0
	var hidden []Fact
	for _, r := range results {
		total += len(r.facts)
		hidden = append(hidden, r.truncated...)
	}

	details := fmt.Sprintf("%d %s reported across %d %s", total, plural(total, "finding", "findings"),
		len(results), plural(len(results), "source", "sources"))
	if len(hidden) > 0 {
		details += fmt.Sprintf("; %d more not shown: %s", len(hidden), summarizeHidden(hidden))
	}

	rc, ev := rc.EventAt(rc.TotalSteps-1, StatusAggregating, details)
	return rc, []scan.ProgressEvent{ev}
}

// summarizeHidden lists the first few truncated facts and counts the rest.
func summarizeHidden(facts []Fact) string {
	const listed = 3
	parts := make([]string, 0, listed)
	for _, f := range facts[:min(listed, len(facts))] {
		parts = append(parts, f.Details)
	}
	out := strings.Join(parts, "; ")
	if rest := len(facts) - listed; rest > 0 {
		out += fmt.Sprintf(" and %d others (%s)", rest, CountFacts(facts[listed:]))
	}
	return out
}

func finalize(rc RunContext, results []sourceResult) (RunContext, []scan.ProgressEvent, scan.Outcome) {
	outcome := scan.Outcome{
		RunID:      rc.RunID.String(),
		ScanType:   rc.Request.Type(),
		Target:     rc.Target.Host,
		TotalSteps: rc.TotalSteps,
		PerSource:  make(map[intel.Capability]scan.OutcomeTag, len(results)),
		Sources:    make([]scan.SourceReport, 0, len(results)),
		StartedAt:  rc.StartedAt,
	}

	counts := map[scan.OutcomeTag]int{}
	findings := 0
	for _, r := range results {
		outcome.PerSource[r.report.Capability] = r.report.Outcome
		outcome.Sources = append(outcome.Sources, r.report)
		counts[r.report.Outcome]++
		findings += len(r.facts)
	}

	var tags []string
	for _, tag := range []scan.OutcomeTag{scan.OutcomeOK, scan.OutcomeUnavailable, scan.OutcomeFailed} {
		if counts[tag] > 0 {
			tags = append(tags, fmt.Sprintf("%d %s", counts[tag], tag))
		}
	}
	outcome.Summary = fmt.Sprintf("Scan of %s finished: %d %s (%s), %d %s",
		rc.Target.Host,
		len(results), plural(len(results), "source", "sources"),
		strings.Join(tags, ", "),
		findings, plural(findings, "finding", "findings"),
	)

	rc, ev := rc.EventAt(rc.TotalSteps, StatusCompleted, outcome.Summary)
	outcome.FinishedAt = time.Now().UTC()
	return rc, []scan.ProgressEvent{ev}, outcome
}

func scanLabel(t scan.Type) string {
	if t.IsKnown() {
		return strings.ToUpper(t.String()[:1]) + t.String()[1:]
	}
	return "Default"
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
