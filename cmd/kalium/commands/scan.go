package commands

import (
	"context"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kaliumosint/api/internal/infra/console"
	"github.com/kaliumosint/api/pkg/domain/intel"
	"github.com/kaliumosint/api/pkg/domain/scan"
)

type sourceRow struct {
	Capability intel.Capability `json:"capability" yaml:"capability"`
	Provider   string           `json:"provider" yaml:"provider"`
	Strategy   intel.Strategy   `json:"strategy" yaml:"strategy"`
	Outcome    scan.OutcomeTag  `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	Reason     string           `json:"reason,omitempty" yaml:"reason,omitempty"`
	Facts      int              `json:"facts,omitempty" yaml:"facts,omitempty"`
}

type scanReport struct {
	RunID      string      `json:"run_id" yaml:"run_id"`
	ScanType   scan.Type   `json:"scan_type" yaml:"scan_type"`
	Target     string      `json:"target" yaml:"target"`
	TotalSteps int         `json:"total_steps" yaml:"total_steps"`
	Degraded   int         `json:"degraded_sources" yaml:"degraded_sources"`
	Sources    []sourceRow `json:"sources" yaml:"sources"`
	Summary    string      `json:"final_summary" yaml:"final_summary"`
	DurationMS int64       `json:"duration_ms" yaml:"duration_ms"`
}

func newScanReport(o scan.Outcome) scanReport {
	r := scanReport{
		RunID:      o.RunID,
		ScanType:   o.ScanType,
		Target:     o.Target,
		TotalSteps: o.TotalSteps,
		Degraded:   o.Degraded(),
		Summary:    o.Summary,
		DurationMS: o.FinishedAt.Sub(o.StartedAt).Milliseconds(),
	}
	for _, s := range o.Sources {
		r.Sources = append(r.Sources, sourceRow{
			Capability: s.Capability,
			Provider:   s.Provider,
			Strategy:   s.Strategy,
			Outcome:    s.Outcome,
			Reason:     s.Reason,
			Facts:      s.Facts,
		})
	}
	return r
}

func newScanCommand(e *env) *cobra.Command {
	var (
		scanType   string
		target     string
		settings   map[string]string
		pacing     durationFlag
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a scan and stream its progress",
		Long: `Runs a scan against one target. Progress is drawn on stderr while the
scan runs and the outcome is written to stdout.`,
		Example: "  kalium scan --type ports --target example.com --set portRange=full",
		GroupID: "scan",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := scan.NewRequest(scan.Type(scanType), target, settings)
			svc := e.scanService(&pacing)

			var sink scan.Sink = scan.SinkFunc(func(context.Context, scan.ProgressEvent) error { return nil })
			if !noProgress {
				bar := console.NewSink(cmd.ErrOrStderr())
				defer func() { _ = bar.Close() }()
				sink = bar
			}

			outcome, err := svc.Run(cmd.Context(), req, sink)
			if err != nil {
				return err
			}

			report := newScanReport(outcome)
			return render(cmd.OutOrStdout(), e.output, report, func(tw *tabwriter.Writer) {
				row(tw, "SOURCE", "PROVIDER", "STRATEGY", "OUTCOME", "FACTS")
				for _, s := range report.Sources {
					row(tw, s.Capability, s.Provider, s.Strategy, s.Outcome, s.Facts)
				}
				row(tw)
				row(tw, "Summary:", report.Summary)
			})
		},
	}

	cmd.Flags().StringVarP(&scanType, "type", "t", string(scan.TypeQuick), "Scan type: quick, full, ports, web, malware")
	cmd.Flags().StringVar(&target, "target", "", "Domain, host or IP address to scan")
	cmd.Flags().StringToStringVar(&settings, "set", nil, "Scan option as key=value (portRange, scanTypes, engineType)")
	cmd.Flags().Var(&pacing, "pacing", "Delay between progress events (defaults to SCAN_PACING_DELAY)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Do not draw progress")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}
