package commands

import (
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kaliumosint/api/pkg/domain/scan"
)

type estimateReport struct {
	ScanType   scan.Type   `json:"scan_type" yaml:"scan_type"`
	TotalSteps int         `json:"total_steps" yaml:"total_steps"`
	Sources    []sourceRow `json:"sources" yaml:"sources"`
}

func newEstimateCommand(e *env) *cobra.Command {
	var (
		scanType string
		settings map[string]string
	)

	cmd := &cobra.Command{
		Use:     "estimate",
		Short:   "Show how many steps a scan will report",
		GroupID: "scan",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Planning ignores the target.
			req := scan.NewRequest(scan.Type(scanType), "estimate", settings)
			svc := e.scanService(nil)

			report := estimateReport{ScanType: req.Type(), TotalSteps: svc.Estimate(req)}
			for _, p := range svc.Plan(req) {
				report.Sources = append(report.Sources, sourceRow{
					Capability: p.Capability,
					Provider:   p.Provider(),
					Strategy:   p.Strategy,
				})
			}

			return render(cmd.OutOrStdout(), e.output, report, func(tw *tabwriter.Writer) {
				row(tw, "Total steps:", report.TotalSteps)
				row(tw)
				row(tw, "SOURCE", "PROVIDER", "STRATEGY")
				for _, s := range report.Sources {
					row(tw, s.Capability, s.Provider, s.Strategy)
				}
			})
		},
	}

	cmd.Flags().StringVarP(&scanType, "type", "t", string(scan.TypeQuick), "Scan type: quick, full, ports, web, malware")
	cmd.Flags().StringToStringVar(&settings, "set", nil, "Scan option as key=value (portRange, scanTypes, engineType)")

	return cmd
}
