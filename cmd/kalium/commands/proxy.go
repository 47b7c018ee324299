package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kaliumosint/api/internal/app/dashboard"
)

func newProxyCommand(e *env) *cobra.Command {
	var endpoint, target string

	cmd := &cobra.Command{
		Use:     "proxy",
		Short:   "Query a dashboard endpoint through the proxy boundary",
		Example: "  kalium proxy --endpoint activity --target example.com",
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ep, err := dashboard.ParseEndpoint(endpoint)
			if err != nil {
				return err
			}

			p := e.providers
			svc := dashboard.NewService(p.Shodan, p.URLScan, p.Synthetic, nil, e.log,
				dashboard.WithLoadTimeout(2*e.cfg.Providers.CallBudget()))
			resp, err := svc.Fetch(cmd.Context(), ep, target)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch e.output {
			case FormatJSON:
				_, err = fmt.Fprintln(out, string(resp.Body))
				return err
			case FormatYAML:
				var body any
				if err := json.Unmarshal(resp.Body, &body); err != nil {
					return err
				}
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(body); err != nil {
					return err
				}
				return enc.Close()
			}

			var pretty bytes.Buffer
			if err := json.Indent(&pretty, resp.Body, "", "  "); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			row(tw, "Endpoint:", resp.Endpoint)
			row(tw, "Source:", resp.Source)
			if err := tw.Flush(); err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, pretty.String())
			return err
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Endpoint: scans, sources, activity, threats")
	cmd.Flags().StringVar(&target, "target", "", "Target for activity and threats")
	_ = cmd.MarkFlagRequired("endpoint")

	return cmd
}
