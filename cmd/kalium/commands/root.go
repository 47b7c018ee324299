// Package commands holds the cobra command tree of the kalium CLI.
package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	scansvc "github.com/kaliumosint/api/internal/app/scan"
	"github.com/kaliumosint/api/internal/config"
	"github.com/kaliumosint/api/internal/infra/providers"
	"github.com/kaliumosint/api/pkg/logger"
)

const cliExecutable = "kalium"

// Output formats accepted by -o.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// env is shared by every subcommand once the root pre-run has loaded it.
type env struct {
	cfg       *config.Config
	log       *logger.Logger
	providers *providers.Set
	output    string
}

// NewCommand constructs the top-level kalium command.
func NewCommand() *cobra.Command {
	e := &env{}
	var verbosity int

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "KaliumOSINT scans targets against open intelligence sources",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch e.output {
			case FormatTable, FormatJSON, FormatYAML:
			default:
				return fmt.Errorf("unknown output format %q (want table, json or yaml)", e.output)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.log = newLogger(cmd.ErrOrStderr(), verbosity)
			e.providers = providers.NewSet(cfg.Providers, e.log)
			return nil
		},
	}

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	cmd.PersistentFlags().StringVarP(&e.output, "output", "o", FormatTable, "Output format: table, json, yaml")
	cmd.PersistentFlags().CountVarP(&verbosity, "verbosity", "v", "Increase logging verbosity (repeatable)")

	cmd.AddGroup(&cobra.Group{ID: "scan", Title: "Scan Commands"})
	cmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands"})

	cmd.AddCommand(newScanCommand(e))
	cmd.AddCommand(newEstimateCommand(e))
	cmd.AddCommand(newProxyCommand(e))
	cmd.AddCommand(newVersionCommand(e))

	return cmd
}

// newLogger logs to stderr so stdout stays parseable. -v count: 0=>error,
// 1=>info, 2+=>debug.
func newLogger(w io.Writer, verbosity int) *logger.Logger {
	level := "error"
	switch {
	case verbosity == 1:
		level = "info"
	case verbosity >= 2:
		level = "debug"
	}
	return logger.New(logger.Config{Level: level, Format: "text", Output: w})
}

func (e *env) scanService(pacing *durationFlag) *scansvc.Service {
	cfg := scansvc.Config{
		PacingDelay:       e.cfg.Scan.PacingDelay,
		MaxFactsPerSource: e.cfg.Scan.MaxFactsPerSource,
		AdapterTimeout:    e.cfg.Providers.Timeout,
	}
	if pacing != nil && pacing.set {
		cfg.PacingDelay = pacing.value
	}
	return scansvc.NewService(e.providers.Registry(), e.providers.Synthetic, cfg, e.log)
}
