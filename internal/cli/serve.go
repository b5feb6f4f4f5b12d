package cli

import (
	"strings"

	"github.com/smallbiznis/workforce/internal/bulkpayroll/runner"
	"github.com/smallbiznis/workforce/internal/config"
	"github.com/smallbiznis/workforce/internal/migration"
	"github.com/smallbiznis/workforce/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newServeCmd() *cobra.Command {
	var (
		addr       string
		withRunner bool
		migrate    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, and the pay-run recovery runner unless disabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []fx.Option{
				infrastructure(),
				domains(),
				fx.Decorate(func(cfg config.Config) config.Config {
					if trimmed := strings.TrimSpace(addr); trimmed != "" {
						cfg.HTTPAddr = trimmed
					}
					if !withRunner {
						cfg.Runner.Enabled = false
					}
					return cfg
				}),
			}
			// Start hooks run in registration order, so the schema is migrated before the listener opens.
			if migrate {
				opts = append(opts, migration.Module)
			}
			opts = append(opts, server.Module, runner.Module)

			fx.New(opts...).Run()
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides HTTP_ADDR")
	cmd.Flags().BoolVar(&withRunner, "runner", true, "run the pay-run recovery runner in this process")
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply embedded migrations on start")
	return cmd
}
