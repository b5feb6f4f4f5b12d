package cli

import (
	"github.com/smallbiznis/workforce/internal/bulkpayroll/runner"
	"github.com/smallbiznis/workforce/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run only the pay-run recovery runner",
		RunE: func(cmd *cobra.Command, args []string) error {
			fx.New(
				infrastructure(),
				domains(),
				fx.Decorate(func(cfg config.Config) config.Config {
					cfg.Runner.Enabled = true
					return cfg
				}),
				runner.Module,
			).Run()
			return nil
		},
	}
}
