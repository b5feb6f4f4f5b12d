// Package cli wires the workforce binary and its subcommands.
package cli

import (
	"github.com/smallbiznis/workforce/internal/audit"
	"github.com/smallbiznis/workforce/internal/authorization"
	"github.com/smallbiznis/workforce/internal/bulkpayroll"
	"github.com/smallbiznis/workforce/internal/clock"
	"github.com/smallbiznis/workforce/internal/config"
	"github.com/smallbiznis/workforce/internal/employee"
	"github.com/smallbiznis/workforce/internal/idgen"
	"github.com/smallbiznis/workforce/internal/lock"
	"github.com/smallbiznis/workforce/internal/observability"
	"github.com/smallbiznis/workforce/internal/payroll"
	"github.com/smallbiznis/workforce/internal/providers/pdf"
	"github.com/smallbiznis/workforce/internal/workinghours"
	"github.com/smallbiznis/workforce/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// Version is set at build time.
var Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:           "workforce",
	Short:         "Workforce management: employees, working hours and payroll runs",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newWorkerCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newSeedCmd())
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

// infrastructure is shared by every command that touches the Record Store.
func infrastructure() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		idgen.Module,
		db.Module,
		clock.Module,
	)
}

// domains provides every service the pay-run pipeline and the API depend on.
func domains() fx.Option {
	return fx.Options(
		audit.Module,
		authorization.Module,
		employee.Module,
		workinghours.Module,
		pdf.Module,
		payroll.Module,
		bulkpayroll.Module,
		lock.Module,
	)
}
