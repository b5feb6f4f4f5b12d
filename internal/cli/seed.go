package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/workforce/internal/employee"
	employeedomain "github.com/smallbiznis/workforce/internal/employee/domain"
	"github.com/smallbiznis/workforce/internal/seed"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newSeedCmd() *cobra.Command {
	var (
		admin seed.Admin
		demo  bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the first admin profile and optional demo employees",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				employees employeedomain.Service
				log       *zap.Logger
			)
			app := fx.New(
				infrastructure(),
				employee.Module,
				fx.Populate(&employees, &log),
			)

			startCtx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			if err := app.Start(startCtx); err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			defer func() {
				stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer stopCancel()
				_ = app.Stop(stopCtx)
			}()

			created, err := seed.EnsureAdmin(cmd.Context(), employees, admin)
			if err != nil {
				return fmt.Errorf("seed admin: %w", err)
			}
			log.Info("admin profile ensured", zap.Bool("created", created))

			if demo {
				n, err := seed.EnsureDemoEmployees(cmd.Context(), employees)
				if err != nil {
					return fmt.Errorf("seed demo employees: %w", err)
				}
				log.Info("demo employees ensured", zap.Int("created", n))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&admin.Email, "email", "", "admin email")
	cmd.Flags().StringVar(&admin.FullName, "name", "", "admin full name")
	cmd.Flags().BoolVar(&demo, "demo", false, "also create demo employees")
	return cmd
}
