package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/workforce/internal/config"
	"github.com/smallbiznis/workforce/internal/migration"
	"github.com/smallbiznis/workforce/internal/observability"
	"github.com/smallbiznis/workforce/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				config.Module,
				observability.Module,
				db.Module,
				migration.Module,
			)

			startCtx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			if err := app.Start(startCtx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer stopCancel()
			return app.Stop(stopCtx)
		},
	}
}
