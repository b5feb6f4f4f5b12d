package migration

import (
	"context"

	"github.com/smallbiznis/workforce/internal/config"
	"github.com/smallbiznis/workforce/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module migrates the schema when the application starts. Only Postgres has
// embedded migrations; other dialects are expected to be provisioned out of band.
var Module = fx.Module("migrations",
	fx.Invoke(register),
)

func register(lc fx.Lifecycle, conn *gorm.DB, cfg config.Config, log *zap.Logger) {
	log = log.Named("migration")
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if db.NormalizeType(cfg.DBType) != db.TypePostgres {
				log.Warn("no embedded migrations for database type", zap.String("type", cfg.DBType))
				return nil
			}
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			res, err := Up(sqlDB)
			if err != nil {
				return err
			}
			log.Info("schema ready",
				zap.Uint("version", res.Version),
				zap.Bool("changed", res.Changed),
				zap.Bool("dirty", res.Dirty),
			)
			return nil
		},
	})
}
