package database

import (
	"context"

	"github.com/tech-arch1tect/otpauth/config"
	"github.com/tech-arch1tect/otpauth/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Options(
	fx.Provide(ProvideDatabaseFx),
)

type Params struct {
	fx.In

	Config    *config.Config
	Logger    *logging.Service
	Models    *ModelsOption `optional:"true"`
	Lifecycle fx.Lifecycle
}

func ProvideDatabaseFx(p Params) (*gorm.DB, error) {
	db, err := Open(p.Config.Database, p.Logger)
	if err != nil {
		return nil, err
	}

	if p.Config.Database.AutoMigrate {
		if err := Migrate(context.Background(), db, p.Config.Database, p.Models.Models(), p.Logger); err != nil {
			return nil, err
		}
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}
