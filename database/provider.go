package database

import (
	"context"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/tech-arch1tect/otpauth/config"
	"github.com/tech-arch1tect/otpauth/database/migrations"
	"github.com/tech-arch1tect/otpauth/services/logging"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type ModelsOption struct {
	models []any
}

func WithModels(models ...any) *ModelsOption {
	return &ModelsOption{models: models}
}

func (o *ModelsOption) Models() []any {
	if o == nil {
		return nil
	}
	return o.models
}

// Open connects to the configured driver. Duplicate-key violations are
// translated to gorm.ErrDuplicatedKey so callers can detect them portably.
func Open(cfg config.DatabaseConfig, logger *logging.Service) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres", "postgresql":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres, mysql)", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access database handle: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	logger.Info("database connected", zap.String("driver", cfg.Driver))

	return db, nil
}

// Migrate brings the schema up to date using either gorm AutoMigrate over the
// registered models or the embedded goose migrations.
func Migrate(ctx context.Context, db *gorm.DB, cfg config.DatabaseConfig, models []any, logger *logging.Service) error {
	switch cfg.Migrator {
	case "", "gorm":
		if len(models) == 0 {
			return nil
		}
		if err := db.WithContext(ctx).AutoMigrate(models...); err != nil {
			return fmt.Errorf("failed to auto-migrate models: %w", err)
		}
		logger.Info("schema auto-migrated", zap.Int("models", len(models)))
		return nil
	case "goose":
		return runGoose(ctx, db, cfg.Driver, logger)
	default:
		return fmt.Errorf("unsupported migrator: %s (supported: gorm, goose)", cfg.Migrator)
	}
}

// gooseUpContext is a seam for tests.
var gooseUpContext = func(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return goose.UpContext(ctx, sqlDB, ".")
}

func runGoose(ctx context.Context, db *gorm.DB, driver string, logger *logging.Service) error {
	dialect, err := gooseDialect(driver)
	if err != nil {
		return err
	}

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := gooseUpContext(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("schema migrated", zap.String("migrator", "goose"), zap.String("dialect", dialect))
	return nil
}

func gooseDialect(driver string) (string, error) {
	switch driver {
	case "sqlite":
		return "sqlite3", nil
	case "postgres", "postgresql":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	default:
		return "", fmt.Errorf("no goose dialect for driver %q", driver)
	}
}

// Ping reports whether the database answers.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
