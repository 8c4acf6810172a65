package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/otpauth/config"
	"gorm.io/gorm"
)

type widget struct {
	ID     string `gorm:"primaryKey;size:36"`
	UserID string `gorm:"size:36;index"`
}

func sqliteConfig(t *testing.T, migrator string) config.DatabaseConfig {
	t.Helper()
	return config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          filepath.Join(t.TempDir(), "otpauth.db"),
		AutoMigrate:  true,
		Migrator:     migrator,
		MaxOpenConns: 1,
	}
}

func TestWithModels(t *testing.T) {
	option := WithModels(widget{}, &widget{})

	assert.Len(t, option.Models(), 2)

	var nilOption *ModelsOption
	assert.Nil(t, nilOption.Models())
}

func TestOpen(t *testing.T) {
	t.Run("sqlite", func(t *testing.T) {
		db, err := Open(sqliteConfig(t, "gorm"), nil)

		require.NoError(t, err)
		assert.NoError(t, Ping(context.Background(), db))
	})

	t.Run("unsupported driver", func(t *testing.T) {
		db, err := Open(config.DatabaseConfig{Driver: "oracle"}, nil)

		assert.Nil(t, db)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported database driver")
	})
}

func TestMigrate_Gorm(t *testing.T) {
	cfg := sqliteConfig(t, "gorm")
	db, err := Open(cfg, nil)
	require.NoError(t, err)

	err = Migrate(context.Background(), db, cfg, []any{&widget{}}, nil)

	require.NoError(t, err)
	assert.True(t, db.Migrator().HasTable(&widget{}))
}

func TestMigrate_Goose(t *testing.T) {
	cfg := sqliteConfig(t, "goose")
	db, err := Open(cfg, nil)
	require.NoError(t, err)

	err = Migrate(context.Background(), db, cfg, nil, nil)
	require.NoError(t, err)

	assert.True(t, db.Migrator().HasTable("users"))
	assert.True(t, db.Migrator().HasTable("one_time_codes"))
	assert.True(t, db.Migrator().HasIndex("users", "idx_users_email"))

	// re-running is a no-op
	require.NoError(t, Migrate(context.Background(), db, cfg, nil, nil))
}

func TestMigrate_GooseUsesSeam(t *testing.T) {
	cfg := sqliteConfig(t, "goose")
	db, err := Open(cfg, nil)
	require.NoError(t, err)

	original := gooseUpContext
	t.Cleanup(func() { gooseUpContext = original })

	called := false
	gooseUpContext = func(ctx context.Context, db *gorm.DB) error {
		called = true
		return assert.AnError
	}

	err = Migrate(context.Background(), db, cfg, nil, nil)

	assert.True(t, called)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestMigrate_UnknownMigrator(t *testing.T) {
	cfg := sqliteConfig(t, "flyway")
	db, err := Open(cfg, nil)
	require.NoError(t, err)

	err = Migrate(context.Background(), db, cfg, []any{&widget{}}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported migrator")
}

func TestGooseDialect(t *testing.T) {
	for driver, want := range map[string]string{
		"sqlite":     "sqlite3",
		"postgres":   "postgres",
		"postgresql": "postgres",
		"mysql":      "mysql",
	} {
		got, err := gooseDialect(driver)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := gooseDialect("mssql")
	assert.Error(t, err)
}
