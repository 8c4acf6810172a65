package app

import (
	"errors"
	"fmt"

	"github.com/tech-arch1tect/otpauth/config"
	"github.com/tech-arch1tect/otpauth/database"
	"github.com/tech-arch1tect/otpauth/handlers"
	"github.com/tech-arch1tect/otpauth/middleware/ratelimit"
	"github.com/tech-arch1tect/otpauth/server"
	"github.com/tech-arch1tect/otpauth/services/auth"
	"github.com/tech-arch1tect/otpauth/services/jwt"
	"github.com/tech-arch1tect/otpauth/services/logging"
	"github.com/tech-arch1tect/otpauth/services/mail"
	"github.com/tech-arch1tect/otpauth/services/otp"
	"github.com/tech-arch1tect/otpauth/services/telemetry"
	"github.com/tech-arch1tect/otpauth/services/user"
	"go.uber.org/fx"
)

type AppBuilder struct {
	config    *config.Config
	services  map[string]bool
	models    []any
	fxOptions []fx.Option
	errors    []error
	redisURL  string
}

func NewApp() *AppBuilder {
	return &AppBuilder{
		services:  make(map[string]bool),
		models:    make([]any, 0),
		fxOptions: make([]fx.Option, 0),
		errors:    make([]error, 0),
	}
}

func (b *AppBuilder) WithConfig(cfg *config.Config) *AppBuilder {
	if cfg == nil {
		b.addError("config cannot be nil")
		return b
	}
	b.config = cfg
	return b
}

func (b *AppBuilder) WithAutoConfig() *AppBuilder {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		b.addError(fmt.Sprintf("failed to load config: %v", err))
		return b
	}
	b.config = cfg
	return b
}

// WithDatabase migrates models alongside the user and code tables. Resource
// tables protected by ownership checks are registered here.
func (b *AppBuilder) WithDatabase(models ...any) *AppBuilder {
	b.models = append(b.models, models...)
	return b
}

// WithMail delivers codes through the MAIL_DRIVER configured channel. Without
// it codes are only logged, which Build allows in development only.
func (b *AppBuilder) WithMail() *AppBuilder {
	b.services["mail"] = true
	return b
}

// WithRedis keeps rate limit and attempt counters in redis so they are shared
// between instances.
func (b *AppBuilder) WithRedis(url string) *AppBuilder {
	if url == "" {
		b.addError("redis url cannot be empty")
		return b
	}
	b.services["redis"] = true
	b.redisURL = url
	return b
}

func (b *AppBuilder) WithTelemetry() *AppBuilder {
	b.services["telemetry"] = true
	return b
}

func (b *AppBuilder) WithFxOptions(opts ...fx.Option) *AppBuilder {
	b.fxOptions = append(b.fxOptions, opts...)
	return b
}

func (b *AppBuilder) Build() (*App, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	if b.config == nil {
		if err := b.WithAutoConfig().validate(); err != nil {
			return nil, err
		}
	}

	if !b.services["mail"] && !b.config.App.IsDevelopment() {
		return nil, fmt.Errorf("%w: call WithMail", mail.ErrLogDeliveryOutsideDevelopment)
	}

	if b.services["redis"] {
		b.config.RateLimit.Store = "redis"
		b.config.Redis.URL = b.redisURL
	}

	if b.services["telemetry"] && b.config.Telemetry.Endpoint == "" {
		return nil, errors.New("telemetry requires TELEMETRY_ENDPOINT")
	}

	logger, err := b.createLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	app := &App{
		config: b.config,
		logger: logger,
	}

	options := b.buildFxOptions(logger)
	options = append(options, fx.Populate(&app.db, &app.server, &app.docs))

	app.fx = fx.New(options...)
	if err := app.fx.Err(); err != nil {
		return nil, fmt.Errorf("failed to build application: %w", err)
	}

	return app, nil
}

func (b *AppBuilder) addError(msg string) {
	b.errors = append(b.errors, errors.New(msg))
}

func (b *AppBuilder) validate() error {
	if len(b.errors) > 0 {
		return fmt.Errorf("configuration errors: %w", errors.Join(b.errors...))
	}
	return nil
}

func (b *AppBuilder) createLogger() (*logging.Service, error) {
	return logging.NewService(logging.Options{
		Level:      logging.LogLevel(b.config.Log.Level),
		Format:     b.config.Log.Format,
		OutputPath: b.config.Log.Output,
	})
}

func (b *AppBuilder) buildFxOptions(logger *logging.Service) []fx.Option {
	models := append([]any{&user.User{}, &otp.OneTimeCode{}}, b.models...)

	options := []fx.Option{
		config.NewProvider(b.config),
		fx.Supply(logger),
		fx.Supply(database.WithModels(models...)),
		fx.NopLogger,
		database.Module,
		ratelimit.Module,
		user.Module,
		otp.Module,
		jwt.Module,
		auth.Module,
		server.NewProvider(),
		handlers.Module,
	}

	if b.services["mail"] {
		options = append(options, mail.Module)
	} else {
		options = append(options, fx.Provide(func(logger *logging.Service) otp.Delivery {
			return mail.NewLogDelivery(logger)
		}))
	}

	if b.services["telemetry"] {
		options = append(options, telemetry.Module)
	}

	options = append(options, b.fxOptions...)

	return options
}
