package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	App       AppConfig       `envPrefix:"APP_"`
	Server    ServerConfig    `envPrefix:"SERVER_"`
	Log       LogConfig       `envPrefix:"LOG_"`
	Database  DatabaseConfig  `envPrefix:"DATABASE_"`
	JWT       JWTConfig       `envPrefix:"JWT_"`
	OTP       OTPConfig       `envPrefix:"OTP_"`
	Mail      MailConfig      `envPrefix:"MAIL_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	Redis     RedisConfig     `envPrefix:"REDIS_"`
	Telemetry TelemetryConfig `envPrefix:"TELEMETRY_"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"otpauth"`
	URL  string `env:"URL" envDefault:"http://localhost:8080"`
	Env  string `env:"ENV" envDefault:"production"`
}

const EnvDevelopment = "development"

// IsDevelopment reports whether sign-in codes may be written to the log
// instead of being mailed.
func (c AppConfig) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	Host            string        `env:"HOST" envDefault:"localhost"`
	TrustedProxies  []string      `env:"TRUSTED_PROXIES" envSeparator:","`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	EnableDocs      bool          `env:"ENABLE_DOCS" envDefault:"true"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver       string `env:"DRIVER" envDefault:"sqlite"`
	DSN          string `env:"DSN" envDefault:"app.db"`
	AutoMigrate  bool   `env:"AUTO_MIGRATE" envDefault:"true"`
	Migrator     string `env:"MIGRATOR" envDefault:"gorm"`
	MaxOpenConns int    `env:"MAX_OPEN_CONNS" envDefault:"0"`
}

type JWTConfig struct {
	SecretKey     string        `env:"SECRET_KEY"`
	Algorithm     string        `env:"ALGORITHM" envDefault:"HS256"`
	SessionExpiry time.Duration `env:"SESSION_EXPIRY" envDefault:"24h"`
	Issuer        string        `env:"ISSUER" envDefault:"otpauth"`
}

type OTPConfig struct {
	Expiry          time.Duration `env:"EXPIRY" envDefault:"10m"`
	BcryptCost      int           `env:"BCRYPT_COST" envDefault:"10"`
	MaxAttempts     int           `env:"MAX_ATTEMPTS" envDefault:"5"`
	AttemptWindow   time.Duration `env:"ATTEMPT_WINDOW" envDefault:"15m"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`
	RetainFor       time.Duration `env:"RETAIN_FOR" envDefault:"24h"`
}

type MailConfig struct {
	Driver       string `env:"DRIVER" envDefault:"smtp"`
	Host         string `env:"HOST" envDefault:"localhost"`
	Port         int    `env:"PORT" envDefault:"587"`
	Username     string `env:"USERNAME"`
	Password     string `env:"PASSWORD"`
	Encryption   string `env:"ENCRYPTION" envDefault:"tls"`
	FromAddress  string `env:"FROM_ADDRESS" envDefault:"no-reply@localhost"`
	FromName     string `env:"FROM_NAME"`
	TemplatesDir string `env:"TEMPLATES_DIR"`
}

type CountingMode string

const (
	CountAll      CountingMode = "all"
	CountFailures CountingMode = "failures"
	CountSuccess  CountingMode = "success"
)

type RateLimitConfig struct {
	Enabled   bool          `env:"ENABLED" envDefault:"true"`
	Store     string        `env:"STORE" envDefault:"memory"`
	Rate      int           `env:"RATE" envDefault:"10"`
	Period    time.Duration `env:"PERIOD" envDefault:"1m"`
	CountMode CountingMode  `env:"COUNT_MODE" envDefault:"all"`
}

type RedisConfig struct {
	URL string `env:"URL"`
}

type TelemetryConfig struct {
	Endpoint    string `env:"ENDPOINT"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"otpauth"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	if err := env.Parse(cfg); err != nil {
		return err
	}

	if c, ok := cfg.(*Config); ok {
		return c.Validate()
	}
	return nil
}

// Validate rejects configurations the service must not start with. A missing
// or weak signing secret is always fatal.
func (c *Config) Validate() error {
	if err := validateJWTConfig(&c.JWT); err != nil {
		return err
	}
	if err := validateOTPConfig(&c.OTP); err != nil {
		return err
	}
	if err := validateMailConfig(&c.Mail, &c.App); err != nil {
		return err
	}
	return validateRateLimitConfig(&c.RateLimit, &c.Redis)
}

func validateJWTConfig(cfg *JWTConfig) error {
	if cfg.SecretKey == "" {
		return errors.New("JWT secret key is required (JWT_SECRET_KEY)")
	}

	if len(cfg.SecretKey) < 32 {
		return errors.New("JWT secret key must be at least 32 characters long")
	}

	weakPatterns := []string{"secret", "password", "test", "example", "default", "change"}
	lower := strings.ToLower(cfg.SecretKey)
	for _, pattern := range weakPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("JWT secret key contains weak patterns (%q)", pattern)
		}
	}

	if cfg.Algorithm != "HS256" {
		return fmt.Errorf("JWT algorithm must be HS256, got %q", cfg.Algorithm)
	}

	if cfg.SessionExpiry <= 0 {
		return errors.New("JWT session expiry must be positive")
	}

	return nil
}

func validateOTPConfig(cfg *OTPConfig) error {
	if cfg.Expiry <= 0 {
		return errors.New("OTP expiry must be positive")
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("OTP bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if cfg.MaxAttempts < 0 {
		return errors.New("OTP max attempts cannot be negative")
	}
	return nil
}

func validateMailConfig(cfg *MailConfig, app *AppConfig) error {
	switch cfg.Driver {
	case "log":
		if !app.IsDevelopment() {
			return errors.New("the log mail driver writes sign-in codes to the log and requires APP_ENV=development")
		}
		return nil
	case "smtp":
		if cfg.FromAddress == "" {
			return errors.New("MAIL_FROM_ADDRESS is required for the smtp driver")
		}
		return nil
	default:
		return fmt.Errorf("mail driver must be: smtp or log (got %q)", cfg.Driver)
	}
}

func validateRateLimitConfig(cfg *RateLimitConfig, redis *RedisConfig) error {
	switch cfg.Store {
	case "memory":
	case "redis":
		if redis.URL == "" {
			return errors.New("REDIS_URL is required when the rate limit store is redis")
		}
	default:
		return fmt.Errorf("rate limit store must be: memory or redis (got %q)", cfg.Store)
	}

	switch cfg.CountMode {
	case CountAll, CountFailures, CountSuccess:
	default:
		return fmt.Errorf("rate limit count mode must be: all, failures, or success (got %q)", cfg.CountMode)
	}

	return nil
}
