package testutils

import (
	"time"

	"github.com/tech-arch1tect/otpauth/config"
	"golang.org/x/crypto/bcrypt"
)

const TestSecretKey = "k7Qm2Vx9Lp4Rt8Wz1Nc6Hb3Jd5Fg0YsA"

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "Test App",
			URL:  "http://localhost:8080",
			Env:  config.EnvDevelopment,
		},
		Server: config.ServerConfig{
			Port:            "0",
			Host:            "127.0.0.1",
			RequestTimeout:  5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			EnableDocs:      true,
		},
		Log: config.LogConfig{
			Level:  "debug",
			Format: "console",
			Output: "stdout",
		},
		Database: config.DatabaseConfig{
			Driver:       "sqlite",
			DSN:          ":memory:",
			AutoMigrate:  true,
			Migrator:     "gorm",
			MaxOpenConns: 1,
		},
		JWT: config.JWTConfig{
			SecretKey:     TestSecretKey,
			Algorithm:     "HS256",
			SessionExpiry: 24 * time.Hour,
			Issuer:        "otpauth-test",
		},
		OTP: config.OTPConfig{
			Expiry:        10 * time.Minute,
			BcryptCost:    bcrypt.MinCost,
			MaxAttempts:   5,
			AttemptWindow: 15 * time.Minute,
			RetainFor:     24 * time.Hour,
		},
		Mail: config.MailConfig{
			Driver:      "log",
			FromAddress: "no-reply@example.org",
			FromName:    "Test App",
		},
		RateLimit: config.RateLimitConfig{
			Enabled:   true,
			Store:     "memory",
			Rate:      10,
			Period:    time.Minute,
			CountMode: config.CountAll,
		},
		Telemetry: config.TelemetryConfig{
			ServiceName: "otpauth-test",
		},
	}
}

var TestEmails = struct {
	Valid      string
	Mixed      string
	Normalized string
	Other      string
	Invalid    string
}{
	Valid:      "user@example.com",
	Mixed:      "  User@Example.COM ",
	Normalized: "user@example.com",
	Other:      "other@example.com",
	Invalid:    "not-an-email",
}
