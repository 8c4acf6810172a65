package main

import (
	"log"

	"github.com/tech-arch1tect/otpauth"
	"github.com/tech-arch1tect/otpauth/config"
)

func main() {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	builder := otpauth.NewWithConfig(cfg).WithMail()
	if cfg.Telemetry.Endpoint != "" {
		builder.WithTelemetry()
	}

	app, err := builder.Build()
	if err != nil {
		log.Fatalf("failed to build application: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("application stopped: %v", err)
	}
}
