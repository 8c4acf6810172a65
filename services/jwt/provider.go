package jwt

import (
	"github.com/tech-arch1tect/otpauth/config"
	"github.com/tech-arch1tect/otpauth/services/logging"
	"go.uber.org/fx"
)

func NewJWTService(cfg *config.Config, logger *logging.Service) *Service {
	return NewService(cfg.JWT, logger)
}

var Module = fx.Options(
	fx.Provide(NewJWTService),
)
