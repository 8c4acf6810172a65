package otp

import (
	"context"

	"github.com/tech-arch1tect/otpauth/config"
	"github.com/tech-arch1tect/otpauth/services/logging"
	"github.com/tech-arch1tect/otpauth/services/user"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Options(
	fx.Provide(ProvideService),
	fx.Invoke(registerCleanupWorker),
)

func ProvideService(db *gorm.DB, cfg *config.Config, delivery Delivery, users *user.Service, logger *logging.Service) *Service {
	return NewService(db, cfg.OTP, delivery, logger, WithUserFinder(users))
}

func registerCleanupWorker(lc fx.Lifecycle, svc *Service, cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			svc.StartCleanupWorker(ctx, cfg.OTP.CleanupInterval, cfg.OTP.RetainFor)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
