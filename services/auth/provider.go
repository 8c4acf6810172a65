package auth

import (
	"github.com/tech-arch1tect/otpauth/config"
	"github.com/tech-arch1tect/otpauth/middleware/ratelimit"
	"github.com/tech-arch1tect/otpauth/services/jwt"
	"github.com/tech-arch1tect/otpauth/services/logging"
	"github.com/tech-arch1tect/otpauth/services/otp"
	"github.com/tech-arch1tect/otpauth/services/user"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Config         *config.Config
	Codes          *otp.Service
	Users          *user.Service
	Tokens         *jwt.Service
	Attempts       ratelimit.Store
	Logger         *logging.Service
	TracerProvider trace.TracerProvider `optional:"true"`
}

func ProvideAuthService(p Params) *Service {
	return NewService(p.Codes, p.Users, p.Tokens, p.Attempts, Options{
		MaxAttempts:   p.Config.OTP.MaxAttempts,
		AttemptWindow: p.Config.OTP.AttemptWindow,
	}, p.Logger, p.TracerProvider)
}

var Module = fx.Options(
	fx.Provide(ProvideAuthService),
)
