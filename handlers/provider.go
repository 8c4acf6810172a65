package handlers

import (
	"context"

	"github.com/tech-arch1tect/otpauth/config"
	"github.com/tech-arch1tect/otpauth/database"
	"github.com/tech-arch1tect/otpauth/middleware/ratelimit"
	"github.com/tech-arch1tect/otpauth/openapi"
	"github.com/tech-arch1tect/otpauth/server"
	"github.com/tech-arch1tect/otpauth/services/auth"
	"github.com/tech-arch1tect/otpauth/services/jwt"
	"github.com/tech-arch1tect/otpauth/services/logging"
	"github.com/tech-arch1tect/otpauth/services/user"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config *config.Config
	Server *server.Server
	Auth   *auth.Service
	Tokens *jwt.Service
	Users  *user.Service
	DB     *gorm.DB
	Store  ratelimit.Store
	Logger *logging.Service
}

func RegisterRoutes(p Params) *openapi.Document {
	routes := Routes{
		AppName: p.Config.App.Name,
		Auth:    p.Auth,
		Tokens:  p.Tokens,
		Users:   p.Users,
		Ping: func(ctx context.Context) error {
			return database.Ping(ctx, p.DB)
		},
		Docs:   p.Config.Server.EnableDocs,
		Logger: p.Logger,
	}
	if p.Config.RateLimit.Enabled {
		routes.RateLimit = ratelimit.FromConfig(p.Config.RateLimit, p.Store, p.Logger)
	}
	return routes.Register(p.Server.Echo())
}

var Module = fx.Options(
	fx.Provide(RegisterRoutes),
	fx.Invoke(func(*openapi.Document) {}),
)
