package ratelimit

import (
	"context"
	"time"

	"github.com/tech-arch1tect/otpauth/config"
	"github.com/tech-arch1tect/otpauth/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const redisKeyPrefix = "otpauth:"

type StoreParams struct {
	fx.In

	Config    *config.Config
	Logger    *logging.Service
	Lifecycle fx.Lifecycle
}

func ProvideRateLimitStore(p StoreParams) (Store, error) {
	switch p.Config.RateLimit.Store {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		client, err := NewRedisClient(ctx, p.Config.Redis.URL)
		if err != nil {
			return nil, err
		}
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(context.Context) error { return client.Close() },
		})
		p.Logger.Info("rate limit store ready", zap.String("store", "redis"))
		return NewRedisStore(client, redisKeyPrefix, p.Logger), nil
	default:
		store := NewMemoryStore()
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(context.Context) error {
				store.Close()
				return nil
			},
		})
		return store, nil
	}
}

var Module = fx.Options(
	fx.Provide(ProvideRateLimitStore),
)
