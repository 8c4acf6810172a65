package jwtshared

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/otpauth/middleware/jwt"
	"github.com/tech-arch1tect/otpauth/services/logging"
	"github.com/tech-arch1tect/otpauth/services/user"
	"go.uber.org/zap"
)

const CurrentUserKey = "currentUser"

type UserProvider interface {
	GetUser(ctx context.Context, userID string) (*user.User, error)
}

type Config struct {
	UserProvider UserProvider
	Logger       *logging.Service
}

// MiddlewareWithConfig loads the authenticated user's row for handlers that
// need more than the token claims. It must run after jwt.RequireJWT. A user
// that no longer exists leaves the context empty; any other lookup error is
// a server error.
func MiddlewareWithConfig(cfg Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := jwt.GetUserID(c)

			if userID != "" && cfg.UserProvider != nil {
				ctx := c.Request().Context()
				u, err := cfg.UserProvider.GetUser(ctx, userID)
				switch {
				case err == nil && u != nil:
					c.Set(CurrentUserKey, u)
				case err != nil && !errors.Is(err, user.ErrUserNotFound):
					cfg.Logger.Ctx(ctx).Error("failed to load current user",
						zap.String("user_id", userID), zap.Error(err))
					return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
				}
			}

			return next(c)
		}
	}
}

func GetCurrentUser(c echo.Context) *user.User {
	if u, ok := c.Get(CurrentUserKey).(*user.User); ok {
		return u
	}
	return nil
}
