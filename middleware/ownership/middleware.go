package ownership

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/otpauth/middleware/jwt"
	"github.com/tech-arch1tect/otpauth/services/logging"
	"github.com/tech-arch1tect/otpauth/services/ownership"
	"go.uber.org/zap"
)

type Config struct {
	Lookup ownership.OwnerLookup
	// Param names the path parameter holding the resource id. Defaults to "id".
	Param  string
	Logger *logging.Service
}

// RequireOwnership must run after jwt.RequireJWT. Missing resources map to
// 404 and resources owned by someone else map to 403 on every route.
func RequireOwnership(cfg Config) echo.MiddlewareFunc {
	if cfg.Param == "" {
		cfg.Param = "id"
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			resourceID := c.Param(cfg.Param)
			err := ownership.Check(c.Request().Context(), jwt.GetIdentity(c), cfg.Lookup, resourceID)
			if err == nil {
				return next(c)
			}

			status := StatusFor(err)
			if status == http.StatusInternalServerError {
				cfg.Logger.Error("ownership check failed",
					append(logging.ClientFields(c), zap.String("resource_id", resourceID), zap.Error(err))...)
			} else {
				cfg.Logger.Info("ownership check denied",
					append(logging.ClientFields(c),
						zap.String("resource_id", resourceID),
						zap.String("user_id", jwt.GetUserID(c)),
						zap.Int("status", status))...)
			}
			return echo.NewHTTPError(status, http.StatusText(status))
		}
	}
}

// StatusFor maps an ownership failure to its HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ownership.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ownership.ErrResourceNotFound):
		return http.StatusNotFound
	case errors.Is(err, ownership.ErrNotOwner):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
