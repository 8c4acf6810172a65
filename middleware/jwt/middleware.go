package jwt

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/otpauth/services/jwt"
	"github.com/tech-arch1tect/otpauth/services/logging"
	"go.uber.org/zap"
)

const IdentityKey = "_jwt_identity"

type Authenticator interface {
	Authenticate(rawHeader string) (*jwt.Identity, error)
}

// RequireJWT rejects the request with a bare 401 before the handler runs
// unless the Authorization header carries a valid session token. The cause
// is logged, never returned.
func RequireJWT(authenticator Authenticator, logger *logging.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, err := authenticator.Authenticate(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				reason := "invalid_token"
				if errors.Is(err, jwt.ErrMalformedHeader) {
					reason = "malformed_header"
				}
				logger.Info("request rejected",
					append(logging.ClientFields(c),
						zap.String("path", c.Path()),
						zap.String("reason", reason))...)
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}

			c.Set(IdentityKey, identity)

			return next(c)
		}
	}
}

func GetIdentity(c echo.Context) *jwt.Identity {
	if identity, ok := c.Get(IdentityKey).(*jwt.Identity); ok {
		return identity
	}
	return nil
}

func GetUserID(c echo.Context) string {
	if identity := GetIdentity(c); identity != nil {
		return identity.UserID
	}
	return ""
}
