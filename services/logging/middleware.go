package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mileusna/useragent"
	"go.uber.org/zap"
)

const requestIDContextKey = "request_id"

type requestIDKey struct{}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// RequestID assigns every request an id, echoing an inbound X-Request-ID when present.
func RequestID() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string {
			return uuid.NewString()
		},
		RequestIDHandler: func(c echo.Context, id string) {
			c.Set(requestIDContextKey, id)
			c.SetRequest(c.Request().WithContext(ContextWithRequestID(c.Request().Context(), id)))
		},
	})
}

// GetRequestID returns the id assigned by RequestID, or "" outside of it.
func GetRequestID(c echo.Context) string {
	if id, ok := c.Get(requestIDContextKey).(string); ok {
		return id
	}
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

// ClientFields describes the calling client for audit entries.
func ClientFields(c echo.Context) []zap.Field {
	ua := useragent.Parse(c.Request().UserAgent())

	fields := []zap.Field{
		zap.String("remote_ip", c.RealIP()),
		zap.String("request_id", GetRequestID(c)),
	}
	if ua.Name != "" {
		fields = append(fields, zap.String("client", ua.Name), zap.String("client_version", ua.Version))
	}
	if ua.OS != "" {
		fields = append(fields, zap.String("os", ua.OS))
	}
	if ua.Bot {
		fields = append(fields, zap.Bool("bot", true))
	}
	return fields
}

func RequestLogger(logger *Service, skipPaths ...string) echo.MiddlewareFunc {
	skipMap := make(map[string]bool, len(skipPaths))
	for _, path := range skipPaths {
		skipMap[path] = true
	}

	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogError:     true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		HandleError:  true,
		Skipper: func(c echo.Context) bool {
			return skipMap[c.Request().URL.Path]
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
				zap.String("request_id", v.RequestID),
			}

			if ua := useragent.Parse(c.Request().UserAgent()); ua.Name != "" {
				fields = append(fields, zap.String("client", ua.Name))
			}

			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}

			switch {
			case v.Status >= 500:
				logger.Error("server error", fields...)
			case v.Status >= 400:
				logger.Warn("client error", fields...)
			default:
				logger.Info("request", fields...)
			}

			return nil
		},
	})
}
