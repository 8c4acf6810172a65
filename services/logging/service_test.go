package logging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewService(t *testing.T) {
	t.Run("json output", func(t *testing.T) {
		service, err := NewService(Options{Level: Info, Format: "json", OutputPath: "stdout"})

		require.NoError(t, err)
		assert.NotNil(t, service.logger)
	})

	t.Run("console format", func(t *testing.T) {
		service, err := NewService(Options{Level: Debug, Format: "console"})

		require.NoError(t, err)
		assert.True(t, service.Logger().Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "otpauth.log")

		service, err := NewService(Options{Level: Warn, Format: "json", OutputPath: logFile})
		require.NoError(t, err)

		service.Warn("code delivery failed")
		_ = service.Sync()

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), "code delivery failed")
	})
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLogLevel(Debug))
	assert.Equal(t, zapcore.InfoLevel, parseLogLevel(Info))
	assert.Equal(t, zapcore.WarnLevel, parseLogLevel(Warn))
	assert.Equal(t, zapcore.ErrorLevel, parseLogLevel(Error))
	assert.Equal(t, zapcore.InfoLevel, parseLogLevel("verbose"))
}

func TestService_NilSafe(t *testing.T) {
	var service *Service

	assert.NotPanics(t, func() {
		service.Debug("debug")
		service.Info("info")
		service.Warn("warn")
		service.Error("error")
		assert.NoError(t, service.Sync())
		assert.Nil(t, service.With(zap.String("k", "v")))
	})
	assert.NotNil(t, service.Logger())
}

func TestService_With(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	service := NewFromZap(zap.New(core)).With(zap.String("component", "otp"))

	service.Info("code issued", zap.String("email", "a@example.org"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "code issued", entry.Message)
	assert.Equal(t, "otp", entry.ContextMap()["component"])
	assert.Equal(t, "a@example.org", entry.ContextMap()["email"])
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	service := NewFromZap(zap.New(core))

	e := echo.New()
	e.Use(RequestID())
	e.Use(RequestLogger(service, "/healthz"))
	e.GET("/ok", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/missing", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound)
	})
	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	for _, path := range []string{"/ok", "/missing", "/healthz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		e.ServeHTTP(httptest.NewRecorder(), req)
	}

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, "request", entries[0].Message)
	assert.Equal(t, int64(http.StatusOK), entries[0].ContextMap()["status"])
	assert.NotEmpty(t, entries[0].ContextMap()["request_id"])
	assert.Equal(t, "Chrome", entries[0].ContextMap()["client"])

	assert.Equal(t, "client error", entries[1].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestRequestID(t *testing.T) {
	e := echo.New()
	e.Use(RequestID())

	var seen, fromCtx string
	e.GET("/", func(c echo.Context) error {
		seen = GetRequestID(c)
		fromCtx = RequestIDFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, fromCtx)
		assert.Equal(t, seen, rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderXRequestID, "req-123")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, "req-123", seen)
	})
}

func TestService_Ctx(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	service := NewFromZap(zap.New(core))

	service.Ctx(ContextWithRequestID(context.Background(), "req-9")).Info("tagged")
	service.Ctx(context.Background()).Info("untagged")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-9", entries[0].ContextMap()["request_id"])
	assert.NotContains(t, entries[1].ContextMap(), "request_id")

	var nilService *Service
	assert.Nil(t, nilService.Ctx(ContextWithRequestID(context.Background(), "req-9")))
}
