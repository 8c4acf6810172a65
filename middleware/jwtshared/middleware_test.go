package jwtshared

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/otpauth/middleware/jwt"
	jwtservice "github.com/tech-arch1tect/otpauth/services/jwt"
	"github.com/tech-arch1tect/otpauth/services/logging"
	"github.com/tech-arch1tect/otpauth/services/user"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type mockUserProvider struct {
	users map[string]*user.User
	err   error
	calls int
}

func (m *mockUserProvider) GetUser(ctx context.Context, userID string) (*user.User, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if u, ok := m.users[userID]; ok {
		return u, nil
	}
	return nil, user.ErrUserNotFound
}

func newContext(identity *jwtservice.Identity) echo.Context {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/auth/me", nil), httptest.NewRecorder())
	if identity != nil {
		c.Set(jwt.IdentityKey, identity)
	}
	return c
}

func TestMiddlewareWithConfig(t *testing.T) {
	alice := &user.User{ID: "u-1", Email: "alice@example.com", EmailVerified: true}
	provider := &mockUserProvider{users: map[string]*user.User{"u-1": alice}}
	mw := MiddlewareWithConfig(Config{UserProvider: provider})

	var seen *user.User
	handler := func(c echo.Context) error {
		seen = GetCurrentUser(c)
		return c.NoContent(http.StatusOK)
	}

	t.Run("loads authenticated user", func(t *testing.T) {
		require.NoError(t, mw(handler)(newContext(&jwtservice.Identity{UserID: "u-1"})))
		assert.Equal(t, alice, seen)
	})

	t.Run("unknown user leaves context empty", func(t *testing.T) {
		require.NoError(t, mw(handler)(newContext(&jwtservice.Identity{UserID: "u-2"})))
		assert.Nil(t, seen)
	})

	t.Run("no identity skips lookup", func(t *testing.T) {
		before := provider.calls
		require.NoError(t, mw(handler)(newContext(nil)))
		assert.Nil(t, seen)
		assert.Equal(t, before, provider.calls)
	})

	t.Run("provider error is a logged server error", func(t *testing.T) {
		core, logs := observer.New(zapcore.ErrorLevel)
		failing := MiddlewareWithConfig(Config{
			UserProvider: &mockUserProvider{err: errors.New("db down")},
			Logger:       logging.NewFromZap(zap.New(core)),
		})

		seen = nil
		called := false
		err := failing(func(c echo.Context) error {
			called = true
			return handler(c)
		})(newContext(&jwtservice.Identity{UserID: "u-1"}))

		var he *echo.HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusInternalServerError, he.Code)
		assert.False(t, called)

		entries := logs.FilterMessage("failed to load current user").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "u-1", entries[0].ContextMap()["user_id"])
	})
}
