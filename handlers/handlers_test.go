package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/otpauth/middleware/ratelimit"
	"github.com/tech-arch1tect/otpauth/server"
	"github.com/tech-arch1tect/otpauth/services/auth"
	"github.com/tech-arch1tect/otpauth/services/jwt"
	"github.com/tech-arch1tect/otpauth/services/otp"
	"github.com/tech-arch1tect/otpauth/services/user"
	"github.com/tech-arch1tect/otpauth/testutils"
)

type testApp struct {
	echo     *echo.Echo
	delivery *testutils.RecordingDelivery
	users    *user.Service
	tokens   *jwt.Service
}

func newTestApp(t *testing.T, customize ...func(*Routes)) *testApp {
	t.Helper()

	cfg := testutils.GetTestConfig()
	db := testutils.SetupTestDB(t, &user.User{}, &otp.OneTimeCode{})

	users := user.NewService(db, nil)
	delivery := &testutils.RecordingDelivery{}
	codes := otp.NewService(db, cfg.OTP, delivery, nil, otp.WithUserFinder(users))
	tokens := jwt.NewService(cfg.JWT, nil)

	attempts := ratelimit.NewMemoryStore()
	t.Cleanup(attempts.Close)

	authService := auth.NewService(codes, users, tokens, attempts, auth.Options{
		MaxAttempts:   cfg.OTP.MaxAttempts,
		AttemptWindow: cfg.OTP.AttemptWindow,
	}, nil, nil)

	srv := server.New(cfg, nil)
	routes := Routes{
		AppName: cfg.App.Name,
		Auth:    authService,
		Tokens:  tokens,
		Users:   users,
		Ping:    func(ctx context.Context) error { return nil },
		Docs:    true,
	}
	for _, fn := range customize {
		fn(&routes)
	}
	routes.Register(srv.Echo())

	return &testApp{echo: srv.Echo(), delivery: delivery, users: users, tokens: tokens}
}

func (a *testApp) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.echo.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) signIn(t *testing.T, email string) SessionResponse {
	t.Helper()

	rec := a.do(http.MethodPost, "/auth/request-code", `{"email":"`+email+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	sent, ok := a.delivery.Last()
	require.True(t, ok)

	rec = a.do(http.MethodPost, "/auth/verify-code", `{"email":"`+email+`","code":"`+sent.Code+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var session SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	return session
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body server.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

type stubAuth struct {
	requestErr error
	verifyErr  error
}

func (s *stubAuth) RequestCode(ctx context.Context, email string) error {
	return s.requestErr
}

func (s *stubAuth) VerifyCode(ctx context.Context, email, code string) (*auth.Session, error) {
	return nil, s.verifyErr
}

func TestRequestCode(t *testing.T) {
	app := newTestApp(t)

	t.Run("valid email", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/auth/request-code", `{"email":"User@Example.com"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		var body RequestCodeResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, codeSentMessage, body.Message)

		sent, ok := app.delivery.Last()
		require.True(t, ok)
		assert.Equal(t, "user@example.com", sent.Email)
	})

	t.Run("malformed email", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/auth/request-code", `{"email":"not-an-email"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid email address", errorMessage(t, rec))
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/auth/request-code", `{"email":`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delivery failure still acknowledged", func(t *testing.T) {
		app.delivery.Err = errors.New("smtp down")
		defer func() { app.delivery.Err = nil }()

		rec := app.do(http.MethodPost, "/auth/request-code", `{"email":"user@example.com"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequestCode_PersistenceFailure(t *testing.T) {
	app := newTestApp(t, func(r *Routes) {
		r.Auth = &stubAuth{requestErr: otp.ErrPersistenceFailed}
	})

	rec := app.do(http.MethodPost, "/auth/request-code", `{"email":"user@example.com"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", errorMessage(t, rec))
}

func TestVerifyCode(t *testing.T) {
	app := newTestApp(t)

	session := app.signIn(t, "user@example.com")

	assert.NotEmpty(t, session.Token)
	assert.Equal(t, 24*60*60, session.ExpiresIn)
	assert.NotEmpty(t, session.User.ID)
	assert.Equal(t, "user@example.com", session.User.Email)
	assert.True(t, session.User.EmailVerified)
	assert.Nil(t, session.User.Name)

	t.Run("raw response shape", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/auth/request-code", `{"email":"shape@example.com"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		sent, _ := app.delivery.Last()

		rec = app.do(http.MethodPost, "/auth/verify-code", `{"email":"shape@example.com","code":"`+sent.Code+`"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var raw map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
		assert.Contains(t, raw, "token")
		assert.Contains(t, raw, "expires_in")
		userObj, ok := raw["user"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, userObj, "emailVerified")
		assert.Contains(t, userObj, "name")
	})

	t.Run("replay is rejected", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/auth/request-code", `{"email":"replay@example.com"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		sent, _ := app.delivery.Last()
		body := `{"email":"replay@example.com","code":"` + sent.Code + `"}`

		rec = app.do(http.MethodPost, "/auth/verify-code", body)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = app.do(http.MethodPost, "/auth/verify-code", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid or expired code", errorMessage(t, rec))
	})

	t.Run("unknown email and wrong code look the same", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/auth/verify-code", `{"email":"nobody@example.com","code":"123456"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid or expired code", errorMessage(t, rec))
	})

	t.Run("malformed code", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/auth/verify-code", `{"email":"user@example.com","code":"12ab56"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestVerifyCode_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid input", auth.ErrInvalidInput, http.StatusBadRequest},
		{"invalid code", auth.ErrInvalidCode, http.StatusUnauthorized},
		{"too many attempts", auth.ErrTooManyAttempts, http.StatusTooManyRequests},
		{"internal", errors.New("db gone"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, func(r *Routes) {
				r.Auth = &stubAuth{verifyErr: tt.err}
			})

			rec := app.do(http.MethodPost, "/auth/verify-code", `{"email":"user@example.com","code":"123456"}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), "db gone")
		})
	}
}

func TestMe(t *testing.T) {
	app := newTestApp(t)
	session := app.signIn(t, "me@example.com")

	t.Run("with token", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/auth/me", "", echo.HeaderAuthorization, "Bearer "+session.Token)

		require.Equal(t, http.StatusOK, rec.Code)
		var body UserResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, session.User.ID, body.ID)
		assert.Equal(t, "me@example.com", body.Email)
	})

	t.Run("without token", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/auth/me", "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Unauthorized", errorMessage(t, rec))
	})

	t.Run("tampered token", func(t *testing.T) {
		i := len(session.Token) - 10
		replacement := "A"
		if session.Token[i] == 'A' {
			replacement = "B"
		}
		tampered := session.Token[:i] + replacement + session.Token[i+1:]
		rec := app.do(http.MethodGet, "/auth/me", "", echo.HeaderAuthorization, "Bearer "+tampered)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Unauthorized", errorMessage(t, rec))
	})

	t.Run("token for a missing user", func(t *testing.T) {
		token, err := app.tokens.Issue("00000000-0000-0000-0000-000000000000", jwt.SessionClaims{Email: "ghost@example.com"})
		require.NoError(t, err)

		rec := app.do(http.MethodGet, "/auth/me", "", echo.HeaderAuthorization, "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		app := newTestApp(t)

		rec := app.do(http.MethodGet, "/healthz", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("database down", func(t *testing.T) {
		app := newTestApp(t, func(r *Routes) {
			r.Ping = func(ctx context.Context) error { return errors.New("connection refused") }
		})

		rec := app.do(http.MethodGet, "/healthz", "")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "database unavailable", errorMessage(t, rec))
	})
}

func TestRateLimit(t *testing.T) {
	app := newTestApp(t, func(r *Routes) {
		store := ratelimit.NewMemoryStore()
		t.Cleanup(store.Close)
		r.RateLimit = &ratelimit.Config{Store: store, Rate: 2, Period: time.Minute}
	})

	for i := 0; i < 2; i++ {
		rec := app.do(http.MethodPost, "/auth/request-code", `{"email":"user@example.com"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := app.do(http.MethodPost, "/auth/request-code", `{"email":"user@example.com"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Len(t, app.delivery.Sent(), 2)

	rec = app.do(http.MethodPost, "/auth/verify-code", `{"email":"user@example.com","code":"123456"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "verify has its own budget")
}

func TestDocs(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		app := newTestApp(t)

		rec := app.do(http.MethodGet, "/openapi.json", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "/auth/verify-code")
		assert.Contains(t, rec.Body.String(), "bearerAuth")

		rec = app.do(http.MethodGet, "/openapi.yaml", "")
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = app.do(http.MethodGet, "/docs", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("disabled", func(t *testing.T) {
		app := newTestApp(t, func(r *Routes) { r.Docs = false })

		rec := app.do(http.MethodGet, "/openapi.json", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRegister_DocumentIsValid(t *testing.T) {
	e := echo.New()
	doc := Routes{AppName: "otpauth", Auth: &stubAuth{}, Docs: true}.Register(e)

	require.NoError(t, doc.Validate(context.Background()))
	assert.NotNil(t, doc.Spec().Paths.Find("/auth/me"))
}
