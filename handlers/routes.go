package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	jwtmiddleware "github.com/tech-arch1tect/otpauth/middleware/jwt"
	"github.com/tech-arch1tect/otpauth/middleware/jwtshared"
	"github.com/tech-arch1tect/otpauth/middleware/ratelimit"
	"github.com/tech-arch1tect/otpauth/openapi"
	"github.com/tech-arch1tect/otpauth/server"
	"github.com/tech-arch1tect/otpauth/services/logging"
)

const (
	bearerScheme = "bearerAuth"
	apiVersion   = "1.0.0"
)

type Routes struct {
	AppName string
	Auth    AuthService
	Tokens  jwtmiddleware.Authenticator
	Users   jwtshared.UserProvider
	Ping    PingFunc
	// RateLimit guards the unauthenticated auth routes. Nil disables it.
	RateLimit *ratelimit.Config
	Docs      bool
	Logger    *logging.Service
}

// Register mounts every route on e and returns the matching API document.
func (r Routes) Register(e *echo.Echo) *openapi.Document {
	doc := openapi.New(r.AppName, apiVersion).
		Description("Passwordless sign-in with one-time email codes.").
		Tag("auth", "Code issuance, verification and the current user").
		Tag("system", "Health and documentation").
		BearerAuth(bearerScheme, "Session token from /auth/verify-code")

	authHandler := NewAuthHandler(r.Auth, r.Logger)
	health := NewHealthHandler(r.Ping, r.Logger)

	var limited []echo.MiddlewareFunc
	if r.RateLimit != nil {
		limited = append(limited, ratelimit.Middleware(r.RateLimit))
	}

	authGroup := e.Group("/auth")

	authGroup.POST("/request-code", authHandler.RequestCode, limited...)
	doc.Operation(http.MethodPost, "/auth/request-code").
		ID("requestCode").
		Summary("Email a one-time sign-in code").
		Tags("auth").
		Body(RequestCodeRequest{}, "Address to sign in").
		Response(http.StatusOK, RequestCodeResponse{}, "Code stored; delivery is not confirmed").
		Response(http.StatusBadRequest, server.ErrorResponse{}, "Malformed email").
		Response(http.StatusTooManyRequests, server.ErrorResponse{}, "Rate limited").
		Response(http.StatusInternalServerError, server.ErrorResponse{}, "Code could not be stored").
		Register()

	authGroup.POST("/verify-code", authHandler.VerifyCode, limited...)
	doc.Operation(http.MethodPost, "/auth/verify-code").
		ID("verifyCode").
		Summary("Exchange a code for a session token").
		Tags("auth").
		Body(VerifyCodeRequest{}, "Address and code").
		Response(http.StatusOK, SessionResponse{}, "Signed in").
		Response(http.StatusBadRequest, server.ErrorResponse{}, "Malformed email or code").
		Response(http.StatusUnauthorized, server.ErrorResponse{}, "Invalid or expired code").
		Response(http.StatusTooManyRequests, server.ErrorResponse{}, "Too many attempts").
		Register()

	authGroup.GET("/me", authHandler.Me,
		jwtmiddleware.RequireJWT(r.Tokens, r.Logger),
		jwtshared.MiddlewareWithConfig(jwtshared.Config{UserProvider: r.Users, Logger: r.Logger}))
	doc.Operation(http.MethodGet, "/auth/me").
		ID("currentUser").
		Summary("The signed-in user").
		Tags("auth").
		Security(bearerScheme).
		Response(http.StatusOK, UserResponse{}, "Current user").
		Response(http.StatusUnauthorized, server.ErrorResponse{}, "Missing or invalid token").
		Register()

	e.GET("/healthz", health.Check)
	doc.Operation(http.MethodGet, "/healthz").
		ID("health").
		Summary("Liveness including a database ping").
		Tags("system").
		Response(http.StatusOK, HealthResponse{}, "Healthy").
		Response(http.StatusServiceUnavailable, server.ErrorResponse{}, "Database unreachable").
		Register()

	if r.Docs {
		e.GET("/openapi.json", doc.JSONHandler())
		e.GET("/openapi.yaml", doc.YAMLHandler())
		e.GET("/docs", doc.DocsHandler("/openapi.json"))
	}

	return doc
}
