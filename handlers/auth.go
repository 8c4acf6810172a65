package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/otpauth/middleware/jwtshared"
	"github.com/tech-arch1tect/otpauth/services/auth"
	"github.com/tech-arch1tect/otpauth/services/logging"
	"github.com/tech-arch1tect/otpauth/services/user"
	"go.uber.org/zap"
)

const codeSentMessage = "If the address can receive email, a sign-in code is on its way."

type AuthService interface {
	RequestCode(ctx context.Context, email string) error
	VerifyCode(ctx context.Context, email, code string) (*auth.Session, error)
}

type RequestCodeRequest struct {
	Email string `json:"email" doc:"Address to send the sign-in code to" example:"user@example.com"`
}

type RequestCodeResponse struct {
	Message string `json:"message"`
}

type VerifyCodeRequest struct {
	Email string `json:"email" example:"user@example.com"`
	Code  string `json:"code" doc:"Six digit code from the email" example:"482913"`
}

type UserResponse struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	EmailVerified bool    `json:"emailVerified"`
	Name          *string `json:"name"`
}

type SessionResponse struct {
	Token     string       `json:"token"`
	ExpiresIn int          `json:"expires_in" doc:"Token lifetime in seconds"`
	User      UserResponse `json:"user"`
}

func newUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Name:          u.Name,
	}
}

type AuthHandler struct {
	auth   AuthService
	logger *logging.Service
}

func NewAuthHandler(svc AuthService, logger *logging.Service) *AuthHandler {
	return &AuthHandler{auth: svc, logger: logger}
}

func (h *AuthHandler) RequestCode(c echo.Context) error {
	var req RequestCodeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	err := h.auth.RequestCode(c.Request().Context(), req.Email)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, RequestCodeResponse{Message: codeSentMessage})
	case errors.Is(err, auth.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid email address")
	default:
		return err
	}
}

func (h *AuthHandler) VerifyCode(c echo.Context) error {
	var req VerifyCodeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	session, err := h.auth.VerifyCode(c.Request().Context(), req.Email, req.Code)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid email or code")
	case errors.Is(err, auth.ErrInvalidCode):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired code")
	case errors.Is(err, auth.ErrTooManyAttempts):
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many attempts")
	default:
		return err
	}

	h.logger.Info("session issued",
		append(logging.ClientFields(c), zap.String("user_id", session.User.ID))...)

	return c.JSON(http.StatusOK, SessionResponse{
		Token:     session.Token,
		ExpiresIn: session.ExpiresIn,
		User:      newUserResponse(session.User),
	})
}

// Me returns the caller's user row. Requires jwt.RequireJWT and
// jwtshared.MiddlewareWithConfig ahead of it.
func (h *AuthHandler) Me(c echo.Context) error {
	u := jwtshared.GetCurrentUser(c)
	if u == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	return c.JSON(http.StatusOK, newUserResponse(u))
}
