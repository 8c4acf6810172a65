package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tech-arch1tect/otpauth/middleware/ratelimit"
	"github.com/tech-arch1tect/otpauth/services/jwt"
	"github.com/tech-arch1tect/otpauth/services/logging"
	"github.com/tech-arch1tect/otpauth/services/otp"
	"github.com/tech-arch1tect/otpauth/services/user"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const tracerName = "github.com/tech-arch1tect/otpauth/services/auth"

var (
	ErrInvalidInput    = errors.New("malformed email or code")
	ErrInvalidCode     = errors.New("invalid or expired code")
	ErrTooManyAttempts = errors.New("too many verification attempts")
)

type CodeService interface {
	Issue(ctx context.Context, email string) (string, error)
	Verify(ctx context.Context, email, code string) (*otp.VerifyResult, error)
}

type UserStore interface {
	GetOrCreateUser(ctx context.Context, email string) (string, error)
	MarkEmailVerified(ctx context.Context, userID string) error
	GetUser(ctx context.Context, userID string) (*user.User, error)
}

type TokenIssuer interface {
	Issue(userID string, claims jwt.SessionClaims) (string, error)
	ExpirySeconds() int
}

// Session is the outcome of a successful code verification.
type Session struct {
	Token     string
	ExpiresIn int
	User      *user.User
}

type Options struct {
	// MaxAttempts bounds failed verifications per email within AttemptWindow.
	// Zero disables the bound.
	MaxAttempts   int
	AttemptWindow time.Duration
}

type Service struct {
	codes    CodeService
	users    UserStore
	tokens   TokenIssuer
	attempts ratelimit.Store
	opts     Options
	logger   *logging.Service
	tracer   trace.Tracer
	now      func() time.Time
}

func NewService(codes CodeService, users UserStore, tokens TokenIssuer, attempts ratelimit.Store, opts Options, logger *logging.Service, tp trace.TracerProvider) *Service {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	if opts.AttemptWindow <= 0 {
		opts.AttemptWindow = 15 * time.Minute
	}
	return &Service{
		codes:    codes,
		users:    users,
		tokens:   tokens,
		attempts: attempts,
		opts:     opts,
		logger:   logger,
		tracer:   tp.Tracer(tracerName),
		now:      time.Now,
	}
}

// RequestCode issues a code for email. A delivery failure is logged and
// swallowed because the code is already stored; only validation and
// persistence failures are returned.
func (s *Service) RequestCode(ctx context.Context, email string) error {
	ctx, span := s.tracer.Start(ctx, "auth.RequestCode")
	defer span.End()

	log := s.logger.Ctx(ctx)

	normalized, err := user.NormalizeEmail(email)
	if err != nil {
		span.SetAttributes(attribute.String("auth.failure", "validation"))
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	_, err = s.codes.Issue(ctx, normalized)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, otp.ErrValidation):
		span.SetAttributes(attribute.String("auth.failure", "validation"))
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case errors.Is(err, otp.ErrDeliveryFailed):
		span.AddEvent("delivery_failed")
		log.Warn("code stored but delivery failed", zap.String("email", normalized), zap.Error(err))
		return nil
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "issue failed")
		log.Error("code request failed", zap.String("email", normalized), zap.String("kind", otp.Kind(err)), zap.Error(err))
		return err
	}
}

// VerifyCode consumes code and returns a signed session for the owning user,
// creating the user on first sign-in.
func (s *Service) VerifyCode(ctx context.Context, email, code string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "auth.VerifyCode")
	defer span.End()

	log := s.logger.Ctx(ctx)

	normalized, err := user.NormalizeEmail(email)
	if err != nil || !otp.ValidCodeFormat(code) {
		span.SetAttributes(attribute.String("auth.failure", "validation"))
		return nil, ErrInvalidInput
	}

	attemptKey := "otp_verify:" + normalized
	if !s.reserveAttempt(attemptKey) {
		span.SetAttributes(attribute.String("auth.failure", "too_many_attempts"))
		log.Warn("code verification blocked", zap.String("email", normalized), zap.String("kind", "too_many_attempts"))
		return nil, ErrTooManyAttempts
	}

	result, err := s.codes.Verify(ctx, normalized, code)
	if err != nil {
		kind := otp.Kind(err)
		span.SetAttributes(attribute.String("auth.failure", kind))

		if otp.IsVerificationFailure(err) {
			log.Info("code verification failed", zap.String("email", normalized), zap.String("kind", kind))
			return nil, fmt.Errorf("%w: %w", ErrInvalidCode, err)
		}
		if errors.Is(err, otp.ErrValidation) {
			return nil, ErrInvalidInput
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, "verify failed")
		log.Error("code verification error", zap.String("email", normalized), zap.Error(err))
		return nil, err
	}

	s.resetAttempts(attemptKey)

	session, err := s.establishSession(ctx, normalized, result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session failed")
		log.Error("failed to establish session", zap.String("email", normalized), zap.Error(err))
		return nil, err
	}

	span.SetAttributes(attribute.String("auth.user_id", session.User.ID))
	log.Info("user signed in", zap.String("email", normalized), zap.String("user_id", session.User.ID))

	return session, nil
}

func (s *Service) establishSession(ctx context.Context, email string, result *otp.VerifyResult) (*Session, error) {
	userID := result.UserID
	if userID == "" {
		id, err := s.users.GetOrCreateUser(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve user: %w", err)
		}
		userID = id
	}

	if err := s.users.MarkEmailVerified(ctx, userID); err != nil {
		return nil, err
	}

	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(u.ID, jwt.SessionClaims{Email: u.Email, Name: u.DisplayName()})
	if err != nil {
		return nil, err
	}

	return &Session{Token: token, ExpiresIn: s.tokens.ExpirySeconds(), User: u}, nil
}

// reserveAttempt counts the attempt before the ledger is consulted so that
// concurrent guesses cannot all pass the same stale count. A successful
// verification clears the counter; every other outcome keeps its slot.
func (s *Service) reserveAttempt(key string) bool {
	if s.attempts == nil || s.opts.MaxAttempts <= 0 {
		return true
	}
	n := s.attempts.Increment(key, s.now().Add(s.opts.AttemptWindow))
	return n <= s.opts.MaxAttempts
}

func (s *Service) resetAttempts(key string) {
	if s.attempts == nil || s.opts.MaxAttempts <= 0 {
		return
	}
	s.attempts.Reset(key)
}
