package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tech-arch1tect/otpauth/config"
	"github.com/tech-arch1tect/otpauth/services/logging"
	"go.uber.org/zap"
)

const (
	TokenTypeSession = "session"
	bearerPrefix     = "Bearer "
	signingAlgorithm = "HS256"
)

var (
	ErrMalformedHeader = errors.New("malformed authorization header")
	ErrInvalidToken    = errors.New("invalid session token")
	ErrMissingSubject  = errors.New("session subject is required")
)

type Claims struct {
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// SessionClaims are the optional identity details embedded in a session token.
type SessionClaims struct {
	Email string
	Name  string
}

// Identity is the authenticated caller derived from a verified session token.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

type Service struct {
	secret []byte
	issuer string
	expiry time.Duration
	logger *logging.Service
	now    func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(cfg config.JWTConfig, logger *logging.Service, opts ...Option) *Service {
	s := &Service{
		secret: []byte(cfg.SecretKey),
		issuer: cfg.Issuer,
		expiry: cfg.SessionExpiry,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ExpirySeconds() int {
	return int(s.expiry.Seconds())
}

// Issue signs a session token for userID. No server-side record is kept.
func (s *Service) Issue(userID string, extra SessionClaims) (string, error) {
	if userID == "" {
		return "", ErrMissingSubject
	}

	now := s.now()
	claims := Claims{
		Email:     extra.Email,
		Name:      extra.Name,
		TokenType: TokenTypeSession,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{s.issuer},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		s.logger.Error("failed to sign session token", zap.Error(err))
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	return signed, nil
}

// ValidateToken verifies signature, algorithm, issuer, audience and expiry.
// Every failure collapses to ErrInvalidToken.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingAlgorithm}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		s.logger.Debug("session token rejected", zap.Error(err))
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" || claims.TokenType != TokenTypeSession {
		s.logger.Debug("session token rejected", zap.String("reason", "missing subject or wrong token type"))
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Authenticate turns an Authorization header value into an Identity. It
// never touches storage.
func (s *Service) Authenticate(rawHeader string) (*Identity, error) {
	if !strings.HasPrefix(rawHeader, bearerPrefix) {
		return nil, ErrMalformedHeader
	}

	tokenString := strings.TrimSpace(strings.TrimPrefix(rawHeader, bearerPrefix))
	if tokenString == "" {
		return nil, ErrMalformedHeader
	}

	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	return &Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
	}, nil
}
