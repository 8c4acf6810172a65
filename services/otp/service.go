package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tech-arch1tect/otpauth/config"
	"github.com/tech-arch1tect/otpauth/services/logging"
	"github.com/tech-arch1tect/otpauth/services/user"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Delivery hands a freshly issued code to the user. A failed delivery never
// removes the stored code.
type Delivery interface {
	SendCode(ctx context.Context, email, code string, expiresAt time.Time) error
}

type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*user.User, error)
}

type Service struct {
	db         *gorm.DB
	delivery   Delivery
	users      UserFinder
	logger     *logging.Service
	expiry     time.Duration
	bcryptCost int
	now        func() time.Time
	generate   func() (string, error)
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithCodeGenerator(generate func() (string, error)) Option {
	return func(s *Service) {
		if generate != nil {
			s.generate = generate
		}
	}
}

func WithUserFinder(users UserFinder) Option {
	return func(s *Service) {
		s.users = users
	}
}

func NewService(db *gorm.DB, cfg config.OTPConfig, delivery Delivery, logger *logging.Service, opts ...Option) *Service {
	s := &Service{
		db:         db,
		delivery:   delivery,
		logger:     logger,
		expiry:     cfg.Expiry,
		bcryptCost: cfg.BcryptCost,
		now:        time.Now,
		generate:   GenerateCode,
	}
	if s.bcryptCost == 0 {
		s.bcryptCost = bcrypt.DefaultCost
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue stores a new code for email and passes it to the delivery channel.
// On ErrDeliveryFailed the code is still stored and is returned alongside the
// error. Earlier outstanding codes are left untouched.
func (s *Service) Issue(ctx context.Context, email string) (string, error) {
	log := s.logger.Ctx(ctx)

	normalized, err := user.NormalizeEmail(email)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrValidation, err)
	}

	code, err := s.generate()
	if err != nil {
		return "", fmt.Errorf("%w: generate: %w", ErrPersistenceFailed, err)
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(code), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("%w: digest: %w", ErrPersistenceFailed, err)
	}

	now := s.now().UTC()
	record := &OneTimeCode{
		Email:     normalized,
		CodeHash:  string(digest),
		ExpiresAt: now.Add(s.expiry),
		CreatedAt: now,
	}

	if s.users != nil {
		if existing, err := s.users.FindByEmail(ctx, normalized); err == nil {
			record.UserID = &existing.ID
		} else if !errors.Is(err, user.ErrUserNotFound) {
			log.Warn("user lookup failed while issuing code", zap.String("email", normalized), zap.Error(err))
		}
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		log.Error("failed to store code", zap.String("email", normalized), zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}

	log.Info("code issued",
		zap.String("email", normalized),
		zap.String("code_id", record.ID),
		zap.Time("expires_at", record.ExpiresAt))

	if s.delivery == nil {
		return code, nil
	}

	if err := s.delivery.SendCode(ctx, normalized, code, record.ExpiresAt); err != nil {
		log.Warn("code delivery failed",
			zap.String("email", normalized),
			zap.String("code_id", record.ID),
			zap.Error(err))
		return code, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	return code, nil
}

// Verify checks code against the most recently issued code for email and
// consumes it. Consumption is a conditional update so that concurrent callers
// presenting the same code see exactly one success.
func (s *Service) Verify(ctx context.Context, email, code string) (*VerifyResult, error) {
	normalized, err := user.NormalizeEmail(email)
	if err != nil || !ValidCodeFormat(code) {
		return nil, ErrValidation
	}

	record, err := s.Latest(ctx, normalized)
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(record.CodeHash), []byte(code)) != nil {
		return nil, ErrMismatch
	}

	if record.IsUsed {
		return nil, ErrAlreadyUsed
	}

	now := s.now().UTC()
	if record.IsExpired(now) {
		return nil, ErrExpired
	}

	result := s.db.WithContext(ctx).
		Model(&OneTimeCode{}).
		Where("id = ? AND is_used = ?", record.ID, false).
		Updates(map[string]any{
			"is_used": true,
			"used_at": now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to consume code: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrAlreadyUsed
	}

	verified := &VerifyResult{CodeID: record.ID, Email: normalized}
	if record.UserID != nil {
		verified.UserID = *record.UserID
	}
	return verified, nil
}

// Latest returns the most recently created code for an already normalized email.
func (s *Service) Latest(ctx context.Context, email string) (*OneTimeCode, error) {
	var record OneTimeCode
	err := s.db.WithContext(ctx).
		Where("email = ?", email).
		Order("created_at DESC").
		Limit(1).
		Find(&record).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load code: %w", err)
	}
	if record.ID == "" {
		return nil, ErrNotFound
	}
	return &record, nil
}

// CleanupExpired removes codes that expired before cutoff and returns how many
// rows were deleted.
func (s *Service) CleanupExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", cutoff.UTC()).
		Delete(&OneTimeCode{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to cleanup expired codes: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// StartCleanupWorker periodically deletes codes that expired more than
// retain ago. It stops when ctx is cancelled.
func (s *Service) StartCleanupWorker(ctx context.Context, interval, retain time.Duration) {
	if interval <= 0 {
		s.logger.Debug("code cleanup worker disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := s.CleanupExpired(ctx, s.now().Add(-retain))
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						s.logger.Error("code cleanup failed", zap.Error(err))
					}
					continue
				}
				if deleted > 0 {
					s.logger.Debug("expired codes removed", zap.Int64("deleted", deleted))
				}
			}
		}
	}()

	s.logger.Info("started code cleanup worker",
		zap.Duration("interval", interval),
		zap.Duration("retain_for", retain))
}
