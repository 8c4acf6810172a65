package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/tech-arch1tect/otpauth/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidEmail = errors.New("invalid email address")
	ErrUserNotFound = errors.New("user not found")
)

type Service struct {
	db     *gorm.DB
	logger *logging.Service
}

func NewService(db *gorm.DB, logger *logging.Service) *Service {
	return &Service{db: db, logger: logger}
}

// GetOrCreateUser returns the id of the user owning email, creating an
// unverified user when none exists. Concurrent callers for the same address
// converge on a single row through the unique email index.
func (s *Service) GetOrCreateUser(ctx context.Context, email string) (string, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return "", err
	}

	existing, err := s.findByNormalizedEmail(ctx, normalized)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return "", err
	}

	candidate := &User{Email: normalized}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(candidate)

	if result.Error != nil && !errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return "", fmt.Errorf("failed to create user: %w", result.Error)
	}

	if result.Error == nil && result.RowsAffected == 1 {
		s.logger.Info("user created", zap.String("user_id", candidate.ID), zap.String("email", normalized))
		return candidate.ID, nil
	}

	// another request created the row first
	winner, err := s.findByNormalizedEmail(ctx, normalized)
	if err != nil {
		return "", fmt.Errorf("failed to re-read user after conflict: %w", err)
	}
	return winner.ID, nil
}

func (s *Service) MarkEmailVerified(ctx context.Context, userID string) error {
	result := s.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", userID).
		Update("email_verified", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark email verified: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// sqlite and postgres report matched rows, mysql reports changed rows
		if _, err := s.GetUser(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	var u User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*User, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	return s.findByNormalizedEmail(ctx, normalized)
}

func (s *Service) findByNormalizedEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Where("email = ?", email).Limit(1).Find(&u).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if u.ID == "" {
		return nil, ErrUserNotFound
	}
	return &u, nil
}
