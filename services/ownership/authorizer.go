package ownership

import (
	"context"
	"errors"
	"fmt"

	"github.com/tech-arch1tect/otpauth/services/jwt"
	"gorm.io/gorm"
)

var (
	ErrResourceNotFound = errors.New("resource not found")
	ErrNotOwner         = errors.New("resource belongs to another user")
	ErrUnauthenticated  = errors.New("no authenticated identity")
)

// Authorize reports whether identity owns a resource whose owner is
// ownerUserID. An empty id on either side never matches.
func Authorize(identity *jwt.Identity, ownerUserID string) bool {
	if identity == nil || identity.UserID == "" || ownerUserID == "" {
		return false
	}
	return identity.UserID == ownerUserID
}

// OwnerLookup resolves the owner of a resource. It returns
// ErrResourceNotFound when the resource does not exist.
type OwnerLookup interface {
	OwnerOf(ctx context.Context, resourceID string) (string, error)
}

type OwnerLookupFunc func(ctx context.Context, resourceID string) (string, error)

func (f OwnerLookupFunc) OwnerOf(ctx context.Context, resourceID string) (string, error) {
	return f(ctx, resourceID)
}

// Check distinguishes a missing resource from one owned by somebody else.
func Check(ctx context.Context, identity *jwt.Identity, lookup OwnerLookup, resourceID string) error {
	if identity == nil || identity.UserID == "" {
		return ErrUnauthenticated
	}

	owner, err := lookup.OwnerOf(ctx, resourceID)
	if err != nil {
		return err
	}

	if !Authorize(identity, owner) {
		return ErrNotOwner
	}
	return nil
}

// GormLookup reads the user_id column of model's table.
func GormLookup(db *gorm.DB, model any) OwnerLookup {
	return OwnerLookupFunc(func(ctx context.Context, resourceID string) (string, error) {
		var row struct {
			UserID string
		}
		result := db.WithContext(ctx).
			Model(model).
			Select("user_id").
			Where("id = ?", resourceID).
			Limit(1).
			Scan(&row)
		if result.Error != nil {
			return "", fmt.Errorf("failed to look up resource owner: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return "", ErrResourceNotFound
		}
		return row.UserID, nil
	})
}

// ScopeOwner restricts a query to rows owned by identity. Without an
// identity the scope matches nothing.
func ScopeOwner(identity *jwt.Identity) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if identity == nil || identity.UserID == "" {
			return db.Where("1 = 0")
		}
		return db.Where("user_id = ?", identity.UserID)
	}
}
