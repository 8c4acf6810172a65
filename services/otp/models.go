package otp

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OneTimeCode is a single issued code. Only the bcrypt digest of the code is
// stored; IsUsed flips false to true at most once.
type OneTimeCode struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	Email     string     `gorm:"size:255;not null;index:idx_one_time_codes_email_created,priority:1" json:"email"`
	UserID    *string    `gorm:"size:36" json:"userId,omitempty"`
	CodeHash  string     `gorm:"size:255;not null" json:"-"`
	ExpiresAt time.Time  `gorm:"not null;index" json:"expiresAt"`
	IsUsed    bool       `gorm:"not null;default:false" json:"isUsed"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	CreatedAt time.Time  `gorm:"not null;index:idx_one_time_codes_email_created,priority:2" json:"createdAt"`
}

func (OneTimeCode) TableName() string {
	return "one_time_codes"
}

func (c *OneTimeCode) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (c *OneTimeCode) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

type VerifyResult struct {
	CodeID string
	Email  string
	// UserID is empty when the code was issued before the user existed.
	UserID string
}
