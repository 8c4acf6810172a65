package user

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	Email         string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	EmailVerified bool      `gorm:"not null;default:false" json:"emailVerified"`
	Name          *string   `gorm:"size:255" json:"name"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// DisplayName returns the stored name or "" when none was set.
func (u *User) DisplayName() string {
	if u == nil || u.Name == nil {
		return ""
	}
	return *u.Name
}
