package domain

import (
	"time"
)

// UserToken stores an opaque refresh token for one user session.
type UserToken struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       int64     `gorm:"not null;index;column:user_id" json:"user_id"`
	RefreshToken string    `gorm:"uniqueIndex:uq_user_token_refresh;not null;column:refresh_token" json:"-"`
	ExpiresAt    time.Time `gorm:"not null;column:expires_at" json:"expires_at"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (UserToken) TableName() string { return "user_token" }
