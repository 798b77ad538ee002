package models

import (
	"time"
)

// SocialAccount is one OAuth connection between an application user and a platform identity.
// Tokens are stored encrypted; only the credential vault can read them.
type SocialAccount struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          string     `gorm:"size:64;not null;uniqueIndex:idx_account_user_platform" json:"user_id"`
	Platform        Platform   `gorm:"size:32;not null;uniqueIndex:idx_account_user_platform" json:"platform"`
	PlatformUserID  string     `gorm:"size:255" json:"platform_user_id"`
	Username        string     `gorm:"size:255" json:"username"`
	NotifyEmail     string     `gorm:"size:255" json:"notify_email"` // where post outcome emails go; empty disables them
	AccessTokenEnc  string     `gorm:"type:text;not null" json:"-"`
	RefreshTokenEnc string     `gorm:"type:text" json:"-"`
	IsValid         bool       `gorm:"not null;index" json:"is_valid"`
	LastValidatedAt *time.Time `json:"last_validated_at"`
	LastError       string     `gorm:"type:text" json:"last_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasRefreshToken reports whether a refresh path is on file
func (a *SocialAccount) HasRefreshToken() bool {
	return a.RefreshTokenEnc != ""
}
