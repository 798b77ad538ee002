package models

import (
	"time"
)

// PostStatus represents the lifecycle state of a social post
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusQueued    PostStatus = "queued"
	PostStatusApproved  PostStatus = "approved"
	PostStatusIgnored   PostStatus = "ignored"
	PostStatusScheduled PostStatus = "scheduled"
	PostStatusPosting   PostStatus = "posting"
	PostStatusPosted    PostStatus = "posted"
	PostStatusFailed    PostStatus = "failed"
)

// IsTerminal reports whether no further automated transition occurs from s
func (s PostStatus) IsTerminal() bool {
	return s == PostStatusPosted || s == PostStatusFailed
}

// SocialPost is one requested unit of content for a single platform.
// PlatformPostID is set if and only if Status is posted.
type SocialPost struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	UserID         string      `gorm:"size:64;not null;index:idx_post_user_platform" json:"user_id"`
	Platform       Platform    `gorm:"size:32;not null;index:idx_post_user_platform" json:"platform"`
	Content        string      `gorm:"type:text;not null" json:"content"`
	MediaURLs      StringSlice `gorm:"type:text" json:"media_urls"`
	Status         PostStatus  `gorm:"size:20;default:'draft';index" json:"status"`
	ScheduledAt    *time.Time  `gorm:"index" json:"scheduled_at"`
	PostedAt       *time.Time  `gorm:"index" json:"posted_at"`
	PlatformPostID *string     `gorm:"size:255" json:"platform_post_id"`
	PostURL        string      `gorm:"size:512" json:"post_url"`
	Engagement     Metrics     `gorm:"type:text" json:"engagement_metrics"`
	ErrorMessage   string      `gorm:"type:text" json:"error_message"`
	AIGenerated    bool        `gorm:"default:false" json:"ai_generated"`
	TrendTriggered bool        `gorm:"default:false" json:"trend_triggered"`
	Attempts       int         `gorm:"default:0" json:"attempts"`
	CreatedAt      time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsPublished reports whether the post reached the posted state with a platform id
func (p *SocialPost) IsPublished() bool {
	return p.Status == PostStatusPosted && p.PlatformPostID != nil && *p.PlatformPostID != ""
}
