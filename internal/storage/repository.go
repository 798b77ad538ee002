package storage

import (
	"context"
	"errors"
	"time"

	"github.com/social-agent/internal/models"
)

// ErrNotFound is returned when no row matches the user-scoped lookup
var ErrNotFound = errors.New("not found")

// AccountStore persists social accounts. Every call is scoped by user and platform.
type AccountStore interface {
	SaveAccount(ctx context.Context, account *models.SocialAccount) error
	GetAccount(ctx context.Context, userID string, platform models.Platform) (*models.SocialAccount, error)
	FindUsableAccount(ctx context.Context, userID string, platform models.Platform) (*models.SocialAccount, error)
	ListAccounts(ctx context.Context, filter AccountFilter) ([]*models.SocialAccount, error)
	UpdateAccountTokens(ctx context.Context, userID string, platform models.Platform, accessEnc, refreshEnc string) error
	MarkAccountValidated(ctx context.Context, userID string, platform models.Platform, at time.Time) error
	MarkAccountInvalid(ctx context.Context, userID string, platform models.Platform, reason string) error
}

// PostStore persists social posts. Writes are scoped by post id and owning user.
type PostStore interface {
	CreatePost(ctx context.Context, post *models.SocialPost) error
	GetPost(ctx context.Context, id uint, userID string) (*models.SocialPost, error)
	ListPosts(ctx context.Context, filter PostFilter) ([]*models.SocialPost, error)
	MarkPosting(ctx context.Context, id uint, userID string) error
	MarkPosted(ctx context.Context, id uint, userID, platformPostID, url string, at time.Time) error
	MarkFailed(ctx context.Context, id uint, userID, reason string) error
	ListPostedSince(ctx context.Context, userID string, platform models.Platform, since time.Time, limit int) ([]*models.SocialPost, error)
	UpdateEngagement(ctx context.Context, id uint, userID string, metrics models.Metrics) error
	ListDueScheduled(ctx context.Context, before time.Time, limit int) ([]*models.SocialPost, error)
}

// Repository defines the interface for data persistence
type Repository interface {
	AccountStore
	PostStore

	// Maintenance
	Close() error
	Migrate() error
}

// AccountFilter defines filtering options for accounts
type AccountFilter struct {
	UserID    string
	Platform  *models.Platform
	ValidOnly bool
	Limit     int
}

// PostFilter defines filtering options for posts
type PostFilter struct {
	UserID    string
	Platform  *models.Platform
	Status    *models.PostStatus
	Limit     int
	Offset    int
	OrderBy   string
	OrderDesc bool
}

// DefaultPostFilter returns a filter with sensible defaults
func DefaultPostFilter() PostFilter {
	return PostFilter{
		Limit:     50,
		OrderBy:   "created_at",
		OrderDesc: true,
	}
}
