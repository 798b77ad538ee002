package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/social-agent/internal/models"
	"github.com/social-agent/internal/storage"
)

// Repository implements storage.Repository using SQLite.
// It runs with service-level access; callers must always pass the owning user.
type Repository struct {
	db *gorm.DB
}

var _ storage.Repository = (*Repository)(nil)

// New creates a new SQLite repository
func New(dsn string) (*Repository, error) {
	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		dir := filepath.Dir(dsn)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}

	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Repository{db: db}, nil
}

// NewInMemory opens a private in-memory database, migrated and ready to use
func NewInMemory() (*Repository, error) {
	repo, err := New(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	if err != nil {
		return nil, err
	}
	if err := repo.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return repo, nil
}

// Migrate runs database migrations
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&models.SocialAccount{},
		&models.SocialPost{},
	)
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}

func affected(tx *gorm.DB) error {
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Account operations

func (r *Repository) SaveAccount(ctx context.Context, account *models.SocialAccount) error {
	// Upsert on (user_id, platform)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "platform"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"platform_user_id", "username", "notify_email", "access_token_enc", "refresh_token_enc",
			"is_valid", "last_validated_at", "last_error", "updated_at",
		}),
	}).Create(account).Error
}

func (r *Repository) GetAccount(ctx context.Context, userID string, platform models.Platform) (*models.SocialAccount, error) {
	var account models.SocialAccount
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND platform = ?", userID, platform).
		First(&account).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

func (r *Repository) FindUsableAccount(ctx context.Context, userID string, platform models.Platform) (*models.SocialAccount, error) {
	var account models.SocialAccount
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND platform = ? AND is_valid = ?", userID, platform, true).
		First(&account).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

func (r *Repository) ListAccounts(ctx context.Context, filter storage.AccountFilter) ([]*models.SocialAccount, error) {
	var accounts []*models.SocialAccount
	query := r.db.WithContext(ctx).Model(&models.SocialAccount{})

	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Platform != nil {
		query = query.Where("platform = ?", *filter.Platform)
	}
	if filter.ValidOnly {
		query = query.Where("is_valid = ?", true)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	if err := query.Order("id ASC").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *Repository) UpdateAccountTokens(ctx context.Context, userID string, platform models.Platform, accessEnc, refreshEnc string) error {
	updates := map[string]interface{}{
		"access_token_enc": accessEnc,
		"is_valid":         true,
		"last_error":       "",
	}
	if refreshEnc != "" {
		updates["refresh_token_enc"] = refreshEnc
	}
	tx := r.db.WithContext(ctx).Model(&models.SocialAccount{}).
		Where("user_id = ? AND platform = ?", userID, platform).
		Updates(updates)
	return affected(tx)
}

func (r *Repository) MarkAccountValidated(ctx context.Context, userID string, platform models.Platform, at time.Time) error {
	tx := r.db.WithContext(ctx).Model(&models.SocialAccount{}).
		Where("user_id = ? AND platform = ?", userID, platform).
		Updates(map[string]interface{}{
			"is_valid":          true,
			"last_validated_at": at.UTC(),
			"last_error":        "",
		})
	return affected(tx)
}

func (r *Repository) MarkAccountInvalid(ctx context.Context, userID string, platform models.Platform, reason string) error {
	tx := r.db.WithContext(ctx).Model(&models.SocialAccount{}).
		Where("user_id = ? AND platform = ?", userID, platform).
		Updates(map[string]interface{}{
			"is_valid":   false,
			"last_error": reason,
		})
	return affected(tx)
}

// Post operations

func (r *Repository) CreatePost(ctx context.Context, post *models.SocialPost) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *Repository) GetPost(ctx context.Context, id uint, userID string) (*models.SocialPost, error) {
	var post models.SocialPost
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&post).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &post, nil
}

func (r *Repository) ListPosts(ctx context.Context, filter storage.PostFilter) ([]*models.SocialPost, error) {
	var posts []*models.SocialPost
	query := r.db.WithContext(ctx).Model(&models.SocialPost{})

	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Platform != nil {
		query = query.Where("platform = ?", *filter.Platform)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	orderCol := "created_at"
	if filter.OrderBy != "" {
		orderCol = filter.OrderBy
	}
	query = query.Order(clause.OrderByColumn{Column: clause.Column{Name: orderCol}, Desc: filter.OrderDesc})

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *Repository) MarkPosting(ctx context.Context, id uint, userID string) error {
	tx := r.db.WithContext(ctx).Model(&models.SocialPost{}).
		Where("id = ? AND user_id = ? AND status NOT IN ?", id, userID,
			[]models.PostStatus{models.PostStatusPosted, models.PostStatusFailed}).
		Updates(map[string]interface{}{
			"status":   models.PostStatusPosting,
			"attempts": gorm.Expr("attempts + 1"),
		})
	return affected(tx)
}

func (r *Repository) MarkPosted(ctx context.Context, id uint, userID, platformPostID, url string, at time.Time) error {
	tx := r.db.WithContext(ctx).Model(&models.SocialPost{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{
			"status":           models.PostStatusPosted,
			"platform_post_id": platformPostID,
			"post_url":         url,
			"posted_at":        at.UTC(),
			"error_message":    "",
		})
	return affected(tx)
}

func (r *Repository) MarkFailed(ctx context.Context, id uint, userID, reason string) error {
	tx := r.db.WithContext(ctx).Model(&models.SocialPost{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{
			"status":           models.PostStatusFailed,
			"error_message":    reason,
			"platform_post_id": nil,
		})
	return affected(tx)
}

func (r *Repository) ListPostedSince(ctx context.Context, userID string, platform models.Platform, since time.Time, limit int) ([]*models.SocialPost, error) {
	var posts []*models.SocialPost
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND platform = ? AND status = ?", userID, platform, models.PostStatusPosted).
		Where("platform_post_id IS NOT NULL AND platform_post_id <> ''").
		Where("posted_at >= ?", since.UTC()).
		Order("posted_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *Repository) UpdateEngagement(ctx context.Context, id uint, userID string, metrics models.Metrics) error {
	tx := r.db.WithContext(ctx).Model(&models.SocialPost{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("engagement", metrics)
	return affected(tx)
}

func (r *Repository) ListDueScheduled(ctx context.Context, before time.Time, limit int) ([]*models.SocialPost, error) {
	var posts []*models.SocialPost
	query := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", models.PostStatusScheduled, before.UTC()).
		Order("scheduled_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}
