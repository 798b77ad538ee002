package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/social-agent/internal/models"
	"github.com/social-agent/internal/storage"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func strPtr(s string) *string { return &s }

func TestRepository_AccountLifecycle(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	acc := &models.SocialAccount{
		UserID:         "user-1",
		Platform:       models.PlatformTwitter,
		AccessTokenEnc: "v1:access",
		IsValid:        true,
	}
	require.NoError(t, repo.SaveAccount(ctx, acc))

	got, err := repo.FindUsableAccount(ctx, "user-1", models.PlatformTwitter)
	require.NoError(t, err)
	assert.Equal(t, "v1:access", got.AccessTokenEnc)

	// Scoped by user: another user sees nothing
	_, err = repo.GetAccount(ctx, "user-2", models.PlatformTwitter)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, repo.MarkAccountInvalid(ctx, "user-1", models.PlatformTwitter, "please reconnect"))
	_, err = repo.FindUsableAccount(ctx, "user-1", models.PlatformTwitter)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	stored, err := repo.GetAccount(ctx, "user-1", models.PlatformTwitter)
	require.NoError(t, err)
	assert.False(t, stored.IsValid)
	assert.Equal(t, "please reconnect", stored.LastError)

	require.NoError(t, repo.UpdateAccountTokens(ctx, "user-1", models.PlatformTwitter, "v1:new", "v1:refresh"))
	stored, err = repo.FindUsableAccount(ctx, "user-1", models.PlatformTwitter)
	require.NoError(t, err)
	assert.Equal(t, "v1:new", stored.AccessTokenEnc)
	assert.Equal(t, "v1:refresh", stored.RefreshTokenEnc)
	assert.Empty(t, stored.LastError)

	now := time.Now()
	require.NoError(t, repo.MarkAccountValidated(ctx, "user-1", models.PlatformTwitter, now))
	stored, err = repo.GetAccount(ctx, "user-1", models.PlatformTwitter)
	require.NoError(t, err)
	require.NotNil(t, stored.LastValidatedAt)

	assert.ErrorIs(t, repo.MarkAccountInvalid(ctx, "user-9", models.PlatformTwitter, "x"), storage.ErrNotFound)
}

func TestRepository_SaveAccountUpserts(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveAccount(ctx, &models.SocialAccount{
		UserID: "u", Platform: models.PlatformLinkedIn, AccessTokenEnc: "first", IsValid: true,
	}))
	require.NoError(t, repo.SaveAccount(ctx, &models.SocialAccount{
		UserID: "u", Platform: models.PlatformLinkedIn, AccessTokenEnc: "second", IsValid: true,
	}))

	accounts, err := repo.ListAccounts(ctx, storage.AccountFilter{UserID: "u"})
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "second", accounts[0].AccessTokenEnc)
}

func TestRepository_PostTransitions(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	post := &models.SocialPost{
		UserID:    "user-1",
		Platform:  models.PlatformLinkedIn,
		Content:   "Hello world",
		MediaURLs: models.StringSlice{"https://cdn.example.com/a.png"},
		Status:    models.PostStatusScheduled,
	}
	require.NoError(t, repo.CreatePost(ctx, post))

	require.NoError(t, repo.MarkPosting(ctx, post.ID, "user-1"))
	got, err := repo.GetPost(ctx, post.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPosting, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, models.StringSlice{"https://cdn.example.com/a.png"}, got.MediaURLs)

	// Wrong user cannot touch the row
	assert.ErrorIs(t, repo.MarkPosting(ctx, post.ID, "user-2"), storage.ErrNotFound)

	postedAt := time.Now().UTC()
	require.NoError(t, repo.MarkPosted(ctx, post.ID, "user-1", "urn:li:share:1", "https://www.linkedin.com/feed/update/urn:li:share:1", postedAt))
	got, err = repo.GetPost(ctx, post.ID, "user-1")
	require.NoError(t, err)
	assert.True(t, got.IsPublished())
	assert.Equal(t, "urn:li:share:1", *got.PlatformPostID)
	require.NotNil(t, got.PostedAt)

	// Terminal posts are never claimed again
	assert.ErrorIs(t, repo.MarkPosting(ctx, post.ID, "user-1"), storage.ErrNotFound)
}

func TestRepository_MarkFailedClearsPlatformID(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	post := &models.SocialPost{UserID: "u", Platform: models.PlatformTwitter, Content: "x", Status: models.PostStatusPosting}
	require.NoError(t, repo.CreatePost(ctx, post))

	require.NoError(t, repo.MarkFailed(ctx, post.ID, "u", "No valid twitter account connected"))
	got, err := repo.GetPost(ctx, post.ID, "u")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusFailed, got.Status)
	assert.Nil(t, got.PlatformPostID)
	assert.Equal(t, "No valid twitter account connected", got.ErrorMessage)
}

func TestRepository_ListPostedSinceAndEngagement(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()
	recent := now.Add(-2 * time.Hour)
	old := now.Add(-72 * time.Hour)

	rows := []*models.SocialPost{
		{UserID: "u", Platform: models.PlatformTwitter, Content: "recent", Status: models.PostStatusPosted, PlatformPostID: strPtr("1"), PostedAt: &recent},
		{UserID: "u", Platform: models.PlatformTwitter, Content: "old", Status: models.PostStatusPosted, PlatformPostID: strPtr("2"), PostedAt: &old},
		{UserID: "u", Platform: models.PlatformTwitter, Content: "failed", Status: models.PostStatusFailed},
		{UserID: "u", Platform: models.PlatformLinkedIn, Content: "other platform", Status: models.PostStatusPosted, PlatformPostID: strPtr("3"), PostedAt: &recent},
		{UserID: "v", Platform: models.PlatformTwitter, Content: "other user", Status: models.PostStatusPosted, PlatformPostID: strPtr("4"), PostedAt: &recent},
	}
	for _, p := range rows {
		require.NoError(t, repo.CreatePost(ctx, p))
	}

	posts, err := repo.ListPostedSince(ctx, "u", models.PlatformTwitter, now.Add(-24*time.Hour), 50)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "recent", posts[0].Content)

	require.NoError(t, repo.UpdateEngagement(ctx, posts[0].ID, "u", models.Metrics{"likes": 4, "retweets": 1}))
	got, err := repo.GetPost(ctx, posts[0].ID, "u")
	require.NoError(t, err)
	assert.Equal(t, float64(4), got.Engagement["likes"])

	assert.ErrorIs(t, repo.UpdateEngagement(ctx, posts[0].ID, "v", models.Metrics{}), storage.ErrNotFound)
}

func TestRepository_ListDueScheduled(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	require.NoError(t, repo.CreatePost(ctx, &models.SocialPost{UserID: "u", Platform: models.PlatformTwitter, Content: "due", Status: models.PostStatusScheduled, ScheduledAt: &past}))
	require.NoError(t, repo.CreatePost(ctx, &models.SocialPost{UserID: "u", Platform: models.PlatformTwitter, Content: "later", Status: models.PostStatusScheduled, ScheduledAt: &future}))
	require.NoError(t, repo.CreatePost(ctx, &models.SocialPost{UserID: "u", Platform: models.PlatformTwitter, Content: "draft", Status: models.PostStatusDraft, ScheduledAt: &past}))

	due, err := repo.ListDueScheduled(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "due", due[0].Content)

	status := models.PostStatusScheduled
	all, err := repo.ListPosts(ctx, storage.PostFilter{UserID: "u", Status: &status, OrderBy: "scheduled_at"})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
