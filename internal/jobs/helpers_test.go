package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/social-agent/internal/models"
	"github.com/social-agent/internal/notify"
	"github.com/social-agent/internal/platform"
	"github.com/social-agent/internal/storage/sqlite"
	"github.com/social-agent/internal/tracking"
	"github.com/social-agent/internal/vault"
	"github.com/social-agent/pkg/ratelimit"
)

// MockClient is a platform.Client driven by testify expectations
type MockClient struct {
	mock.Mock
	p models.Platform
}

func newMockClient(p models.Platform) *MockClient {
	return &MockClient{p: p}
}

func (m *MockClient) Platform() models.Platform { return m.p }

func (m *MockClient) ValidateToken(ctx context.Context, token string) (platform.Validation, error) {
	args := m.Called(token)
	return args.Get(0).(platform.Validation), args.Error(1)
}

func (m *MockClient) GetUserProfile(ctx context.Context, token string) (platform.Result[platform.Profile], error) {
	args := m.Called(token)
	return args.Get(0).(platform.Result[platform.Profile]), args.Error(1)
}

func (m *MockClient) CreatePost(ctx context.Context, token, content string, mediaURLs []string) (platform.Result[platform.Published], error) {
	args := m.Called(token, content)
	return args.Get(0).(platform.Result[platform.Published]), args.Error(1)
}

func (m *MockClient) GetPostEngagement(ctx context.Context, token, postID string) (models.Metrics, error) {
	args := m.Called(token, postID)
	return args.Get(0).(models.Metrics), args.Error(1)
}

func (m *MockClient) CheckHealth(ctx context.Context) platform.Health {
	args := m.Called()
	return args.Get(0).(platform.Health)
}

// MockRefresher is a credentials.Refresher driven by testify expectations
type MockRefresher struct {
	mock.Mock
}

func (m *MockRefresher) Refresh(ctx context.Context, p models.Platform, userID, encryptedRefreshToken string) (string, error) {
	args := m.Called(p, userID)
	return args.String(0), args.Error(1)
}

// recordingNotifier keeps every message it is handed
type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (r *recordingNotifier) Notify(msg notify.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordingNotifier) Messages() []notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Message(nil), r.msgs...)
}

type harness struct {
	repo      *sqlite.Repository
	vault     *vault.Vault
	governor  *ratelimit.Governor
	notifier  *recordingNotifier
	tracker   *tracking.Recorder
	refresher *MockRefresher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo, err := sqlite.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	v, err := vault.New("jobs-test-secret-0123456789abcdef")
	require.NoError(t, err)

	return &harness{
		repo:      repo,
		vault:     v,
		governor:  ratelimit.NewGovernor(ratelimit.NewMemoryStore()),
		notifier:  &recordingNotifier{},
		tracker:   tracking.NewRecorder(),
		refresher: &MockRefresher{},
	}
}

func (h *harness) executor(clients ...platform.Client) *Executor {
	return NewExecutor(Deps{
		Accounts:  h.repo,
		Posts:     h.repo,
		Vault:     h.vault,
		Platforms: platform.NewSet(clients...),
		Governor:  h.governor,
		Refresher: h.refresher,
		Notifier:  h.notifier,
		Tracker:   h.tracker,
	}, Options{JobTimeout: 10 * time.Second})
}

type accountOpt func(*models.SocialAccount)

func withRefresh(h *harness, token string) accountOpt {
	return func(a *models.SocialAccount) {
		enc, err := h.vault.Encrypt(token)
		if err != nil {
			panic(err)
		}
		a.RefreshTokenEnc = enc
	}
}

func invalid(a *models.SocialAccount) { a.IsValid = false }

func (h *harness) seedAccount(t *testing.T, userID string, p models.Platform, opts ...accountOpt) *models.SocialAccount {
	t.Helper()
	enc, err := h.vault.Encrypt("stored-access-token")
	require.NoError(t, err)
	a := &models.SocialAccount{
		UserID:         userID,
		Platform:       p,
		Username:       "tester",
		NotifyEmail:    userID + "@example.com",
		AccessTokenEnc: enc,
		IsValid:        true,
	}
	for _, o := range opts {
		o(a)
	}
	require.NoError(t, h.repo.SaveAccount(context.Background(), a))
	return a
}

func (h *harness) seedPost(t *testing.T, userID string, p models.Platform, content string) *models.SocialPost {
	t.Helper()
	now := time.Now().UTC()
	post := &models.SocialPost{
		UserID:      userID,
		Platform:    p,
		Content:     content,
		Status:      models.PostStatusScheduled,
		ScheduledAt: &now,
	}
	require.NoError(t, h.repo.CreatePost(context.Background(), post))
	return post
}

func (h *harness) seedPosted(t *testing.T, userID string, p models.Platform, platformID string, postedAt time.Time) *models.SocialPost {
	t.Helper()
	post := h.seedPost(t, userID, p, "published content")
	require.NoError(t, h.repo.MarkPosted(context.Background(), post.ID, userID, platformID, "https://example.com/"+platformID, postedAt))
	return post
}

func (h *harness) reload(t *testing.T, post *models.SocialPost) *models.SocialPost {
	t.Helper()
	got, err := h.repo.GetPost(context.Background(), post.ID, post.UserID)
	require.NoError(t, err)
	return got
}

func descriptor(t *testing.T, typ Type, payload interface{}) Descriptor {
	t.Helper()
	d, err := NewDescriptor(typ, payload)
	require.NoError(t, err)
	return d
}
