package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/social-agent/internal/metrics"
	"github.com/social-agent/internal/models"
	"github.com/social-agent/internal/platform"
	"github.com/social-agent/pkg/ratelimit"
)

func healthClient(p models.Platform, healthy bool, status int) *MockClient {
	c := newMockClient(p)
	h := platform.Health{Platform: p, Healthy: healthy, StatusCode: status, Latency: 40 * time.Millisecond}
	if !healthy {
		h.Error = "service unavailable"
	}
	c.On("CheckHealth").Return(h)
	return c
}

func TestExecute_UnknownJobType(t *testing.T) {
	h := newHarness(t)
	err := h.executor().Execute(context.Background(), Descriptor{ID: "j-1", Type: "social-mystery"})
	assert.ErrorIs(t, err, ErrUnknownJobType)
	assert.False(t, Retryable(err))
}

func TestExecute_RecordsJobMetrics(t *testing.T) {
	h := newHarness(t)
	m := metrics.New()
	ex := NewExecutor(Deps{
		Accounts:  h.repo,
		Posts:     h.repo,
		Vault:     h.vault,
		Platforms: platform.NewSet(),
		Metrics:   m,
	}, Options{})

	d := descriptor(t, TypeTrendMonitor, TrendMonitorPayload{UserID: "user-1"})
	require.NoError(t, ex.Execute(context.Background(), d))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues(string(TypeTrendMonitor), metrics.OutcomeDone)))
}

func TestHealthCheck_AlertsOnceAtThreshold(t *testing.T) {
	h := newHarness(t)
	ex := h.executor(
		healthClient(models.PlatformTwitter, false, 503),
		healthClient(models.PlatformReddit, false, 502),
		healthClient(models.PlatformLinkedIn, true, 200),
	)

	d := descriptor(t, TypeHealthCheck, HealthCheckPayload{
		Platforms:  []models.Platform{models.PlatformTwitter, models.PlatformReddit, models.PlatformLinkedIn},
		Threshold:  2,
		AlertEmail: "ops@example.com",
	})
	require.NoError(t, ex.Execute(context.Background(), d))

	msgs := h.notifier.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "ops@example.com", msgs[0].To)
	assert.Equal(t, "[alert] 2 social platform APIs unhealthy", msgs[0].Subject)
	assert.Contains(t, msgs[0].HTML, "twitter")
	assert.Contains(t, msgs[0].HTML, "reddit")
	assert.NotContains(t, msgs[0].HTML, "linkedin")
}

func TestHealthCheck_BelowThresholdSendsNothing(t *testing.T) {
	h := newHarness(t)
	ex := h.executor(
		healthClient(models.PlatformTwitter, false, 503),
		healthClient(models.PlatformReddit, true, 200),
	)

	d := descriptor(t, TypeHealthCheck, HealthCheckPayload{
		Platforms:  []models.Platform{models.PlatformTwitter, models.PlatformReddit},
		Threshold:  2,
		AlertEmail: "ops@example.com",
	})
	require.NoError(t, ex.Execute(context.Background(), d))
	assert.Empty(t, h.notifier.Messages())
}

func TestHealthCheck_FallsBackToConfiguredAlertAddress(t *testing.T) {
	h := newHarness(t)
	m := metrics.New()
	ex := NewExecutor(Deps{
		Platforms: platform.NewSet(healthClient(models.PlatformDiscord, false, 500)),
		Notifier:  h.notifier,
		Metrics:   m,
	}, Options{
		HealthPlatforms: []models.Platform{models.PlatformDiscord},
		AlertEmail:      "oncall@example.com",
	})

	require.NoError(t, ex.Execute(context.Background(), Descriptor{ID: "h-1", Type: TypeHealthCheck}))

	msgs := h.notifier.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "oncall@example.com", msgs[0].To)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PlatformHealthy.WithLabelValues("discord")))
}

func TestHealthCheck_RejectsUnknownPlatform(t *testing.T) {
	h := newHarness(t)
	d := descriptor(t, TypeHealthCheck, map[string]interface{}{"platforms": []string{"myspace"}})
	err := h.executor().Execute(context.Background(), d)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestTrendMonitor_AcceptsPayload(t *testing.T) {
	h := newHarness(t)
	d := descriptor(t, TypeTrendMonitor, TrendMonitorPayload{
		UserID:    "user-1",
		Platforms: []models.Platform{models.PlatformReddit},
		Keywords:  []string{"golang"},
	})
	assert.NoError(t, h.executor().Execute(context.Background(), d))

	bad := descriptor(t, TypeTrendMonitor, TrendMonitorPayload{})
	assert.ErrorIs(t, h.executor().Execute(context.Background(), bad), ErrInvalidPayload)
}

func TestEngagementPull_NoPostsMakesNoCalls(t *testing.T) {
	h := newHarness(t)
	client := newMockClient(models.PlatformTwitter)
	h.seedAccount(t, "user-1", models.PlatformTwitter)
	// Outside the lookback window
	h.seedPosted(t, "user-1", models.PlatformTwitter, "t-old", time.Now().Add(-72*time.Hour))

	d := descriptor(t, TypeEngagementPull, EngagementPullPayload{UserID: "user-1", Platform: models.PlatformTwitter, LookbackHours: 24})
	require.NoError(t, h.executor(client).Execute(context.Background(), d))

	client.AssertNotCalled(t, "GetPostEngagement", mock.Anything, mock.Anything)
	assert.Empty(t, h.tracker.Events())
}

func TestEngagementPull_UpdatesRecentPosts(t *testing.T) {
	h := newHarness(t)
	client := newMockClient(models.PlatformTwitter)
	client.On("GetPostEngagement", "stored-access-token", "t-1").
		Return(models.Metrics{"likes": 12, "retweets": 3}, nil)
	client.On("GetPostEngagement", "stored-access-token", "t-2").
		Return(models.Metrics{"likes": 0, "retweets": 0}, nil)

	h.seedAccount(t, "user-1", models.PlatformTwitter)
	first := h.seedPosted(t, "user-1", models.PlatformTwitter, "t-1", time.Now().Add(-time.Hour))
	second := h.seedPosted(t, "user-1", models.PlatformTwitter, "t-2", time.Now().Add(-2*time.Hour))

	d := descriptor(t, TypeEngagementPull, EngagementPullPayload{UserID: "user-1", Platform: models.PlatformTwitter})
	require.NoError(t, h.executor(client).Execute(context.Background(), d))

	assert.Equal(t, 12.0, h.reload(t, first).Engagement["likes"])
	assert.Equal(t, 0.0, h.reload(t, second).Engagement["retweets"])
	client.AssertExpectations(t)
	client.AssertNotCalled(t, "ValidateToken", mock.Anything)
}

func TestEngagementPull_UnavailableMetricsKeepStoredValues(t *testing.T) {
	h := newHarness(t)
	unavailable := fmt.Errorf("%w: status 503", platform.ErrMetricsUnavailable)
	client := newMockClient(models.PlatformTwitter)
	client.On("GetPostEngagement", "stored-access-token", "t-1").
		Return(models.Metrics{"likes": 0, "retweets": 0}, unavailable)
	client.On("GetPostEngagement", "stored-access-token", "t-2").
		Return(models.Metrics{"likes": 9, "retweets": 2}, nil)

	h.seedAccount(t, "user-1", models.PlatformTwitter)
	failing := h.seedPosted(t, "user-1", models.PlatformTwitter, "t-1", time.Now().Add(-time.Hour))
	working := h.seedPosted(t, "user-1", models.PlatformTwitter, "t-2", time.Now().Add(-2*time.Hour))
	require.NoError(t, h.repo.UpdateEngagement(context.Background(), failing.ID, "user-1", models.Metrics{"likes": 40, "retweets": 7}))

	d := descriptor(t, TypeEngagementPull, EngagementPullPayload{UserID: "user-1", Platform: models.PlatformTwitter})
	require.NoError(t, h.executor(client).Execute(context.Background(), d))

	assert.Equal(t, models.Metrics{"likes": 40, "retweets": 7}, h.reload(t, failing).Engagement)
	assert.Equal(t, 9.0, h.reload(t, working).Engagement["likes"])
	client.AssertExpectations(t)
}

func TestEngagementPull_RateLimitStopsBatch(t *testing.T) {
	h := newHarness(t)
	limited := &ratelimit.LimitError{Platform: "twitter", Op: ratelimit.OpRead, RetryAfter: 30 * time.Second}
	client := newMockClient(models.PlatformTwitter)
	client.On("GetPostEngagement", "stored-access-token", "t-1").Return(models.Metrics{"likes": 5}, nil)
	client.On("GetPostEngagement", "stored-access-token", "t-2").Return(models.Metrics(nil), limited)

	h.seedAccount(t, "user-1", models.PlatformTwitter)
	// Newest first: t-1 is pulled before t-2
	first := h.seedPosted(t, "user-1", models.PlatformTwitter, "t-1", time.Now().Add(-time.Hour))
	h.seedPosted(t, "user-1", models.PlatformTwitter, "t-2", time.Now().Add(-2*time.Hour))
	h.seedPosted(t, "user-1", models.PlatformTwitter, "t-3", time.Now().Add(-3*time.Hour))

	d := descriptor(t, TypeEngagementPull, EngagementPullPayload{UserID: "user-1", Platform: models.PlatformTwitter})
	err := h.executor(client).Execute(context.Background(), d)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ratelimit.ErrRateLimited))
	assert.Equal(t, 30*time.Second, RetryAfter(err))

	assert.Equal(t, 5.0, h.reload(t, first).Engagement["likes"])
	client.AssertNotCalled(t, "GetPostEngagement", "stored-access-token", "t-3")
}

func TestEngagementPull_MissingAccountIsCaptured(t *testing.T) {
	h := newHarness(t)
	client := newMockClient(models.PlatformReddit)
	h.seedPosted(t, "user-1", models.PlatformReddit, "r-1", time.Now().Add(-time.Hour))

	d := descriptor(t, TypeEngagementPull, EngagementPullPayload{UserID: "user-1", Platform: models.PlatformReddit})
	err := h.executor(client).Execute(context.Background(), d)
	require.Error(t, err)
	assert.True(t, Retryable(err))

	events := h.tracker.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "user-1", events[0].Tags["user_id"])
	assert.Equal(t, "reddit", events[0].Tags["platform"])
	assert.Equal(t, string(TypeEngagementPull), events[0].Tags["job_type"])
	client.AssertNotCalled(t, "GetPostEngagement", mock.Anything, mock.Anything)
}

func TestClampLookback(t *testing.T) {
	tests := []struct {
		name     string
		hours    int
		fallback int
		want     time.Duration
	}{
		{name: "default", hours: 0, fallback: 0, want: 24 * time.Hour},
		{name: "configured fallback", hours: 0, fallback: 48, want: 48 * time.Hour},
		{name: "explicit", hours: 6, fallback: 48, want: 6 * time.Hour},
		{name: "negative pinned to one hour", hours: -5, fallback: 0, want: time.Hour},
		{name: "capped at a week", hours: 1000, fallback: 0, want: 168 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clampLookback(tt.hours, tt.fallback))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.False(t, Retryable(ErrInvalidPayload))
	assert.False(t, Retryable(ErrUnknownJobType))
	assert.True(t, Retryable(errors.New("connection refused")))
	assert.True(t, Retryable(&ratelimit.LimitError{Platform: "x", Op: ratelimit.OpPost}))
}
