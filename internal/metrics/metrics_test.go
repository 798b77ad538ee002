package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveJob("social-post", OutcomeDone, 20*time.Millisecond)
	m.ObserveJob("social-post", OutcomeDone, 30*time.Millisecond)
	m.ObserveJob("social-post", OutcomeRetry, time.Millisecond)
	m.RateLimited("twitter", "post")
	m.Notification(NotificationDropped)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("social-post", OutcomeDone)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("social-post", OutcomeRetry)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitRejections.WithLabelValues("twitter", "post")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues(NotificationDropped)))
}

func TestMetrics_PlatformHealth(t *testing.T) {
	m := New()

	m.SetPlatformHealth("reddit", true, 150*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlatformHealthy.WithLabelValues("reddit")))
	assert.InDelta(t, 0.15, testutil.ToFloat64(m.PlatformLatency.WithLabelValues("reddit")), 1e-9)

	m.SetPlatformHealth("reddit", false, 0)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PlatformHealthy.WithLabelValues("reddit")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveJob("x", OutcomeDone, time.Second)
		m.SetPlatformHealth("x", true, time.Second)
		m.RateLimited("x", "read")
		m.Notification(NotificationSent)
		m.SetQueueDepth(3)
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.SetQueueDepth(4)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "social_queue_depth 4"))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
