package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newMemoryGovernor(t *testing.T, q Quota) (*Governor, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	store.now = clock.Now
	g := NewGovernor(store)
	g.SetQuota("twitter", OpPost, q)
	return g, clock
}

func TestGovernor_CheckDoesNotReserve(t *testing.T) {
	g, _ := newMemoryGovernor(t, Quota{Limit: 2, Interval: time.Minute})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := g.Check(ctx, "twitter", OpPost)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "check %d should not consume quota", i)
	}
}

func TestGovernor_ExhaustAndRecover(t *testing.T) {
	g, clock := newMemoryGovernor(t, Quota{Limit: 2, Interval: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, g.Admit(ctx, "twitter", OpPost))
		require.NoError(t, g.Record(ctx, "twitter", OpPost))
	}

	d, err := g.Check(ctx, "twitter", OpPost)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.InDelta(t, float64(30*time.Second), float64(d.RetryAfter), float64(time.Millisecond))

	err = g.Admit(ctx, "twitter", OpPost)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))

	var limitErr *LimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, "twitter", limitErr.Platform)
	assert.Equal(t, OpPost, limitErr.Op)
	assert.Greater(t, limitErr.RetryAfterMs(), int64(0))
	assert.Contains(t, limitErr.Error(), "retryAfterMs=")

	clock.Advance(31 * time.Second)
	assert.NoError(t, g.Admit(ctx, "twitter", OpPost))
}

func TestGovernor_RecordWithoutAdmissionKeepsWindow(t *testing.T) {
	g, clock := newMemoryGovernor(t, Quota{Limit: 1, Interval: time.Minute})
	ctx := context.Background()

	require.NoError(t, g.Record(ctx, "twitter", OpPost))
	// Extra records on an exhausted window must not push recovery further out
	for i := 0; i < 10; i++ {
		require.NoError(t, g.Record(ctx, "twitter", OpPost))
	}

	clock.Advance(time.Minute + time.Second)
	d, err := g.Check(ctx, "twitter", OpPost)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestGovernor_PairsAreIndependent(t *testing.T) {
	g, _ := newMemoryGovernor(t, Quota{Limit: 1, Interval: time.Hour})
	g.SetQuota("twitter", OpRead, Quota{Limit: 1, Interval: time.Hour})
	ctx := context.Background()

	require.NoError(t, g.Record(ctx, "twitter", OpPost))

	assert.Error(t, g.Admit(ctx, "twitter", OpPost))
	assert.NoError(t, g.Admit(ctx, "twitter", OpRead))
	assert.NoError(t, g.Admit(ctx, "linkedin", OpPost))
}

func TestGovernor_ConcurrentRecord(t *testing.T) {
	g, _ := newMemoryGovernor(t, Quota{Limit: 10, Interval: time.Hour})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Record(ctx, "twitter", OpPost)
		}()
	}
	wg.Wait()

	d, err := g.Check(ctx, "twitter", OpPost)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestGovernor_FallbackAndInvalidQuota(t *testing.T) {
	g := NewGovernor(NewMemoryStore())
	g.SetQuota("discord", OpPost, Quota{Limit: 0, Interval: time.Second})

	assert.Equal(t, DefaultQuota, g.Quota("discord", OpPost))
	assert.Equal(t, DefaultQuota, g.Quota("unknown", OpRead))

	ApplyDefaults(g)
	assert.Equal(t, 50, g.Quota("twitter", OpPost).Limit)
}
