package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MemoryStore keeps one token bucket per key in process memory.
// Counters reset on restart; cross-process accuracy needs RedisStore.
type MemoryStore struct {
	mu       sync.Mutex
	limiters map[string]*bucket
	now      func() time.Time
}

type bucket struct {
	quota   Quota
	limiter *rate.Limiter
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		limiters: make(map[string]*bucket),
		now:      time.Now,
	}
}

func (m *MemoryStore) limiter(key string, q Quota) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.limiters[key]
	if !ok || b.quota != q {
		// A full window of q.Limit calls refills evenly over q.Interval
		every := rate.Every(q.Interval / time.Duration(q.Limit))
		b = &bucket{quota: q, limiter: rate.NewLimiter(every, q.Limit)}
		m.limiters[key] = b
	}
	return b.limiter
}

// Check reads the bucket without reserving a token
func (m *MemoryStore) Check(_ context.Context, key string, q Quota) (Decision, error) {
	lim := m.limiter(key, q)
	tokens := lim.TokensAt(m.now())
	if tokens >= 1 {
		return Decision{Allowed: true}, nil
	}

	missing := 1 - tokens
	wait := time.Duration(missing / float64(lim.Limit()) * float64(time.Second))
	if wait <= 0 {
		wait = time.Millisecond
	}
	return Decision{Allowed: false, RetryAfter: wait}, nil
}

// Record takes one token if one is available; an empty bucket is left untouched
func (m *MemoryStore) Record(_ context.Context, key string, q Quota) error {
	m.limiter(key, q).AllowN(m.now(), 1)
	return nil
}
