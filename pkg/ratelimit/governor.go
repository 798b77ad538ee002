package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// OpClass groups platform API calls that share a quota
type OpClass string

const (
	OpPost OpClass = "post"
	OpRead OpClass = "read"
)

// ErrRateLimited is matched by every *LimitError
var ErrRateLimited = errors.New("rate limited")

// Quota is a fixed budget of calls per interval
type Quota struct {
	Limit    int
	Interval time.Duration
}

func (q Quota) valid() bool {
	return q.Limit > 0 && q.Interval > 0
}

// Decision is the outcome of a quota check
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RetryAfterMs returns the wait before the next permitted call in milliseconds
func (d Decision) RetryAfterMs() int64 {
	return d.RetryAfter.Milliseconds()
}

// LimitError is returned when the governor denies a call
type LimitError struct {
	Platform   string
	Op         OpClass
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limited: %s %s calls exhausted, retryAfterMs=%d", e.Platform, e.Op, e.RetryAfterMs())
}

// Is makes errors.Is(err, ErrRateLimited) match
func (e *LimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// RetryAfterMs returns the wait before the next permitted call in milliseconds
func (e *LimitError) RetryAfterMs() int64 {
	return e.RetryAfter.Milliseconds()
}

// Store keeps the per-key call accounting.
// Check must not reserve capacity; Record charges one call only when the
// window still has room, so an unadmitted Record never pushes it out of sync.
type Store interface {
	Check(ctx context.Context, key string, q Quota) (Decision, error)
	Record(ctx context.Context, key string, q Quota) error
}

// Governor admits or rejects platform calls per (platform, op class)
type Governor struct {
	store    Store
	fallback Quota

	mu     sync.RWMutex
	quotas map[string]Quota
}

// NewGovernor creates a governor over the given store.
// Pairs without an explicit quota use DefaultQuota.
func NewGovernor(store Store) *Governor {
	return &Governor{
		store:    store,
		fallback: DefaultQuota,
		quotas:   make(map[string]Quota),
	}
}

// SetQuota configures the budget for a platform and op class
func (g *Governor) SetQuota(platform string, op OpClass, q Quota) {
	if !q.valid() {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.quotas[key(platform, op)] = q
}

// Quota returns the budget in force for a platform and op class
func (g *Governor) Quota(platform string, op OpClass) Quota {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if q, ok := g.quotas[key(platform, op)]; ok {
		return q
	}
	return g.fallback
}

// Check reports whether a call may be made now without charging for it
func (g *Governor) Check(ctx context.Context, platform string, op OpClass) (Decision, error) {
	return g.store.Check(ctx, key(platform, op), g.Quota(platform, op))
}

// Record charges one call against the window. Call only after a successful call.
func (g *Governor) Record(ctx context.Context, platform string, op OpClass) error {
	return g.store.Record(ctx, key(platform, op), g.Quota(platform, op))
}

// Admit checks the quota and converts a denial into a *LimitError
func (g *Governor) Admit(ctx context.Context, platform string, op OpClass) error {
	d, err := g.Check(ctx, platform, op)
	if err != nil {
		return fmt.Errorf("rate limit check: %w", err)
	}
	if !d.Allowed {
		return &LimitError{Platform: platform, Op: op, RetryAfter: d.RetryAfter}
	}
	return nil
}

func key(platform string, op OpClass) string {
	return platform + ":" + string(op)
}
