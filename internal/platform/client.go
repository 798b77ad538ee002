// Package platform adapts each social network's REST dialect to one capability contract.
//
// Adapters never return errors for upstream failures. A failed or unsupported call is a
// Result with OutcomeFailed or OutcomeNotSupported. The returned error is reserved for
// conditions the job executor must act on: a rate governor denial raised before any I/O,
// transport or 5xx failures while validating a token, and ErrMetricsUnavailable when an
// engagement fetch produced no real numbers.
package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/social-agent/internal/models"
)

// ErrUnknownPlatform is returned by Set.Get for platforms without an adapter
var ErrUnknownPlatform = errors.New("unknown platform")

// ErrMetricsUnavailable accompanies the zero-filled map when a metrics fetch failed
// or the platform has nothing to fetch. Callers must not store those zeros.
var ErrMetricsUnavailable = errors.New("engagement metrics unavailable")

// Client is the capability contract every platform adapter satisfies
type Client interface {
	Platform() models.Platform
	ValidateToken(ctx context.Context, token string) (Validation, error)
	GetUserProfile(ctx context.Context, token string) (Result[Profile], error)
	CreatePost(ctx context.Context, token, content string, mediaURLs []string) (Result[Published], error)
	GetPostEngagement(ctx context.Context, token, postID string) (models.Metrics, error)
	CheckHealth(ctx context.Context) Health
}

// Outcome tags a Result
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeNotSupported
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotSupported:
		return "not_supported"
	default:
		return "failed"
	}
}

// Result separates "done", "this platform does not do that" and "the call failed"
type Result[T any] struct {
	Outcome Outcome
	Value   T
	Reason  string
}

// OK wraps a successful value
func OK[T any](v T) Result[T] {
	return Result[T]{Outcome: OutcomeOK, Value: v}
}

// NotSupported marks an operation the platform adapter does not implement
func NotSupported[T any](what string) Result[T] {
	return Result[T]{Outcome: OutcomeNotSupported, Reason: what + " is not supported"}
}

// Failed marks an attempted call that did not succeed
func Failed[T any](format string, args ...interface{}) Result[T] {
	return Result[T]{Outcome: OutcomeFailed, Reason: fmt.Sprintf(format, args...)}
}

func (r Result[T]) IsOK() bool { return r.Outcome == OutcomeOK }

// Validation is the outcome of a token probe
type Validation struct {
	Valid bool
	Error string
}

// Profile is the normalized identity of the token owner
type Profile struct {
	ID          string
	Username    string
	DisplayName string
}

// Published identifies a post created on the platform
type Published struct {
	PostID string
	URL    string
}

// Health is the outcome of an unauthenticated liveness probe
type Health struct {
	Platform   models.Platform
	Healthy    bool
	Latency    time.Duration
	StatusCode int
	Error      string
}

// LatencyMs returns the probe latency in milliseconds
func (h Health) LatencyMs() int64 {
	return h.Latency.Milliseconds()
}

// UpstreamError is a transport failure or a retryable status from the platform
type UpstreamError struct {
	Platform   models.Platform
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s upstream error: %v", e.Platform, e.Err)
	}
	return fmt.Sprintf("%s upstream error: status %d", e.Platform, e.StatusCode)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
