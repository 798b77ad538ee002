// Package jobs executes the four social job kinds and runs them on an in-process queue.
package jobs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/social-agent/internal/models"
	"github.com/social-agent/pkg/ratelimit"
)

// Type discriminates job payloads
type Type string

const (
	TypePost           Type = "social-post"
	TypeHealthCheck    Type = "social-health-check"
	TypeTrendMonitor   Type = "social-trend-monitor"
	TypeEngagementPull Type = "social-engagement-pull"
)

// AllTypes lists every job kind the executor accepts
var AllTypes = []Type{TypePost, TypeHealthCheck, TypeTrendMonitor, TypeEngagementPull}

func (t Type) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

var (
	// ErrUnknownJobType is returned for descriptors with an unrecognised type
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrInvalidPayload is returned when a payload does not decode or misses required fields
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrPostNotFound is returned when a social-post job names a post the user does not own
	ErrPostNotFound = errors.New("post not found")
)

// Descriptor is one unit of queued work
type Descriptor struct {
	ID      string          `json:"id"`
	Type    Type            `json:"type"`
	Attempt int             `json:"attempt"`
	Payload json.RawMessage `json:"payload"`
	// Key deduplicates queued work; empty means never deduplicated
	Key string `json:"key,omitempty"`
}

// NewDescriptor encodes payload under a fresh id
func NewDescriptor(t Type, payload interface{}) (Descriptor, error) {
	if !t.Valid() {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownJobType, t)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return Descriptor{ID: uuid.NewString(), Type: t, Attempt: 1, Payload: raw}, nil
}

// PostPayload publishes one post
type PostPayload struct {
	PostID uint   `json:"postId"`
	UserID string `json:"userId"`
}

func (p PostPayload) validate() error {
	if p.PostID == 0 || p.UserID == "" {
		return fmt.Errorf("%w: postId and userId are required", ErrInvalidPayload)
	}
	return nil
}

// HealthCheckPayload probes platforms; zero values fall back to configuration
type HealthCheckPayload struct {
	Platforms  []models.Platform `json:"platforms,omitempty"`
	Threshold  int               `json:"threshold,omitempty"`
	AlertEmail string            `json:"alertEmail,omitempty"`
}

func (p HealthCheckPayload) validate() error {
	for _, pl := range p.Platforms {
		if !pl.Valid() {
			return fmt.Errorf("%w: unknown platform %q", ErrInvalidPayload, pl)
		}
	}
	if p.Threshold < 0 {
		return fmt.Errorf("%w: threshold must not be negative", ErrInvalidPayload)
	}
	return nil
}

// TrendMonitorPayload is accepted so upstream schedulers can enqueue it
type TrendMonitorPayload struct {
	UserID    string            `json:"userId"`
	Platforms []models.Platform `json:"platforms,omitempty"`
	Keywords  []string          `json:"keywords,omitempty"`
}

func (p TrendMonitorPayload) validate() error {
	if p.UserID == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidPayload)
	}
	return nil
}

// EngagementPullPayload refreshes metrics for one user's recent posts on one platform
type EngagementPullPayload struct {
	UserID        string          `json:"userId"`
	Platform      models.Platform `json:"platform"`
	LookbackHours int             `json:"lookbackHours,omitempty"`
}

func (p EngagementPullPayload) validate() error {
	if p.UserID == "" || !p.Platform.Valid() {
		return fmt.Errorf("%w: userId and a known platform are required", ErrInvalidPayload)
	}
	return nil
}

const (
	defaultLookbackHours = 24
	maxLookbackHours     = 168
)

// clampLookback maps 0 to the default and pins the rest to 1..168 hours
func clampLookback(hours, fallback int) time.Duration {
	if hours == 0 {
		hours = fallback
	}
	if hours == 0 {
		hours = defaultLookbackHours
	}
	if hours < 1 {
		hours = 1
	}
	if hours > maxLookbackHours {
		hours = maxLookbackHours
	}
	return time.Duration(hours) * time.Hour
}

type validator interface {
	validate() error
}

// decodePayload strictly decodes raw into out and validates it
func decodePayload(raw json.RawMessage, out validator) error {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return out.validate()
}

// Retryable reports whether the queue should try the job again
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrUnknownJobType) &&
		!errors.Is(err, ErrInvalidPayload) &&
		!errors.Is(err, ErrPostNotFound)
}

// RetryAfter returns the governor's suggested delay, or zero
func RetryAfter(err error) time.Duration {
	var le *ratelimit.LimitError
	if errors.As(err, &le) {
		return le.RetryAfter
	}
	return 0
}
