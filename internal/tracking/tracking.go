// Package tracking collects unexpected errors with their job context.
package tracking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/social-agent/pkg/logger"
)

// Reporter captures an error with tags such as job type, platform and user.
// Capture must not block or fail the caller.
type Reporter interface {
	Capture(ctx context.Context, err error, tags map[string]string) string
}

// Event is one captured error
type Event struct {
	ID         string
	Err        error
	Tags       map[string]string
	CapturedAt time.Time
}

// LogReporter writes each event as a structured error log line
type LogReporter struct {
	log *logger.Logger
}

// NewLogReporter creates a reporter on top of the shared logger
func NewLogReporter(log *logger.Logger) *LogReporter {
	if log == nil {
		log = logger.Nop()
	}
	return &LogReporter{log: log.WithComponent("tracking")}
}

// Capture logs err and returns the event id
func (r *LogReporter) Capture(ctx context.Context, err error, tags map[string]string) string {
	if err == nil {
		return ""
	}
	id := uuid.NewString()
	ev := r.log.Error().Err(err).Str("event_id", id)
	for _, k := range sortedKeys(tags) {
		ev = ev.Str(k, tags[k])
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		ev = ev.Bool("deadline_exceeded", true)
	}
	ev.Msg("Captured error")
	return id
}

// Recorder keeps events in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Capture(_ context.Context, err error, tags map[string]string) string {
	if err == nil {
		return ""
	}
	copied := make(map[string]string, len(tags))
	for k, v := range tags {
		copied[k] = v
	}
	e := Event{ID: uuid.NewString(), Err: err, Tags: copied, CapturedAt: time.Now()}

	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return e.ID
}

// Events returns a copy of everything captured so far
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Nop drops every event
type Nop struct{}

func (Nop) Capture(context.Context, error, map[string]string) string { return "" }

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
