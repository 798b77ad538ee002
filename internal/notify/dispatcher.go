package notify

import (
	"context"
	"sync"
	"time"

	"github.com/social-agent/internal/metrics"
	"github.com/social-agent/pkg/logger"
)

const sendTimeout = 30 * time.Second

// Notifier is what the job executor depends on. Notify never blocks and never fails.
type Notifier interface {
	Notify(msg Message)
}

// Dispatcher sends messages from a background goroutine so notification
// latency and failures never reach the caller.
type Dispatcher struct {
	sink    Sink
	queue   chan Message
	metrics *metrics.Metrics
	log     *logger.Logger

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
}

var _ Notifier = (*Dispatcher)(nil)

// NewDispatcher starts the delivery goroutine; size bounds the backlog
func NewDispatcher(sink Sink, size int, m *metrics.Metrics, log *logger.Logger) *Dispatcher {
	if size < 1 {
		size = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	d := &Dispatcher{
		sink:    sink,
		queue:   make(chan Message, size),
		metrics: m,
		log:     log.WithComponent("notify"),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Notify enqueues msg, dropping it when the backlog is full or the dispatcher is closed
func (d *Dispatcher) Notify(msg Message) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(msg, "dispatcher closed")
		return
	}
	select {
	case d.queue <- msg:
	default:
		d.drop(msg, "queue full")
	}
}

func (d *Dispatcher) drop(msg Message, reason string) {
	d.metrics.Notification(metrics.NotificationDropped)
	d.log.Warn().Str("to", msg.To).Str("subject", msg.Subject).Str("reason", reason).Msg("Notification dropped")
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for msg := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err := d.sink.Send(ctx, msg)
		cancel()

		if err != nil {
			d.metrics.Notification(metrics.NotificationFailed)
			d.log.Error().Err(err).Str("to", msg.To).Str("subject", msg.Subject).Msg("Failed to send notification")
			continue
		}
		d.metrics.Notification(metrics.NotificationSent)
	}
}

// Close stops accepting messages and waits for the backlog to drain or ctx to end
func (d *Dispatcher) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
