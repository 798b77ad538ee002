package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/social-agent/internal/metrics"
	"github.com/social-agent/pkg/logger"
)

var (
	// ErrQueueFull is returned by Enqueue when the backlog is at capacity
	ErrQueueFull = errors.New("job queue full")

	// ErrQueueClosed is returned by Enqueue after Stop
	ErrQueueClosed = errors.New("job queue closed")

	// ErrDuplicate is returned when a job with the same key is already queued or running
	ErrDuplicate = errors.New("job already queued")
)

const maxBackoff = 30 * time.Minute

// Handler runs one job attempt
type Handler interface {
	Execute(ctx context.Context, d Descriptor) error
}

// Finisher is implemented by handlers that settle a job's record once it runs out of attempts
type Finisher interface {
	GiveUp(ctx context.Context, d Descriptor, err error)
}

// QueueOptions sizes the worker pool and retry policy
type QueueOptions struct {
	Workers     int
	Capacity    int
	MaxAttempts int
	Backoff     time.Duration
}

// Queue delivers descriptors to a handler from a fixed worker pool. Retryable
// failures are re-enqueued after the governor's retry hint or an exponential backoff.
type Queue struct {
	handler Handler
	opts    QueueOptions
	metrics *metrics.Metrics
	log     *logger.Logger

	jobs chan Descriptor
	wg   sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	inflight map[string]struct{}
	timers   map[*time.Timer]struct{}
	stop     chan struct{}
}

// NewQueue creates a stopped queue; call Start to run workers
func NewQueue(h Handler, opts QueueOptions, m *metrics.Metrics, log *logger.Logger) *Queue {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Capacity < 1 {
		opts.Capacity = 100
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Queue{
		handler:  h,
		opts:     opts,
		metrics:  m,
		log:      log.WithComponent("queue"),
		jobs:     make(chan Descriptor, opts.Capacity),
		inflight: make(map[string]struct{}),
		timers:   make(map[*time.Timer]struct{}),
		stop:     make(chan struct{}),
	}
}

// Start launches the workers. Jobs run under ctx; workers exit when ctx
// ends or Stop is called, finishing the job in hand first.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	q.log.Info().Int("workers", q.opts.Workers).Int("max_attempts", q.opts.MaxAttempts).Msg("Job queue started")
}

// Enqueue adds d without blocking, assigning an id and first attempt when missing
func (q *Queue) Enqueue(d Descriptor) (Descriptor, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Attempt < 1 {
		d.Attempt = 1
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return d, ErrQueueClosed
	}
	if d.Key != "" {
		if _, dup := q.inflight[d.Key]; dup {
			return d, ErrDuplicate
		}
	}

	select {
	case q.jobs <- d:
	default:
		return d, ErrQueueFull
	}
	if d.Key != "" {
		q.inflight[d.Key] = struct{}{}
	}
	q.metrics.SetQueueDepth(len(q.jobs))
	return d, nil
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stop:
			return
		case d := <-q.jobs:
			q.metrics.SetQueueDepth(len(q.jobs))
			q.run(ctx, d)
		}
	}
}

func (q *Queue) run(ctx context.Context, d Descriptor) {
	err := q.handler.Execute(ctx, d)
	if err == nil || !Retryable(err) {
		q.release(d)
		return
	}

	if d.Attempt >= q.opts.MaxAttempts {
		q.metrics.ObserveJob(string(d.Type), metrics.OutcomeExhausted, 0)
		q.log.Error().Err(err).
			Str("job_id", d.ID).
			Str("job_type", string(d.Type)).
			Int("attempts", d.Attempt).
			Msg("Job exhausted its attempts")
		// Settle before releasing the key so the next scheduler tick sees the final state
		if f, ok := q.handler.(Finisher); ok {
			f.GiveUp(ctx, d, err)
		}
		q.release(d)
		return
	}

	delay := q.delay(d.Attempt, err)
	next := d
	next.Attempt++
	q.log.Info().
		Str("job_id", d.ID).
		Str("job_type", string(d.Type)).
		Int("next_attempt", next.Attempt).
		Dur("delay", delay).
		Msg("Scheduling retry")
	q.retryAfter(next, delay)
}

// delay prefers the governor's hint over exponential backoff
func (q *Queue) delay(attempt int, err error) time.Duration {
	if ra := RetryAfter(err); ra > 0 {
		return ra
	}
	d := q.opts.Backoff
	for i := 1; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func (q *Queue) retryAfter(d Descriptor, delay time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		delete(q.inflight, d.Key)
		return
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, t)
		closed := q.closed
		if !closed {
			select {
			case q.jobs <- d:
				q.mu.Unlock()
				return
			default:
			}
		}
		delete(q.inflight, d.Key)
		q.mu.Unlock()
		q.log.Warn().Str("job_id", d.ID).Bool("closed", closed).Msg("Retry dropped")
	})
	q.timers[t] = struct{}{}
}

func (q *Queue) release(d Descriptor) {
	if d.Key == "" {
		return
	}
	q.mu.Lock()
	delete(q.inflight, d.Key)
	q.mu.Unlock()
}

// Len returns the number of jobs waiting for a worker
func (q *Queue) Len() int {
	return len(q.jobs)
}

// Stop rejects new work, cancels pending retries and waits for running jobs.
// Jobs still waiting in the backlog are abandoned.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.stop)
	}
	for t := range q.timers {
		t.Stop()
	}
	q.timers = map[*time.Timer]struct{}{}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.log.Info().Msg("Job queue stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
