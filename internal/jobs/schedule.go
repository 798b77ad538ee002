package jobs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/social-agent/internal/storage"
	"github.com/social-agent/pkg/logger"
)

const dueScanLimit = 200

// Enqueuer accepts descriptors; *Queue satisfies it
type Enqueuer interface {
	Enqueue(d Descriptor) (Descriptor, error)
}

// Scheduler turns datastore state into queued jobs on cron ticks
type Scheduler struct {
	posts    storage.PostStore
	accounts storage.AccountStore
	queue    Enqueuer
	log      *logger.Logger
	now      func() time.Time
}

// NewScheduler creates a Scheduler
func NewScheduler(posts storage.PostStore, accounts storage.AccountStore, queue Enqueuer, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		posts:    posts,
		accounts: accounts,
		queue:    queue,
		log:      log.WithComponent("scheduler"),
		now:      time.Now,
	}
}

// EnqueueDuePosts queues a social-post job for every scheduled post whose time has come.
// Posts already waiting in the queue are skipped.
func (s *Scheduler) EnqueueDuePosts(ctx context.Context) (int, error) {
	due, err := s.posts.ListDueScheduled(ctx, s.now(), dueScanLimit)
	if err != nil {
		return 0, fmt.Errorf("list due posts: %w", err)
	}

	queued := 0
	for _, p := range due {
		d, err := NewDescriptor(TypePost, PostPayload{PostID: p.ID, UserID: p.UserID})
		if err != nil {
			return queued, err
		}
		d.Key = "post:" + strconv.FormatUint(uint64(p.ID), 10)
		if ok, err := s.enqueue(d); err != nil {
			return queued, err
		} else if ok {
			queued++
		}
	}

	if queued > 0 {
		s.log.Info().Int("due", len(due)).Int("queued", queued).Msg("Scheduled posts queued")
	}
	return queued, nil
}

// EnqueueHealthCheck queues one health sweep using the configured defaults
func (s *Scheduler) EnqueueHealthCheck() error {
	d, err := NewDescriptor(TypeHealthCheck, HealthCheckPayload{})
	if err != nil {
		return err
	}
	d.Key = "health-check"
	_, err = s.enqueue(d)
	return err
}

// EnqueueEngagementPulls queues one engagement pull per valid account
func (s *Scheduler) EnqueueEngagementPulls(ctx context.Context) (int, error) {
	accounts, err := s.accounts.ListAccounts(ctx, storage.AccountFilter{ValidOnly: true})
	if err != nil {
		return 0, fmt.Errorf("list accounts: %w", err)
	}

	queued := 0
	for _, a := range accounts {
		d, err := NewDescriptor(TypeEngagementPull, EngagementPullPayload{UserID: a.UserID, Platform: a.Platform})
		if err != nil {
			return queued, err
		}
		d.Key = "engagement:" + a.UserID + ":" + string(a.Platform)
		if ok, err := s.enqueue(d); err != nil {
			return queued, err
		} else if ok {
			queued++
		}
	}

	s.log.Info().Int("accounts", len(accounts)).Int("queued", queued).Msg("Engagement pulls queued")
	return queued, nil
}

// enqueue treats duplicates as already handled and stops on a full or closed queue
func (s *Scheduler) enqueue(d Descriptor) (bool, error) {
	_, err := s.queue.Enqueue(d)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrDuplicate):
		return false, nil
	default:
		return false, err
	}
}
