package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/social-agent/internal/config"
	"github.com/social-agent/internal/credentials"
	"github.com/social-agent/internal/metrics"
	"github.com/social-agent/internal/models"
	"github.com/social-agent/internal/notify"
	"github.com/social-agent/internal/platform"
	"github.com/social-agent/internal/storage"
	"github.com/social-agent/internal/tracking"
	"github.com/social-agent/internal/vault"
	"github.com/social-agent/pkg/logger"
	"github.com/social-agent/pkg/ratelimit"
)

const (
	defaultJobTimeout = 2 * time.Minute
	defaultBatchSize  = 50
)

// Options tunes the executor; zero values take the defaults
type Options struct {
	JobTimeout            time.Duration
	EngagementLookbackHrs int
	EngagementBatchSize   int
	HealthPlatforms       []models.Platform
	HealthThreshold       int
	AlertEmail            string
	DashboardURL          string
}

// OptionsFromConfig maps the jobs and notifications sections
func OptionsFromConfig(cfg *config.Config) Options {
	platforms := make([]models.Platform, 0, len(cfg.Jobs.HealthCheckPlatforms))
	for _, name := range cfg.Jobs.HealthCheckPlatforms {
		if p := models.Platform(name); p.Valid() {
			platforms = append(platforms, p)
		}
	}
	return Options{
		JobTimeout:            config.MustDuration(cfg.Jobs.JobTimeout, defaultJobTimeout),
		EngagementLookbackHrs: cfg.Jobs.EngagementLookbackHrs,
		EngagementBatchSize:   cfg.Jobs.EngagementBatchSize,
		HealthPlatforms:       platforms,
		HealthThreshold:       cfg.Jobs.HealthFailureThreshold,
		AlertEmail:            cfg.Notifications.AlertEmail,
		DashboardURL:          cfg.Notifications.DashboardBaseURL,
	}
}

// Deps are the collaborators a job may touch. Refresher, Notifier, Tracker and Metrics are optional.
type Deps struct {
	Accounts  storage.AccountStore
	Posts     storage.PostStore
	Vault     *vault.Vault
	Platforms *platform.Set
	Governor  *ratelimit.Governor
	Refresher credentials.Refresher
	Notifier  notify.Notifier
	Tracker   tracking.Reporter
	Metrics   *metrics.Metrics
	Log       *logger.Logger
}

// Executor runs one job attempt per call. A nil error means the job is done,
// including when a terminal failure was recorded on the post. A non-nil error
// is retryable unless Retryable says otherwise.
type Executor struct {
	Deps
	opts Options
	log  *logger.Logger
	now  func() time.Time
}

// NewExecutor builds an executor, filling optional collaborators with no-ops
func NewExecutor(deps Deps, opts Options) *Executor {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Notifier == nil {
		deps.Notifier = discard{}
	}
	if deps.Tracker == nil {
		deps.Tracker = tracking.Nop{}
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = defaultJobTimeout
	}
	if opts.EngagementBatchSize <= 0 {
		opts.EngagementBatchSize = defaultBatchSize
	}
	if opts.HealthThreshold <= 0 {
		opts.HealthThreshold = 1
	}
	if len(opts.HealthPlatforms) == 0 {
		opts.HealthPlatforms = models.AllPlatforms
	}
	return &Executor{
		Deps: deps,
		opts: opts,
		log:  deps.Log.WithComponent("executor"),
		now:  time.Now,
	}
}

// outcome is how a handler finished, for metrics
type outcome string

const (
	outcomeDone   outcome = metrics.OutcomeDone
	outcomeFailed outcome = metrics.OutcomeFailed
)

// Execute dispatches d to its handler under the job timeout
func (e *Executor) Execute(ctx context.Context, d Descriptor) error {
	log := e.log.WithJob(string(d.Type), d.ID)
	start := e.now()

	ctx, cancel := context.WithTimeout(ctx, e.opts.JobTimeout)
	defer cancel()

	var (
		out outcome
		err error
	)
	switch d.Type {
	case TypePost:
		out, err = e.runPost(ctx, d, log)
	case TypeHealthCheck:
		out, err = e.runHealthCheck(ctx, d, log)
	case TypeTrendMonitor:
		out, err = e.runTrendMonitor(ctx, d, log)
	case TypeEngagementPull:
		out, err = e.runEngagementPull(ctx, d, log)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownJobType, d.Type)
	}

	took := e.now().Sub(start)
	switch {
	case err == nil:
		e.Metrics.ObserveJob(string(d.Type), string(out), took)
		log.Info().Str("outcome", string(out)).Dur("took", took).Msg("Job finished")
	case Retryable(err):
		e.Metrics.ObserveJob(string(d.Type), metrics.OutcomeRetry, took)
		ev := log.Warn().Err(err).Int("attempt", d.Attempt).Dur("took", took)
		if ra := RetryAfter(err); ra > 0 {
			ev = ev.Int64("retry_after_ms", ra.Milliseconds())
		}
		ev.Msg("Job attempt failed, retryable")
	default:
		e.Metrics.ObserveJob(string(d.Type), metrics.OutcomeFailed, took)
		log.Error().Err(err).Msg("Job rejected")
	}
	return err
}

// noteRateLimit counts governor denials surfaced by a job
func (e *Executor) noteRateLimit(err error) {
	var le *ratelimit.LimitError
	if errors.As(err, &le) {
		e.Metrics.RateLimited(le.Platform, string(le.Op))
	}
}

type discard struct{}

func (discard) Notify(notify.Message) {}
