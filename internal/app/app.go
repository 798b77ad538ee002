// Package app assembles the worker's collaborators from configuration.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/social-agent/internal/config"
	"github.com/social-agent/internal/credentials"
	"github.com/social-agent/internal/jobs"
	"github.com/social-agent/internal/metrics"
	"github.com/social-agent/internal/notify"
	"github.com/social-agent/internal/platform"
	"github.com/social-agent/internal/storage"
	"github.com/social-agent/internal/storage/sqlite"
	"github.com/social-agent/internal/tracking"
	"github.com/social-agent/internal/vault"
	"github.com/social-agent/pkg/logger"
	"github.com/social-agent/pkg/ratelimit"
)

// App holds everything a job needs
type App struct {
	Config     *config.Config
	Log        *logger.Logger
	Repo       storage.Repository
	Vault      *vault.Vault
	Governor   *ratelimit.Governor
	Platforms  *platform.Set
	Refresher  *credentials.OAuthRefresher
	Connector  *credentials.Connector
	Metrics    *metrics.Metrics
	Tracker    tracking.Reporter
	Dispatcher *notify.Dispatcher
	Executor   *jobs.Executor

	redis *redis.Client
}

// New opens storage, builds the governor and platform set, and wires the executor
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	v, err := vault.New(cfg.Vault.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise vault: %w", err)
	}

	log.Info().Str("dsn", cfg.Database.DSN).Msg("Using SQLite as primary storage")
	repo, err := sqlite.New(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := repo.Migrate(); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	a := &App{Config: cfg, Log: log, Repo: repo, Vault: v, Metrics: metrics.New()}

	store, err := a.rateLimitStore(ctx)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	a.Governor = ratelimit.NewGovernor(store)
	ratelimit.ApplyDefaults(a.Governor)
	a.Platforms = platform.NewDefaultSet(cfg, a.Governor, log)

	httpClient := &http.Client{Timeout: 30 * time.Second}
	a.Refresher = credentials.NewOAuthRefresher(cfg, v, repo, httpClient, log)
	a.Connector = credentials.NewConnector(cfg, v, repo, a.Platforms, httpClient, log)
	a.Tracker = tracking.NewLogReporter(log)

	var sink notify.Sink = notify.NopSink{}
	if cfg.Notifications.Enabled {
		sink = notify.NewEmailSink(cfg.Notifications, log)
		log.Info().Str("smtp_host", cfg.Notifications.SMTPHost).Msg("Email notifications enabled")
	}
	a.Dispatcher = notify.NewDispatcher(sink, cfg.Notifications.QueueSize, a.Metrics, log)

	a.Executor = jobs.NewExecutor(jobs.Deps{
		Accounts:  repo,
		Posts:     repo,
		Vault:     v,
		Platforms: a.Platforms,
		Governor:  a.Governor,
		Refresher: a.Refresher,
		Notifier:  a.Dispatcher,
		Tracker:   a.Tracker,
		Metrics:   a.Metrics,
		Log:       log,
	}, jobs.OptionsFromConfig(cfg))

	return a, nil
}

func (a *App) rateLimitStore(ctx context.Context) (ratelimit.Store, error) {
	if a.Config.RateLimit.Backend != "redis" {
		a.Log.Info().Msg("Using in-process rate limit windows")
		return ratelimit.NewMemoryStore(), nil
	}

	a.redis = redis.NewClient(&redis.Options{
		Addr: a.Config.RateLimit.RedisAddr,
		DB:   a.Config.RateLimit.RedisDB,
	})
	store := ratelimit.NewRedisStore(a.redis, a.Config.RateLimit.KeyPrefix)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		_ = a.redis.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", a.Config.RateLimit.RedisAddr, err)
	}
	a.Log.Info().Str("addr", a.Config.RateLimit.RedisAddr).Msg("Using shared Redis rate limit windows")
	return store, nil
}

// Close drains pending notifications and releases connections
func (a *App) Close(ctx context.Context) error {
	var firstErr error
	if a.Dispatcher != nil {
		if err := a.Dispatcher.Close(ctx); err != nil {
			firstErr = err
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := a.Repo.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
