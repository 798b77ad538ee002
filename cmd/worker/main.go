package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/social-agent/internal/app"
	"github.com/social-agent/internal/config"
	"github.com/social-agent/internal/jobs"
	"github.com/social-agent/pkg/logger"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "social-worker",
		Short: "Background worker for social publishing jobs",
		Long: `Runs the job queue and the cron ticks that feed it: due scheduled posts,
platform health sweeps and engagement pulls. Run it as a service.`,
		RunE: runWorker,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	log.Info().Msg("Starting social worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}

	queue := jobs.NewQueue(a.Executor, jobs.QueueOptions{
		Workers:     cfg.Jobs.Workers,
		Capacity:    cfg.Jobs.Workers * 50,
		MaxAttempts: cfg.Jobs.MaxAttempts,
		Backoff:     config.MustDuration(cfg.Jobs.RetryBackoff, 30*time.Second),
	}, a.Metrics, log)
	queue.Start(ctx)

	scheduler := jobs.NewScheduler(a.Repo, a.Repo, queue, log)

	srv := startHealthServer(cfg.Metrics.Addr, a, log)

	c := cron.New(cron.WithLogger(cronLogger{log}))

	_, err = c.AddFunc(cfg.Jobs.ScheduledPostCron, func() {
		if _, err := scheduler.EnqueueDuePosts(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to queue due posts")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule post scan: %w", err)
	}
	log.Info().Str("cron", cfg.Jobs.ScheduledPostCron).Msg("Scheduled post scan registered")

	_, err = c.AddFunc(cfg.Jobs.HealthCheckCron, func() {
		if err := scheduler.EnqueueHealthCheck(); err != nil && !errors.Is(err, jobs.ErrDuplicate) {
			log.Error().Err(err).Msg("Failed to queue health check")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule health check: %w", err)
	}
	log.Info().Str("cron", cfg.Jobs.HealthCheckCron).Msg("Health check registered")

	_, err = c.AddFunc(cfg.Jobs.EngagementPullCron, func() {
		if _, err := scheduler.EnqueueEngagementPulls(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to queue engagement pulls")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule engagement pulls: %w", err)
	}
	log.Info().Str("cron", cfg.Jobs.EngagementPullCron).Msg("Engagement pull registered")

	c.Start()
	log.Info().Int("workers", cfg.Jobs.Workers).Msg("Worker started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down worker")
	<-c.Stop().Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := queue.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Jobs still running at shutdown")
	}
	cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Health server shutdown failed")
	}
	if err := a.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Shutdown incomplete")
	}
	return nil
}

// cronLogger adapts our logger for cron
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// startHealthServer serves liveness and Prometheus metrics
func startHealthServer(addr string, a *app.App, log *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Social Worker"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", addr).Msg("Health server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Health server failed")
		}
	}()
	return srv
}
