// Package metrics exposes the worker's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Job outcomes
const (
	OutcomeDone      = "done"
	OutcomeFailed    = "failed"
	OutcomeRetry     = "retry"
	OutcomeExhausted = "exhausted"
)

// Notification outcomes
const (
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
	NotificationDropped = "dropped"
)

// Metrics holds every collector on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	JobsTotal           *prometheus.CounterVec
	JobDuration         *prometheus.HistogramVec
	PlatformHealthy     *prometheus.GaugeVec
	PlatformLatency     *prometheus.GaugeVec
	RateLimitRejections *prometheus.CounterVec
	NotificationsTotal  *prometheus.CounterVec
	QueueDepth          prometheus.Gauge
}

// New registers all collectors plus the Go and process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		JobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "social_jobs_total",
			Help: "Jobs executed by type and outcome",
		}, []string{"type", "outcome"}),

		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "social_job_duration_seconds",
			Help:    "Job execution time in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),

		PlatformHealthy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "social_platform_healthy",
			Help: "1 when the last health probe of the platform succeeded",
		}, []string{"platform"}),

		PlatformLatency: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "social_platform_probe_latency_seconds",
			Help: "Latency of the last health probe",
		}, []string{"platform"}),

		RateLimitRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "social_ratelimit_rejections_total",
			Help: "Calls denied by the rate governor before reaching the platform",
		}, []string{"platform", "op"}),

		NotificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "social_notifications_total",
			Help: "Notification deliveries by outcome",
		}, []string{"outcome"}),

		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "social_queue_depth",
			Help: "Jobs waiting in the in-process queue",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveJob(jobType, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(jobType, outcome).Inc()
	m.JobDuration.WithLabelValues(jobType).Observe(took.Seconds())
}

func (m *Metrics) SetPlatformHealth(platform string, healthy bool, latency time.Duration) {
	if m == nil {
		return
	}
	v := 0.0
	if healthy {
		v = 1
	}
	m.PlatformHealthy.WithLabelValues(platform).Set(v)
	m.PlatformLatency.WithLabelValues(platform).Set(latency.Seconds())
}

func (m *Metrics) RateLimited(platform, op string) {
	if m == nil {
		return
	}
	m.RateLimitRejections.WithLabelValues(platform, op).Inc()
}

func (m *Metrics) Notification(outcome string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}
