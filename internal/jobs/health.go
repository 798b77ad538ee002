package jobs

import (
	"context"

	"github.com/social-agent/internal/notify"
	"github.com/social-agent/pkg/logger"
)

// runHealthCheck probes platforms and sends one aggregate alert when enough are down
func (e *Executor) runHealthCheck(ctx context.Context, d Descriptor, log *logger.Logger) (outcome, error) {
	var payload HealthCheckPayload
	if len(d.Payload) > 0 {
		if err := decodePayload(d.Payload, &payload); err != nil {
			return "", err
		}
	}

	platforms := payload.Platforms
	if len(platforms) == 0 {
		platforms = e.opts.HealthPlatforms
	}
	threshold := payload.Threshold
	if threshold == 0 {
		threshold = e.opts.HealthThreshold
	}
	alertEmail := payload.AlertEmail
	if alertEmail == "" {
		alertEmail = e.opts.AlertEmail
	}

	results := e.Platforms.CheckAll(ctx, platforms)

	var unhealthy []notify.PlatformStatus
	for _, h := range results {
		e.Metrics.SetPlatformHealth(string(h.Platform), h.Healthy, h.Latency)
		if h.Healthy {
			continue
		}
		unhealthy = append(unhealthy, notify.PlatformStatus{
			Platform:   string(h.Platform),
			StatusCode: h.StatusCode,
			LatencyMs:  h.LatencyMs(),
			Error:      h.Error,
		})
	}

	log.Info().
		Int("checked", len(results)).
		Int("unhealthy", len(unhealthy)).
		Int("threshold", threshold).
		Msg("Platform health check complete")

	if len(unhealthy) < threshold {
		return outcomeDone, nil
	}
	if alertEmail == "" {
		log.Warn().Int("unhealthy", len(unhealthy)).Msg("Health threshold reached but no alert address configured")
		return outcomeDone, nil
	}

	msg, err := notify.HealthAlert(alertEmail, unhealthy)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to render health alert")
		return outcomeDone, nil
	}
	e.Notifier.Notify(msg)
	return outcomeDone, nil
}
