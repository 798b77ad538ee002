package jobs

import (
	"context"

	"github.com/social-agent/pkg/logger"
)

// runTrendMonitor accepts the job so schedulers can enqueue it. Trend discovery is not wired yet.
func (e *Executor) runTrendMonitor(ctx context.Context, d Descriptor, log *logger.Logger) (outcome, error) {
	var payload TrendMonitorPayload
	if err := decodePayload(d.Payload, &payload); err != nil {
		return "", err
	}
	log.Info().
		Str("user_id", payload.UserID).
		Int("platforms", len(payload.Platforms)).
		Strs("keywords", payload.Keywords).
		Msg("Trend monitor has no discovery source configured, nothing to do")
	return outcomeDone, nil
}
