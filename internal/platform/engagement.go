package platform

import (
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/social-agent/internal/models"
	"github.com/social-agent/pkg/ratelimit"
)

func isGovernorError(err error) bool {
	return errors.Is(err, ratelimit.ErrRateLimited)
}

// engagementFailure logs a failed metrics fetch and returns the zero-filled map
// with ErrMetricsUnavailable. Governor denials propagate unchanged so a batch can
// stop spending quota.
func (b *base) engagementFailure(postID string, resp *resty.Response, err error) (models.Metrics, error) {
	if err != nil && isGovernorError(err) {
		return b.zeroMetrics(), err
	}

	ev := b.log.Warn().Str("post_id", postID)
	if resp != nil {
		ev = ev.Int("status", resp.StatusCode())
	}
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("Engagement fetch failed, returning zeroed metrics")

	switch {
	case err != nil:
		return b.zeroMetrics(), fmt.Errorf("%w: %s", ErrMetricsUnavailable, err.Error())
	case resp != nil:
		return b.zeroMetrics(), fmt.Errorf("%w: status %d", ErrMetricsUnavailable, resp.StatusCode())
	default:
		return b.zeroMetrics(), ErrMetricsUnavailable
	}
}

// noMetrics is the answer for platforms without a metrics endpoint
func (b *base) noMetrics() (models.Metrics, error) {
	return b.zeroMetrics(), fmt.Errorf("%w: %s has no metrics endpoint", ErrMetricsUnavailable, b.platform)
}
