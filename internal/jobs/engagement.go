package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/social-agent/internal/platform"
	"github.com/social-agent/internal/storage"
	"github.com/social-agent/pkg/logger"
)

// runEngagementPull refreshes metrics for the user's recent posts on one platform
func (e *Executor) runEngagementPull(ctx context.Context, d Descriptor, log *logger.Logger) (outcome, error) {
	var payload EngagementPullPayload
	if err := decodePayload(d.Payload, &payload); err != nil {
		return "", err
	}
	log = log.WithUserID(payload.UserID).WithPlatform(string(payload.Platform))
	tags := e.tags(d, payload.UserID, payload.Platform)

	since := e.now().Add(-clampLookback(payload.LookbackHours, e.opts.EngagementLookbackHrs))
	posts, err := e.Posts.ListPostedSince(ctx, payload.UserID, payload.Platform, since, e.opts.EngagementBatchSize)
	if err != nil {
		return "", e.batchFailure(ctx, tags, fmt.Errorf("list posted: %w", err))
	}
	if len(posts) == 0 {
		log.Debug().Time("since", since).Msg("No posts in lookback window")
		return outcomeDone, nil
	}

	client, err := e.Platforms.Get(payload.Platform)
	if err != nil {
		return "", e.batchFailure(ctx, tags, err)
	}
	account, err := e.Accounts.FindUsableAccount(ctx, payload.UserID, payload.Platform)
	if errors.Is(err, storage.ErrNotFound) {
		return "", e.batchFailure(ctx, tags, fmt.Errorf("no usable %s account: %w", payload.Platform, err))
	}
	if err != nil {
		return "", e.batchFailure(ctx, tags, fmt.Errorf("load account: %w", err))
	}
	token, err := e.Vault.Decrypt(account.AccessTokenEnc)
	if err != nil {
		return "", e.batchFailure(ctx, tags, fmt.Errorf("decrypt access token: %w", err))
	}

	updated, skipped := 0, 0
	for _, post := range posts {
		if !post.IsPublished() {
			continue
		}
		postLog := log.WithPostID(post.ID)

		m, err := client.GetPostEngagement(ctx, token, *post.PlatformPostID)
		if errors.Is(err, platform.ErrMetricsUnavailable) {
			// Keep whatever was stored last time
			postLog.Warn().Err(err).Msg("No engagement data, skipping")
			skipped++
			continue
		}
		if err != nil {
			// Out of read quota; what was saved so far stays, the rest waits for the retry
			e.noteRateLimit(err)
			log.Warn().Err(err).Int("updated", updated).Msg("Engagement pull stopped early")
			return "", err
		}
		if err := e.Posts.UpdateEngagement(ctx, post.ID, post.UserID, m); err != nil {
			postLog.Warn().Err(err).Msg("Failed to save engagement, skipping")
			continue
		}
		updated++
	}

	log.Info().Int("posts", len(posts)).Int("updated", updated).Int("skipped", skipped).Msg("Engagement pull complete")
	return outcomeDone, nil
}

// batchFailure reports a batch-level error to the tracker and returns it for retry
func (e *Executor) batchFailure(ctx context.Context, tags map[string]string, err error) error {
	e.Tracker.Capture(ctx, err, tags)
	return err
}
