package jobs

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/social-agent/internal/credentials"
	"github.com/social-agent/internal/models"
	"github.com/social-agent/internal/notify"
	"github.com/social-agent/internal/storage"
	"github.com/social-agent/pkg/logger"
	"github.com/social-agent/pkg/ratelimit"
)

// User-facing reasons written to error_message
const (
	reasonNoAccount     = "No valid %s account connected. Please connect your account."
	reasonUndecryptable = "Stored %s credentials could not be read. Please reconnect your account."
	reasonReconnect     = "Your %s authorization has expired. Please reconnect your account."
	reasonNoAdapter     = "Publishing to %s is not available."
	reasonGaveUp        = "Publishing to %s gave up after %d attempts: %s"
)

// terminal is a business failure recorded on the post instead of retried
type terminal struct {
	reason string
}

func (t *terminal) Error() string { return t.reason }

func terminalf(format string, p models.Platform) *terminal {
	return &terminal{reason: fmt.Sprintf(format, p)}
}

// runPost publishes one post and records its terminal state
func (e *Executor) runPost(ctx context.Context, d Descriptor, log *logger.Logger) (outcome, error) {
	var payload PostPayload
	if err := decodePayload(d.Payload, &payload); err != nil {
		return "", err
	}
	log = log.WithUserID(payload.UserID).WithPostID(payload.PostID)

	post, err := e.Posts.GetPost(ctx, payload.PostID, payload.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("%w: id=%d", ErrPostNotFound, payload.PostID)
	}
	if err != nil {
		return "", fmt.Errorf("load post: %w", err)
	}
	if post.Status.IsTerminal() {
		log.Info().Str("status", string(post.Status)).Msg("Post already in terminal state, skipping")
		return outcomeDone, nil
	}
	log = log.WithPlatform(string(post.Platform))

	// Check the post quota up front: a denial spends no platform call and leaves the row untouched
	if e.Governor != nil {
		if err := e.Governor.Admit(ctx, string(post.Platform), ratelimit.OpPost); err != nil {
			e.noteRateLimit(err)
			return "", err
		}
	}

	account, token, err := e.resolveCredentials(ctx, post.UserID, post.Platform, log)
	var term *terminal
	if errors.As(err, &term) {
		return e.failPost(ctx, post, account, term.reason, log)
	}
	if err != nil {
		e.noteRateLimit(err)
		return "", err
	}

	client, err := e.Platforms.Get(post.Platform)
	if err != nil {
		return e.failPost(ctx, post, account, fmt.Sprintf(reasonNoAdapter, post.Platform), log)
	}

	if err := e.Posts.MarkPosting(ctx, post.ID, post.UserID); err != nil {
		return "", fmt.Errorf("claim post: %w", err)
	}

	log.Info().Int("content_length", len(post.Content)).Msg("Publishing post")

	res, err := client.CreatePost(ctx, token, post.Content, post.MediaURLs)
	if err != nil {
		e.noteRateLimit(err)
		return "", err
	}
	if !res.IsOK() {
		return e.failPost(ctx, post, account, res.Reason, log)
	}

	if err := e.Posts.MarkPosted(ctx, post.ID, post.UserID, res.Value.PostID, res.Value.URL, e.now()); err != nil {
		// The post is live; retrying would publish it twice
		e.Tracker.Capture(ctx, fmt.Errorf("persist published post: %w", err), e.tags(d, post.UserID, post.Platform))
		log.Error().Err(err).Str("platform_post_id", res.Value.PostID).Msg("Post published but state not saved")
		return outcomeDone, nil
	}

	log.Info().
		Str("platform_post_id", res.Value.PostID).
		Str("url", res.Value.URL).
		Msg("Post published")

	e.notifyPost(account, notify.PostPublished, notify.PostOutcome{
		Platform: string(post.Platform),
		Content:  post.Content,
		URL:      res.Value.URL,
	}, log)
	return outcomeDone, nil
}

// GiveUp marks a post failed once its job has no attempts left, so the
// scheduler stops picking it up and the user hears about it. Other job
// types leave nothing behind to settle.
func (e *Executor) GiveUp(ctx context.Context, d Descriptor, cause error) {
	if d.Type != TypePost {
		return
	}
	log := e.log.WithJob(string(d.Type), d.ID)

	var payload PostPayload
	if err := decodePayload(d.Payload, &payload); err != nil {
		log.Warn().Err(err).Msg("Cannot settle exhausted job")
		return
	}
	log = log.WithUserID(payload.UserID).WithPostID(payload.PostID)

	ctx, cancel := context.WithTimeout(ctx, e.opts.JobTimeout)
	defer cancel()

	post, err := e.Posts.GetPost(ctx, payload.PostID, payload.UserID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load post after final attempt")
		return
	}
	if post.Status.IsTerminal() {
		return
	}
	log = log.WithPlatform(string(post.Platform))

	e.Tracker.Capture(ctx, cause, e.tags(d, post.UserID, post.Platform))
	reason := fmt.Sprintf(reasonGaveUp, post.Platform, d.Attempt, cause.Error())
	account := e.contactAccount(ctx, post.UserID, post.Platform)
	if _, err := e.failPost(ctx, post, account, reason, log); err != nil {
		log.Error().Err(err).Msg("Failed to record exhausted post")
	}
}

// resolveCredentials finds the usable account and returns a token that passed validation.
// A *terminal error means the post cannot be published without user action.
func (e *Executor) resolveCredentials(ctx context.Context, userID string, p models.Platform, log *logger.Logger) (*models.SocialAccount, string, error) {
	account, err := e.Accounts.FindUsableAccount(ctx, userID, p)
	if errors.Is(err, storage.ErrNotFound) {
		log.Warn().Msg("No usable account")
		return e.contactAccount(ctx, userID, p), "", terminalf(reasonNoAccount, p)
	}
	if err != nil {
		return nil, "", fmt.Errorf("load account: %w", err)
	}

	token, err := e.Vault.Decrypt(account.AccessTokenEnc)
	if err != nil {
		log.Error().Err(err).Msg("Failed to decrypt access token")
		reason := fmt.Sprintf(reasonUndecryptable, p)
		e.invalidate(ctx, account, reason, log)
		return account, "", &terminal{reason: reason}
	}

	client, err := e.Platforms.Get(p)
	if err != nil {
		return account, "", terminalf(reasonNoAdapter, p)
	}

	v, err := client.ValidateToken(ctx, token)
	if err != nil {
		return account, "", fmt.Errorf("validate %s token: %w", p, err)
	}
	if v.Valid {
		if err := e.Accounts.MarkAccountValidated(ctx, userID, p, e.now()); err != nil {
			log.Warn().Err(err).Msg("Failed to record validation time")
		}
		return account, token, nil
	}

	log.Info().Str("reason", v.Error).Msg("Access token rejected")

	if !account.HasRefreshToken() || e.Refresher == nil {
		reason := fmt.Sprintf(reasonReconnect, p)
		e.invalidate(ctx, account, reason, log)
		return account, "", &terminal{reason: reason}
	}

	fresh, err := e.Refresher.Refresh(ctx, p, userID, account.RefreshTokenEnc)
	if errors.Is(err, credentials.ErrNoRefreshPath) || errors.Is(err, credentials.ErrRefreshFailed) {
		log.Warn().Err(err).Msg("Token refresh failed")
		reason := fmt.Sprintf(reasonReconnect, p)
		e.invalidate(ctx, account, reason, log)
		return account, "", &terminal{reason: reason}
	}
	if err != nil {
		return account, "", fmt.Errorf("refresh %s token: %w", p, err)
	}
	return account, fresh, nil
}

// contactAccount looks up an unusable account only for its notification address
func (e *Executor) contactAccount(ctx context.Context, userID string, p models.Platform) *models.SocialAccount {
	account, err := e.Accounts.GetAccount(ctx, userID, p)
	if err != nil {
		return nil
	}
	return account
}

func (e *Executor) invalidate(ctx context.Context, account *models.SocialAccount, reason string, log *logger.Logger) {
	if err := e.Accounts.MarkAccountInvalid(ctx, account.UserID, account.Platform, reason); err != nil {
		log.Error().Err(err).Msg("Failed to mark account invalid")
	}
}

// failPost records a terminal failure. Persisting it is the job's result, so a
// datastore error here is the only thing that makes the attempt retryable.
func (e *Executor) failPost(ctx context.Context, post *models.SocialPost, account *models.SocialAccount, reason string, log *logger.Logger) (outcome, error) {
	if err := e.Posts.MarkFailed(ctx, post.ID, post.UserID, reason); err != nil {
		return "", fmt.Errorf("mark post failed: %w", err)
	}
	log.Warn().Str("reason", reason).Msg("Post failed")

	e.notifyPost(account, notify.PostFailed, notify.PostOutcome{
		Platform:     string(post.Platform),
		Content:      post.Content,
		Reason:       reason,
		DashboardURL: e.opts.DashboardURL,
	}, log)
	return outcomeFailed, nil
}

func (e *Executor) notifyPost(account *models.SocialAccount, render func(string, notify.PostOutcome) (notify.Message, error), o notify.PostOutcome, log *logger.Logger) {
	if account == nil || account.NotifyEmail == "" {
		return
	}
	msg, err := render(account.NotifyEmail, o)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to render notification")
		return
	}
	e.Notifier.Notify(msg)
}

func (e *Executor) tags(d Descriptor, userID string, p models.Platform) map[string]string {
	return map[string]string{
		"job_type": string(d.Type),
		"job_id":   d.ID,
		"attempt":  strconv.Itoa(d.Attempt),
		"user_id":  userID,
		"platform": string(p),
	}
}
