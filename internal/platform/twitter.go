package platform

import (
	"context"
	"net/http"
	"net/url"

	"github.com/social-agent/internal/models"
	"github.com/social-agent/pkg/ratelimit"
)

const twitterBaseURL = "https://api.twitter.com"

// Twitter talks to the X API v2
type Twitter struct {
	base
}

var _ Client = (*Twitter)(nil)

// NewTwitter creates the Twitter/X adapter
func NewTwitter(baseURL string, deps Deps) *Twitter {
	return &Twitter{base: newBase(models.PlatformTwitter, baseURL, twitterBaseURL, deps,
		[]string{"likes", "retweets", "replies", "quotes", "impressions"})}
}

type twitterUser struct {
	Data struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Name     string `json:"name"`
	} `json:"data"`
}

func (t *Twitter) ValidateToken(ctx context.Context, token string) (Validation, error) {
	return t.validate(ctx, token, "/2/users/me", nil)
}

func (t *Twitter) GetUserProfile(ctx context.Context, token string) (Result[Profile], error) {
	var user twitterUser
	resp, err := t.getJSON(ctx, token, "/2/users/me", nil, &user)
	if err != nil {
		if isGovernorError(err) {
			return Result[Profile]{}, err
		}
		return failure[Profile](&t.base, "get profile", resp, err), nil
	}
	if !resp.IsSuccess() || user.Data.ID == "" {
		return failure[Profile](&t.base, "get profile", resp, nil), nil
	}
	return OK(Profile{ID: user.Data.ID, Username: user.Data.Username, DisplayName: user.Data.Name}), nil
}

func (t *Twitter) CreatePost(ctx context.Context, token, content string, mediaURLs []string) (Result[Published], error) {
	if len(mediaURLs) > 0 {
		// Media needs the v1.1 upload flow first; text is published alone
		t.log.Warn().Int("media_count", len(mediaURLs)).Msg("Media attachments are not uploaded for tweets")
	}

	resp, err := t.call(ctx, request{
		op:     ratelimit.OpPost,
		method: http.MethodPost,
		path:   "/2/tweets",
		token:  token,
		body:   map[string]string{"text": content},
	})
	if err != nil {
		if isGovernorError(err) {
			return Result[Published]{}, err
		}
		return failure[Published](&t.base, "create post", nil, err), nil
	}
	if !resp.IsSuccess() {
		return failure[Published](&t.base, "create post", resp, nil), nil
	}

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := decode(resp, &created); err != nil || created.Data.ID == "" {
		return failure[Published](&t.base, "create post", resp, err), nil
	}

	t.log.Info().Str("tweet_id", created.Data.ID).Msg("Tweet created successfully")
	return OK(Published{
		PostID: created.Data.ID,
		URL:    "https://x.com/i/web/status/" + created.Data.ID,
	}), nil
}

func (t *Twitter) GetPostEngagement(ctx context.Context, token, postID string) (models.Metrics, error) {
	var tweet struct {
		Data struct {
			PublicMetrics struct {
				RetweetCount    float64 `json:"retweet_count"`
				ReplyCount      float64 `json:"reply_count"`
				LikeCount       float64 `json:"like_count"`
				QuoteCount      float64 `json:"quote_count"`
				ImpressionCount float64 `json:"impression_count"`
			} `json:"public_metrics"`
		} `json:"data"`
	}
	resp, err := t.getJSON(ctx, token, "/2/tweets/"+url.PathEscape(postID), map[string]string{"tweet.fields": "public_metrics"}, &tweet)
	if err != nil || !resp.IsSuccess() {
		return t.engagementFailure(postID, resp, err)
	}

	pm := tweet.Data.PublicMetrics
	return t.metricsFrom(map[string]float64{
		"likes":       pm.LikeCount,
		"retweets":    pm.RetweetCount,
		"replies":     pm.ReplyCount,
		"quotes":      pm.QuoteCount,
		"impressions": pm.ImpressionCount,
	}), nil
}
