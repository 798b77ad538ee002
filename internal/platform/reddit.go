package platform

import (
	"context"
	"strings"

	"github.com/social-agent/internal/models"
)

const redditBaseURL = "https://oauth.reddit.com"

// Reddit reads identity and submission stats; submitting is not implemented
type Reddit struct {
	base
}

var _ Client = (*Reddit)(nil)

// NewReddit creates the Reddit adapter
func NewReddit(baseURL string, deps Deps) *Reddit {
	return &Reddit{base: newBase(models.PlatformReddit, baseURL, redditBaseURL, deps,
		[]string{"upvotes", "comments", "score"})}
}

func (r *Reddit) ValidateToken(ctx context.Context, token string) (Validation, error) {
	return r.validate(ctx, token, "/api/v1/me", nil)
}

func (r *Reddit) GetUserProfile(ctx context.Context, token string) (Result[Profile], error) {
	var me struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	resp, err := r.getJSON(ctx, token, "/api/v1/me", nil, &me)
	if err != nil {
		if isGovernorError(err) {
			return Result[Profile]{}, err
		}
		return failure[Profile](&r.base, "get profile", resp, err), nil
	}
	if !resp.IsSuccess() || me.ID == "" {
		return failure[Profile](&r.base, "get profile", resp, nil), nil
	}
	return OK(Profile{ID: me.ID, Username: me.Name, DisplayName: "u/" + me.Name}), nil
}

func (r *Reddit) CreatePost(ctx context.Context, token, content string, mediaURLs []string) (Result[Published], error) {
	return NotSupported[Published]("reddit submission"), nil
}

func (r *Reddit) GetPostEngagement(ctx context.Context, token, postID string) (models.Metrics, error) {
	fullname := postID
	if !strings.HasPrefix(fullname, "t3_") {
		fullname = "t3_" + fullname
	}

	var listing struct {
		Data struct {
			Children []struct {
				Data struct {
					Ups         float64 `json:"ups"`
					Score       float64 `json:"score"`
					NumComments float64 `json:"num_comments"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	resp, err := r.getJSON(ctx, token, "/api/info", map[string]string{"id": fullname}, &listing)
	if err != nil || !resp.IsSuccess() || len(listing.Data.Children) == 0 {
		return r.engagementFailure(postID, resp, err)
	}
	d := listing.Data.Children[0].Data
	return r.metricsFrom(map[string]float64{
		"upvotes":  d.Ups,
		"comments": d.NumComments,
		"score":    d.Score,
	}), nil
}
