package platform

import (
	"context"
	"net/url"

	"github.com/social-agent/internal/models"
)

const instagramBaseURL = "https://graph.instagram.com"

// Instagram reads profile and media insights; publishing is not implemented
type Instagram struct {
	base
}

var _ Client = (*Instagram)(nil)

// NewInstagram creates the Instagram Graph API adapter
func NewInstagram(baseURL string, deps Deps) *Instagram {
	return &Instagram{base: newBase(models.PlatformInstagram, baseURL, instagramBaseURL, deps,
		[]string{"likes", "comments", "saves", "reach"})}
}

func (i *Instagram) ValidateToken(ctx context.Context, token string) (Validation, error) {
	return i.validate(ctx, token, "/me", map[string]string{"fields": "id"})
}

func (i *Instagram) GetUserProfile(ctx context.Context, token string) (Result[Profile], error) {
	var me struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	resp, err := i.getJSON(ctx, token, "/me", map[string]string{"fields": "id,username"}, &me)
	if err != nil {
		if isGovernorError(err) {
			return Result[Profile]{}, err
		}
		return failure[Profile](&i.base, "get profile", resp, err), nil
	}
	if !resp.IsSuccess() || me.ID == "" {
		return failure[Profile](&i.base, "get profile", resp, nil), nil
	}
	return OK(Profile{ID: me.ID, Username: me.Username, DisplayName: me.Username}), nil
}

func (i *Instagram) CreatePost(ctx context.Context, token, content string, mediaURLs []string) (Result[Published], error) {
	return NotSupported[Published]("instagram publishing"), nil
}

func (i *Instagram) GetPostEngagement(ctx context.Context, token, postID string) (models.Metrics, error) {
	var media struct {
		LikeCount     float64 `json:"like_count"`
		CommentsCount float64 `json:"comments_count"`
	}
	resp, err := i.getJSON(ctx, token, "/"+url.PathEscape(postID), map[string]string{"fields": "like_count,comments_count"}, &media)
	if err != nil || !resp.IsSuccess() {
		return i.engagementFailure(postID, resp, err)
	}
	return i.metricsFrom(map[string]float64{
		"likes":    media.LikeCount,
		"comments": media.CommentsCount,
	}), nil
}
