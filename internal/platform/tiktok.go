package platform

import (
	"context"
	"net/http"

	"github.com/social-agent/internal/models"
	"github.com/social-agent/pkg/ratelimit"
)

const tiktokBaseURL = "https://open.tiktokapis.com"

// TikTok reads the Display API; video publishing is not implemented
type TikTok struct {
	base
}

var _ Client = (*TikTok)(nil)

// NewTikTok creates the TikTok adapter
func NewTikTok(baseURL string, deps Deps) *TikTok {
	return &TikTok{base: newBase(models.PlatformTikTok, baseURL, tiktokBaseURL, deps,
		[]string{"views", "likes", "comments", "shares"})}
}

var tiktokUserFields = map[string]string{"fields": "open_id,union_id,display_name,username"}

func (t *TikTok) ValidateToken(ctx context.Context, token string) (Validation, error) {
	return t.validate(ctx, token, "/v2/user/info/", tiktokUserFields)
}

func (t *TikTok) GetUserProfile(ctx context.Context, token string) (Result[Profile], error) {
	var info struct {
		Data struct {
			User struct {
				OpenID      string `json:"open_id"`
				DisplayName string `json:"display_name"`
				Username    string `json:"username"`
			} `json:"user"`
		} `json:"data"`
	}
	resp, err := t.getJSON(ctx, token, "/v2/user/info/", tiktokUserFields, &info)
	if err != nil {
		if isGovernorError(err) {
			return Result[Profile]{}, err
		}
		return failure[Profile](&t.base, "get profile", resp, err), nil
	}
	u := info.Data.User
	if !resp.IsSuccess() || u.OpenID == "" {
		return failure[Profile](&t.base, "get profile", resp, nil), nil
	}
	return OK(Profile{ID: u.OpenID, Username: u.Username, DisplayName: u.DisplayName}), nil
}

func (t *TikTok) CreatePost(ctx context.Context, token, content string, mediaURLs []string) (Result[Published], error) {
	return NotSupported[Published]("tiktok publishing"), nil
}

func (t *TikTok) GetPostEngagement(ctx context.Context, token, postID string) (models.Metrics, error) {
	resp, err := t.call(ctx, request{
		op:     ratelimit.OpRead,
		method: http.MethodPost,
		path:   "/v2/video/query/",
		token:  token,
		query:  map[string]string{"fields": "id,like_count,comment_count,share_count,view_count"},
		body: map[string]interface{}{
			"filters": map[string][]string{"video_ids": {postID}},
		},
	})
	if err != nil || !resp.IsSuccess() {
		return t.engagementFailure(postID, resp, err)
	}

	var query struct {
		Data struct {
			Videos []struct {
				LikeCount    float64 `json:"like_count"`
				CommentCount float64 `json:"comment_count"`
				ShareCount   float64 `json:"share_count"`
				ViewCount    float64 `json:"view_count"`
			} `json:"videos"`
		} `json:"data"`
	}
	if err := decode(resp, &query); err != nil || len(query.Data.Videos) == 0 {
		return t.engagementFailure(postID, resp, err)
	}
	v := query.Data.Videos[0]
	return t.metricsFrom(map[string]float64{
		"views":    v.ViewCount,
		"likes":    v.LikeCount,
		"comments": v.CommentCount,
		"shares":   v.ShareCount,
	}), nil
}
