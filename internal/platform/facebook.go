package platform

import (
	"context"
	"net/http"
	"net/url"

	"github.com/social-agent/internal/models"
	"github.com/social-agent/pkg/ratelimit"
)

const facebookBaseURL = "https://graph.facebook.com/v19.0"

// Facebook publishes to the first Page the user manages, using that Page's token
type Facebook struct {
	base
}

var _ Client = (*Facebook)(nil)

// NewFacebook creates the Facebook Graph API adapter
func NewFacebook(baseURL string, deps Deps) *Facebook {
	return &Facebook{base: newBase(models.PlatformFacebook, baseURL, facebookBaseURL, deps,
		[]string{"likes", "comments", "shares"})}
}

type facebookPage struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
}

func (f *Facebook) ValidateToken(ctx context.Context, token string) (Validation, error) {
	return f.validate(ctx, token, "/me", map[string]string{"fields": "id"})
}

func (f *Facebook) GetUserProfile(ctx context.Context, token string) (Result[Profile], error) {
	var me struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	resp, err := f.getJSON(ctx, token, "/me", map[string]string{"fields": "id,name"}, &me)
	if err != nil {
		if isGovernorError(err) {
			return Result[Profile]{}, err
		}
		return failure[Profile](&f.base, "get profile", resp, err), nil
	}
	if !resp.IsSuccess() || me.ID == "" {
		return failure[Profile](&f.base, "get profile", resp, nil), nil
	}
	return OK(Profile{ID: me.ID, Username: me.Name, DisplayName: me.Name}), nil
}

// managedPage discovers the first Page the token owner manages
func (f *Facebook) managedPage(ctx context.Context, token string) (Result[facebookPage], error) {
	var pages struct {
		Data []facebookPage `json:"data"`
	}
	resp, err := f.getJSON(ctx, token, "/me/accounts", map[string]string{"fields": "id,name,access_token"}, &pages)
	if err != nil {
		if isGovernorError(err) {
			return Result[facebookPage]{}, err
		}
		return failure[facebookPage](&f.base, "list pages", resp, err), nil
	}
	if !resp.IsSuccess() {
		return failure[facebookPage](&f.base, "list pages", resp, nil), nil
	}
	if len(pages.Data) == 0 || pages.Data[0].AccessToken == "" {
		return Failed[facebookPage]("no managed Facebook Page found for this account"), nil
	}
	return OK(pages.Data[0]), nil
}

func (f *Facebook) CreatePost(ctx context.Context, token, content string, mediaURLs []string) (Result[Published], error) {
	page, err := f.managedPage(ctx, token)
	if err != nil {
		return Result[Published]{}, err
	}
	if !page.IsOK() {
		return Failed[Published]("%s", page.Reason), nil
	}

	form := map[string]string{"message": content}
	if len(mediaURLs) > 0 {
		form["link"] = mediaURLs[0]
	}

	resp, err := f.call(ctx, request{
		op:     ratelimit.OpPost,
		method: http.MethodPost,
		path:   "/" + page.Value.ID + "/feed",
		token:  page.Value.AccessToken,
		form:   form,
	})
	if err != nil {
		if isGovernorError(err) {
			return Result[Published]{}, err
		}
		return failure[Published](&f.base, "create post", nil, err), nil
	}
	if !resp.IsSuccess() {
		return failure[Published](&f.base, "create post", resp, nil), nil
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := decode(resp, &created); err != nil || created.ID == "" {
		return failure[Published](&f.base, "create post", resp, err), nil
	}

	f.log.Info().Str("page_id", page.Value.ID).Str("fb_post_id", created.ID).Msg("Page post created successfully")
	return OK(Published{PostID: created.ID, URL: "https://www.facebook.com/" + created.ID}), nil
}

func (f *Facebook) GetPostEngagement(ctx context.Context, token, postID string) (models.Metrics, error) {
	var post struct {
		Reactions struct {
			Summary struct {
				TotalCount float64 `json:"total_count"`
			} `json:"summary"`
		} `json:"reactions"`
		Comments struct {
			Summary struct {
				TotalCount float64 `json:"total_count"`
			} `json:"summary"`
		} `json:"comments"`
		Shares struct {
			Count float64 `json:"count"`
		} `json:"shares"`
	}
	resp, err := f.getJSON(ctx, token, "/"+url.PathEscape(postID), map[string]string{
		"fields": "reactions.summary(total_count),comments.summary(total_count),shares",
	}, &post)
	if err != nil || !resp.IsSuccess() {
		return f.engagementFailure(postID, resp, err)
	}
	return f.metricsFrom(map[string]float64{
		"likes":    post.Reactions.Summary.TotalCount,
		"comments": post.Comments.Summary.TotalCount,
		"shares":   post.Shares.Count,
	}), nil
}
