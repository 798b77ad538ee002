package platform

import (
	"context"
	"net/http"

	"github.com/social-agent/internal/models"
	"github.com/social-agent/pkg/ratelimit"
)

const snapchatBaseURL = "https://kit.snapchat.com"

// Snapchat only exposes identity through Login Kit
type Snapchat struct {
	base
}

var _ Client = (*Snapchat)(nil)

// NewSnapchat creates the Snapchat Login Kit adapter. The kit root answers
// 404 when up, which the default health rule already counts as healthy.
func NewSnapchat(baseURL string, deps Deps) *Snapchat {
	return &Snapchat{base: newBase(models.PlatformSnapchat, baseURL, snapchatBaseURL, deps,
		[]string{"views", "screenshots"})}
}

const snapchatMeQuery = `{"query":"{me{externalId displayName}}"}`

func (s *Snapchat) me(ctx context.Context, token string) (Result[Profile], error) {
	resp, err := s.call(ctx, request{
		op:     ratelimit.OpRead,
		method: http.MethodPost,
		path:   "/v1/me",
		token:  token,
		body:   snapchatMeQuery,
	})
	if err != nil {
		if isGovernorError(err) {
			return Result[Profile]{}, err
		}
		return failure[Profile](&s.base, "get profile", nil, err), nil
	}
	if !resp.IsSuccess() {
		return failure[Profile](&s.base, "get profile", resp, nil), nil
	}

	var out struct {
		Data struct {
			Me struct {
				ExternalID  string `json:"externalId"`
				DisplayName string `json:"displayName"`
			} `json:"me"`
		} `json:"data"`
	}
	if err := decode(resp, &out); err != nil || out.Data.Me.ExternalID == "" {
		return failure[Profile](&s.base, "get profile", resp, err), nil
	}
	me := out.Data.Me
	return OK(Profile{ID: me.ExternalID, Username: me.DisplayName, DisplayName: me.DisplayName}), nil
}

func (s *Snapchat) ValidateToken(ctx context.Context, token string) (Validation, error) {
	if len(token) < MinTokenLength {
		return Validation{Valid: false, Error: "token is too short to be valid"}, nil
	}
	resp, err := s.call(ctx, request{
		op:     ratelimit.OpRead,
		method: http.MethodPost,
		path:   "/v1/me",
		token:  token,
		body:   snapchatMeQuery,
	})
	if err != nil {
		return Validation{}, err
	}
	switch status := resp.StatusCode(); {
	case resp.IsSuccess():
		return Validation{Valid: true}, nil
	case status >= http.StatusInternalServerError || status == http.StatusTooManyRequests:
		return Validation{}, &UpstreamError{Platform: s.platform, StatusCode: status}
	default:
		return Validation{Valid: false, Error: upstreamMessage(resp)}, nil
	}
}

func (s *Snapchat) GetUserProfile(ctx context.Context, token string) (Result[Profile], error) {
	return s.me(ctx, token)
}

func (s *Snapchat) CreatePost(ctx context.Context, token, content string, mediaURLs []string) (Result[Published], error) {
	return NotSupported[Published]("snapchat publishing"), nil
}

// GetPostEngagement has no Snap Kit endpoint to call
func (s *Snapchat) GetPostEngagement(ctx context.Context, token, postID string) (models.Metrics, error) {
	return s.noMetrics()
}
