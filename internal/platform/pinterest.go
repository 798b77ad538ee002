package platform

import (
	"context"
	"net/url"
	"time"

	"github.com/social-agent/internal/models"
)

const pinterestBaseURL = "https://api.pinterest.com"

// Pinterest reads the v5 user account and pin analytics; pin creation is not implemented
type Pinterest struct {
	base
}

var _ Client = (*Pinterest)(nil)

// NewPinterest creates the Pinterest adapter
func NewPinterest(baseURL string, deps Deps) *Pinterest {
	return &Pinterest{base: newBase(models.PlatformPinterest, baseURL, pinterestBaseURL, deps,
		[]string{"impressions", "saves", "clicks"})}
}

func (p *Pinterest) ValidateToken(ctx context.Context, token string) (Validation, error) {
	return p.validate(ctx, token, "/v5/user_account", nil)
}

func (p *Pinterest) GetUserProfile(ctx context.Context, token string) (Result[Profile], error) {
	var account struct {
		ID           string `json:"id"`
		Username     string `json:"username"`
		BusinessName string `json:"business_name"`
	}
	resp, err := p.getJSON(ctx, token, "/v5/user_account", nil, &account)
	if err != nil {
		if isGovernorError(err) {
			return Result[Profile]{}, err
		}
		return failure[Profile](&p.base, "get profile", resp, err), nil
	}
	if !resp.IsSuccess() || account.Username == "" {
		return failure[Profile](&p.base, "get profile", resp, nil), nil
	}

	id := account.ID
	if id == "" {
		id = account.Username
	}
	display := account.BusinessName
	if display == "" {
		display = account.Username
	}
	return OK(Profile{ID: id, Username: account.Username, DisplayName: display}), nil
}

func (p *Pinterest) CreatePost(ctx context.Context, token, content string, mediaURLs []string) (Result[Published], error) {
	return NotSupported[Published]("pinterest pin creation"), nil
}

func (p *Pinterest) GetPostEngagement(ctx context.Context, token, postID string) (models.Metrics, error) {
	now := time.Now().UTC()
	var analytics struct {
		All struct {
			LifetimeMetrics map[string]float64 `json:"lifetime_metrics"`
		} `json:"all"`
	}
	resp, err := p.getJSON(ctx, token, "/v5/pins/"+url.PathEscape(postID)+"/analytics", map[string]string{
		"start_date":   now.AddDate(0, 0, -89).Format("2006-01-02"),
		"end_date":     now.Format("2006-01-02"),
		"metric_types": "IMPRESSION,SAVE,PIN_CLICK",
	}, &analytics)
	if err != nil || !resp.IsSuccess() {
		return p.engagementFailure(postID, resp, err)
	}
	lm := analytics.All.LifetimeMetrics
	return p.metricsFrom(map[string]float64{
		"impressions": lm["IMPRESSION"],
		"saves":       lm["SAVE"],
		"clicks":      lm["PIN_CLICK"],
	}), nil
}
