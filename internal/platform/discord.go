package platform

import (
	"context"
	"net/http"

	"github.com/social-agent/internal/models"
)

const discordBaseURL = "https://discord.com/api/v10"

// Discord validates OAuth identity; messages are not published
type Discord struct {
	base
}

var _ Client = (*Discord)(nil)

// NewDiscord creates the Discord adapter
func NewDiscord(baseURL string, deps Deps) *Discord {
	d := &Discord{base: newBase(models.PlatformDiscord, baseURL, discordBaseURL, deps,
		[]string{"reactions"})}
	// A 429 on the public gateway endpoint means Cloudflare is shedding load
	d.healthy = func(status int) bool {
		return status < http.StatusInternalServerError && status != http.StatusTooManyRequests
	}
	return d
}

func (d *Discord) ValidateToken(ctx context.Context, token string) (Validation, error) {
	return d.validate(ctx, token, "/users/@me", nil)
}

func (d *Discord) GetUserProfile(ctx context.Context, token string) (Result[Profile], error) {
	var me struct {
		ID         string `json:"id"`
		Username   string `json:"username"`
		GlobalName string `json:"global_name"`
	}
	resp, err := d.getJSON(ctx, token, "/users/@me", nil, &me)
	if err != nil {
		if isGovernorError(err) {
			return Result[Profile]{}, err
		}
		return failure[Profile](&d.base, "get profile", resp, err), nil
	}
	if !resp.IsSuccess() || me.ID == "" {
		return failure[Profile](&d.base, "get profile", resp, nil), nil
	}
	display := me.GlobalName
	if display == "" {
		display = me.Username
	}
	return OK(Profile{ID: me.ID, Username: me.Username, DisplayName: display}), nil
}

func (d *Discord) CreatePost(ctx context.Context, token, content string, mediaURLs []string) (Result[Published], error) {
	return NotSupported[Published]("discord publishing"), nil
}

// GetPostEngagement needs a channel id Discord OAuth tokens never carry
func (d *Discord) GetPostEngagement(ctx context.Context, token, postID string) (models.Metrics, error) {
	return d.noMetrics()
}

func (d *Discord) CheckHealth(ctx context.Context) Health {
	return d.probe(ctx, d.baseURL+"/gateway")
}
