package platform

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/social-agent/internal/models"
	"github.com/social-agent/pkg/ratelimit"
)

const youtubeBaseURL = "https://youtube.googleapis.com"

var errNoChannel = errors.New("no channel found for this account")

// YouTube talks to the Data API v3 through the generated Google client
type YouTube struct {
	base
}

var _ Client = (*YouTube)(nil)

// NewYouTube creates the YouTube Data API adapter
func NewYouTube(baseURL string, deps Deps) *YouTube {
	return &YouTube{base: newBase(models.PlatformYouTube, baseURL, youtubeBaseURL, deps,
		[]string{"views", "likes", "comments"})}
}

// service builds a per-token client; the access token is already minted so no refresh happens here
func (y *YouTube) service(ctx context.Context, token string) (*youtube.Service, error) {
	transport := y.http.GetClient().Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	httpClient := &http.Client{
		Timeout: readTimeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   transport,
		},
	}
	return youtube.NewService(ctx,
		option.WithHTTPClient(httpClient),
		option.WithEndpoint(y.baseURL+"/"),
	)
}

// googleStatus extracts the HTTP status from a googleapi error, 0 for transport failures
func googleStatus(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}

func (y *YouTube) myChannel(ctx context.Context, token string) (*youtube.Channel, error) {
	if err := y.admit(ctx, ratelimit.OpRead); err != nil {
		return nil, err
	}
	svc, err := y.service(ctx, token)
	if err != nil {
		return nil, err
	}
	resp, err := svc.Channels.List([]string{"snippet"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	y.record(ctx, ratelimit.OpRead)
	if len(resp.Items) == 0 {
		return nil, errNoChannel
	}
	return resp.Items[0], nil
}

func (y *YouTube) ValidateToken(ctx context.Context, token string) (Validation, error) {
	if len(token) < MinTokenLength {
		return Validation{Valid: false, Error: "token is too short to be valid"}, nil
	}

	_, err := y.myChannel(ctx, token)
	if err == nil {
		return Validation{Valid: true}, nil
	}
	if isGovernorError(err) {
		return Validation{}, err
	}

	if errors.Is(err, errNoChannel) {
		return Validation{Valid: false, Error: err.Error()}, nil
	}

	switch status := googleStatus(err); {
	case status == 0:
		return Validation{}, &UpstreamError{Platform: y.platform, Err: err}
	case status >= http.StatusInternalServerError || status == http.StatusTooManyRequests:
		return Validation{}, &UpstreamError{Platform: y.platform, StatusCode: status, Err: err}
	default:
		return Validation{Valid: false, Error: err.Error()}, nil
	}
}

func (y *YouTube) GetUserProfile(ctx context.Context, token string) (Result[Profile], error) {
	ch, err := y.myChannel(ctx, token)
	if err != nil {
		if isGovernorError(err) {
			return Result[Profile]{}, err
		}
		return failure[Profile](&y.base, "get profile", nil, err), nil
	}

	username := ch.Id
	display := ch.Id
	if ch.Snippet != nil {
		if ch.Snippet.CustomUrl != "" {
			username = ch.Snippet.CustomUrl
		}
		if ch.Snippet.Title != "" {
			display = ch.Snippet.Title
		}
	}
	return OK(Profile{ID: ch.Id, Username: username, DisplayName: display}), nil
}

func (y *YouTube) CreatePost(ctx context.Context, token, content string, mediaURLs []string) (Result[Published], error) {
	return NotSupported[Published]("youtube video upload"), nil
}

func (y *YouTube) GetPostEngagement(ctx context.Context, token, postID string) (models.Metrics, error) {
	if err := y.admit(ctx, ratelimit.OpRead); err != nil {
		return y.engagementFailure(postID, nil, err)
	}
	svc, err := y.service(ctx, token)
	if err != nil {
		return y.engagementFailure(postID, nil, err)
	}
	resp, err := svc.Videos.List([]string{"statistics"}).Id(postID).Context(ctx).Do()
	if err != nil {
		return y.engagementFailure(postID, nil, err)
	}
	y.record(ctx, ratelimit.OpRead)
	if len(resp.Items) == 0 || resp.Items[0].Statistics == nil {
		return y.engagementFailure(postID, nil, errors.New("video not found"))
	}

	stats := resp.Items[0].Statistics
	return y.metricsFrom(map[string]float64{
		"views":    float64(stats.ViewCount),
		"likes":    float64(stats.LikeCount),
		"comments": float64(stats.CommentCount),
	}), nil
}

