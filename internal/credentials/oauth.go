// Package credentials keeps platform OAuth tokens usable: it refreshes expired
// access tokens and completes the connect flow that creates accounts.
package credentials

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/social-agent/internal/config"
	"github.com/social-agent/internal/models"
)

const tokenTimeout = 15 * time.Second

var (
	// ErrNoRefreshPath means the platform has no configured token endpoint or client credentials
	ErrNoRefreshPath = errors.New("no refresh path configured for platform")

	// ErrRefreshFailed means the token endpoint rejected the refresh token; retrying cannot help
	ErrRefreshFailed = errors.New("token refresh failed")
)

// oauthConfig builds the oauth2 client config for one platform.
// The bool is false when the platform cannot exchange tokens.
func oauthConfig(cfg *config.Config, p models.Platform) (*oauth2.Config, bool) {
	pc := cfg.Platform(string(p))
	if pc.TokenURL == "" || pc.ClientID == "" {
		return nil, false
	}
	return &oauth2.Config{
		ClientID:     pc.ClientID,
		ClientSecret: pc.ClientSecret,
		RedirectURL:  pc.RedirectURI,
		Scopes:       pc.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  pc.AuthURL,
			TokenURL: pc.TokenURL,
		},
	}, true
}

// withHTTPClient bounds token endpoint calls; oauth2 reads the client from the context
func withHTTPClient(ctx context.Context, client *http.Client) context.Context {
	if client == nil {
		client = &http.Client{Timeout: tokenTimeout}
	}
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}

// rejected reports whether the token endpoint answered with a client error
func rejected(err error) bool {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return re.Response.StatusCode >= 400 && re.Response.StatusCode < 500
	}
	return false
}
