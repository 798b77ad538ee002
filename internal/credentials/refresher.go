package credentials

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/social-agent/internal/config"
	"github.com/social-agent/internal/models"
	"github.com/social-agent/internal/storage"
	"github.com/social-agent/internal/vault"
	"github.com/social-agent/pkg/logger"
)

// Refresher exchanges a stored refresh token for a fresh access token
type Refresher interface {
	// Refresh returns the new plaintext access token after persisting it encrypted.
	// Errors wrapping ErrNoRefreshPath or ErrRefreshFailed are terminal; anything else may be retried.
	Refresh(ctx context.Context, p models.Platform, userID, encryptedRefreshToken string) (string, error)
}

// OAuthRefresher refreshes through each platform's OAuth 2.0 token endpoint
type OAuthRefresher struct {
	cfg      *config.Config
	vault    *vault.Vault
	accounts storage.AccountStore
	http     *http.Client
	log      *logger.Logger
}

var _ Refresher = (*OAuthRefresher)(nil)

// NewOAuthRefresher creates a refresher; httpClient may be nil
func NewOAuthRefresher(cfg *config.Config, v *vault.Vault, accounts storage.AccountStore, httpClient *http.Client, log *logger.Logger) *OAuthRefresher {
	if log == nil {
		log = logger.Nop()
	}
	return &OAuthRefresher{
		cfg:      cfg,
		vault:    v,
		accounts: accounts,
		http:     httpClient,
		log:      log.WithComponent("refresher"),
	}
}

func (r *OAuthRefresher) Refresh(ctx context.Context, p models.Platform, userID, encryptedRefreshToken string) (string, error) {
	log := r.log.WithPlatform(string(p)).WithUserID(userID)

	oc, ok := oauthConfig(r.cfg, p)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoRefreshPath, p)
	}
	if encryptedRefreshToken == "" {
		return "", fmt.Errorf("%w: no refresh token on file", ErrNoRefreshPath)
	}

	refreshToken, err := r.vault.Decrypt(encryptedRefreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: decrypt refresh token: %v", ErrRefreshFailed, err)
	}

	log.Info().Msg("Refreshing access token")

	// An empty access token forces the source to hit the token endpoint
	src := oc.TokenSource(withHTTPClient(ctx, r.http), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		if rejected(err) {
			log.Warn().Err(err).Msg("Refresh token rejected")
			return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
		}
		log.Error().Err(err).Msg("Failed to reach token endpoint")
		return "", fmt.Errorf("refresh %s token: %w", p, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: token endpoint returned no access token", ErrRefreshFailed)
	}

	accessEnc, err := r.vault.Encrypt(tok.AccessToken)
	if err != nil {
		return "", fmt.Errorf("encrypt access token: %w", err)
	}

	// Only persist the refresh token when the platform rotated it
	var refreshEnc string
	if tok.RefreshToken != "" && tok.RefreshToken != refreshToken {
		refreshEnc, err = r.vault.Encrypt(tok.RefreshToken)
		if err != nil {
			return "", fmt.Errorf("encrypt refresh token: %w", err)
		}
	}

	if err := r.accounts.UpdateAccountTokens(ctx, userID, p, accessEnc, refreshEnc); err != nil {
		return "", fmt.Errorf("persist refreshed tokens: %w", err)
	}

	log.Info().
		Time("expires_at", tok.Expiry).
		Bool("rotated", refreshEnc != "").
		Msg("Token refreshed successfully")

	return tok.AccessToken, nil
}
