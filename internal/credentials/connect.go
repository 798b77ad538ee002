package credentials

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/social-agent/internal/config"
	"github.com/social-agent/internal/models"
	"github.com/social-agent/internal/platform"
	"github.com/social-agent/internal/storage"
	"github.com/social-agent/internal/vault"
	"github.com/social-agent/pkg/logger"
)

// Connector runs the authorization-code flow and stores the resulting account
type Connector struct {
	cfg       *config.Config
	vault     *vault.Vault
	accounts  storage.AccountStore
	platforms *platform.Set
	http      *http.Client
	log       *logger.Logger
}

// NewConnector creates a Connector; httpClient may be nil
func NewConnector(cfg *config.Config, v *vault.Vault, accounts storage.AccountStore, platforms *platform.Set, httpClient *http.Client, log *logger.Logger) *Connector {
	if log == nil {
		log = logger.Nop()
	}
	return &Connector{
		cfg:       cfg,
		vault:     v,
		accounts:  accounts,
		platforms: platforms,
		http:      httpClient,
		log:       log.WithComponent("connect"),
	}
}

// GenerateState creates a random state for OAuth CSRF protection
func GenerateState() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// AuthURL returns the consent URL the user should open
func (c *Connector) AuthURL(p models.Platform, state string) (string, error) {
	oc, ok := oauthConfig(c.cfg, p)
	if !ok || oc.Endpoint.AuthURL == "" {
		return "", fmt.Errorf("%w: %s", ErrNoRefreshPath, p)
	}
	return oc.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// Exchange trades an authorization code for tokens, resolves the platform
// identity and upserts the user's account for that platform.
func (c *Connector) Exchange(ctx context.Context, p models.Platform, userID, code, notifyEmail string) (*models.SocialAccount, error) {
	log := c.log.WithPlatform(string(p)).WithUserID(userID)

	oc, ok := oauthConfig(c.cfg, p)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoRefreshPath, p)
	}
	client, err := c.platforms.Get(p)
	if err != nil {
		return nil, err
	}

	log.Info().Msg("Exchanging authorization code for token")

	tok, err := oc.Exchange(withHTTPClient(ctx, c.http), code)
	if err != nil {
		log.Error().Err(err).Msg("Failed to exchange code")
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	return c.store(ctx, client, userID, notifyEmail, tok.AccessToken, tok.RefreshToken, log)
}

// Store saves tokens obtained outside the code flow, after resolving the
// platform identity they belong to
func (c *Connector) Store(ctx context.Context, p models.Platform, userID, accessToken, refreshToken, notifyEmail string) (*models.SocialAccount, error) {
	client, err := c.platforms.Get(p)
	if err != nil {
		return nil, err
	}
	return c.store(ctx, client, userID, notifyEmail, accessToken, refreshToken, c.log.WithPlatform(string(p)).WithUserID(userID))
}

func (c *Connector) store(ctx context.Context, client platform.Client, userID, notifyEmail, accessToken, refreshToken string, log *logger.Logger) (*models.SocialAccount, error) {
	p := client.Platform()
	profile, err := client.GetUserProfile(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if !profile.IsOK() {
		return nil, fmt.Errorf("resolve %s profile: %s", p, profile.Reason)
	}

	accessEnc, err := c.vault.Encrypt(accessToken)
	if err != nil {
		return nil, fmt.Errorf("encrypt access token: %w", err)
	}
	var refreshEnc string
	if refreshToken != "" {
		if refreshEnc, err = c.vault.Encrypt(refreshToken); err != nil {
			return nil, fmt.Errorf("encrypt refresh token: %w", err)
		}
	}

	now := time.Now().UTC()
	account := &models.SocialAccount{
		UserID:          userID,
		Platform:        p,
		PlatformUserID:  profile.Value.ID,
		Username:        profile.Value.Username,
		NotifyEmail:     notifyEmail,
		AccessTokenEnc:  accessEnc,
		RefreshTokenEnc: refreshEnc,
		IsValid:         true,
		LastValidatedAt: &now,
	}
	if err := c.accounts.SaveAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("save account: %w", err)
	}

	log.Info().Str("username", account.Username).Msg("Account connected")
	return account, nil
}
