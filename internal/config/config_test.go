package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "vault:\n  key: from-file-key-0123456789\n"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.Equal(t, 24, cfg.Jobs.EngagementLookbackHrs)
	assert.Equal(t, 50, cfg.Jobs.EngagementBatchSize)
	assert.Equal(t, 2, cfg.Jobs.HealthFailureThreshold)
	assert.Len(t, cfg.Jobs.HealthCheckPlatforms, 10)
	assert.Equal(t, "https://www.linkedin.com/oauth/v2/accessToken", cfg.Platform("linkedin").TokenURL)
	assert.Equal(t, "from-file-key-0123456789", cfg.Vault.Key)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnv(t *testing.T) {
	t.Setenv("SOCIAL_VAULT_KEY", "env-key-overrides-0123456789")
	t.Setenv("SOCIAL_TWITTER_CLIENT_ID", "tw-client")

	path := writeConfig(t, `
vault:
  key: file-key-0123456789
platforms:
  twitter:
    base_url: http://localhost:9999
    post_limit: 3
    post_interval: 1h
jobs:
  workers: 8
  health_failure_threshold: 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key-overrides-0123456789", cfg.Vault.Key)
	tw := cfg.Platform("twitter")
	assert.Equal(t, "http://localhost:9999", tw.BaseURL)
	assert.Equal(t, "tw-client", tw.ClientID)
	assert.Equal(t, 3, tw.PostLimit)
	assert.Equal(t, 8, cfg.Jobs.Workers)
	assert.Equal(t, 3, cfg.Jobs.HealthFailureThreshold)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Vault:     VaultConfig{Key: "k"},
			RateLimit: RateLimitConfig{Backend: "memory"},
			Jobs:      JobsConfig{Workers: 1, MaxAttempts: 1, HealthFailureThreshold: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing vault key", mutate: func(c *Config) { c.Vault.Key = "" }, wantErr: "vault.key"},
		{name: "no workers", mutate: func(c *Config) { c.Jobs.Workers = 0 }, wantErr: "jobs.workers"},
		{name: "bad backend", mutate: func(c *Config) { c.RateLimit.Backend = "etcd" }, wantErr: "rate_limit.backend"},
		{name: "smtp missing", mutate: func(c *Config) { c.Notifications.Enabled = true }, wantErr: "smtp_host"},
		{
			name: "bad interval",
			mutate: func(c *Config) {
				c.Platforms = map[string]PlatformConfig{"twitter": {PostInterval: "soon"}}
			},
			wantErr: "platforms.twitter.post_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMustDuration(t *testing.T) {
	assert.Equal(t, time.Minute, MustDuration("", time.Minute))
	assert.Equal(t, 2*time.Second, MustDuration("2s", time.Minute))
	assert.Equal(t, time.Minute, MustDuration("garbage", time.Minute))
}
