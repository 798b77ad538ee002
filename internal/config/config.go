package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Database      DatabaseConfig            `mapstructure:"database"`
	Vault         VaultConfig               `mapstructure:"vault"`
	Platforms     map[string]PlatformConfig `mapstructure:"platforms"`
	RateLimit     RateLimitConfig           `mapstructure:"rate_limit"`
	Notifications NotificationsConfig       `mapstructure:"notifications"`
	Jobs          JobsConfig                `mapstructure:"jobs"`
	Metrics       MetricsConfig             `mapstructure:"metrics"`
	Logging       LoggingConfig             `mapstructure:"logging"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite
	DSN    string `mapstructure:"dsn"`
}

// VaultConfig holds the process-wide token encryption secret
type VaultConfig struct {
	Key string `mapstructure:"key"`
}

// PlatformConfig holds per-platform API settings
type PlatformConfig struct {
	BaseURL      string   `mapstructure:"base_url"` // override for tests and proxies
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	AuthURL      string   `mapstructure:"auth_url"`
	TokenURL     string   `mapstructure:"token_url"`
	RedirectURI  string   `mapstructure:"redirect_uri"`
	Scopes       []string `mapstructure:"scopes"`
	PostLimit    int      `mapstructure:"post_limit"`
	PostInterval string   `mapstructure:"post_interval"`
	ReadLimit    int      `mapstructure:"read_limit"`
	ReadInterval string   `mapstructure:"read_interval"`
}

// RateLimitConfig selects where quota windows live
type RateLimitConfig struct {
	Backend   string `mapstructure:"backend"` // memory or redis
	RedisAddr string `mapstructure:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// NotificationsConfig holds outbound email settings
type NotificationsConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	SMTPHost         string `mapstructure:"smtp_host"`
	SMTPPort         int    `mapstructure:"smtp_port"`
	SMTPUsername     string `mapstructure:"smtp_username"`
	SMTPPassword     string `mapstructure:"smtp_password"`
	From             string `mapstructure:"from"`
	AlertEmail       string `mapstructure:"alert_email"`
	QueueSize        int    `mapstructure:"queue_size"`
	BreakerFailures  uint32 `mapstructure:"breaker_failures"`
	BreakerCooldown  string `mapstructure:"breaker_cooldown"`
	DashboardBaseURL string `mapstructure:"dashboard_base_url"`
}

// JobsConfig holds job executor and worker settings
type JobsConfig struct {
	Workers                int      `mapstructure:"workers"`
	MaxAttempts            int      `mapstructure:"max_attempts"`
	RetryBackoff           string   `mapstructure:"retry_backoff"`
	JobTimeout             string   `mapstructure:"job_timeout"`
	EngagementLookbackHrs  int      `mapstructure:"engagement_lookback_hours"`
	EngagementBatchSize    int      `mapstructure:"engagement_batch_size"`
	HealthCheckPlatforms   []string `mapstructure:"health_check_platforms"`
	HealthFailureThreshold int      `mapstructure:"health_failure_threshold"`
	ScheduledPostCron      string   `mapstructure:"scheduled_post_cron"`
	HealthCheckCron        string   `mapstructure:"health_check_cron"`
	EngagementPullCron     string   `mapstructure:"engagement_pull_cron"`
}

// MetricsConfig holds the metrics/health listener settings
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout or file path
}

// platformNames mirrors models.AllPlatforms; config does not import models
var platformNames = []string{
	"twitter", "linkedin", "facebook", "instagram", "youtube",
	"tiktok", "reddit", "pinterest", "snapchat", "discord",
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".social-agent"))
		}
	}

	v.SetEnvPrefix("SOCIAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit bindings for nested secrets (Viper doesn't auto-bind keys it has no default for)
	v.BindEnv("vault.key", "SOCIAL_VAULT_KEY")
	v.BindEnv("database.dsn", "SOCIAL_DATABASE_DSN")
	v.BindEnv("rate_limit.redis_addr", "SOCIAL_RATE_LIMIT_REDIS_ADDR")
	v.BindEnv("notifications.smtp_password", "SOCIAL_NOTIFICATIONS_SMTP_PASSWORD")
	v.BindEnv("notifications.alert_email", "SOCIAL_NOTIFICATIONS_ALERT_EMAIL")
	for _, name := range platformNames {
		upper := strings.ToUpper(name)
		v.BindEnv("platforms."+name+".client_id", "SOCIAL_"+upper+"_CLIENT_ID")
		v.BindEnv("platforms."+name+".client_secret", "SOCIAL_"+upper+"_CLIENT_SECRET")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/social.db")

	// Token refresh endpoints; client credentials come from the environment
	v.SetDefault("platforms.twitter.token_url", "https://api.twitter.com/2/oauth2/token")
	v.SetDefault("platforms.linkedin.token_url", "https://www.linkedin.com/oauth/v2/accessToken")
	v.SetDefault("platforms.facebook.token_url", "https://graph.facebook.com/v19.0/oauth/access_token")
	v.SetDefault("platforms.youtube.token_url", "https://oauth2.googleapis.com/token")
	v.SetDefault("platforms.tiktok.token_url", "https://open.tiktokapis.com/v2/oauth/token/")
	v.SetDefault("platforms.reddit.token_url", "https://www.reddit.com/api/v1/access_token")
	v.SetDefault("platforms.pinterest.token_url", "https://api.pinterest.com/v5/oauth/token")
	v.SetDefault("platforms.snapchat.token_url", "https://accounts.snapchat.com/login/oauth2/access_token")
	v.SetDefault("platforms.discord.token_url", "https://discord.com/api/oauth2/token")

	// Authorization endpoints for the connect flow
	v.SetDefault("platforms.twitter.auth_url", "https://twitter.com/i/oauth2/authorize")
	v.SetDefault("platforms.linkedin.auth_url", "https://www.linkedin.com/oauth/v2/authorization")
	v.SetDefault("platforms.facebook.auth_url", "https://www.facebook.com/v19.0/dialog/oauth")
	v.SetDefault("platforms.youtube.auth_url", "https://accounts.google.com/o/oauth2/auth")
	v.SetDefault("platforms.tiktok.auth_url", "https://www.tiktok.com/v2/auth/authorize/")
	v.SetDefault("platforms.reddit.auth_url", "https://www.reddit.com/api/v1/authorize")
	v.SetDefault("platforms.pinterest.auth_url", "https://www.pinterest.com/oauth/")
	v.SetDefault("platforms.snapchat.auth_url", "https://accounts.snapchat.com/accounts/oauth2/auth")
	v.SetDefault("platforms.discord.auth_url", "https://discord.com/oauth2/authorize")
	v.SetDefault("platforms.linkedin.scopes", []string{"openid", "profile", "email", "w_member_social"})
	v.SetDefault("platforms.twitter.scopes", []string{"tweet.read", "tweet.write", "users.read", "offline.access"})

	// Rate limit defaults
	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.redis_addr", "localhost:6379")
	v.SetDefault("rate_limit.key_prefix", "social:ratelimit")

	// Notification defaults
	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.smtp_port", 587)
	v.SetDefault("notifications.queue_size", 100)
	v.SetDefault("notifications.breaker_failures", 5)
	v.SetDefault("notifications.breaker_cooldown", "1m")

	// Job defaults
	v.SetDefault("jobs.workers", 4)
	v.SetDefault("jobs.max_attempts", 5)
	v.SetDefault("jobs.retry_backoff", "30s")
	v.SetDefault("jobs.job_timeout", "2m")
	v.SetDefault("jobs.engagement_lookback_hours", 24)
	v.SetDefault("jobs.engagement_batch_size", 50)
	v.SetDefault("jobs.health_check_platforms", platformNames)
	v.SetDefault("jobs.health_failure_threshold", 2)
	v.SetDefault("jobs.scheduled_post_cron", "* * * * *")      // Every minute
	v.SetDefault("jobs.health_check_cron", "*/15 * * * *")     // Every 15 minutes
	v.SetDefault("jobs.engagement_pull_cron", "0 */6 * * *")   // Every 6 hours

	// Metrics defaults
	v.SetDefault("metrics.addr", ":9090")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Vault.Key == "" {
		return fmt.Errorf("vault.key is required")
	}
	if c.Jobs.Workers < 1 {
		return fmt.Errorf("jobs.workers must be at least 1")
	}
	if c.Jobs.MaxAttempts < 1 {
		return fmt.Errorf("jobs.max_attempts must be at least 1")
	}
	if c.Jobs.HealthFailureThreshold < 1 {
		return fmt.Errorf("jobs.health_failure_threshold must be at least 1")
	}
	switch c.RateLimit.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("rate_limit.backend must be memory or redis, got %q", c.RateLimit.Backend)
	}
	if c.Notifications.Enabled && c.Notifications.SMTPHost == "" {
		return fmt.Errorf("notifications.smtp_host is required when notifications are enabled")
	}
	for name, p := range c.Platforms {
		if _, err := ParseDuration(p.PostInterval, 0); err != nil {
			return fmt.Errorf("platforms.%s.post_interval: %w", name, err)
		}
		if _, err := ParseDuration(p.ReadInterval, 0); err != nil {
			return fmt.Errorf("platforms.%s.read_interval: %w", name, err)
		}
	}
	return nil
}

// Platform returns the settings for one platform (zero value if unset)
func (c *Config) Platform(name string) PlatformConfig {
	if c.Platforms == nil {
		return PlatformConfig{}
	}
	return c.Platforms[name]
}

// ParseDuration parses s, returning fallback when s is empty
func ParseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}

// MustDuration parses s and falls back on any error
func MustDuration(s string, fallback time.Duration) time.Duration {
	d, err := ParseDuration(s, fallback)
	if err != nil {
		return fallback
	}
	return d
}
