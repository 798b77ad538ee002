package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/social-agent/internal/app"
	"github.com/social-agent/internal/config"
	"github.com/social-agent/internal/credentials"
	"github.com/social-agent/internal/jobs"
	"github.com/social-agent/internal/models"
	"github.com/social-agent/internal/storage"
	"github.com/social-agent/internal/vault"
	"github.com/social-agent/pkg/logger"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
	a       *app.App
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "social-agent",
		Short: "Social platform publishing and monitoring",
		Long: `Connects user accounts on ten social platforms, schedules posts for the
worker to publish, and runs publishing and monitoring jobs by hand.`,
		PersistentPreRunE:  initializeApp,
		PersistentPostRunE: closeApp,
		SilenceUsage:       true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")

	rootCmd.AddCommand(keygenCmd())
	rootCmd.AddCommand(accountsCmd())
	rootCmd.AddCommand(postsCmd())
	rootCmd.AddCommand(jobsCmd())
	rootCmd.AddCommand(healthCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initializeApp(cmd *cobra.Command, args []string) error {
	if cmd.Annotations["standalone"] == "true" {
		return nil
	}

	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	a, err = app.New(cmd.Context(), cfg, log)
	return err
}

func closeApp(cmd *cobra.Command, args []string) error {
	if a == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.Close(ctx)
}

func parsePlatform(name string) (models.Platform, error) {
	p := models.Platform(strings.ToLower(name))
	if !p.Valid() {
		return "", fmt.Errorf("unknown platform %q", name)
	}
	return p, nil
}

// ============ KEYGEN ============

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "keygen",
		Short:       "Generate a vault key for SOCIAL_VAULT_KEY",
		Annotations: map[string]string{"standalone": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := vault.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Printf("SOCIAL_VAULT_KEY=%s\n", key)
			return nil
		},
	}
}

// ============ ACCOUNTS COMMANDS ============

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Connected social accounts",
	}

	cmd.AddCommand(accountsListCmd())
	cmd.AddCommand(accountsConnectCmd())
	cmd.AddCommand(accountsAuthorizeCmd())
	cmd.AddCommand(accountsExchangeCmd())
	cmd.AddCommand(accountsCheckCmd())
	return cmd
}

func accountsListCmd() *cobra.Command {
	var userID string
	var validOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List connected accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := a.Repo.ListAccounts(cmd.Context(), storage.AccountFilter{
				UserID:    userID,
				ValidOnly: validOnly,
			})
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Accounts (%d) ===\n\n", len(accounts))
			for _, acc := range accounts {
				status := "valid"
				if !acc.IsValid {
					status = "invalid"
				}
				fmt.Printf("[%d] %s | %s | %s\n", acc.ID, acc.Platform, acc.UserID, status)
				fmt.Printf("    Username: %s\n", acc.Username)
				if acc.LastValidatedAt != nil {
					fmt.Printf("    Validated: %s\n", acc.LastValidatedAt.Format(time.RFC1123))
				}
				if acc.LastError != "" {
					fmt.Printf("    Last error: %s\n", acc.LastError)
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Filter by user id")
	cmd.Flags().BoolVar(&validOnly, "valid", false, "Only show usable accounts")
	return cmd
}

func accountsConnectCmd() *cobra.Command {
	var userID, token, refreshToken, email string

	cmd := &cobra.Command{
		Use:   "connect <platform>",
		Short: "Store an access token obtained elsewhere",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePlatform(args[0])
			if err != nil {
				return err
			}

			acc, err := a.Connector.Store(cmd.Context(), p, userID, token, refreshToken, email)
			if err != nil {
				return fmt.Errorf("connect failed: %w", err)
			}
			fmt.Printf("Connected %s account %s for user %s\n", p, acc.Username, userID)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Application user id")
	cmd.Flags().StringVar(&token, "token", "", "Access token")
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "Refresh token, if the platform issued one")
	cmd.Flags().StringVar(&email, "email", "", "Address for post outcome emails")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func accountsAuthorizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "authorize <platform>",
		Short: "Print the consent URL for the authorization-code flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePlatform(args[0])
			if err != nil {
				return err
			}
			state, err := credentials.GenerateState()
			if err != nil {
				return err
			}
			authURL, err := a.Connector.AuthURL(p, state)
			if err != nil {
				return err
			}

			fmt.Printf("\nPlease open this URL in your browser:\n%s\n", authURL)
			fmt.Printf("\nState: %s\n", state)
			fmt.Printf("Then run 'social-agent accounts exchange %s --user <id> --code <code>'\n", p)
			return nil
		},
	}
}

func accountsExchangeCmd() *cobra.Command {
	var userID, code, email string

	cmd := &cobra.Command{
		Use:   "exchange <platform>",
		Short: "Exchange an authorization code and store the account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePlatform(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			acc, err := a.Connector.Exchange(ctx, p, userID, code, email)
			if err != nil {
				return fmt.Errorf("OAuth failed: %w", err)
			}
			fmt.Printf("\nAuthentication successful! Connected %s as %s\n", p, acc.Username)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Application user id")
	cmd.Flags().StringVar(&code, "code", "", "Authorization code from the callback")
	cmd.Flags().StringVar(&email, "email", "", "Address for post outcome emails")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}

func accountsCheckCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "check <platform>",
		Short: "Validate the stored access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := parsePlatform(args[0])
			if err != nil {
				return err
			}
			acc, err := a.Repo.GetAccount(ctx, userID, p)
			if err != nil {
				fmt.Println("Status: Not connected")
				fmt.Printf("Run 'social-agent accounts authorize %s' to connect\n", p)
				return nil
			}
			token, err := a.Vault.Decrypt(acc.AccessTokenEnc)
			if err != nil {
				return fmt.Errorf("stored token unreadable: %w", err)
			}
			client, err := a.Platforms.Get(p)
			if err != nil {
				return err
			}

			v, err := client.ValidateToken(ctx, token)
			if err != nil {
				return fmt.Errorf("could not reach %s: %w", p, err)
			}
			if v.Valid {
				if err := a.Repo.MarkAccountValidated(ctx, userID, p, time.Now()); err != nil {
					return err
				}
				fmt.Println("Status: Valid")
				return nil
			}

			fmt.Printf("Status: Rejected (%s)\n", v.Error)
			if acc.HasRefreshToken() {
				fmt.Println("A refresh token is on file; the worker will try it on the next post.")
			} else {
				fmt.Printf("\nRun 'social-agent accounts authorize %s' to re-authenticate\n", p)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Application user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// ============ POSTS COMMANDS ============

func postsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List and schedule posts",
	}

	cmd.AddCommand(postsListCmd())
	cmd.AddCommand(postsCreateCmd())
	return cmd
}

func postsListCmd() *cobra.Command {
	var userID, status, platformName string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := storage.DefaultPostFilter()
			filter.UserID = userID
			filter.Limit = limit

			if status != "" {
				s := models.PostStatus(status)
				filter.Status = &s
			}
			if platformName != "" {
				p, err := parsePlatform(platformName)
				if err != nil {
					return err
				}
				filter.Platform = &p
			}

			posts, err := a.Repo.ListPosts(cmd.Context(), filter)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Posts (%d) ===\n\n", len(posts))
			for _, p := range posts {
				fmt.Printf("[%d] %s | %s | %s\n", p.ID, p.Status, p.Platform, p.UserID)
				fmt.Printf("    Preview: %s\n", truncateStr(p.Content, 100))
				if p.ScheduledAt != nil {
					fmt.Printf("    Scheduled: %s (%s)\n", p.ScheduledAt.Format(time.RFC1123), formatWhen(time.Until(*p.ScheduledAt)))
				}
				if p.PostedAt != nil {
					fmt.Printf("    Posted: %s %s\n", p.PostedAt.Format(time.RFC1123), p.PostURL)
				}
				if len(p.Engagement) > 0 {
					fmt.Printf("    Engagement: %s\n", formatMetrics(p.Engagement))
				}
				if p.ErrorMessage != "" {
					fmt.Printf("    Error: %s\n", p.ErrorMessage)
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Filter by user id")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&platformName, "platform", "", "Filter by platform")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum posts to show")
	return cmd
}

func postsCreateCmd() *cobra.Command {
	var userID, platformName, content, at string
	var media []string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Schedule a post for the worker to publish",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePlatform(platformName)
			if err != nil {
				return err
			}
			when := time.Now().UTC()
			if at != "" {
				if when, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("--at must be RFC3339: %w", err)
				}
			}

			post := &models.SocialPost{
				UserID:      userID,
				Platform:    p,
				Content:     content,
				MediaURLs:   media,
				Status:      models.PostStatusScheduled,
				ScheduledAt: &when,
			}
			if err := a.Repo.CreatePost(cmd.Context(), post); err != nil {
				return err
			}
			fmt.Printf("Post %d scheduled for %s on %s\n", post.ID, when.Format(time.RFC1123), p)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Application user id")
	cmd.Flags().StringVar(&platformName, "platform", "", "Target platform")
	cmd.Flags().StringVar(&content, "content", "", "Post text")
	cmd.Flags().StringSliceVar(&media, "media", nil, "Media URLs")
	cmd.Flags().StringVar(&at, "at", "", "Publish time, RFC3339 (default now)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("platform")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

// ============ JOBS COMMANDS ============

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Run jobs in the foreground",
	}

	cmd.AddCommand(jobsRunCmd())
	return cmd
}

func jobsRunCmd() *cobra.Command {
	var payload string

	cmd := &cobra.Command{
		Use:   "run <type>",
		Short: "Execute one job attempt now",
		Long: `Executes a single attempt of social-post, social-health-check,
social-trend-monitor or social-engagement-pull with a JSON payload.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := jobs.Descriptor{
				ID:      "cli-" + time.Now().UTC().Format("20060102150405"),
				Type:    jobs.Type(args[0]),
				Attempt: 1,
				Payload: []byte(payload),
			}

			start := time.Now()
			err := a.Executor.Execute(cmd.Context(), d)
			if err != nil {
				if jobs.Retryable(err) {
					fmt.Printf("Attempt failed, the queue would retry")
					if ra := jobs.RetryAfter(err); ra > 0 {
						fmt.Printf(" in %s", ra.Round(time.Second))
					}
					fmt.Println()
				}
				return err
			}
			fmt.Printf("Job %s finished in %s\n", d.Type, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&payload, "payload", "{}", "JSON payload")
	return cmd
}

// ============ HEALTH ============

func healthCmd() *cobra.Command {
	var names []string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe platform APIs",
		RunE: func(cmd *cobra.Command, args []string) error {
			platforms := a.Platforms.Platforms()
			if len(names) > 0 {
				platforms = platforms[:0]
				for _, n := range names {
					p, err := parsePlatform(n)
					if err != nil {
						return err
					}
					platforms = append(platforms, p)
				}
			}

			results := a.Platforms.CheckAll(cmd.Context(), platforms)

			fmt.Printf("\n=== Platform Health (%d) ===\n\n", len(results))
			fmt.Printf("%-10s  %-9s  %6s  %8s  %s\n", "PLATFORM", "STATUS", "CODE", "LATENCY", "ERROR")
			for _, h := range results {
				status := "healthy"
				if !h.Healthy {
					status = "unhealthy"
				}
				fmt.Printf("%-10s  %-9s  %6d  %6dms  %s\n", h.Platform, status, h.StatusCode, h.LatencyMs(), h.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&names, "platform", nil, "Platforms to probe (default all)")
	return cmd
}

// ============ HELPERS ============

func truncateStr(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

// formatWhen renders a relative time like "in 3.5 hours" or "20 minutes ago"
func formatWhen(d time.Duration) string {
	suffix := ""
	prefix := "in "
	if d < 0 {
		d = -d
		prefix, suffix = "", " ago"
	}
	var s string
	switch {
	case d < time.Hour:
		s = fmt.Sprintf("%d minutes", int(d.Minutes()))
	case d < 24*time.Hour:
		s = fmt.Sprintf("%.1f hours", d.Hours())
	default:
		s = fmt.Sprintf("%.1f days", d.Hours()/24)
	}
	return prefix + s + suffix
}

func formatMetrics(m models.Metrics) string {
	parts := make([]string, 0, len(m))
	for _, k := range m.Keys() {
		parts = append(parts, fmt.Sprintf("%s=%.0f", k, m[k]))
	}
	return strings.Join(parts, " ")
}
