package platform

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"github.com/social-agent/internal/models"
	"github.com/social-agent/pkg/ratelimit"
)

const (
	linkedinBaseURL = "https://api.linkedin.com"
	restliVersion   = "2.0.0"
	linkedinVersion = "202401" // LinkedIn API version

	// LinkedIn content limits
	maxCommentaryLength = 3000
)

// LinkedIn publishes member posts through the Posts API
type LinkedIn struct {
	base
}

var _ Client = (*LinkedIn)(nil)

// NewLinkedIn creates the LinkedIn adapter
func NewLinkedIn(baseURL string, deps Deps) *LinkedIn {
	l := &LinkedIn{base: newBase(models.PlatformLinkedIn, baseURL, linkedinBaseURL, deps,
		[]string{"likes", "comments", "shares", "impressions"})}
	l.healthy = func(status int) bool { return status != http.StatusInternalServerError && status < 502 }
	return l
}

// linkedinProfile is the OpenID userinfo shape
type linkedinProfile struct {
	Sub        string `json:"sub"` // LinkedIn member ID
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Email      string `json:"email"`
}

func (l *LinkedIn) ValidateToken(ctx context.Context, token string) (Validation, error) {
	return l.validate(ctx, token, "/v2/userinfo", nil)
}

func (l *LinkedIn) GetUserProfile(ctx context.Context, token string) (Result[Profile], error) {
	var p linkedinProfile
	resp, err := l.getJSON(ctx, token, "/v2/userinfo", nil, &p)
	if err != nil {
		if isGovernorError(err) {
			return Result[Profile]{}, err
		}
		return failure[Profile](&l.base, "get profile", resp, err), nil
	}
	if !resp.IsSuccess() || p.Sub == "" {
		return failure[Profile](&l.base, "get profile", resp, nil), nil
	}

	username := p.Email
	if username == "" {
		username = p.Sub
	}
	return OK(Profile{ID: p.Sub, Username: username, DisplayName: p.Name}), nil
}

// postRequest is the LinkedIn Posts API request body
type postRequest struct {
	Author                    string       `json:"author"`
	Commentary                string       `json:"commentary"`
	Visibility                string       `json:"visibility"`
	Distribution              distribution `json:"distribution"`
	LifecycleState            string       `json:"lifecycleState"`
	IsReshareDisabledByAuthor bool         `json:"isReshareDisabledByAuthor"`
}

type distribution struct {
	FeedDistribution               string        `json:"feedDistribution"`
	TargetEntities                 []interface{} `json:"targetEntities"`
	ThirdPartyDistributionChannels []interface{} `json:"thirdPartyDistributionChannels"`
}

// CreatePost resolves the author URN from the profile, then publishes
func (l *LinkedIn) CreatePost(ctx context.Context, token, content string, mediaURLs []string) (Result[Published], error) {
	profile, err := l.GetUserProfile(ctx, token)
	if err != nil {
		return Result[Published]{}, err
	}
	if !profile.IsOK() {
		return Failed[Published]("linkedin author lookup failed: %s", profile.Reason), nil
	}

	commentary := sanitizeForLinkedIn(content)
	if len(mediaURLs) > 0 {
		// Article/image shares need an asset upload; links are appended to the text
		commentary = strings.TrimSpace(commentary + "\n\n" + strings.Join(mediaURLs, "\n"))
	}
	if runes := []rune(commentary); len(runes) > maxCommentaryLength {
		l.log.Warn().
			Int("original_length", len(runes)).
			Int("max_length", maxCommentaryLength).
			Msg("Content exceeds LinkedIn limit, truncating")
		commentary = string(runes[:maxCommentaryLength-3]) + "..."
	}

	resp, err := l.call(ctx, request{
		op:     ratelimit.OpPost,
		method: http.MethodPost,
		path:   "/v2/posts",
		token:  token,
		headers: map[string]string{
			"X-Restli-Protocol-Version": restliVersion,
			"LinkedIn-Version":          linkedinVersion,
		},
		body: postRequest{
			Author:     "urn:li:person:" + profile.Value.ID,
			Commentary: commentary,
			Visibility: "PUBLIC",
			Distribution: distribution{
				FeedDistribution:               "MAIN_FEED",
				TargetEntities:                 []interface{}{},
				ThirdPartyDistributionChannels: []interface{}{},
			},
			LifecycleState: "PUBLISHED",
		},
	})
	if err != nil {
		if isGovernorError(err) {
			return Result[Published]{}, err
		}
		return failure[Published](&l.base, "create post", nil, err), nil
	}
	if resp.StatusCode() != http.StatusCreated && resp.StatusCode() != http.StatusOK {
		return failure[Published](&l.base, "create post", resp, nil), nil
	}

	// Post URN comes back in a header, not the body
	postURN := resp.Header().Get("x-restli-id")
	if postURN == "" {
		postURN = resp.Header().Get("Location")
	}
	if postURN == "" {
		return Failed[Published]("linkedin create post returned no post URN"), nil
	}

	l.log.Info().Str("post_urn", postURN).Msg("Post created successfully")
	return OK(Published{
		PostID: postURN,
		URL:    "https://www.linkedin.com/feed/update/" + postURN,
	}), nil
}

func (l *LinkedIn) GetPostEngagement(ctx context.Context, token, postID string) (models.Metrics, error) {
	var actions struct {
		LikesSummary struct {
			TotalLikes float64 `json:"totalLikes"`
		} `json:"likesSummary"`
		CommentsSummary struct {
			TotalFirstLevelComments float64 `json:"totalFirstLevelComments"`
		} `json:"commentsSummary"`
	}
	resp, err := l.getJSON(ctx, token, "/v2/socialActions/"+url.PathEscape(postID), nil, &actions)
	if err != nil || !resp.IsSuccess() {
		return l.engagementFailure(postID, resp, err)
	}
	return l.metricsFrom(map[string]float64{
		"likes":    actions.LikesSummary.TotalLikes,
		"comments": actions.CommentsSummary.TotalFirstLevelComments,
	}), nil
}

func (l *LinkedIn) CheckHealth(ctx context.Context) Health {
	return l.probe(ctx, l.baseURL+"/v2/me")
}

// linkedinReplacements maps decorative unicode LinkedIn mangles to ASCII
var linkedinReplacements = strings.NewReplacer(
	"━", "-", "─", "-", "═", "=", "│", "|", "║", "|",
	"┌", "+", "┐", "+", "└", "+", "┘", "+", "├", "+", "┤", "+", "┬", "+", "┴", "+", "┼", "+",
	"•", "-", "◦", "-", "▪", "-", "▫", "-",
	"►", ">", "◄", "<", "→", "->", "←", "<-", "⇒", "=>",
	"★", "*", "☆", "*",
	"✓", "[x]", "✔", "[x]", "✗", "[ ]", "✘", "[ ]",
	"\u00A0", " ", // Non-breaking space
	"\u2002", " ", // En space
	"\u2003", " ", // Em space
	"\u2009", " ", // Thin space
	"\u200B", "", // Zero-width space
	"\u200C", "",
	"\u200D", "",
	"\uFEFF", "", // BOM
)

// sanitizeForLinkedIn cleans content so the Posts API accepts it
func sanitizeForLinkedIn(content string) string {
	content = linkedinReplacements.Replace(content)

	var result strings.Builder
	result.Grow(len(content))
	for _, r := range content {
		if r == '\n' || r == '\r' || r == '\t' || (unicode.IsPrint(r) && r < 0x10000) {
			result.WriteRune(r)
		}
	}

	content = result.String()
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	for strings.Contains(content, "\n\n\n") {
		content = strings.ReplaceAll(content, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(content)
}
