package platform

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/social-agent/internal/models"
)

func TestYouTube_Profile(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/youtube/v3/channels", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("mine"))
		assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]interface{}{"items": []interface{}{
			map[string]interface{}{"id": "UC123", "snippet": map[string]string{"title": "Acme TV", "customUrl": "@acme"}},
		}})
	})
	yt := NewYouTube(srv.URL, Deps{})

	res, err := yt.GetUserProfile(context.Background(), testToken)
	require.NoError(t, err)
	require.True(t, res.IsOK(), res.Reason)
	assert.Equal(t, Profile{ID: "UC123", Username: "@acme", DisplayName: "Acme TV"}, res.Value)

	v, err := yt.ValidateToken(context.Background(), testToken)
	require.NoError(t, err)
	assert.True(t, v.Valid)
}

func TestYouTube_ValidateTokenUnauthorized(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error": map[string]interface{}{"code": 401, "message": "Invalid Credentials"},
		})
	})

	v, err := NewYouTube(srv.URL, Deps{}).ValidateToken(context.Background(), testToken)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.NotEmpty(t, v.Error)
}

func TestYouTube_Engagement(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/youtube/v3/videos", r.URL.Path)
		assert.Equal(t, "vid1", r.URL.Query().Get("id"))
		writeJSON(w, http.StatusOK, map[string]interface{}{"items": []interface{}{
			map[string]interface{}{"id": "vid1", "statistics": map[string]string{
				"viewCount": "1200", "likeCount": "80", "commentCount": "9",
			}},
		}})
	})

	m, err := NewYouTube(srv.URL, Deps{}).GetPostEngagement(context.Background(), testToken, "vid1")
	require.NoError(t, err)
	assert.Equal(t, models.Metrics{"views": 1200, "likes": 80, "comments": 9}, m)
}

func TestYouTube_EngagementMissingVideo(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"items": []interface{}{}})
	})

	m, err := NewYouTube(srv.URL, Deps{}).GetPostEngagement(context.Background(), testToken, "gone")
	require.ErrorIs(t, err, ErrMetricsUnavailable)
	assert.Equal(t, models.Metrics{"views": 0, "likes": 0, "comments": 0}, m)
}
