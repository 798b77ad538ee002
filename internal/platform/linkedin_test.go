package platform

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkedIn_CreatePost(t *testing.T) {
	var sent postRequest
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/userinfo":
			writeJSON(w, http.StatusOK, map[string]string{"sub": "abc123", "name": "Ada"})
		case "/v2/posts":
			assert.Equal(t, restliVersion, r.Header.Get("X-Restli-Protocol-Version"))
			assert.Equal(t, linkedinVersion, r.Header.Get("LinkedIn-Version"))
			body, _ := io.ReadAll(r.Body)
			assert.NoError(t, json.Unmarshal(body, &sent))
			w.Header().Set("x-restli-id", "urn:li:share:7001")
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	li := NewLinkedIn(srv.URL, Deps{})

	res, err := li.CreatePost(context.Background(), testToken, "Hello world", nil)
	require.NoError(t, err)
	require.True(t, res.IsOK(), res.Reason)
	assert.Equal(t, "urn:li:share:7001", res.Value.PostID)
	assert.Equal(t, "https://www.linkedin.com/feed/update/urn:li:share:7001", res.Value.URL)

	assert.Equal(t, "urn:li:person:abc123", sent.Author)
	assert.Equal(t, "Hello world", sent.Commentary)
	assert.Equal(t, "PUBLIC", sent.Visibility)
	assert.Equal(t, "PUBLISHED", sent.LifecycleState)
}

func TestLinkedIn_CreatePostFallsBackToLocation(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/userinfo" {
			writeJSON(w, http.StatusOK, map[string]string{"sub": "abc123"})
			return
		}
		w.Header().Set("Location", "urn:li:ugcPost:55")
		w.WriteHeader(http.StatusOK)
	})

	res, err := NewLinkedIn(srv.URL, Deps{}).CreatePost(context.Background(), testToken, "hi", nil)
	require.NoError(t, err)
	require.True(t, res.IsOK(), res.Reason)
	assert.Equal(t, "urn:li:ugcPost:55", res.Value.PostID)
}

func TestLinkedIn_CreatePostProfileFailure(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "expired"})
	})

	res, err := NewLinkedIn(srv.URL, Deps{}).CreatePost(context.Background(), testToken, "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Reason, "author lookup failed")
	assert.Equal(t, int32(1), srv.hits.Load(), "no post attempted without an author")
}

func TestLinkedIn_CreatePostTruncatesAndAppendsMedia(t *testing.T) {
	var sent postRequest
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/userinfo" {
			writeJSON(w, http.StatusOK, map[string]string{"sub": "abc123"})
			return
		}
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &sent))
		w.Header().Set("x-restli-id", "urn:li:share:1")
		w.WriteHeader(http.StatusCreated)
	})
	li := NewLinkedIn(srv.URL, Deps{})

	_, err := li.CreatePost(context.Background(), testToken, "short", []string{"https://example.com/x"})
	require.NoError(t, err)
	assert.Equal(t, "short\n\nhttps://example.com/x", sent.Commentary)

	_, err = li.CreatePost(context.Background(), testToken, strings.Repeat("é", 4000), nil)
	require.NoError(t, err)
	assert.Len(t, []rune(sent.Commentary), maxCommentaryLength)
	assert.True(t, strings.HasSuffix(sent.Commentary, "..."))
}

func TestSanitizeForLinkedIn(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Hello world", "Hello world"},
		{"bullets and arrows", "• one → two", "- one -> two"},
		{"zero width stripped", "a\u200Bb\uFEFF", "ab"},
		{"nbsp normalized", "a\u00A0b", "a b"},
		{"blank lines collapsed", "a\r\n\r\n\r\n\r\nb", "a\n\nb"},
		{"emoji dropped", "launch 🚀 day", "launch  day"},
		{"trimmed", "  padded  ", "padded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeForLinkedIn(tt.in))
		})
	}
}
