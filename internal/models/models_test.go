package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ColumnRoundTrip(t *testing.T) {
	v, err := Metrics{"likes": 3, "comments": 1}.Value()
	require.NoError(t, err)

	var m Metrics
	require.NoError(t, m.Scan(v))
	assert.Equal(t, []string{"comments", "likes"}, m.Keys())

	var empty Metrics
	v, err = empty.Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", v)

	require.NoError(t, m.Scan(nil))
	assert.Nil(t, m)
	assert.Error(t, m.Scan(42))
}

func TestPostStatus_IsTerminal(t *testing.T) {
	assert.True(t, PostStatusPosted.IsTerminal())
	assert.True(t, PostStatusFailed.IsTerminal())
	assert.False(t, PostStatusScheduled.IsTerminal())
	assert.False(t, PostStatusPosting.IsTerminal())
}

func TestSocialPost_IsPublished(t *testing.T) {
	id := "t-1"
	assert.True(t, (&SocialPost{Status: PostStatusPosted, PlatformPostID: &id}).IsPublished())
	assert.False(t, (&SocialPost{Status: PostStatusPosted}).IsPublished())
	assert.False(t, (&SocialPost{Status: PostStatusFailed, PlatformPostID: &id}).IsPublished())
}

func TestPlatform_Valid(t *testing.T) {
	assert.Len(t, AllPlatforms, 10)
	for _, p := range AllPlatforms {
		assert.True(t, p.Valid(), p)
	}
	assert.False(t, Platform("myspace").Valid())
}
