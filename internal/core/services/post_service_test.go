package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"astrelay/internal/core/domain"
	"astrelay/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPostFixture(flushInterval time.Duration) (*recordingBroadcaster, *postService) {
	broadcaster := newRecordingBroadcaster()
	svc := NewPostService(memory.NewMemoryPostRepository(), broadcaster, flushInterval).(*postService)
	return broadcaster, svc
}

func TestPostService_CreateBroadcastsNewPost(t *testing.T) {
	broadcaster, svc := newPostFixture(time.Second)

	post, err := svc.CreatePost(context.Background(), "user_1", "stargazer", "Mercury is in retrograde.", "☿✦")
	require.NoError(t, err)

	assert.NotEmpty(t, post.ID)
	assert.Equal(t, "Mercury is in retrograde.", post.Body)
	assert.Equal(t, "☿✦", post.Sigil)

	require.Len(t, broadcaster.posts, 1)
	assert.Equal(t, post.ID, broadcaster.posts[0].ID)
}

func TestPostService_CreateRejectsInvalidBody(t *testing.T) {
	_, svc := newPostFixture(time.Second)
	ctx := context.Background()

	_, err := svc.CreatePost(ctx, "user_1", "stargazer", "   ", "")
	assert.Error(t, err)

	_, err = svc.CreatePost(ctx, "user_1", "stargazer", strings.Repeat("a", 2001), "")
	assert.Error(t, err)
}

func TestPostService_ReactAppliesImmediately(t *testing.T) {
	_, svc := newPostFixture(time.Second)
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, "user_1", "stargazer", "hello cosmos", "")
	require.NoError(t, err)

	require.NoError(t, svc.React(ctx, domain.EngagementDelta{PostID: post.ID, Likes: 1}))
	require.NoError(t, svc.React(ctx, domain.EngagementDelta{PostID: post.ID, Reaction: "stardust"}))

	got, err := svc.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Engagement.Likes)
	assert.Equal(t, int64(1), got.Engagement.Reactions["stardust"], "reaction without count defaults to one")
}

func TestPostService_ReactRejectsEmptyDelta(t *testing.T) {
	_, svc := newPostFixture(time.Second)

	err := svc.React(context.Background(), domain.EngagementDelta{PostID: "post_1"})
	assert.Error(t, err)
}

func TestPostService_EngagementBroadcastsCoalesce(t *testing.T) {
	broadcaster, svc := newPostFixture(20 * time.Millisecond)
	ctx := context.Background()

	post, err := svc.CreatePost(ctx, "user_1", "stargazer", "hello cosmos", "")
	require.NoError(t, err)

	// A burst of reactions lands before the first flush tick.
	for i := 0; i < 5; i++ {
		require.NoError(t, svc.React(ctx, domain.EngagementDelta{PostID: post.ID, Likes: 1}))
	}

	require.Eventually(t, func() bool {
		e, ok := broadcaster.engagementFor(post.ID)
		return ok && e.Likes == 5
	}, 2*time.Second, 10*time.Millisecond, "coalesced broadcast carries the final counters")
}
