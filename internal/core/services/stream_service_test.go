package services

import (
	"context"
	"testing"

	"astrelay/internal/core/domain"
	"astrelay/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStreamFixture() (*recordingBroadcaster, *streamService) {
	broadcaster := newRecordingBroadcaster()
	svc := NewStreamService(memory.NewMemoryStreamRepository(), broadcaster).(*streamService)
	return broadcaster, svc
}

func TestStreamService_CreateAndList(t *testing.T) {
	_, svc := newStreamFixture()
	ctx := context.Background()

	stream, err := svc.CreateStream(ctx, "user_1", "Reading the houses live")
	require.NoError(t, err)
	assert.True(t, stream.Live)
	assert.Equal(t, domain.UserID("user_1"), stream.HostID)

	live, err := svc.ListLive(ctx)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, stream.ID, live[0].ID)
}

func TestStreamService_CreateRejectsBlankTitle(t *testing.T) {
	_, svc := newStreamFixture()

	_, err := svc.CreateStream(context.Background(), "user_1", "  ")
	assert.Error(t, err)
}

func TestStreamService_JoinLeaveTracksViewers(t *testing.T) {
	broadcaster, svc := newStreamFixture()
	ctx := context.Background()

	stream, err := svc.CreateStream(ctx, "host", "Live")
	require.NoError(t, err)

	require.NoError(t, svc.Join(ctx, stream.ID, "user_1"))
	require.NoError(t, svc.Join(ctx, stream.ID, "user_2"))
	// Joining twice does not double-count.
	require.NoError(t, svc.Join(ctx, stream.ID, "user_2"))

	stats, err := svc.Stats(ctx, stream.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Viewers)
	assert.Equal(t, 2, stats.PeakViewers)

	require.NoError(t, svc.Leave(ctx, stream.ID, "user_1"))

	stats, err = svc.Stats(ctx, stream.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Viewers)
	assert.Equal(t, 2, stats.PeakViewers, "peak survives departures")

	require.Len(t, broadcaster.streamEvents, 4)
	last := broadcaster.streamEvents[len(broadcaster.streamEvents)-1]
	assert.False(t, last.joined)
	assert.Equal(t, 1, last.viewers)
}

func TestStreamService_JoinEndedStreamRejected(t *testing.T) {
	_, svc := newStreamFixture()
	ctx := context.Background()

	stream, err := svc.CreateStream(ctx, "host", "Live")
	require.NoError(t, err)
	require.NoError(t, svc.End(ctx, stream.ID, "host"))

	err = svc.Join(ctx, stream.ID, "user_1")
	assert.ErrorIs(t, err, domain.ErrStreamNotLive)
}

func TestStreamService_EndRequiresHost(t *testing.T) {
	_, svc := newStreamFixture()
	ctx := context.Background()

	stream, err := svc.CreateStream(ctx, "host", "Live")
	require.NoError(t, err)

	err = svc.End(ctx, stream.ID, "viewer")
	assert.ErrorIs(t, err, domain.ErrNotStreamHost)

	got, err := svc.GetStream(ctx, stream.ID)
	require.NoError(t, err)
	assert.True(t, got.Live)
}

func TestStreamService_EndMarksStreamOver(t *testing.T) {
	_, svc := newStreamFixture()
	ctx := context.Background()

	stream, err := svc.CreateStream(ctx, "host", "Live")
	require.NoError(t, err)
	require.NoError(t, svc.Join(ctx, stream.ID, "user_1"))

	require.NoError(t, svc.End(ctx, stream.ID, "host"))

	got, err := svc.GetStream(ctx, stream.ID)
	require.NoError(t, err)
	assert.False(t, got.Live)
	assert.False(t, got.EndedAt.IsZero())
	assert.Zero(t, got.Viewers)

	live, err := svc.ListLive(ctx)
	require.NoError(t, err)
	assert.Empty(t, live)
}
