package services

import (
	"context"
	"testing"

	"astrelay/internal/core/domain"
	"astrelay/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPresenceFixture() (*recordingBroadcaster, *presenceService) {
	broadcaster := newRecordingBroadcaster()
	svc := NewPresenceService(memory.NewMemoryPresenceRepository(), broadcaster).(*presenceService)
	return broadcaster, svc
}

func TestPresenceService_ConnectRegistersAndBroadcasts(t *testing.T) {
	broadcaster, svc := newPresenceFixture()
	ctx := context.Background()

	user := &domain.OnlineUser{ID: "user_1", Username: "stargazer"}
	require.NoError(t, svc.Connect(ctx, user))

	assert.False(t, user.ConnectedAt.IsZero())
	require.Len(t, broadcaster.connected, 1)

	snapshot, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	assert.Equal(t, domain.UserID("user_1"), snapshot[0].ID)
}

func TestPresenceService_ReconnectReplacesRecord(t *testing.T) {
	_, svc := newPresenceFixture()
	ctx := context.Background()

	require.NoError(t, svc.Connect(ctx, &domain.OnlineUser{ID: "user_1", Username: "stargazer"}))
	require.NoError(t, svc.Connect(ctx, &domain.OnlineUser{ID: "user_1", Username: "stargazer"}))

	snapshot, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snapshot, 1, "reconnect must not duplicate the presence record")
}

func TestPresenceService_DisconnectAbsentUserIsNoop(t *testing.T) {
	broadcaster, svc := newPresenceFixture()

	require.NoError(t, svc.Disconnect(context.Background(), "ghost"))
	assert.Empty(t, broadcaster.disconnected, "no departure event for a user that was never present")
}

func TestPresenceService_AvatarPatchMergesPartialFields(t *testing.T) {
	broadcaster, svc := newPresenceFixture()
	ctx := context.Background()

	user := &domain.OnlineUser{
		ID:       "user_1",
		Username: "stargazer",
		Avatar:   domain.Avatar{Position: [3]float64{1, 2, 3}, Color: "#fff", Shape: "orb", Size: 1},
	}
	require.NoError(t, svc.Connect(ctx, user))

	color := "#ff00ff"
	require.NoError(t, svc.ApplyAvatarPatch(ctx, "user_1", "user_1", domain.AvatarPatch{Color: &color}))

	got := broadcaster.avatars["user_1"]
	assert.Equal(t, "#ff00ff", got.Color)
	assert.Equal(t, [3]float64{1, 2, 3}, got.Position, "fields absent from the patch stay untouched")
	assert.Equal(t, 1.0, got.Size)
}

func TestPresenceService_AvatarPatchFromOtherUserRejected(t *testing.T) {
	broadcaster, svc := newPresenceFixture()
	ctx := context.Background()

	require.NoError(t, svc.Connect(ctx, &domain.OnlineUser{ID: "user_1", Username: "stargazer"}))

	color := "#000"
	err := svc.ApplyAvatarPatch(ctx, "user_2", "user_1", domain.AvatarPatch{Color: &color})
	assert.ErrorIs(t, err, domain.ErrNotAvatarOwner)
	assert.Empty(t, broadcaster.avatars)
}

func TestPresenceService_AvatarPatchForUnknownUserDropped(t *testing.T) {
	broadcaster, svc := newPresenceFixture()
	ctx := context.Background()

	color := "#000"
	require.NoError(t, svc.ApplyAvatarPatch(ctx, "ghost", "ghost", domain.AvatarPatch{Color: &color}))
	require.NoError(t, svc.ApplyAvatarPatch(ctx, "ghost", "ghost", domain.AvatarPatch{Color: &color}))

	count, err := svc.presenceRepo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "dropped patches never create a presence record")
	assert.Empty(t, broadcaster.avatars)
}

func TestPresenceService_HeartbeatUnknownUserIsNoop(t *testing.T) {
	_, svc := newPresenceFixture()
	assert.NoError(t, svc.Heartbeat(context.Background(), "ghost"))
}
