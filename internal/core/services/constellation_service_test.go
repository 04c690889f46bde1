package services

import (
	"context"
	"testing"
	"time"

	"astrelay/internal/core/domain"
	"astrelay/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConstellationFixture() (*recordingBroadcaster, *constellationService) {
	broadcaster := newRecordingBroadcaster()
	svc := NewConstellationService(memory.NewMemoryConstellationRepository(), broadcaster).(*constellationService)
	return broadcaster, svc
}

func sketch(id domain.ConstellationID, name string) *domain.Constellation {
	return &domain.Constellation{
		ID:   id,
		Name: name,
		Stars: []domain.Star{
			{ID: "a", Position: [3]float64{0, 5, 0}, Size: 0.4, Color: "#fff"},
			{ID: "b", Position: [3]float64{1, 6, 0}, Size: 0.3, Color: "#ccc"},
		},
		Connections: []domain.StarLink{{From: "a", To: "b"}},
		LineColor:   "#8899ff",
	}
}

func TestConstellationService_UpsertAssignsIDAndBroadcasts(t *testing.T) {
	broadcaster, svc := newConstellationFixture()

	saved, err := svc.Upsert(context.Background(), "user_1", sketch("", "Northern Cross"))
	require.NoError(t, err)

	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, domain.UserID("user_1"), saved.UpdatedBy)
	assert.False(t, saved.UpdatedAt.IsZero())
	require.Len(t, broadcaster.constellation, 1)
}

func TestConstellationService_LastWriteWins(t *testing.T) {
	_, svc := newConstellationFixture()
	ctx := context.Background()

	first, err := svc.Upsert(ctx, "user_1", sketch("constellation_x", "Original"))
	require.NoError(t, err)

	// The second writer revises after the first, so it wins.
	time.Sleep(2 * time.Millisecond)
	second, err := svc.Upsert(ctx, "user_2", sketch("constellation_x", "Revised"))
	require.NoError(t, err)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))

	got, err := svc.Get(ctx, "constellation_x")
	require.NoError(t, err)
	assert.Equal(t, "Revised", got.Name)
	assert.Equal(t, domain.UserID("user_2"), got.UpdatedBy)
}

func TestConstellationService_StaleRevisionRejected(t *testing.T) {
	broadcaster, svc := newConstellationFixture()
	ctx := context.Background()

	_, err := svc.Upsert(ctx, "user_1", sketch("constellation_x", "Current"))
	require.NoError(t, err)

	// Force a stored revision far in the future, then try to write over it.
	stored, err := svc.Get(ctx, "constellation_x")
	require.NoError(t, err)
	stored.UpdatedAt = time.Now().Add(time.Hour)
	require.NoError(t, svc.constellationRepo.Upsert(ctx, stored))

	_, err = svc.Upsert(ctx, "user_2", sketch("constellation_x", "Stale"))
	assert.ErrorIs(t, err, domain.ErrStaleRevision)

	got, err := svc.Get(ctx, "constellation_x")
	require.NoError(t, err)
	assert.Equal(t, "Current", got.Name, "losing revision must not be merged")
	assert.Len(t, broadcaster.constellation, 1, "rejected revisions are not broadcast")
}

func TestConstellationService_ValidatesName(t *testing.T) {
	_, svc := newConstellationFixture()

	_, err := svc.Upsert(context.Background(), "user_1", sketch("", "   "))
	assert.Error(t, err)
}

func TestConstellationService_RejectsDanglingConnections(t *testing.T) {
	_, svc := newConstellationFixture()

	c := sketch("", "Broken")
	c.Connections = append(c.Connections, domain.StarLink{From: "a", To: "nowhere"})

	_, err := svc.Upsert(context.Background(), "user_1", c)
	assert.Error(t, err)
}

func TestConstellationService_Delete(t *testing.T) {
	_, svc := newConstellationFixture()
	ctx := context.Background()

	saved, err := svc.Upsert(ctx, "user_1", sketch("", "Short Lived"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "user_1", saved.ID))

	_, err = svc.Get(ctx, saved.ID)
	assert.ErrorIs(t, err, domain.ErrConstellationNotFound)
}
