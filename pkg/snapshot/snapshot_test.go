package snapshot

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type world struct {
	Names []string `json:"names"`
}

func newFileService(t *testing.T) *Service {
	t.Helper()
	storage, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	return NewService(storage, "test")
}

func TestTakeAndRestore(t *testing.T) {
	svc := newFileService(t)
	ctx := context.Background()

	snap := &Snapshot{}
	require.NoError(t, snap.SetEntity("constellations", world{Names: []string{"orion", "lyra"}}))

	name, err := svc.Take(ctx, snap)
	require.NoError(t, err)
	assert.Contains(t, name, "snapshot-")

	restored, err := svc.Restore(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, "test", restored.Version)

	var w world
	require.NoError(t, restored.Entity("constellations", &w))
	assert.Equal(t, []string{"orion", "lyra"}, w.Names)
}

func TestEntity_MissingKeyLeavesOutUntouched(t *testing.T) {
	snap := &Snapshot{}
	w := world{Names: []string{"keep"}}
	require.NoError(t, snap.Entity("absent", &w))
	assert.Equal(t, []string{"keep"}, w.Names)
}

func TestLatest_EmptyStorageReturnsNil(t *testing.T) {
	svc := newFileService(t)

	snap, err := svc.Latest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestPrune_KeepsNewestCaptures(t *testing.T) {
	svc := newFileService(t)
	ctx := context.Background()

	// Same-second captures collide on name, so make the payload distinct
	// and save through the storage layer directly.
	names := []string{"snapshot-20240101-000000.json", "snapshot-20240102-000000.json", "snapshot-20240103-000000.json"}
	for _, name := range names {
		require.NoError(t, svc.storage.Save(ctx, name, strings.NewReader(`{"version":"test","entities":{}}`)))
	}

	require.NoError(t, svc.Prune(ctx, 2))

	remaining, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, names[1:], remaining)
}
