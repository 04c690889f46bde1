package optimistic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	Likes int
}

func TestDo_CommitSuccessKeepsAppliedValue(t *testing.T) {
	store := NewStore(counter{Likes: 3})

	err := store.Do(context.Background(), Mutation[counter]{
		Apply:  func(c counter) counter { c.Likes++; return c },
		Commit: func(ctx context.Context) error { return nil },
	})

	require.NoError(t, err)
	assert.Equal(t, 4, store.Get().Likes)
}

func TestDo_CommitFailureRestoresPriorValue(t *testing.T) {
	store := NewStore(counter{Likes: 3})
	commitErr := errors.New("server rejected")

	err := store.Do(context.Background(), Mutation[counter]{
		Apply:  func(c counter) counter { c.Likes++; return c },
		Commit: func(ctx context.Context) error { return commitErr },
	})

	assert.ErrorIs(t, err, commitErr)
	assert.Equal(t, 3, store.Get().Likes, "failed commit must restore the exact prior value")
}

func TestDo_FailureDoesNotRollBackOverNewerWrite(t *testing.T) {
	store := NewStore(counter{Likes: 0})

	err := store.Do(context.Background(), Mutation[counter]{
		Apply: func(c counter) counter { c.Likes = 10; return c },
		Commit: func(ctx context.Context) error {
			// Authoritative update lands while the commit is in flight.
			store.Reconcile(counter{Likes: 99})
			return errors.New("commit lost the race")
		},
	})

	require.Error(t, err)
	assert.Equal(t, 99, store.Get().Likes, "reconciled value must survive the rollback")
}

func TestDo_NilCommitActsLocally(t *testing.T) {
	store := NewStore(counter{})

	err := store.Do(context.Background(), Mutation[counter]{
		Apply: func(c counter) counter { c.Likes = 7; return c },
	})

	require.NoError(t, err)
	assert.Equal(t, 7, store.Get().Likes)
}

func TestUpdateAndReconcile(t *testing.T) {
	store := NewStore(counter{Likes: 1})

	store.Update(func(c counter) counter { c.Likes *= 2; return c })
	assert.Equal(t, 2, store.Get().Likes)

	store.Reconcile(counter{Likes: 5})
	assert.Equal(t, 5, store.Get().Likes)
}
