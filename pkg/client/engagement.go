package client

import (
	"context"

	"astrelay/internal/core/domain"
	"astrelay/pkg/optimistic"
)

// EngagementMirror tracks one post's counters on the client. Likes and
// reactions bump immediately; a rejected commit restores the previous
// counters, and server broadcasts reconcile the mirror wholesale.
type EngagementMirror struct {
	postID domain.PostID
	store  *optimistic.Store[domain.Engagement]
}

func NewEngagementMirror(postID domain.PostID, initial domain.Engagement) *EngagementMirror {
	return &EngagementMirror{
		postID: postID,
		store:  optimistic.NewStore(cloneEngagement(initial)),
	}
}

func (m *EngagementMirror) PostID() domain.PostID {
	return m.postID
}

func (m *EngagementMirror) Get() domain.Engagement {
	return m.store.Get()
}

// Like bumps the like counter and confirms through commit, typically a
// REST call against /posts/{id}/react.
func (m *EngagementMirror) Like(ctx context.Context, commit func(ctx context.Context) error) error {
	return m.store.Do(ctx, optimistic.Mutation[domain.Engagement]{
		Apply: func(e domain.Engagement) domain.Engagement {
			next := cloneEngagement(e)
			next.Likes++
			return next
		},
		Commit: commit,
	})
}

// React bumps a named reaction counter and confirms through commit.
func (m *EngagementMirror) React(ctx context.Context, reaction string, commit func(ctx context.Context) error) error {
	return m.store.Do(ctx, optimistic.Mutation[domain.Engagement]{
		Apply: func(e domain.Engagement) domain.Engagement {
			next := cloneEngagement(e)
			if next.Reactions == nil {
				next.Reactions = make(map[string]int64)
			}
			next.Reactions[reaction]++
			return next
		},
		Commit: commit,
	})
}

// Reconcile replaces the mirror with the authoritative counters from a
// post_engagement_update broadcast.
func (m *EngagementMirror) Reconcile(authoritative domain.Engagement) {
	m.store.Reconcile(cloneEngagement(authoritative))
}

func cloneEngagement(e domain.Engagement) domain.Engagement {
	out := domain.Engagement{Likes: e.Likes}
	if e.Reactions != nil {
		out.Reactions = make(map[string]int64, len(e.Reactions))
		for k, v := range e.Reactions {
			out.Reactions[k] = v
		}
	}
	return out
}
