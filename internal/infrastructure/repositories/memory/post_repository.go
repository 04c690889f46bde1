package memory

import (
	"context"
	"sort"
	"sync"

	"astrelay/internal/core/domain"
	"astrelay/internal/core/ports"
)

type MemoryPostRepository struct {
	posts map[domain.PostID]*domain.Post
	mu    sync.RWMutex
}

func NewMemoryPostRepository() ports.PostRepository {
	return &MemoryPostRepository{
		posts: make(map[domain.PostID]*domain.Post),
	}
}

func (r *MemoryPostRepository) Create(ctx context.Context, post *domain.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := clonePost(post)
	r.posts[post.ID] = clone
	return nil
}

func (r *MemoryPostRepository) GetByID(ctx context.Context, id domain.PostID) (*domain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	post, exists := r.posts[id]
	if !exists {
		return nil, domain.ErrPostNotFound
	}
	return clonePost(post), nil
}

func (r *MemoryPostRepository) List(ctx context.Context, limit int) ([]*domain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	posts := make([]*domain.Post, 0, len(r.posts))
	for _, post := range r.posts {
		posts = append(posts, clonePost(post))
	}

	// Newest first.
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (r *MemoryPostRepository) ApplyEngagement(ctx context.Context, delta domain.EngagementDelta) (*domain.Engagement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, exists := r.posts[delta.PostID]
	if !exists {
		return nil, domain.ErrPostNotFound
	}

	post.Engagement.Likes += delta.Likes
	if delta.Reaction != "" {
		if post.Engagement.Reactions == nil {
			post.Engagement.Reactions = make(map[string]int64)
		}
		post.Engagement.Reactions[delta.Reaction] += delta.Count
	}

	engagement := clonePost(post).Engagement
	return &engagement, nil
}

func clonePost(post *domain.Post) *domain.Post {
	clone := *post
	if post.Engagement.Reactions != nil {
		clone.Engagement.Reactions = make(map[string]int64, len(post.Engagement.Reactions))
		for k, v := range post.Engagement.Reactions {
			clone.Engagement.Reactions[k] = v
		}
	}
	return &clone
}
