package services

import (
	"context"
	"fmt"
	"time"

	"astrelay/internal/core/domain"
	"astrelay/internal/core/ports"
	"astrelay/pkg/batch"
	"astrelay/pkg/utils"
	"astrelay/pkg/validation"
)

type postService struct {
	postRepo    ports.PostRepository
	broadcaster ports.Broadcaster
	batcher     *batch.Batcher[domain.PostID]
}

// NewPostService wires the post store to the relay. Engagement broadcasts
// are coalesced per post so a burst of reactions becomes a single
// post_engagement envelope.
func NewPostService(
	postRepo ports.PostRepository,
	broadcaster ports.Broadcaster,
	flushInterval time.Duration,
) ports.PostService {
	s := &postService{
		postRepo:    postRepo,
		broadcaster: broadcaster,
	}
	if flushInterval <= 0 {
		flushInterval = 250 * time.Millisecond
	}
	s.batcher = batch.NewBatcher[domain.PostID](64, flushInterval, s.flushEngagement)
	return s
}

func (s *postService) CreatePost(ctx context.Context, authorID domain.UserID, authorName, body, sigil string) (*domain.Post, error) {
	if err := validation.PostBody(body); err != nil {
		return nil, err
	}

	post := &domain.Post{
		ID:         domain.PostID(utils.GeneratePostID()),
		AuthorID:   authorID,
		AuthorName: authorName,
		Body:       utils.SanitizeString(body),
		Sigil:      sigil,
		Engagement: domain.Engagement{Reactions: map[string]int64{}},
		CreatedAt:  time.Now(),
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	s.broadcaster.NewPost(post)
	return post, nil
}

func (s *postService) GetPost(ctx context.Context, id domain.PostID) (*domain.Post, error) {
	return s.postRepo.GetByID(ctx, id)
}

func (s *postService) ListPosts(ctx context.Context, limit int) ([]*domain.Post, error) {
	return s.postRepo.List(ctx, limit)
}

// React applies the delta immediately (the caller's 2xx is the optimistic
// confirmation) and queues the post for a coalesced broadcast.
func (s *postService) React(ctx context.Context, delta domain.EngagementDelta) error {
	if delta.Likes == 0 && delta.Reaction == "" {
		return fmt.Errorf("empty engagement delta")
	}
	if delta.Reaction != "" && delta.Count == 0 {
		delta.Count = 1
	}

	if _, err := s.postRepo.ApplyEngagement(ctx, delta); err != nil {
		return err
	}

	s.batcher.Add(delta.PostID)
	return nil
}

func (s *postService) flushEngagement(ctx context.Context, ids []domain.PostID) error {
	seen := make(map[domain.PostID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		post, err := s.postRepo.GetByID(ctx, id)
		if err != nil {
			continue
		}
		s.broadcaster.EngagementUpdated(post.ID, &post.Engagement)
	}
	return nil
}
