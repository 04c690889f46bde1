package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"astrelay/internal/core/domain"
	"astrelay/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const (
	postPrefix       = "astrelay:post:"
	postTimelineKey  = "astrelay:posts:timeline"
	engagementPrefix = "astrelay:engagement:"
)

// RedisPostRepository stores post bodies as JSON and engagement counters
// in a hash, so concurrent reactions increment atomically.
type RedisPostRepository struct {
	client *redis.Client
}

func NewRedisPostRepository(client *redis.Client) ports.PostRepository {
	return &RedisPostRepository{client: client}
}

func (r *RedisPostRepository) Create(ctx context.Context, post *domain.Post) error {
	data, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("failed to marshal post: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, postPrefix+string(post.ID), data, 0)
	pipe.ZAdd(ctx, postTimelineKey, redis.Z{
		Score:  float64(post.CreatedAt.UnixNano()),
		Member: string(post.ID),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store post: %w", err)
	}
	return nil
}

func (r *RedisPostRepository) GetByID(ctx context.Context, id domain.PostID) (*domain.Post, error) {
	data, err := r.client.Get(ctx, postPrefix+string(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	var post domain.Post
	if err := json.Unmarshal([]byte(data), &post); err != nil {
		return nil, fmt.Errorf("failed to unmarshal post: %w", err)
	}

	engagement, err := r.readEngagement(ctx, id)
	if err != nil {
		return nil, err
	}
	post.Engagement = *engagement

	return &post, nil
}

func (r *RedisPostRepository) List(ctx context.Context, limit int) ([]*domain.Post, error) {
	if limit <= 0 {
		limit = 50
	}

	ids, err := r.client.ZRevRange(ctx, postTimelineKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read timeline: %w", err)
	}

	posts := make([]*domain.Post, 0, len(ids))
	for _, id := range ids {
		post, err := r.GetByID(ctx, domain.PostID(id))
		if err != nil {
			continue
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func (r *RedisPostRepository) ApplyEngagement(ctx context.Context, delta domain.EngagementDelta) (*domain.Engagement, error) {
	exists, err := r.client.Exists(ctx, postPrefix+string(delta.PostID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check post: %w", err)
	}
	if exists == 0 {
		return nil, domain.ErrPostNotFound
	}

	key := engagementPrefix + string(delta.PostID)
	pipe := r.client.TxPipeline()
	if delta.Likes != 0 {
		pipe.HIncrBy(ctx, key, "likes", delta.Likes)
	}
	if delta.Reaction != "" {
		pipe.HIncrBy(ctx, key, "reaction:"+delta.Reaction, delta.Count)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to apply engagement: %w", err)
	}

	return r.readEngagement(ctx, delta.PostID)
}

func (r *RedisPostRepository) readEngagement(ctx context.Context, id domain.PostID) (*domain.Engagement, error) {
	fields, err := r.client.HGetAll(ctx, engagementPrefix+string(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read engagement: %w", err)
	}

	engagement := domain.Engagement{Reactions: map[string]int64{}}
	for field, value := range fields {
		var n int64
		fmt.Sscanf(value, "%d", &n)
		if field == "likes" {
			engagement.Likes = n
			continue
		}
		if name, ok := strings.CutPrefix(field, "reaction:"); ok {
			engagement.Reactions[name] = n
		}
	}
	return &engagement, nil
}
