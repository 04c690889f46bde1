package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"astrelay/internal/core/domain"
	"astrelay/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const (
	streamPrefix  = "astrelay:stream:"
	streamLiveKey = "astrelay:streams:live"
)

// RedisStreamRepository stores stream records as JSON with a set index of
// live streams. Streams created by the API process are visible to every
// relay instance that shares the same Redis backend.
type RedisStreamRepository struct {
	client *redis.Client
}

func NewRedisStreamRepository(client *redis.Client) ports.StreamRepository {
	return &RedisStreamRepository{client: client}
}

func (r *RedisStreamRepository) Create(ctx context.Context, stream *domain.Stream) error {
	data, err := json.Marshal(stream)
	if err != nil {
		return fmt.Errorf("failed to marshal stream: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, streamPrefix+string(stream.ID), data, 0)
	if stream.Live {
		pipe.SAdd(ctx, streamLiveKey, string(stream.ID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store stream: %w", err)
	}
	return nil
}

func (r *RedisStreamRepository) GetByID(ctx context.Context, id domain.StreamID) (*domain.Stream, error) {
	data, err := r.client.Get(ctx, streamPrefix+string(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stream: %w", err)
	}

	var stream domain.Stream
	if err := json.Unmarshal([]byte(data), &stream); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stream: %w", err)
	}
	return &stream, nil
}

func (r *RedisStreamRepository) Update(ctx context.Context, stream *domain.Stream) error {
	exists, err := r.client.Exists(ctx, streamPrefix+string(stream.ID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check stream: %w", err)
	}
	if exists == 0 {
		return domain.ErrStreamNotFound
	}

	data, err := json.Marshal(stream)
	if err != nil {
		return fmt.Errorf("failed to marshal stream: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, streamPrefix+string(stream.ID), data, 0)
	if stream.Live {
		pipe.SAdd(ctx, streamLiveKey, string(stream.ID))
	} else {
		pipe.SRem(ctx, streamLiveKey, string(stream.ID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update stream: %w", err)
	}
	return nil
}

func (r *RedisStreamRepository) ListLive(ctx context.Context) ([]*domain.Stream, error) {
	ids, err := r.client.SMembers(ctx, streamLiveKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read live index: %w", err)
	}

	streams := make([]*domain.Stream, 0, len(ids))
	for _, id := range ids {
		stream, err := r.GetByID(ctx, domain.StreamID(id))
		if err != nil {
			continue
		}
		if stream.Live {
			streams = append(streams, stream)
		}
	}
	return streams, nil
}
