package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"astrelay/internal/core/domain"
	"astrelay/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const (
	presencePrefix   = "astrelay:presence:"
	presenceIndexKey = "astrelay:presence:index"

	// presenceTTL bounds how long a record outlives its last heartbeat;
	// a crashed relay cannot leave ghosts behind forever.
	presenceTTL = 90 * time.Second
)

type RedisPresenceRepository struct {
	client *redis.Client
}

func NewRedisPresenceRepository(client *redis.Client) ports.PresenceRepository {
	return &RedisPresenceRepository{client: client}
}

func (r *RedisPresenceRepository) Add(ctx context.Context, user *domain.OnlineUser) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal presence record: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(user.ID), data, presenceTTL)
	pipe.SAdd(ctx, presenceIndexKey, string(user.ID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to register presence: %w", err)
	}
	return nil
}

func (r *RedisPresenceRepository) GetByID(ctx context.Context, id domain.UserID) (*domain.OnlineUser, error) {
	data, err := r.client.Get(ctx, r.key(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get presence record: %w", err)
	}

	var user domain.OnlineUser
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presence record: %w", err)
	}
	return &user, nil
}

func (r *RedisPresenceRepository) Remove(ctx context.Context, id domain.UserID) error {
	removed, err := r.client.Del(ctx, r.key(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to remove presence record: %w", err)
	}

	r.client.SRem(ctx, presenceIndexKey, string(id))

	if removed == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *RedisPresenceRepository) UpdateAvatar(ctx context.Context, id domain.UserID, avatar domain.Avatar) error {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	user.Avatar = avatar
	user.LastSeen = time.Now()

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal presence record: %w", err)
	}
	return r.client.Set(ctx, r.key(id), data, presenceTTL).Err()
}

func (r *RedisPresenceRepository) Touch(ctx context.Context, id domain.UserID) error {
	ok, err := r.client.Expire(ctx, r.key(id), presenceTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to refresh presence TTL: %w", err)
	}
	if !ok {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *RedisPresenceRepository) List(ctx context.Context) ([]*domain.OnlineUser, error) {
	ids, err := r.client.SMembers(ctx, presenceIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list presence index: %w", err)
	}

	users := make([]*domain.OnlineUser, 0, len(ids))
	for _, id := range ids {
		user, err := r.GetByID(ctx, domain.UserID(id))
		if err != nil {
			// Expired records linger in the index until pruned here.
			r.client.SRem(ctx, presenceIndexKey, id)
			continue
		}
		users = append(users, user)
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].ConnectedAt.Before(users[j].ConnectedAt)
	})

	return users, nil
}

func (r *RedisPresenceRepository) Count(ctx context.Context) (int, error) {
	n, err := r.client.SCard(ctx, presenceIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count presence index: %w", err)
	}
	return int(n), nil
}

func (r *RedisPresenceRepository) key(id domain.UserID) string {
	return presencePrefix + string(id)
}
