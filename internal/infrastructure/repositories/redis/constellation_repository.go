package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"astrelay/internal/core/domain"
	"astrelay/internal/core/ports"
	"astrelay/pkg/distributed"

	"github.com/redis/go-redis/v9"
)

const (
	constellationPrefix   = "astrelay:constellation:"
	constellationIndexKey = "astrelay:constellations"
	constellationLockTTL  = 5 * time.Second
)

// RedisConstellationRepository guards each upsert with a short per-entity
// lock so the read-compare-write of the last-write-wins check is atomic
// across relay instances.
type RedisConstellationRepository struct {
	client      *redis.Client
	lockManager *distributed.LockManager
}

func NewRedisConstellationRepository(client *redis.Client) ports.ConstellationRepository {
	return &RedisConstellationRepository{
		client:      client,
		lockManager: distributed.NewLockManager(client, "astrelay:lock:"),
	}
}

func (r *RedisConstellationRepository) Upsert(ctx context.Context, c *domain.Constellation) error {
	lock := r.lockManager.AcquireLock("constellation:"+string(c.ID), constellationLockTTL)
	if err := lock.Lock(ctx); err != nil {
		return fmt.Errorf("failed to lock constellation: %w", err)
	}
	defer lock.Unlock(ctx)

	current, err := r.GetByID(ctx, c.ID)
	if err != nil && err != domain.ErrConstellationNotFound {
		return err
	}
	if current != nil && !c.Supersedes(current) {
		return domain.ErrStaleRevision
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal constellation: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, constellationPrefix+string(c.ID), data, 0)
	pipe.SAdd(ctx, constellationIndexKey, string(c.ID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store constellation: %w", err)
	}
	return nil
}

func (r *RedisConstellationRepository) GetByID(ctx context.Context, id domain.ConstellationID) (*domain.Constellation, error) {
	data, err := r.client.Get(ctx, constellationPrefix+string(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrConstellationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get constellation: %w", err)
	}

	var c domain.Constellation
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal constellation: %w", err)
	}
	return &c, nil
}

func (r *RedisConstellationRepository) List(ctx context.Context) ([]*domain.Constellation, error) {
	ids, err := r.client.SMembers(ctx, constellationIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list constellations: %w", err)
	}

	out := make([]*domain.Constellation, 0, len(ids))
	for _, id := range ids {
		c, err := r.GetByID(ctx, domain.ConstellationID(id))
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *RedisConstellationRepository) Delete(ctx context.Context, id domain.ConstellationID) error {
	removed, err := r.client.Del(ctx, constellationPrefix+string(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete constellation: %w", err)
	}
	r.client.SRem(ctx, constellationIndexKey, string(id))

	if removed == 0 {
		return domain.ErrConstellationNotFound
	}
	return nil
}
