package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"astrelay/internal/core/domain"
	"astrelay/internal/core/ports"
)

type MemoryPresenceRepository struct {
	users map[domain.UserID]*domain.OnlineUser
	mu    sync.RWMutex
}

func NewMemoryPresenceRepository() ports.PresenceRepository {
	return &MemoryPresenceRepository{
		users: make(map[domain.UserID]*domain.OnlineUser),
	}
}

func (r *MemoryPresenceRepository) Add(ctx context.Context, user *domain.OnlineUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *MemoryPresenceRepository) GetByID(ctx context.Context, id domain.UserID) (*domain.OnlineUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, domain.ErrUserNotFound
	}

	clone := *user
	return &clone, nil
}

func (r *MemoryPresenceRepository) Remove(ctx context.Context, id domain.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[id]; !exists {
		return domain.ErrUserNotFound
	}

	delete(r.users, id)
	return nil
}

func (r *MemoryPresenceRepository) UpdateAvatar(ctx context.Context, id domain.UserID, avatar domain.Avatar) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[id]
	if !exists {
		return domain.ErrUserNotFound
	}

	user.Avatar = avatar
	user.LastSeen = time.Now()
	return nil
}

func (r *MemoryPresenceRepository) Touch(ctx context.Context, id domain.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[id]
	if !exists {
		return domain.ErrUserNotFound
	}

	user.LastSeen = time.Now()
	return nil
}

func (r *MemoryPresenceRepository) List(ctx context.Context) ([]*domain.OnlineUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*domain.OnlineUser, 0, len(r.users))
	for _, user := range r.users {
		clone := *user
		users = append(users, &clone)
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].ConnectedAt.Before(users[j].ConnectedAt)
	})

	return users, nil
}

func (r *MemoryPresenceRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users), nil
}
