package memory

import (
	"context"
	"sync"

	"astrelay/internal/core/domain"
	"astrelay/internal/core/ports"
)

type MemoryUserRepository struct {
	users   map[domain.UserID]*domain.User
	byEmail map[string]domain.UserID
	mu      sync.RWMutex
}

func NewMemoryUserRepository() ports.UserRepository {
	return &MemoryUserRepository{
		users:   make(map[domain.UserID]*domain.User),
		byEmail: make(map[string]domain.UserID),
	}
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return domain.ErrUserExists
	}

	clone := *user
	r.users[user.ID] = &clone
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, domain.ErrUserNotFound
	}

	clone := *user
	return &clone, nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byEmail[email]
	if !exists {
		return nil, domain.ErrUserNotFound
	}

	clone := *r.users[id]
	return &clone, nil
}
