package memory

import (
	"context"
	"sync"

	"astrelay/internal/core/domain"
	"astrelay/internal/core/ports"
)

type MemoryConstellationRepository struct {
	constellations map[domain.ConstellationID]*domain.Constellation
	mu             sync.RWMutex
}

func NewMemoryConstellationRepository() ports.ConstellationRepository {
	return &MemoryConstellationRepository{
		constellations: make(map[domain.ConstellationID]*domain.Constellation),
	}
}

func (r *MemoryConstellationRepository) Upsert(ctx context.Context, c *domain.Constellation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := cloneConstellation(c)
	r.constellations[c.ID] = clone
	return nil
}

func (r *MemoryConstellationRepository) GetByID(ctx context.Context, id domain.ConstellationID) (*domain.Constellation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, exists := r.constellations[id]
	if !exists {
		return nil, domain.ErrConstellationNotFound
	}
	return cloneConstellation(c), nil
}

func (r *MemoryConstellationRepository) List(ctx context.Context) ([]*domain.Constellation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Constellation, 0, len(r.constellations))
	for _, c := range r.constellations {
		out = append(out, cloneConstellation(c))
	}
	return out, nil
}

func (r *MemoryConstellationRepository) Delete(ctx context.Context, id domain.ConstellationID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constellations[id]; !exists {
		return domain.ErrConstellationNotFound
	}

	delete(r.constellations, id)
	return nil
}

func cloneConstellation(c *domain.Constellation) *domain.Constellation {
	clone := *c
	clone.Stars = append([]domain.Star(nil), c.Stars...)
	clone.Connections = append([]domain.StarLink(nil), c.Connections...)
	return &clone
}
