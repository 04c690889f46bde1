package memory

import (
	"context"
	"sync"

	"astrelay/internal/core/domain"
	"astrelay/internal/core/ports"
)

type MemoryStreamRepository struct {
	streams map[domain.StreamID]*domain.Stream
	mu      sync.RWMutex
}

func NewMemoryStreamRepository() ports.StreamRepository {
	return &MemoryStreamRepository{
		streams: make(map[domain.StreamID]*domain.Stream),
	}
}

func (r *MemoryStreamRepository) Create(ctx context.Context, stream *domain.Stream) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *stream
	r.streams[stream.ID] = &clone
	return nil
}

func (r *MemoryStreamRepository) GetByID(ctx context.Context, id domain.StreamID) (*domain.Stream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stream, exists := r.streams[id]
	if !exists {
		return nil, domain.ErrStreamNotFound
	}

	clone := *stream
	return &clone, nil
}

func (r *MemoryStreamRepository) Update(ctx context.Context, stream *domain.Stream) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.streams[stream.ID]; !exists {
		return domain.ErrStreamNotFound
	}

	clone := *stream
	r.streams[stream.ID] = &clone
	return nil
}

func (r *MemoryStreamRepository) ListLive(ctx context.Context) ([]*domain.Stream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var live []*domain.Stream
	for _, stream := range r.streams {
		if stream.Live {
			clone := *stream
			live = append(live, &clone)
		}
	}
	return live, nil
}
