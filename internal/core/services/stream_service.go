package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"astrelay/internal/core/domain"
	"astrelay/internal/core/ports"
	"astrelay/pkg/utils"
	"astrelay/pkg/validation"
)

type streamService struct {
	streamRepo  ports.StreamRepository
	broadcaster ports.Broadcaster

	mu      sync.Mutex
	viewers map[domain.StreamID]map[domain.UserID]struct{}
	peaks   map[domain.StreamID]int
}

func NewStreamService(streamRepo ports.StreamRepository, broadcaster ports.Broadcaster) ports.StreamService {
	return &streamService{
		streamRepo:  streamRepo,
		broadcaster: broadcaster,
		viewers:     make(map[domain.StreamID]map[domain.UserID]struct{}),
		peaks:       make(map[domain.StreamID]int),
	}
}

func (s *streamService) CreateStream(ctx context.Context, hostID domain.UserID, title string) (*domain.Stream, error) {
	if err := validation.StreamTitle(title); err != nil {
		return nil, err
	}

	stream := &domain.Stream{
		ID:        domain.StreamID(utils.GenerateStreamID()),
		Title:     title,
		HostID:    hostID,
		Live:      true,
		StartedAt: time.Now(),
	}

	if err := s.streamRepo.Create(ctx, stream); err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	return stream, nil
}

func (s *streamService) GetStream(ctx context.Context, id domain.StreamID) (*domain.Stream, error) {
	return s.streamRepo.GetByID(ctx, id)
}

func (s *streamService) ListLive(ctx context.Context) ([]*domain.Stream, error) {
	return s.streamRepo.ListLive(ctx)
}

func (s *streamService) Join(ctx context.Context, id domain.StreamID, userID domain.UserID) error {
	stream, err := s.streamRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !stream.Live {
		return domain.ErrStreamNotLive
	}

	count := s.addViewer(id, userID)

	stream.Viewers = count
	if err := s.streamRepo.Update(ctx, stream); err != nil {
		return fmt.Errorf("failed to update stream viewers: %w", err)
	}

	s.broadcaster.StreamJoined(id, userID, count)
	return nil
}

func (s *streamService) Leave(ctx context.Context, id domain.StreamID, userID domain.UserID) error {
	stream, err := s.streamRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	count := s.removeViewer(id, userID)

	stream.Viewers = count
	if err := s.streamRepo.Update(ctx, stream); err != nil {
		return fmt.Errorf("failed to update stream viewers: %w", err)
	}

	s.broadcaster.StreamLeft(id, userID, count)
	return nil
}

func (s *streamService) End(ctx context.Context, id domain.StreamID, hostID domain.UserID) error {
	stream, err := s.streamRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if stream.HostID != hostID {
		return domain.ErrNotStreamHost
	}

	stream.Live = false
	stream.EndedAt = time.Now()
	stream.Viewers = 0
	if err := s.streamRepo.Update(ctx, stream); err != nil {
		return fmt.Errorf("failed to end stream: %w", err)
	}

	s.mu.Lock()
	delete(s.viewers, id)
	s.mu.Unlock()

	return nil
}

func (s *streamService) Stats(ctx context.Context, id domain.StreamID) (*domain.StreamStats, error) {
	stream, err := s.streamRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	peak := s.peaks[id]
	current := len(s.viewers[id])
	s.mu.Unlock()

	var uptime time.Duration
	if stream.Live {
		uptime = time.Since(stream.StartedAt)
	} else if !stream.EndedAt.IsZero() {
		uptime = stream.EndedAt.Sub(stream.StartedAt)
	}

	return &domain.StreamStats{
		StreamID:    id,
		Viewers:     current,
		PeakViewers: peak,
		Uptime:      uptime,
	}, nil
}

func (s *streamService) addViewer(id domain.StreamID, userID domain.UserID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.viewers[id]
	if !ok {
		set = make(map[domain.UserID]struct{})
		s.viewers[id] = set
	}
	set[userID] = struct{}{}

	count := len(set)
	if count > s.peaks[id] {
		s.peaks[id] = count
	}
	return count
}

func (s *streamService) removeViewer(id domain.StreamID, userID domain.UserID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.viewers[id]
	if !ok {
		return 0
	}
	delete(set, userID)
	return len(set)
}
