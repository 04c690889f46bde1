package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"astrelay/internal/core/domain"
	"astrelay/internal/core/ports"
	"astrelay/pkg/utils"
	"astrelay/pkg/validation"
)

type constellationService struct {
	constellationRepo ports.ConstellationRepository
	broadcaster       ports.Broadcaster
}

func NewConstellationService(
	constellationRepo ports.ConstellationRepository,
	broadcaster ports.Broadcaster,
) ports.ConstellationService {
	return &constellationService{
		constellationRepo: constellationRepo,
		broadcaster:       broadcaster,
	}
}

// Upsert writes a constellation revision under the last-write-wins policy:
// a revision older than the stored one is rejected, not merged.
func (s *constellationService) Upsert(ctx context.Context, editor domain.UserID, c *domain.Constellation) (*domain.Constellation, error) {
	if err := validation.ConstellationName(c.Name); err != nil {
		return nil, err
	}
	if err := validateStarLinks(c); err != nil {
		return nil, err
	}

	if c.ID == "" {
		c.ID = domain.ConstellationID(utils.GenerateConstellationID())
	}
	c.UpdatedAt = time.Now()
	c.UpdatedBy = editor

	current, err := s.constellationRepo.GetByID(ctx, c.ID)
	if err != nil && !errors.Is(err, domain.ErrConstellationNotFound) {
		return nil, fmt.Errorf("failed to load constellation: %w", err)
	}
	if current != nil && !c.Supersedes(current) {
		return nil, domain.ErrStaleRevision
	}

	if err := s.constellationRepo.Upsert(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to store constellation: %w", err)
	}

	s.broadcaster.ConstellationUpdated(c)
	return c, nil
}

func (s *constellationService) Get(ctx context.Context, id domain.ConstellationID) (*domain.Constellation, error) {
	return s.constellationRepo.GetByID(ctx, id)
}

func (s *constellationService) List(ctx context.Context) ([]*domain.Constellation, error) {
	return s.constellationRepo.List(ctx)
}

func (s *constellationService) Delete(ctx context.Context, editor domain.UserID, id domain.ConstellationID) error {
	current, err := s.constellationRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.constellationRepo.Delete(ctx, current.ID); err != nil {
		return fmt.Errorf("failed to delete constellation: %w", err)
	}
	return nil
}

func validateStarLinks(c *domain.Constellation) error {
	stars := make(map[string]struct{}, len(c.Stars))
	for _, star := range c.Stars {
		stars[star.ID] = struct{}{}
	}
	for _, link := range c.Connections {
		if _, ok := stars[link.From]; !ok {
			return fmt.Errorf("connection references unknown star %q", link.From)
		}
		if _, ok := stars[link.To]; !ok {
			return fmt.Errorf("connection references unknown star %q", link.To)
		}
	}
	return nil
}
