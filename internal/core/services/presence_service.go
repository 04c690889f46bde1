package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"astrelay/internal/core/domain"
	"astrelay/internal/core/ports"
)

type presenceService struct {
	presenceRepo ports.PresenceRepository
	broadcaster  ports.Broadcaster
}

func NewPresenceService(
	presenceRepo ports.PresenceRepository,
	broadcaster ports.Broadcaster,
) ports.PresenceService {
	return &presenceService{
		presenceRepo: presenceRepo,
		broadcaster:  broadcaster,
	}
}

func (s *presenceService) Connect(ctx context.Context, user *domain.OnlineUser) error {
	// A reconnecting user replaces their previous record.
	if err := s.presenceRepo.Remove(ctx, user.ID); err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("failed to replace presence record: %w", err)
	}

	now := time.Now()
	user.ConnectedAt = now
	user.LastSeen = now

	if err := s.presenceRepo.Add(ctx, user); err != nil {
		return fmt.Errorf("failed to register presence: %w", err)
	}

	s.broadcaster.UserConnected(user)
	return nil
}

func (s *presenceService) Disconnect(ctx context.Context, userID domain.UserID) error {
	err := s.presenceRepo.Remove(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		// Removing an absent user is a no-op.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to remove presence: %w", err)
	}

	s.broadcaster.UserDisconnected(userID)
	return nil
}

func (s *presenceService) ApplyAvatarPatch(ctx context.Context, sender, owner domain.UserID, patch domain.AvatarPatch) error {
	if sender != owner {
		return domain.ErrNotAvatarOwner
	}

	user, err := s.presenceRepo.GetByID(ctx, owner)
	if errors.Is(err, domain.ErrUserNotFound) {
		// Patches for unknown users are dropped, never implicitly created.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load presence: %w", err)
	}

	avatar := user.Avatar.Merge(patch)
	if err := s.presenceRepo.UpdateAvatar(ctx, owner, avatar); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("failed to update avatar: %w", err)
	}

	s.broadcaster.AvatarUpdated(owner, avatar)
	return nil
}

func (s *presenceService) Heartbeat(ctx context.Context, userID domain.UserID) error {
	err := s.presenceRepo.Touch(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil
	}
	return err
}

func (s *presenceService) Snapshot(ctx context.Context) ([]*domain.OnlineUser, error) {
	return s.presenceRepo.List(ctx)
}
