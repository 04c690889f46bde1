package ports

import (
	"context"

	"astrelay/internal/core/domain"
)

// PresenceRepository stores the live set of connected users. Records are
// ephemeral; Redis-backed implementations expire them via TTL.
type PresenceRepository interface {
	Add(ctx context.Context, user *domain.OnlineUser) error
	GetByID(ctx context.Context, id domain.UserID) (*domain.OnlineUser, error)
	Remove(ctx context.Context, id domain.UserID) error
	UpdateAvatar(ctx context.Context, id domain.UserID, avatar domain.Avatar) error
	Touch(ctx context.Context, id domain.UserID) error
	List(ctx context.Context) ([]*domain.OnlineUser, error)
	Count(ctx context.Context) (int, error)
}

type PostRepository interface {
	Create(ctx context.Context, post *domain.Post) error
	GetByID(ctx context.Context, id domain.PostID) (*domain.Post, error)
	List(ctx context.Context, limit int) ([]*domain.Post, error)
	ApplyEngagement(ctx context.Context, delta domain.EngagementDelta) (*domain.Engagement, error)
}

type StreamRepository interface {
	Create(ctx context.Context, stream *domain.Stream) error
	GetByID(ctx context.Context, id domain.StreamID) (*domain.Stream, error)
	Update(ctx context.Context, stream *domain.Stream) error
	ListLive(ctx context.Context) ([]*domain.Stream, error)
}

type ConstellationRepository interface {
	Upsert(ctx context.Context, c *domain.Constellation) error
	GetByID(ctx context.Context, id domain.ConstellationID) (*domain.Constellation, error)
	List(ctx context.Context) ([]*domain.Constellation, error)
	Delete(ctx context.Context, id domain.ConstellationID) error
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id domain.UserID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}
