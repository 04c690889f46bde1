package ports

import (
	"context"

	"astrelay/internal/core/domain"
)

// PresenceService maintains the presence registry and pushes membership
// changes to the broadcast channel.
type PresenceService interface {
	Connect(ctx context.Context, user *domain.OnlineUser) error
	Disconnect(ctx context.Context, userID domain.UserID) error
	ApplyAvatarPatch(ctx context.Context, sender, owner domain.UserID, patch domain.AvatarPatch) error
	Heartbeat(ctx context.Context, userID domain.UserID) error
	Snapshot(ctx context.Context) ([]*domain.OnlineUser, error)
}

// ActionService validates and broadcasts zodiac actions, enforcing the
// per-user cooldown.
type ActionService interface {
	Trigger(ctx context.Context, userID domain.UserID, username string, action domain.ActionType) (*domain.RecentAction, error)
	Recent(ctx context.Context) []domain.RecentAction
}

type PostService interface {
	CreatePost(ctx context.Context, authorID domain.UserID, authorName, body, sigil string) (*domain.Post, error)
	GetPost(ctx context.Context, id domain.PostID) (*domain.Post, error)
	ListPosts(ctx context.Context, limit int) ([]*domain.Post, error)
	React(ctx context.Context, delta domain.EngagementDelta) error
}

type StreamService interface {
	CreateStream(ctx context.Context, hostID domain.UserID, title string) (*domain.Stream, error)
	GetStream(ctx context.Context, id domain.StreamID) (*domain.Stream, error)
	ListLive(ctx context.Context) ([]*domain.Stream, error)
	Join(ctx context.Context, id domain.StreamID, userID domain.UserID) error
	Leave(ctx context.Context, id domain.StreamID, userID domain.UserID) error
	End(ctx context.Context, id domain.StreamID, hostID domain.UserID) error
	Stats(ctx context.Context, id domain.StreamID) (*domain.StreamStats, error)
}

type ConstellationService interface {
	Upsert(ctx context.Context, editor domain.UserID, c *domain.Constellation) (*domain.Constellation, error)
	Get(ctx context.Context, id domain.ConstellationID) (*domain.Constellation, error)
	List(ctx context.Context) ([]*domain.Constellation, error)
	Delete(ctx context.Context, editor domain.UserID, id domain.ConstellationID) error
}

// Broadcaster is the outbound side of the relay: services publish domain
// events through it without knowing about connections or instances.
type Broadcaster interface {
	UserConnected(user *domain.OnlineUser)
	UserDisconnected(userID domain.UserID)
	AvatarUpdated(userID domain.UserID, avatar domain.Avatar)
	ActionPerformed(action *domain.RecentAction)
	ConstellationUpdated(c *domain.Constellation)
	StreamJoined(streamID domain.StreamID, userID domain.UserID, viewers int)
	StreamLeft(streamID domain.StreamID, userID domain.UserID, viewers int)
	NewPost(post *domain.Post)
	EngagementUpdated(postID domain.PostID, engagement *domain.Engagement)
}
