package distributed

import (
	"context"
	"time"

	"astrelay/internal/core/domain"
	"astrelay/internal/infrastructure/relay"

	"go.uber.org/zap"
)

// BusBroadcaster implements ports.Broadcaster for processes that hold no
// websocket connections of their own. Envelopes go straight to the bus,
// and the relay instances fan them out to their clients.
type BusBroadcaster struct {
	bus    *EventBus
	logger *zap.SugaredLogger
}

func NewBusBroadcaster(bus *EventBus, logger *zap.SugaredLogger) *BusBroadcaster {
	return &BusBroadcaster{bus: bus, logger: logger}
}

func (b *BusBroadcaster) publish(env *relay.Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := b.bus.Publish(ctx, env); err != nil {
		b.logger.Warnw("failed to publish envelope to bus", "type", env.Type, "error", err)
	}
}

func (b *BusBroadcaster) UserConnected(user *domain.OnlineUser) {
	b.publish(relay.NewEnvelope(relay.TypeUserConnected, user.ID, relay.PresencePayload{User: user, ID: user.ID}))
}

func (b *BusBroadcaster) UserDisconnected(userID domain.UserID) {
	b.publish(relay.NewEnvelope(relay.TypeUserDisconnected, userID, relay.PresencePayload{ID: userID}))
}

func (b *BusBroadcaster) AvatarUpdated(userID domain.UserID, avatar domain.Avatar) {
	b.publish(relay.NewEnvelope(relay.TypeAvatarUpdate, userID, relay.AvatarStatePayload{UserID: userID, Avatar: avatar}))
}

func (b *BusBroadcaster) ActionPerformed(action *domain.RecentAction) {
	b.publish(relay.NewEnvelope(relay.TypeZodiacAction, action.UserID, relay.ActionAckPayload{Action: *action}))
}

func (b *BusBroadcaster) ConstellationUpdated(c *domain.Constellation) {
	b.publish(relay.NewEnvelope(relay.TypeConstellationUpdate, c.UpdatedBy, c))
}

func (b *BusBroadcaster) StreamJoined(streamID domain.StreamID, userID domain.UserID, viewers int) {
	b.publish(relay.NewEnvelope(relay.TypeJoinStream, userID, relay.StreamEventPayload{StreamID: streamID, UserID: userID, Viewers: viewers}))
}

func (b *BusBroadcaster) StreamLeft(streamID domain.StreamID, userID domain.UserID, viewers int) {
	b.publish(relay.NewEnvelope(relay.TypeLeaveStream, userID, relay.StreamEventPayload{StreamID: streamID, UserID: userID, Viewers: viewers}))
}

func (b *BusBroadcaster) NewPost(post *domain.Post) {
	b.publish(relay.NewEnvelope(relay.TypeNewPost, post.AuthorID, post))
}

func (b *BusBroadcaster) EngagementUpdated(postID domain.PostID, engagement *domain.Engagement) {
	b.publish(relay.NewEnvelope(relay.TypePostEngagementUpdate, "", relay.EngagementPayload{PostID: postID, Engagement: *engagement}))
}
