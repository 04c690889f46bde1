package services

import (
	"sync"

	"astrelay/internal/core/domain"
)

// recordingBroadcaster captures everything the services push to the
// relay so tests can assert on the outbound traffic.
type recordingBroadcaster struct {
	mu sync.Mutex

	connected     []*domain.OnlineUser
	disconnected  []domain.UserID
	avatars       map[domain.UserID]domain.Avatar
	actions       []domain.RecentAction
	constellation []*domain.Constellation
	streamEvents  []streamEvent
	posts         []*domain.Post
	engagements   map[domain.PostID]domain.Engagement
}

type streamEvent struct {
	streamID domain.StreamID
	userID   domain.UserID
	viewers  int
	joined   bool
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{
		avatars:     make(map[domain.UserID]domain.Avatar),
		engagements: make(map[domain.PostID]domain.Engagement),
	}
}

func (b *recordingBroadcaster) UserConnected(user *domain.OnlineUser) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = append(b.connected, user)
}

func (b *recordingBroadcaster) UserDisconnected(userID domain.UserID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnected = append(b.disconnected, userID)
}

func (b *recordingBroadcaster) AvatarUpdated(userID domain.UserID, avatar domain.Avatar) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.avatars[userID] = avatar
}

func (b *recordingBroadcaster) ActionPerformed(action *domain.RecentAction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.actions = append(b.actions, *action)
}

func (b *recordingBroadcaster) ConstellationUpdated(c *domain.Constellation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.constellation = append(b.constellation, c)
}

func (b *recordingBroadcaster) StreamJoined(streamID domain.StreamID, userID domain.UserID, viewers int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamEvents = append(b.streamEvents, streamEvent{streamID, userID, viewers, true})
}

func (b *recordingBroadcaster) StreamLeft(streamID domain.StreamID, userID domain.UserID, viewers int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamEvents = append(b.streamEvents, streamEvent{streamID, userID, viewers, false})
}

func (b *recordingBroadcaster) NewPost(post *domain.Post) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.posts = append(b.posts, post)
}

func (b *recordingBroadcaster) EngagementUpdated(postID domain.PostID, engagement *domain.Engagement) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.engagements[postID] = *engagement
}

func (b *recordingBroadcaster) actionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.actions)
}

func (b *recordingBroadcaster) engagementFor(postID domain.PostID) (domain.Engagement, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.engagements[postID]
	return e, ok
}
