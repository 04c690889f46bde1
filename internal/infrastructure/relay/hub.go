package relay

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"astrelay/internal/core/domain"
	"astrelay/pkg/optimize"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// outboundQueueSize bounds the per-connection send queue. When a slow
// consumer falls behind, the oldest frame is dropped rather than letting
// the queue grow without limit.
const outboundQueueSize = 64

// Metrics is the subset of the Prometheus collector the hub reports to.
type Metrics interface {
	RecordUserConnected()
	RecordUserDisconnected()
	RecordBroadcast(msgType string, duration time.Duration)
	RecordDroppedFrame()
}

// Bridge fans envelopes out to other relay instances. Implementations
// must not echo an instance's own envelopes back to it.
type Bridge interface {
	Publish(ctx context.Context, env *Envelope) error
}

// Hub owns the set of live websocket connections and implements
// ports.Broadcaster on top of them.
type Hub struct {
	mu    sync.RWMutex
	conns map[domain.UserID]*connection

	seq     atomic.Uint64
	buffers *optimize.BufferPool
	bridge  Bridge
	metrics Metrics
	logger  *zap.SugaredLogger

	pingInterval time.Duration
	writeTimeout time.Duration
}

func NewHub(logger *zap.SugaredLogger, metrics Metrics) *Hub {
	return &Hub{
		conns:        make(map[domain.UserID]*connection),
		buffers:      optimize.NewBufferPool(),
		metrics:      metrics,
		logger:       logger,
		pingInterval: 30 * time.Second,
		writeTimeout: 10 * time.Second,
	}
}

// SetBridge attaches a cross-instance bridge. Must be called before the
// first connection is registered.
func (h *Hub) SetBridge(b Bridge) {
	h.bridge = b
}

// SetPingInterval overrides the keepalive ping interval.
func (h *Hub) SetPingInterval(d time.Duration) {
	h.pingInterval = d
}

type connection struct {
	userID domain.UserID
	ws     *websocket.Conn
	send   chan *websocket.PreparedMessage
	done   chan struct{}
	once   sync.Once
}

func (c *connection) close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// Register attaches a connection for the user, closing any previous one
// (a reconnecting client replaces its stale socket).
func (h *Hub) Register(userID domain.UserID, ws *websocket.Conn) {
	conn := &connection{
		userID: userID,
		ws:     ws,
		send:   make(chan *websocket.PreparedMessage, outboundQueueSize),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if old, ok := h.conns[userID]; ok {
		old.close()
		h.logger.Infow("closing stale connection for reconnecting user", "user_id", userID)
	}
	h.conns[userID] = conn
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.RecordUserConnected()
	}

	go h.writeLoop(conn)
}

// Unregister detaches the user's connection if it is still the one that
// was registered.
func (h *Hub) Unregister(userID domain.UserID, ws *websocket.Conn) {
	h.mu.Lock()
	conn, ok := h.conns[userID]
	if ok && conn.ws == ws {
		delete(h.conns, userID)
	} else {
		conn = nil
	}
	h.mu.Unlock()

	if conn != nil {
		conn.close()
		if h.metrics != nil {
			h.metrics.RecordUserDisconnected()
		}
	}
}

// IsConnected reports whether the user has a live connection on this
// instance.
func (h *Hub) IsConnected(userID domain.UserID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[userID]
	return ok
}

// ConnectionCount returns the number of live connections on this instance.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast fans an envelope out to every local connection and, when a
// bridge is attached, to the other relay instances.
func (h *Hub) Broadcast(env *Envelope) {
	h.deliverLocal(env)

	if h.bridge != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.bridge.Publish(ctx, env); err != nil {
			h.logger.Warnw("failed to bridge envelope", "type", env.Type, "error", err)
		}
	}
}

// DeliverRemote injects an envelope that arrived over the bridge. It is
// fanned out locally but never re-published.
func (h *Hub) DeliverRemote(env *Envelope) {
	h.deliverLocal(env)
}

// SendTo delivers an envelope to a single user, if connected here.
func (h *Hub) SendTo(userID domain.UserID, env *Envelope) bool {
	env.Seq = h.seq.Add(1)

	h.mu.RLock()
	conn, ok := h.conns[userID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	msg, err := h.prepare(env)
	if err != nil {
		h.logger.Errorw("failed to encode envelope", "type", env.Type, "error", err)
		return false
	}

	h.enqueue(conn, msg)
	return true
}

func (h *Hub) deliverLocal(env *Envelope) {
	start := time.Now()
	env.Seq = h.seq.Add(1)

	msg, err := h.prepare(env)
	if err != nil {
		h.logger.Errorw("failed to encode envelope", "type", env.Type, "error", err)
		return
	}

	h.mu.RLock()
	conns := make([]*connection, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		h.enqueue(conn, msg)
	}

	if h.metrics != nil {
		h.metrics.RecordBroadcast(string(env.Type), time.Since(start))
	}
}

// prepare encodes the envelope exactly once per fan-out.
func (h *Hub) prepare(env *Envelope) (*websocket.PreparedMessage, error) {
	buf := h.buffers.Get()
	defer h.buffers.Put(buf)

	if err := encodeEnvelope(buf, env); err != nil {
		return nil, err
	}
	return websocket.NewPreparedMessage(websocket.TextMessage, buf.Bytes())
}

// enqueue applies the drop-oldest policy for slow consumers.
func (h *Hub) enqueue(conn *connection, msg *websocket.PreparedMessage) {
	select {
	case conn.send <- msg:
		return
	default:
	}

	// Queue full: evict the oldest frame and retry once.
	select {
	case <-conn.send:
		if h.metrics != nil {
			h.metrics.RecordDroppedFrame()
		}
		h.logger.Debugw("dropped oldest frame for slow consumer", "user_id", conn.userID)
	default:
	}

	select {
	case conn.send <- msg:
	default:
		if h.metrics != nil {
			h.metrics.RecordDroppedFrame()
		}
	}
}

func (h *Hub) writeLoop(conn *connection) {
	pingTicker := time.NewTicker(h.pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case msg := <-conn.send:
			conn.ws.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.ws.WritePreparedMessage(msg); err != nil {
				h.logger.Debugw("write failed, closing connection", "user_id", conn.userID, "error", err)
				conn.close()
				return
			}

		case <-pingTicker.C:
			conn.ws.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.close()
				return
			}

		case <-conn.done:
			return
		}
	}
}

// ports.Broadcaster implementation.

func (h *Hub) UserConnected(user *domain.OnlineUser) {
	h.Broadcast(NewEnvelope(TypeUserConnected, user.ID, PresencePayload{User: user, ID: user.ID}))
}

func (h *Hub) UserDisconnected(userID domain.UserID) {
	h.Broadcast(NewEnvelope(TypeUserDisconnected, userID, PresencePayload{ID: userID}))
}

func (h *Hub) AvatarUpdated(userID domain.UserID, avatar domain.Avatar) {
	h.Broadcast(NewEnvelope(TypeAvatarUpdate, userID, AvatarStatePayload{UserID: userID, Avatar: avatar}))
}

func (h *Hub) ActionPerformed(action *domain.RecentAction) {
	h.Broadcast(NewEnvelope(TypeZodiacAction, action.UserID, ActionAckPayload{Action: *action}))
}

func (h *Hub) ConstellationUpdated(c *domain.Constellation) {
	h.Broadcast(NewEnvelope(TypeConstellationUpdate, c.UpdatedBy, c))
}

func (h *Hub) StreamJoined(streamID domain.StreamID, userID domain.UserID, viewers int) {
	h.Broadcast(NewEnvelope(TypeJoinStream, userID, StreamEventPayload{StreamID: streamID, UserID: userID, Viewers: viewers}))
}

func (h *Hub) StreamLeft(streamID domain.StreamID, userID domain.UserID, viewers int) {
	h.Broadcast(NewEnvelope(TypeLeaveStream, userID, StreamEventPayload{StreamID: streamID, UserID: userID, Viewers: viewers}))
}

func (h *Hub) NewPost(post *domain.Post) {
	h.Broadcast(NewEnvelope(TypeNewPost, post.AuthorID, post))
}

func (h *Hub) EngagementUpdated(postID domain.PostID, engagement *domain.Engagement) {
	h.Broadcast(NewEnvelope(TypePostEngagementUpdate, "", EngagementPayload{PostID: postID, Engagement: *engagement}))
}
