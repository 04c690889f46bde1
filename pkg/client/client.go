// Package client is the Go client for the relay: it keeps a live mirror
// of the presence registry, applies local changes optimistically and
// reconnects with a full resync when the socket drops.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"astrelay/internal/core/domain"
	"astrelay/internal/infrastructure/relay"
	"astrelay/pkg/circuitbreaker"
	"astrelay/pkg/retry"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrNotConnected = errors.New("client is not connected")
	ErrAckTimeout   = errors.New("timed out waiting for action acknowledgement")
	ErrClosed       = errors.New("client is closed")
)

// Config carries everything needed to establish and keep a session.
type Config struct {
	// URL is the websocket endpoint, e.g. ws://localhost:8081/ws.
	URL   string
	Token string

	// UserID must match the token's subject; it is stamped on every
	// outbound envelope.
	UserID   domain.UserID
	Username string
	Zodiac   domain.ZodiacProfile
	Avatar   domain.Avatar

	// ActionCooldown mirrors the server's per-user throttle so obviously
	// doomed triggers fail locally without a round trip.
	ActionCooldown time.Duration
	AckTimeout     time.Duration
	Heartbeat      time.Duration

	Retry   retry.Config
	Breaker circuitbreaker.Config

	Logger *zap.SugaredLogger
}

func (c *Config) withDefaults() {
	if c.ActionCooldown <= 0 {
		c.ActionCooldown = time.Second
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = 5 * time.Second
	}
	if c.Heartbeat <= 0 {
		c.Heartbeat = 25 * time.Second
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = retry.DefaultConfig()
		c.Retry.MaxAttempts = 5
		c.Retry.MaxDelay = 30 * time.Second
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker = circuitbreaker.DefaultConfig()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop().Sugar()
	}
}

// Handlers are optional callbacks invoked from the read loop. They must
// not block.
type Handlers struct {
	OnWelcome          func(relay.WelcomePayload)
	OnUserConnected    func(*domain.OnlineUser)
	OnUserDisconnected func(domain.UserID)
	OnAvatarState      func(domain.UserID, domain.Avatar)
	OnAction           func(domain.RecentAction)
	OnConstellation    func(*domain.Constellation)
	OnStreamEvent      func(relay.StreamEventPayload)
	OnNewPost          func(*domain.Post)
	OnEngagement       func(relay.EngagementPayload)
	OnError            func(relay.ErrorPayload)
	OnReconnect        func()
}

type ackResult struct {
	action *domain.RecentAction
	err    error
}

type Client struct {
	cfg      Config
	handlers Handlers
	logger   *zap.SugaredLogger

	limiter *rate.Limiter
	breaker *circuitbreaker.CircuitBreaker

	mu        sync.RWMutex
	conn      *websocket.Conn
	sessionID domain.SessionID
	users     map[domain.UserID]*domain.OnlineUser
	recent    []domain.RecentAction

	writeMu sync.Mutex

	ackMu   sync.Mutex
	pending chan ackResult

	closeOnce sync.Once
	done      chan struct{}
}

func New(cfg Config, handlers Handlers) *Client {
	cfg.withDefaults()
	return &Client{
		cfg:      cfg,
		handlers: handlers,
		logger:   cfg.Logger,
		limiter:  rate.NewLimiter(rate.Every(cfg.ActionCooldown), 1),
		breaker:  circuitbreaker.New(cfg.Breaker),
		users:    make(map[domain.UserID]*domain.OnlineUser),
		done:     make(chan struct{}),
	}
}

// Connect dials the relay, completes the hello/welcome handshake and
// starts the read and heartbeat loops.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.dial(ctx); err != nil {
		return err
	}

	go c.readLoop()
	go c.heartbeatLoop()
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	endpoint, err := url.Parse(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("invalid relay URL: %w", err)
	}
	q := endpoint.Query()
	q.Set("token", c.cfg.Token)
	endpoint.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to dial relay: %w", err)
	}

	hello := relay.NewEnvelope(relay.TypeHello, c.cfg.UserID, relay.HelloPayload{
		Username: c.cfg.Username,
		Zodiac:   c.cfg.Zodiac,
		Avatar:   c.cfg.Avatar,
	})
	if err := conn.WriteJSON(hello); err != nil {
		conn.Close()
		return fmt.Errorf("failed to send hello: %w", err)
	}

	// Read until the welcome snapshot arrives. The server may broadcast
	// this client's own user_connected before the welcome lands; those
	// frames are redundant with the snapshot and safe to skip.
	var env relay.Envelope
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		if err := conn.ReadJSON(&env); err != nil {
			conn.Close()
			return fmt.Errorf("failed to read welcome: %w", err)
		}
		if env.Type == relay.TypeWelcome {
			break
		}
	}
	conn.SetReadDeadline(time.Time{})

	var welcome relay.WelcomePayload
	if err := decodePayload(&env, &welcome); err != nil {
		conn.Close()
		return err
	}

	// A fresh snapshot replaces the mirror wholesale; anything tracked
	// before the (re)connect is stale by definition.
	c.mu.Lock()
	c.conn = conn
	c.sessionID = welcome.SessionID
	c.users = make(map[domain.UserID]*domain.OnlineUser, len(welcome.Users))
	for _, u := range welcome.Users {
		c.users[u.ID] = u
	}
	c.recent = append([]domain.RecentAction(nil), welcome.RecentActions...)
	c.mu.Unlock()

	if c.handlers.OnWelcome != nil {
		c.handlers.OnWelcome(welcome)
	}
	return nil
}

// SessionID returns the identifier assigned by the relay.
func (c *Client) SessionID() domain.SessionID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// Users returns the presence mirror ordered by connection time. Entries
// are copies; the read loop keeps mutating the mirror after this returns.
func (c *Client) Users() []*domain.OnlineUser {
	c.mu.RLock()
	out := make([]*domain.OnlineUser, 0, len(c.users))
	for _, u := range c.users {
		clone := *u
		out = append(out, &clone)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

// RecentActions returns a copy of the bounded action window.
func (c *Client) RecentActions() []domain.RecentAction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.RecentAction(nil), c.recent...)
}

// UpdateAvatar merges the patch into the local mirror immediately and
// sends it to the relay. The authoritative state comes back as a regular
// avatar_update broadcast.
func (c *Client) UpdateAvatar(ctx context.Context, patch domain.AvatarPatch) error {
	c.mu.Lock()
	if u, ok := c.users[c.cfg.UserID]; ok {
		u.Avatar = u.Avatar.Merge(patch)
	}
	c.mu.Unlock()

	return c.send(relay.NewEnvelope(relay.TypeAvatarUpdate, c.cfg.UserID, relay.AvatarUpdatePayload{
		UserID: c.cfg.UserID,
		Patch:  patch,
	}))
}

// TriggerZodiacAction sends an action and waits for the server's ack.
// The local limiter rejects calls inside the cooldown window without a
// round trip.
func (c *Client) TriggerZodiacAction(ctx context.Context, action domain.ActionType) (*domain.RecentAction, error) {
	if !domain.KnownAction(action) {
		return nil, domain.ErrUnknownAction
	}
	if !c.limiter.Allow() {
		return nil, domain.ErrActionThrottled
	}

	pending := make(chan ackResult, 1)
	c.ackMu.Lock()
	if c.pending != nil {
		c.ackMu.Unlock()
		return nil, fmt.Errorf("an action is already awaiting acknowledgement")
	}
	c.pending = pending
	c.ackMu.Unlock()

	defer func() {
		c.ackMu.Lock()
		c.pending = nil
		c.ackMu.Unlock()
	}()

	err := c.send(relay.NewEnvelope(relay.TypeZodiacAction, c.cfg.UserID, relay.ZodiacActionPayload{Action: action}))
	if err != nil {
		return nil, err
	}

	select {
	case res := <-pending:
		return res.action, res.err
	case <-time.After(c.cfg.AckTimeout):
		return nil, ErrAckTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}
}

// UpsertConstellation pushes a constellation revision over the socket.
// Losing a last-write-wins race is silent; the winning revision arrives
// as a constellation_update broadcast.
func (c *Client) UpsertConstellation(ctx context.Context, constellation *domain.Constellation) error {
	constellation.UpdatedBy = c.cfg.UserID
	if constellation.UpdatedAt.IsZero() {
		constellation.UpdatedAt = time.Now()
	}
	return c.send(relay.NewEnvelope(relay.TypeConstellationUpdate, c.cfg.UserID, constellation))
}

// JoinStream subscribes this user to a stream's viewer set.
func (c *Client) JoinStream(ctx context.Context, streamID domain.StreamID) error {
	return c.send(relay.NewEnvelope(relay.TypeJoinStream, c.cfg.UserID, relay.StreamEventPayload{
		StreamID: streamID,
		UserID:   c.cfg.UserID,
	}))
}

// LeaveStream removes this user from a stream's viewer set.
func (c *Client) LeaveStream(ctx context.Context, streamID domain.StreamID) error {
	return c.send(relay.NewEnvelope(relay.TypeLeaveStream, c.cfg.UserID, relay.StreamEventPayload{
		StreamID: streamID,
		UserID:   c.cfg.UserID,
	}))
}

// Close ends the session. The client does not reconnect after Close.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.mu.Unlock()

		if conn != nil {
			c.writeMu.Lock()
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			c.writeMu.Unlock()
			err = conn.Close()
		}
	})
	return err
}

func (c *Client) send(env *relay.Envelope) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(env)
}

func (c *Client) heartbeatLoop() {
	ticker := time.NewTicker(c.cfg.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.send(relay.NewEnvelope(relay.TypeHeartbeat, c.cfg.UserID, nil)); err != nil && err != ErrNotConnected {
				c.logger.Debugw("heartbeat failed", "error", err)
			}
		}
	}
}

func (c *Client) readLoop() {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		var env relay.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			select {
			case <-c.done:
				return
			default:
			}

			c.logger.Warnw("connection lost, reconnecting", "error", err)
			c.failPending(ErrNotConnected)
			if !c.reconnect() {
				return
			}
			continue
		}

		c.dispatch(&env)
	}
}

// reconnect redials through the circuit breaker until it succeeds or the
// client is closed. The presence mirror is rebuilt from the new welcome
// snapshot; nothing from the old session is trusted.
func (c *Client) reconnect() bool {
	for {
		select {
		case <-c.done:
			return false
		default:
		}

		err := c.breaker.Execute(context.Background(), func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return retry.Retry(ctx, c.cfg.Retry, func() error {
				return c.dial(ctx)
			})
		})
		if err == nil {
			if c.handlers.OnReconnect != nil {
				c.handlers.OnReconnect()
			}
			return true
		}

		c.logger.Warnw("reconnect attempt failed", "error", err, "breaker", c.breaker.GetState().String())

		select {
		case <-c.done:
			return false
		case <-time.After(c.cfg.Breaker.Timeout):
		}
	}
}

func (c *Client) failPending(err error) {
	c.ackMu.Lock()
	if c.pending != nil {
		c.pending <- ackResult{err: err}
		c.pending = nil
	}
	c.ackMu.Unlock()
}

func (c *Client) dispatch(env *relay.Envelope) {
	switch env.Type {
	case relay.TypeUserConnected:
		var p relay.PresencePayload
		if decodePayload(env, &p) != nil || p.User == nil {
			return
		}
		c.mu.Lock()
		c.users[p.User.ID] = p.User
		c.mu.Unlock()
		if c.handlers.OnUserConnected != nil {
			c.handlers.OnUserConnected(p.User)
		}

	case relay.TypeUserDisconnected:
		var p relay.PresencePayload
		if decodePayload(env, &p) != nil {
			return
		}
		c.mu.Lock()
		delete(c.users, p.ID)
		c.mu.Unlock()
		if c.handlers.OnUserDisconnected != nil {
			c.handlers.OnUserDisconnected(p.ID)
		}

	case relay.TypeAvatarUpdate:
		var p relay.AvatarStatePayload
		if decodePayload(env, &p) != nil {
			return
		}
		c.mu.Lock()
		if u, ok := c.users[p.UserID]; ok {
			u.Avatar = p.Avatar
		}
		c.mu.Unlock()
		if c.handlers.OnAvatarState != nil {
			c.handlers.OnAvatarState(p.UserID, p.Avatar)
		}

	case relay.TypeZodiacAction:
		var p relay.ActionAckPayload
		if decodePayload(env, &p) != nil {
			return
		}
		c.appendRecent(p.Action)
		if c.handlers.OnAction != nil {
			c.handlers.OnAction(p.Action)
		}

	case relay.TypeActionAck:
		var p relay.ActionAckPayload
		if decodePayload(env, &p) != nil {
			return
		}
		c.ackMu.Lock()
		if c.pending != nil {
			action := p.Action
			c.pending <- ackResult{action: &action}
			c.pending = nil
		}
		c.ackMu.Unlock()

	case relay.TypeConstellationUpdate:
		var constellation domain.Constellation
		if decodePayload(env, &constellation) != nil {
			return
		}
		if c.handlers.OnConstellation != nil {
			c.handlers.OnConstellation(&constellation)
		}

	case relay.TypeJoinStream, relay.TypeLeaveStream, relay.TypeStreamViewers:
		var p relay.StreamEventPayload
		if decodePayload(env, &p) != nil {
			return
		}
		if c.handlers.OnStreamEvent != nil {
			c.handlers.OnStreamEvent(p)
		}

	case relay.TypeNewPost:
		var post domain.Post
		if decodePayload(env, &post) != nil {
			return
		}
		if c.handlers.OnNewPost != nil {
			c.handlers.OnNewPost(&post)
		}

	case relay.TypePostEngagementUpdate:
		var p relay.EngagementPayload
		if decodePayload(env, &p) != nil {
			return
		}
		if c.handlers.OnEngagement != nil {
			c.handlers.OnEngagement(p)
		}

	case relay.TypeError:
		var p relay.ErrorPayload
		if decodePayload(env, &p) != nil {
			return
		}
		c.routeError(p)

	default:
		c.logger.Debugw("ignoring unknown envelope type", "type", env.Type)
	}
}

// routeError resolves a pending trigger only for the codes the server
// emits in response to a zodiac_action. Error envelopes carry no
// correlation id, so anything else goes to the application instead of
// failing an unrelated in-flight trigger.
func (c *Client) routeError(p relay.ErrorPayload) {
	var err error
	switch p.Code {
	case "THROTTLED":
		err = domain.ErrActionThrottled
	case "UNKNOWN_ACTION":
		err = domain.ErrUnknownAction
	default:
		if c.handlers.OnError != nil {
			c.handlers.OnError(p)
		}
		return
	}

	c.ackMu.Lock()
	pending := c.pending
	c.pending = nil
	c.ackMu.Unlock()

	if pending != nil {
		pending <- ackResult{err: err}
		return
	}
	if c.handlers.OnError != nil {
		c.handlers.OnError(p)
	}
}

func (c *Client) appendRecent(action domain.RecentAction) {
	const recentCap = 50

	c.mu.Lock()
	c.recent = append(c.recent, action)
	if len(c.recent) > recentCap {
		c.recent = c.recent[len(c.recent)-recentCap:]
	}
	c.mu.Unlock()
}

func decodePayload(env *relay.Envelope, out interface{}) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("envelope %s has no payload", env.Type)
	}
	return json.Unmarshal(env.Payload, out)
}
