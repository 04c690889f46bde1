package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"astrelay/internal/core/domain"
	"astrelay/internal/core/ports"
	"astrelay/internal/core/services"
	"astrelay/pkg/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin checks are enforced by the CORS layer in front
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WebSocketServer terminates client connections, authenticates them, and
// dispatches inbound envelopes to the core services.
type WebSocketServer struct {
	hub           *Hub
	presence      ports.PresenceService
	actions       ports.ActionService
	streams       ports.StreamService
	constellation ports.ConstellationService
	auth          services.AuthService

	pongTimeout    time.Duration
	maxMessageSize int64

	logger *zap.SugaredLogger
}

func NewWebSocketServer(
	hub *Hub,
	presence ports.PresenceService,
	actions ports.ActionService,
	streams ports.StreamService,
	constellation ports.ConstellationService,
	auth services.AuthService,
	logger *zap.SugaredLogger,
) *WebSocketServer {
	return &WebSocketServer{
		hub:            hub,
		presence:       presence,
		actions:        actions,
		streams:        streams,
		constellation:  constellation,
		auth:           auth,
		pongTimeout:    60 * time.Second,
		maxMessageSize: 64 * 1024,
		logger:         logger,
	}
}

// SetPongTimeout overrides the read deadline extension window.
func (s *WebSocketServer) SetPongTimeout(d time.Duration) {
	s.pongTimeout = d
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := s.auth.ValidateToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(s.maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
		return nil
	})

	userID := claims.UserID

	// The first frame must be a hello carrying the client's profile.
	user, err := s.awaitHello(conn, userID, claims.Username)
	if err != nil {
		s.logger.Warnw("handshake failed", "user_id", userID, "error", err)
		s.writeError(conn, "BAD_HELLO", err.Error())
		return
	}

	ctx := r.Context()

	s.hub.Register(userID, conn)
	if err := s.presence.Connect(ctx, user); err != nil {
		s.logger.Errorw("failed to register presence", "user_id", userID, "error", err)
		s.hub.Unregister(userID, conn)
		return
	}

	if err := s.sendWelcome(ctx, conn, user); err != nil {
		s.logger.Errorw("failed to send welcome", "user_id", userID, "error", err)
	}

	s.logger.Infow("user connected", "user_id", userID, "username", user.Username)

	s.readLoop(ctx, conn, userID)

	// Cleanup runs on any exit from the read loop. When a reconnect has
	// already replaced this socket, the fresh session owns the presence
	// record and must not be torn down here.
	s.hub.Unregister(userID, conn)
	if s.hub.IsConnected(userID) {
		return
	}
	if err := s.presence.Disconnect(context.Background(), userID); err != nil {
		s.logger.Warnw("failed to remove presence", "user_id", userID, "error", err)
	}
	s.logger.Infow("user disconnected", "user_id", userID)
}

func (s *WebSocketServer) awaitHello(conn *websocket.Conn, userID domain.UserID, username string) (*domain.OnlineUser, error) {
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		return nil, fmt.Errorf("failed to read hello: %w", err)
	}
	if env.V != ProtocolVersion {
		return nil, fmt.Errorf("unsupported protocol version %d", env.V)
	}
	if env.Type != TypeHello {
		return nil, fmt.Errorf("expected hello, got %s", env.Type)
	}

	var hello HelloPayload
	if err := json.Unmarshal(env.Payload, &hello); err != nil {
		return nil, fmt.Errorf("invalid hello payload: %w", err)
	}

	if hello.Username == "" {
		hello.Username = username
	}

	return &domain.OnlineUser{
		ID:        userID,
		SessionID: domain.SessionID(utils.GenerateSessionID()),
		Username:  hello.Username,
		Zodiac:    hello.Zodiac,
		Avatar:    hello.Avatar,
	}, nil
}

func (s *WebSocketServer) sendWelcome(ctx context.Context, conn *websocket.Conn, user *domain.OnlineUser) error {
	users, err := s.presence.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to snapshot presence: %w", err)
	}

	welcome := NewEnvelope(TypeWelcome, "", WelcomePayload{
		SessionID:     user.SessionID,
		Users:         users,
		RecentActions: s.actions.Recent(ctx),
	})
	if !s.hub.SendTo(user.ID, welcome) {
		return fmt.Errorf("connection lost before welcome")
	}
	return nil
}

func (s *WebSocketServer) readLoop(ctx context.Context, conn *websocket.Conn, userID domain.UserID) {
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debugw("read error", "user_id", userID, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.pongTimeout))

		if err := s.handleEnvelope(ctx, userID, &env); err != nil {
			s.writeErrorFor(userID, err)
		}
	}
}

func (s *WebSocketServer) handleEnvelope(ctx context.Context, userID domain.UserID, env *Envelope) error {
	if env.V != ProtocolVersion {
		return fmt.Errorf("unsupported protocol version %d", env.V)
	}
	// The sender field is advisory; the authenticated identity wins.
	if env.Sender != "" && env.Sender != userID {
		return fmt.Errorf("sender mismatch: authenticated as %s", userID)
	}

	switch env.Type {
	case TypeAvatarUpdate:
		return s.handleAvatarUpdate(ctx, userID, env)
	case TypeZodiacAction:
		return s.handleZodiacAction(ctx, userID, env)
	case TypeJoinStream:
		return s.handleStreamEvent(ctx, userID, env, true)
	case TypeLeaveStream:
		return s.handleStreamEvent(ctx, userID, env, false)
	case TypeConstellationUpdate:
		return s.handleConstellationUpdate(ctx, userID, env)
	case TypeHeartbeat:
		return s.presence.Heartbeat(ctx, userID)
	default:
		return fmt.Errorf("unknown message type: %s", env.Type)
	}
}

func (s *WebSocketServer) handleAvatarUpdate(ctx context.Context, userID domain.UserID, env *Envelope) error {
	var payload AvatarUpdatePayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("invalid avatar_update payload: %w", err)
	}
	if payload.UserID == "" {
		payload.UserID = userID
	}
	return s.presence.ApplyAvatarPatch(ctx, userID, payload.UserID, payload.Patch)
}

func (s *WebSocketServer) handleZodiacAction(ctx context.Context, userID domain.UserID, env *Envelope) error {
	var payload ZodiacActionPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("invalid zodiac_action payload: %w", err)
	}

	user, err := s.presence.Snapshot(ctx)
	username := string(userID)
	if err == nil {
		for _, u := range user {
			if u.ID == userID {
				username = u.Username
				break
			}
		}
	}

	action, err := s.actions.Trigger(ctx, userID, username, payload.Action)
	if err != nil {
		return err
	}

	// The broadcast reaches everyone including the caller; the ack is the
	// caller's confirmation that the action was accepted.
	s.hub.SendTo(userID, NewEnvelope(TypeActionAck, "", ActionAckPayload{Action: *action}))
	return nil
}

func (s *WebSocketServer) handleStreamEvent(ctx context.Context, userID domain.UserID, env *Envelope, join bool) error {
	var payload StreamEventPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("invalid stream payload: %w", err)
	}
	if payload.StreamID == "" {
		return fmt.Errorf("stream_id is required")
	}

	if join {
		return s.streams.Join(ctx, payload.StreamID, userID)
	}
	return s.streams.Leave(ctx, payload.StreamID, userID)
}

func (s *WebSocketServer) handleConstellationUpdate(ctx context.Context, userID domain.UserID, env *Envelope) error {
	var c domain.Constellation
	if err := json.Unmarshal(env.Payload, &c); err != nil {
		return fmt.Errorf("invalid constellation payload: %w", err)
	}

	_, err := s.constellation.Upsert(ctx, userID, &c)
	if errors.Is(err, domain.ErrStaleRevision) {
		// Losing a last-write-wins race is not a client error.
		return nil
	}
	return err
}

func (s *WebSocketServer) writeErrorFor(userID domain.UserID, err error) {
	code := "BAD_REQUEST"
	switch {
	case errors.Is(err, domain.ErrActionThrottled):
		code = "THROTTLED"
	case errors.Is(err, domain.ErrNotAvatarOwner):
		code = "FORBIDDEN"
	case errors.Is(err, domain.ErrUnknownAction):
		code = "UNKNOWN_ACTION"
	}
	s.hub.SendTo(userID, NewEnvelope(TypeError, "", ErrorPayload{Code: code, Message: err.Error()}))
}

func (s *WebSocketServer) writeError(conn *websocket.Conn, code, message string) {
	conn.WriteJSON(NewEnvelope(TypeError, "", ErrorPayload{Code: code, Message: message}))
}

// HealthCheck reports liveness plus the local connection count.
func (s *WebSocketServer) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().Unix(),
		"connections": s.hub.ConnectionCount(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
