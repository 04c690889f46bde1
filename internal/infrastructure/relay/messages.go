package relay

import (
	"encoding/json"
	"io"

	"astrelay/internal/core/domain"
)

// ProtocolVersion is carried in every envelope so either side can reject
// frames from an incompatible peer instead of shape-sniffing payloads.
const ProtocolVersion = 1

type MessageType string

const (
	TypeHello                MessageType = "hello"
	TypeWelcome              MessageType = "welcome"
	TypeUserConnected        MessageType = "user_connected"
	TypeUserDisconnected     MessageType = "user_disconnected"
	TypeAvatarUpdate         MessageType = "avatar_update"
	TypeZodiacAction         MessageType = "zodiac_action"
	TypeActionAck            MessageType = "action_ack"
	TypeConstellationUpdate  MessageType = "constellation_update"
	TypeJoinStream           MessageType = "join_stream"
	TypeLeaveStream          MessageType = "leave_stream"
	TypeStreamViewers        MessageType = "stream_viewers"
	TypeNewPost              MessageType = "new_post"
	TypePostEngagementUpdate MessageType = "post_engagement_update"
	TypeHeartbeat            MessageType = "heartbeat"
	TypeError                MessageType = "error"
)

// Envelope is the tagged-union frame exchanged over the channel. Receivers
// switch on Type; Payload holds the type-specific body.
type Envelope struct {
	V       int             `json:"v"`
	Type    MessageType     `json:"type"`
	Sender  domain.UserID   `json:"sender,omitempty"`
	Seq     uint64          `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type HelloPayload struct {
	Username string               `json:"username"`
	Zodiac   domain.ZodiacProfile `json:"zodiac"`
	Avatar   domain.Avatar        `json:"avatar"`
}

// WelcomePayload seeds a fresh client (or a reconnecting one) with the
// full presence snapshot and the bounded recent-action window.
type WelcomePayload struct {
	SessionID     domain.SessionID      `json:"session_id"`
	Users         []*domain.OnlineUser  `json:"users"`
	RecentActions []domain.RecentAction `json:"recent_actions"`
}

type PresencePayload struct {
	User *domain.OnlineUser `json:"user,omitempty"`
	ID   domain.UserID      `json:"id"`
}

type AvatarUpdatePayload struct {
	UserID domain.UserID      `json:"user_id"`
	Patch  domain.AvatarPatch `json:"patch"`
}

type AvatarStatePayload struct {
	UserID domain.UserID `json:"user_id"`
	Avatar domain.Avatar `json:"avatar"`
}

type ZodiacActionPayload struct {
	Action domain.ActionType `json:"action"`
}

type ActionAckPayload struct {
	Action domain.RecentAction `json:"action"`
}

type StreamEventPayload struct {
	StreamID domain.StreamID `json:"stream_id"`
	UserID   domain.UserID   `json:"user_id,omitempty"`
	Viewers  int             `json:"viewers"`
}

type EngagementPayload struct {
	PostID     domain.PostID     `json:"post_id"`
	Engagement domain.Engagement `json:"engagement"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func encodeEnvelope(w io.Writer, env *Envelope) error {
	return json.NewEncoder(w).Encode(env)
}

func mustMarshal(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}

// NewEnvelope builds a versioned envelope around a payload struct.
func NewEnvelope(t MessageType, sender domain.UserID, payload interface{}) *Envelope {
	env := &Envelope{V: ProtocolVersion, Type: t, Sender: sender}
	if payload != nil {
		env.Payload = mustMarshal(payload)
	}
	return env
}
