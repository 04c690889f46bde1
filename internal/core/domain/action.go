package domain

import "time"

// ActionType is a zodiac-themed social gesture broadcast to every
// connected client.
type ActionType string

const (
	ActionCastSigil     ActionType = "cast_sigil"
	ActionAlignStars    ActionType = "align_stars"
	ActionSendBlessing  ActionType = "send_blessing"
	ActionIgniteComet   ActionType = "ignite_comet"
	ActionReadHoroscope ActionType = "read_horoscope"
	ActionSummonEclipse ActionType = "summon_eclipse"
)

// KnownAction reports whether the action type is one the relay accepts.
func KnownAction(a ActionType) bool {
	switch a {
	case ActionCastSigil, ActionAlignStars, ActionSendBlessing,
		ActionIgniteComet, ActionReadHoroscope, ActionSummonEclipse:
		return true
	}
	return false
}

// RecentAction is an append-only feed entry. The server keeps a bounded
// window; once broadcast an action cannot be retracted.
type RecentAction struct {
	ID         string     `json:"id"`
	UserID     UserID     `json:"user_id"`
	Username   string     `json:"username"`
	Action     ActionType `json:"action"`
	OccurredAt time.Time  `json:"occurred_at"`
}
