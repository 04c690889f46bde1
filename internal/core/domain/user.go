package domain

import "time"

type UserID string
type SessionID string
type StreamID string
type PostID string
type ConstellationID string

// OnlineUser is the ephemeral presence record for a connected client.
// It exists from connect to disconnect and is never persisted.
type OnlineUser struct {
	ID          UserID        `json:"id"`
	SessionID   SessionID     `json:"session_id"`
	Username    string        `json:"username"`
	Zodiac      ZodiacProfile `json:"zodiac"`
	Avatar      Avatar        `json:"avatar"`
	ConnectedAt time.Time     `json:"connected_at"`
	LastSeen    time.Time     `json:"last_seen"`
}

type ZodiacProfile struct {
	Sign           ZodiacSign `json:"sign"`
	Element        Element    `json:"element"`
	RulingPlanet   string     `json:"ruling_planet"`
	LifePathNumber int        `json:"life_path_number"`
}

type ZodiacSign string

const (
	Aries       ZodiacSign = "aries"
	Taurus      ZodiacSign = "taurus"
	Gemini      ZodiacSign = "gemini"
	Cancer      ZodiacSign = "cancer"
	Leo         ZodiacSign = "leo"
	Virgo       ZodiacSign = "virgo"
	Libra       ZodiacSign = "libra"
	Scorpio     ZodiacSign = "scorpio"
	Sagittarius ZodiacSign = "sagittarius"
	Capricorn   ZodiacSign = "capricorn"
	Aquarius    ZodiacSign = "aquarius"
	Pisces      ZodiacSign = "pisces"
)

type Element string

const (
	ElementFire  Element = "fire"
	ElementEarth Element = "earth"
	ElementAir   Element = "air"
	ElementWater Element = "water"
)

type UserRole string

const (
	RoleHost      UserRole = "host"
	RoleViewer    UserRole = "viewer"
	RoleModerator UserRole = "moderator"
)

type User struct {
	ID           UserID    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	BirthDate    time.Time `json:"birth_date"`
	CreatedAt    time.Time `json:"created_at"`
}
