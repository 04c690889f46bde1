package domain

import "time"

// Stream is a live broadcast session. The media plane is carried by an
// external SDK; the relay only tracks membership and viewer counts.
type Stream struct {
	ID        StreamID  `json:"id"`
	Title     string    `json:"title"`
	HostID    UserID    `json:"host_id"`
	Live      bool      `json:"live"`
	Viewers   int       `json:"viewers"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

type StreamStats struct {
	StreamID    StreamID      `json:"stream_id"`
	Viewers     int           `json:"viewers"`
	PeakViewers int           `json:"peak_viewers"`
	Uptime      time.Duration `json:"uptime"`
}
