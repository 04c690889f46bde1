package domain

import "time"

type Post struct {
	ID         PostID     `json:"id"`
	AuthorID   UserID     `json:"author_id"`
	AuthorName string     `json:"author_name"`
	Body       string     `json:"body"`
	Sigil      string     `json:"sigil,omitempty"`
	Engagement Engagement `json:"engagement"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Engagement holds the live counters attached to a post. Counters only
// grow; deltas arrive both over REST and the relay.
type Engagement struct {
	Likes     int64            `json:"likes"`
	Reactions map[string]int64 `json:"reactions,omitempty"`
}

// EngagementDelta is a single increment against a post's counters.
type EngagementDelta struct {
	PostID   PostID `json:"post_id"`
	Likes    int64  `json:"likes,omitempty"`
	Reaction string `json:"reaction,omitempty"`
	Count    int64  `json:"count,omitempty"`
}
