package domain

import "time"

// Constellation is a shared collaborative entity: any participant with
// edit rights may rewrite it. Concurrent writes resolve last-write-wins
// on UpdatedAt; there is no merge beyond that.
type Constellation struct {
	ID          ConstellationID `json:"id"`
	Name        string          `json:"name"`
	Stars       []Star          `json:"stars"`
	Connections []StarLink      `json:"connections"`
	LineColor   string          `json:"line_color"`
	UpdatedAt   time.Time       `json:"updated_at"`
	UpdatedBy   UserID          `json:"updated_by"`
}

type Star struct {
	ID       string     `json:"id"`
	Position [3]float64 `json:"position"`
	Size     float64    `json:"size"`
	Color    string     `json:"color"`
}

// StarLink connects two stars of the same constellation by star ID.
type StarLink struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Supersedes reports whether an incoming revision should replace the
// current one under the last-write-wins policy. Ties go to the incumbent.
func (c *Constellation) Supersedes(current *Constellation) bool {
	if current == nil {
		return true
	}
	return c.UpdatedAt.After(current.UpdatedAt)
}
