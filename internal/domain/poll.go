package domain

import "time"

// PollOption is a single answer with the set of users who chose it.
type PollOption struct {
	Text  string   `json:"text"`
	Votes []string `json:"votes"`
}

// Poll is a group poll. TotalVotes always equals the sum of the option
// vote-set sizes.
type Poll struct {
	ID                 string       `json:"id"`
	Question           string       `json:"question"`
	Options            []PollOption `json:"options"`
	CreatedBy          string       `json:"created_by"`
	Group              string       `json:"group"`
	IsActive           bool         `json:"is_active"`
	AllowMultipleVotes bool         `json:"allow_multiple_votes"`
	ExpiresAt          *time.Time   `json:"expires_at,omitempty"`
	TotalVotes         int          `json:"total_votes"`
	CreatedAt          time.Time    `json:"created_at"`
}
