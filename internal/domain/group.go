package domain

import "time"

// Group is a named set of members. The creator is always an admin.
type Group struct {
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	Members        []string  `json:"members"`
	Admins         []string  `json:"admins"`
	Creator        string    `json:"creator"`
	PinnedMessages []string  `json:"pinned_messages"`
	CreatedAt      time.Time `json:"created_at"`
}

// IsMember reports whether name is a current member.
func (g *Group) IsMember(name string) bool {
	return containsString(g.Members, name)
}

// IsAdmin reports whether name is an admin. The creator always is.
func (g *Group) IsAdmin(name string) bool {
	return name == g.Creator || containsString(g.Admins, name)
}
