package domain

import (
	"strings"
	"time"
)

// DestinationKind is the topology a message is addressed to.
type DestinationKind string

const (
	DestinationPublic  DestinationKind = "public"
	DestinationPrivate DestinationKind = "private"
	DestinationGroup   DestinationKind = "group"
)

const (
	// PublicTarget is the destination target of broadcast-to-all messages.
	PublicTarget = "All"
	// SystemSender is the sender name of generated system messages.
	SystemSender = "System"
)

// Reaction is one user's reaction to a message.
type Reaction struct {
	Username string `json:"username"`
	Emoji    string `json:"emoji"`
}

// Message is a chat message as stored and delivered.
type Message struct {
	ID              string          `json:"id"`
	Sender          string          `json:"sender"`
	Kind            DestinationKind `json:"kind"`
	Target          string          `json:"target"`
	Body            string          `json:"message"`
	MediaURL        string          `json:"media_url,omitempty"`
	MediaType       string          `json:"media_type,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
	Deleted         bool            `json:"deleted"`
	Expired         bool            `json:"expired"`
	Edited          bool            `json:"edited"`
	EditedAt        *time.Time      `json:"edited_at,omitempty"`
	SeenBy          []string        `json:"seen_by"`
	Reactions       []Reaction      `json:"reactions"`
	ReplyTo         string          `json:"reply_to,omitempty"`
	ForwardedFrom   string          `json:"forwarded_from,omitempty"`
	Pinned          bool            `json:"pinned"`
	PinnedBy        string          `json:"pinned_by,omitempty"`
	PinnedAt        *time.Time      `json:"pinned_at,omitempty"`
	PinOrder        int             `json:"pin_order,omitempty"`
	Mentions        []string        `json:"mentions,omitempty"`
	PollID          string          `json:"poll_id,omitempty"`
	IsSystemMessage bool            `json:"is_system_message"`
	IsTemporary     bool            `json:"is_temporary"`
	ExpiresAt       *time.Time      `json:"expires_at,omitempty"`
	IsViewOnce      bool            `json:"is_view_once"`
	ViewedBy        []string        `json:"viewed_by"`
	IsScheduled     bool            `json:"is_scheduled"`
	ScheduledAt     *time.Time      `json:"scheduled_at,omitempty"`
	Dispatched      bool            `json:"dispatched"`
}

// HasImage reports whether the message carries image media.
func (m *Message) HasImage() bool {
	return m.MediaURL != "" && strings.HasPrefix(m.MediaType, "image")
}

// Pending reports whether the message is scheduled and not yet dispatched.
func (m *Message) Pending() bool {
	return m.IsScheduled && !m.Dispatched
}

// VisibleTo reports whether viewer may see the message at all. Pending
// scheduled messages are visible only to their sender.
func (m *Message) VisibleTo(viewer string) bool {
	if m.ScheduledAt != nil && !m.Dispatched {
		return m.Sender == viewer
	}
	return true
}

// EventKey is the partition key used when publishing lifecycle events.
func (m *Message) EventKey() string {
	return string(m.Kind) + ":" + m.Target
}

// NewSystemMessage builds a system announcement for a group.
func NewSystemMessage(id, group, body string, at time.Time) *Message {
	return &Message{
		ID:              id,
		Sender:          SystemSender,
		Kind:            DestinationGroup,
		Target:          group,
		Body:            body,
		Timestamp:       at,
		IsSystemMessage: true,
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
