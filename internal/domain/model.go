package domain

import (
	"time"

	"github.com/weiawesome/wes-chat/pkg/database"
)

// MessageModel is the GORM model for messages table.
type MessageModel struct {
	ID              string                    `gorm:"type:varchar(32);primaryKey"`
	Sender          string                    `gorm:"type:varchar(64);index;not null"`
	Kind            string                    `gorm:"type:varchar(16);index:idx_messages_destination,priority:1;not null"`
	Target          string                    `gorm:"type:varchar(128);index:idx_messages_destination,priority:2;not null"`
	Body            string                    `gorm:"type:text"`
	MediaURL        string                    `gorm:"type:varchar(512)"`
	MediaType       string                    `gorm:"type:varchar(64)"`
	Timestamp       time.Time                 `gorm:"column:sent_at;index;not null"`
	Deleted         bool                      `gorm:"not null"`
	Expired         bool                      `gorm:"not null"`
	Edited          bool                      `gorm:"not null"`
	EditedAt        *time.Time
	SeenBy          database.StringArray      `gorm:"type:text"`
	Reactions       database.JSON[[]Reaction] `gorm:"type:text"`
	ReplyTo         string                    `gorm:"type:varchar(32)"`
	ForwardedFrom   string                    `gorm:"type:varchar(64)"`
	Pinned          bool                      `gorm:"not null"`
	PinnedBy        string                    `gorm:"type:varchar(64)"`
	PinnedAt        *time.Time
	PinOrder        *int
	Mentions        database.StringArray      `gorm:"type:text"`
	PollID          string                    `gorm:"type:varchar(32);index"`
	IsSystemMessage bool                      `gorm:"not null"`
	IsTemporary     bool                      `gorm:"not null;index:idx_messages_expiry,priority:1"`
	ExpiresAt       *time.Time                `gorm:"index:idx_messages_expiry,priority:2"`
	IsViewOnce      bool                      `gorm:"not null"`
	ViewedBy        database.StringArray      `gorm:"type:text"`
	IsScheduled     bool                      `gorm:"not null;index:idx_messages_schedule,priority:1"`
	ScheduledAt     *time.Time                `gorm:"index:idx_messages_schedule,priority:2"`
	Dispatched      bool                      `gorm:"not null"`
}

// TableName specifies the table name for MessageModel.
func (MessageModel) TableName() string {
	return "messages"
}

// ToDomain converts MessageModel to domain Message.
func (m *MessageModel) ToDomain() *Message {
	msg := &Message{
		ID:              m.ID,
		Sender:          m.Sender,
		Kind:            DestinationKind(m.Kind),
		Target:          m.Target,
		Body:            m.Body,
		MediaURL:        m.MediaURL,
		MediaType:       m.MediaType,
		Timestamp:       m.Timestamp.UTC(),
		Deleted:         m.Deleted,
		Expired:         m.Expired,
		Edited:          m.Edited,
		EditedAt:        utcPtr(m.EditedAt),
		SeenBy:          nonNil(m.SeenBy),
		Reactions:       m.Reactions.Data,
		ReplyTo:         m.ReplyTo,
		ForwardedFrom:   m.ForwardedFrom,
		Pinned:          m.Pinned,
		PinnedBy:        m.PinnedBy,
		PinnedAt:        utcPtr(m.PinnedAt),
		Mentions:        []string(m.Mentions),
		PollID:          m.PollID,
		IsSystemMessage: m.IsSystemMessage,
		IsTemporary:     m.IsTemporary,
		ExpiresAt:       utcPtr(m.ExpiresAt),
		IsViewOnce:      m.IsViewOnce,
		ViewedBy:        nonNil(m.ViewedBy),
		IsScheduled:     m.IsScheduled,
		ScheduledAt:     utcPtr(m.ScheduledAt),
		Dispatched:      m.Dispatched,
	}
	if m.PinOrder != nil {
		msg.PinOrder = *m.PinOrder
	}
	if msg.Reactions == nil {
		msg.Reactions = []Reaction{}
	}
	return msg
}

// MessageToModel converts domain Message to MessageModel.
func MessageToModel(m *Message) *MessageModel {
	model := &MessageModel{
		ID:              m.ID,
		Sender:          m.Sender,
		Kind:            string(m.Kind),
		Target:          m.Target,
		Body:            m.Body,
		MediaURL:        m.MediaURL,
		MediaType:       m.MediaType,
		Timestamp:       m.Timestamp.UTC(),
		Deleted:         m.Deleted,
		Expired:         m.Expired,
		Edited:          m.Edited,
		EditedAt:        utcPtr(m.EditedAt),
		SeenBy:          database.StringArray(m.SeenBy),
		Reactions:       database.NewJSON(m.Reactions),
		ReplyTo:         m.ReplyTo,
		ForwardedFrom:   m.ForwardedFrom,
		Pinned:          m.Pinned,
		PinnedBy:        m.PinnedBy,
		PinnedAt:        utcPtr(m.PinnedAt),
		Mentions:        database.StringArray(m.Mentions),
		PollID:          m.PollID,
		IsSystemMessage: m.IsSystemMessage,
		IsTemporary:     m.IsTemporary,
		ExpiresAt:       utcPtr(m.ExpiresAt),
		IsViewOnce:      m.IsViewOnce,
		ViewedBy:        database.StringArray(m.ViewedBy),
		IsScheduled:     m.IsScheduled,
		ScheduledAt:     utcPtr(m.ScheduledAt),
		Dispatched:      m.Dispatched,
	}
	if m.Pinned && m.PinOrder > 0 {
		order := m.PinOrder
		model.PinOrder = &order
	}
	return model
}

// GroupModel is the GORM model for groups table.
type GroupModel struct {
	Name           string               `gorm:"type:varchar(128);primaryKey"`
	Description    string               `gorm:"type:text"`
	AvatarURL      string               `gorm:"type:varchar(512)"`
	Members        database.StringArray `gorm:"type:text"`
	Admins         database.StringArray `gorm:"type:text"`
	Creator        string               `gorm:"type:varchar(64);not null"`
	PinnedMessages database.StringArray `gorm:"type:text"`
	CreatedAt      time.Time            `gorm:"autoCreateTime"`
}

// TableName specifies the table name for GroupModel.
func (GroupModel) TableName() string {
	return "chat_groups"
}

// ToDomain converts GroupModel to domain Group.
func (m *GroupModel) ToDomain() *Group {
	return &Group{
		Name:           m.Name,
		Description:    m.Description,
		AvatarURL:      m.AvatarURL,
		Members:        nonNil(m.Members),
		Admins:         nonNil(m.Admins),
		Creator:        m.Creator,
		PinnedMessages: nonNil(m.PinnedMessages),
		CreatedAt:      m.CreatedAt.UTC(),
	}
}

// GroupToModel converts domain Group to GroupModel.
func GroupToModel(g *Group) *GroupModel {
	return &GroupModel{
		Name:           g.Name,
		Description:    g.Description,
		AvatarURL:      g.AvatarURL,
		Members:        database.StringArray(g.Members),
		Admins:         database.StringArray(g.Admins),
		Creator:        g.Creator,
		PinnedMessages: database.StringArray(g.PinnedMessages),
		CreatedAt:      g.CreatedAt,
	}
}

// PollModel is the GORM model for polls table.
type PollModel struct {
	ID                 string                      `gorm:"type:varchar(32);primaryKey"`
	Question           string                      `gorm:"type:text;not null"`
	Options            database.JSON[[]PollOption] `gorm:"type:text"`
	CreatedBy          string                      `gorm:"type:varchar(64);not null"`
	GroupName          string                      `gorm:"type:varchar(128);index;not null"`
	IsActive           bool                        `gorm:"not null"`
	AllowMultipleVotes bool                        `gorm:"not null"`
	ExpiresAt          *time.Time
	TotalVotes         int       `gorm:"not null"`
	CreatedAt          time.Time `gorm:"index;not null"`
}

// TableName specifies the table name for PollModel.
func (PollModel) TableName() string {
	return "polls"
}

// ToDomain converts PollModel to domain Poll.
func (m *PollModel) ToDomain() *Poll {
	options := m.Options.Data
	for i := range options {
		if options[i].Votes == nil {
			options[i].Votes = []string{}
		}
	}
	return &Poll{
		ID:                 m.ID,
		Question:           m.Question,
		Options:            options,
		CreatedBy:          m.CreatedBy,
		Group:              m.GroupName,
		IsActive:           m.IsActive,
		AllowMultipleVotes: m.AllowMultipleVotes,
		ExpiresAt:          utcPtr(m.ExpiresAt),
		TotalVotes:         m.TotalVotes,
		CreatedAt:          m.CreatedAt.UTC(),
	}
}

// PollToModel converts domain Poll to PollModel.
func PollToModel(p *Poll) *PollModel {
	return &PollModel{
		ID:                 p.ID,
		Question:           p.Question,
		Options:            database.NewJSON(p.Options),
		CreatedBy:          p.CreatedBy,
		GroupName:          p.Group,
		IsActive:           p.IsActive,
		AllowMultipleVotes: p.AllowMultipleVotes,
		ExpiresAt:          utcPtr(p.ExpiresAt),
		TotalVotes:         p.TotalVotes,
		CreatedAt:          p.CreatedAt.UTC(),
	}
}

// UserModel is the GORM model for users table.
type UserModel struct {
	Username  string    `gorm:"type:varchar(64);primaryKey"`
	AvatarURL string    `gorm:"type:varchar(512)"`
	Bio       string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for UserModel.
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts UserModel to domain User.
func (m *UserModel) ToDomain() *User {
	return &User{
		Username:  m.Username,
		AvatarURL: m.AvatarURL,
		Bio:       m.Bio,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

// Models lists every table for auto-migration.
func Models() []interface{} {
	return []interface{}{&MessageModel{}, &GroupModel{}, &PollModel{}, &UserModel{}}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func nonNil(a database.StringArray) []string {
	if a == nil {
		return []string{}
	}
	return []string(a)
}
