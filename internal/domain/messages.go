package domain

import "time"

// WebSocket message types from client.
const (
	MsgTypeJoin            = "join"
	MsgTypeCreateGroup     = "create_group"
	MsgTypeSendMessage     = "send_message"
	MsgTypeDeleteMessage   = "delete_message"
	MsgTypeEditMessage     = "edit_message"
	MsgTypeMessageSeen     = "message_seen"
	MsgTypeReactMessage    = "react_message"
	MsgTypePinMessage      = "pin_message"
	MsgTypeUnpinMessage    = "unpin_message"
	MsgTypeCreatePoll      = "create_poll"
	MsgTypeVotePoll        = "vote_poll"
	MsgTypeClosePoll       = "close_poll"
	MsgTypeViewOnceImage   = "view_once_image"
	MsgTypeTyping          = "typing"
	MsgTypeStopTyping      = "stop_typing"
	MsgTypeAddAdmin        = "add_admin"
	MsgTypeRemoveAdmin     = "remove_admin"
	MsgTypeCancelScheduled = "cancel_scheduled_message"
	MsgTypePing            = "ping"
)

// WebSocket event types to client.
const (
	EventUsersList             = "users_list"
	EventOnlineUsers           = "online_users"
	EventGroupsList            = "groups_list"
	EventMessageHistory        = "receive_message_history"
	EventPrivateMessageHistory = "receive_private_message_history"
	EventGroupMessageHistory   = "receive_group_message_history"
	EventReceiveMessage        = "receive_message"
	EventMessageDeleted        = "message_deleted"
	EventMessageExpired        = "message_expired"
	EventMessageEdited         = "message_edited"
	EventMessageReceiptUpdate  = "message_receipt_update"
	EventMessageReactionUpdate = "message_reaction_update"
	EventMessagePinned         = "message_pinned"
	EventMentionNotification   = "mention_notification"
	EventPollCreated           = "poll_created"
	EventPollUpdated           = "poll_updated"
	EventPollClosed            = "poll_closed"
	EventViewOnceUpdated       = "view_once_updated"
	EventMessageScheduled      = "message_scheduled"
	EventScheduledMessageSent  = "scheduled_message_sent"
	EventTyping                = "typing"
	EventStopTyping            = "stop_typing"
	EventAdminSuccess          = "admin_success"
	EventAdminError            = "admin_error"
	EventGroupRenamed          = "group_renamed"
	EventGroupDeleted          = "group_deleted"
	EventUserLeftGroup         = "user_left_group"
	EventUserAvatarUpdated     = "user_avatar_updated"
	EventError                 = "error"
	EventPong                  = "pong"
)

// Error codes
const (
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeNotJoined     = "NOT_JOINED"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Envelope is the outbound frame: {"type": ..., "data": ...}.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Client -> Server messages

type JoinMessage struct {
	Username string `json:"username"`
}

type CreateGroupMessage struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

type SendMessageRequest struct {
	Message       string     `json:"message"`
	To            string     `json:"to"`
	Group         string     `json:"group"`
	ReplyTo       string     `json:"reply_to"`
	ForwardedFrom string     `json:"forwarded_from"`
	IsTemporary   bool       `json:"is_temporary"`
	ExpiresIn     int64      `json:"expires_in"` // seconds
	IsViewOnce    bool       `json:"is_view_once"`
	IsScheduled   bool       `json:"is_scheduled"`
	ScheduledAt   *time.Time `json:"scheduled_at"`
	MediaURL      string     `json:"media_url"`
	MediaType     string     `json:"media_type"`
}

// MessageRefRequest addresses a message on behalf of username. Used by
// delete, seen, pin, unpin, view-once and cancel.
type MessageRefRequest struct {
	MessageID string `json:"message_id"`
	Username  string `json:"username"`
}

type EditMessageRequest struct {
	MessageID  string `json:"message_id"`
	NewMessage string `json:"new_message"`
}

type ReactMessageRequest struct {
	MessageID string `json:"message_id"`
	Username  string `json:"username"`
	Emoji     string `json:"emoji"`
}

type CreatePollRequest struct {
	Question           string     `json:"question"`
	Options            []string   `json:"options"`
	Group              string     `json:"group"`
	AllowMultipleVotes bool       `json:"allow_multiple_votes"`
	ExpiresAt          *time.Time `json:"expires_at"`
}

type VotePollRequest struct {
	PollID      string `json:"poll_id"`
	OptionIndex int    `json:"option_index"`
	Username    string `json:"username"`
}

type PollRefRequest struct {
	PollID   string `json:"poll_id"`
	Username string `json:"username"`
}

type TypingRequest struct {
	To       string `json:"to"`
	Group    string `json:"group"`
	Username string `json:"username"`
}

type AdminRequest struct {
	GroupName  string `json:"group_name"`
	Username   string `json:"username"`
	TargetUser string `json:"target_user"`
}

// Server -> Client payloads

type MessageRef struct {
	MessageID string `json:"message_id"`
}

type GroupHistory struct {
	Group    string     `json:"group"`
	Messages []*Message `json:"messages"`
}

type ReceiptUpdate struct {
	MessageID string   `json:"message_id"`
	SeenBy    []string `json:"seen_by"`
}

type ReactionUpdate struct {
	MessageID string     `json:"message_id"`
	Reactions []Reaction `json:"reactions"`
}

type PinUpdate struct {
	MessageID   string     `json:"message_id"`
	Pinned      bool       `json:"pinned"`
	PinnedBy    string     `json:"pinned_by,omitempty"`
	PinnedAt    *time.Time `json:"pinned_at,omitempty"`
	PinOrder    int        `json:"pin_order,omitempty"`
	PinnedOrder []string   `json:"pinned_order"`
}

type MentionNotice struct {
	Message   string `json:"message"`
	Group     string `json:"group"`
	MessageID string `json:"message_id"`
}

type PollCreated struct {
	Poll      *Poll  `json:"poll"`
	MessageID string `json:"message_id"`
}

type PollUpdate struct {
	PollID string `json:"poll_id"`
	Poll   *Poll  `json:"poll"`
}

type ViewOnceUpdate struct {
	MessageID string   `json:"message_id"`
	ViewedBy  []string `json:"viewed_by"`
}

type ScheduledNotice struct {
	MessageID   string     `json:"message_id"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	Message     string     `json:"message,omitempty"`
}

type TypingNotice struct {
	Group    string `json:"group,omitempty"`
	Username string `json:"username,omitempty"`
	From     string `json:"from,omitempty"`
}

type AdminResult struct {
	Message string `json:"message"`
}

type GroupRenamed struct {
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
}

type GroupDeleted struct {
	GroupName string `json:"group_name"`
}

type UserLeftGroup struct {
	GroupName string `json:"group_name"`
	Username  string `json:"username"`
}

type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{Code: code, Message: message}
}
