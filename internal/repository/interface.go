package repository

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/wes-chat/internal/domain"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrGroupNotFound   = errors.New("group not found")
	ErrGroupExists     = errors.New("group already exists")
	ErrPollNotFound    = errors.New("poll not found")
	ErrUserNotFound    = errors.New("user not found")
)

// MessageRepository defines the interface for message persistence. Every
// history query hides scheduled messages that are not yet dispatched from
// everyone except their sender.
type MessageRepository interface {
	Create(ctx context.Context, m *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	RecentPublic(ctx context.Context, viewer string, limit int) ([]*domain.Message, error)
	PrivateHistory(ctx context.Context, user string) ([]*domain.Message, error)
	GroupHistory(ctx context.Context, group, viewer string) ([]*domain.Message, error)
	PinnedInGroup(ctx context.Context, group string) ([]*domain.Message, error)

	// MarkDeleted and UpdateBody only touch messages that are not deleted.
	MarkDeleted(ctx context.Context, id string) error
	UpdateBody(ctx context.Context, id, body string, editedAt time.Time) error
	UpdateSeenBy(ctx context.Context, id string, seenBy []string) error
	UpdateReactions(ctx context.Context, id string, reactions []domain.Reaction) error
	UpdateViewedBy(ctx context.Context, id string, viewedBy []string) error

	// Sweep candidates and their conditional claims. A claim reports true
	// only for the caller whose update changed the row.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Message, error)
	ClaimExpired(ctx context.Context, id string) (bool, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.Message, error)
	ClaimDispatch(ctx context.Context, id string) (bool, error)
	CancelScheduled(ctx context.Context, id string) (bool, error)
}

// GroupRepository defines the interface for group persistence.
type GroupRepository interface {
	Create(ctx context.Context, g *domain.Group) error
	GetByName(ctx context.Context, name string) (*domain.Group, error)
	List(ctx context.Context) ([]*domain.Group, error)
	ListForMember(ctx context.Context, member string) ([]*domain.Group, error)
	UpdateMembers(ctx context.Context, name string, members, admins []string) error
	UpdateAdmins(ctx context.Context, name string, admins []string) error
	UpdateDescription(ctx context.Context, name, description string) error
	UpdateAvatar(ctx context.Context, name, avatarURL string) error

	// Rename moves the group, its messages and its polls to newName.
	Rename(ctx context.Context, oldName, newName string) error
	// Delete removes the group with its messages and polls.
	Delete(ctx context.Context, name string) error
	// SavePinState writes the group's pinned list and the pin fields of
	// msgs in one transaction.
	SavePinState(ctx context.Context, g *domain.Group, msgs []*domain.Message) error
}

// PollRepository defines the interface for poll persistence.
type PollRepository interface {
	// Create stores the poll and its companion message together.
	Create(ctx context.Context, p *domain.Poll, companion *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Poll, error)
	Update(ctx context.Context, p *domain.Poll) error
	ListByGroup(ctx context.Context, group string) ([]*domain.Poll, error)
}

// UserRepository defines the interface for user profile persistence.
type UserRepository interface {
	// Touch creates the profile if it does not exist yet.
	Touch(ctx context.Context, username string) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	UpdateProfile(ctx context.Context, username string, bio, avatarURL *string) (*domain.User, error)
}
