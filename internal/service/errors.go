package service

import (
	"errors"

	"github.com/weiawesome/wes-chat/internal/chat"
	"github.com/weiawesome/wes-chat/internal/repository"
)

var (
	ErrNotJoined      = errors.New("connection has not joined")
	ErrForbidden      = errors.New("action not permitted")
	ErrInvalidRequest = errors.New("invalid request")
	ErrAlreadyAdmin   = errors.New("user is already an admin")
	ErrNotAdmin       = errors.New("user is not an admin")
	ErrNotScheduled   = errors.New("message is not awaiting dispatch")
)

// RuleError is a rejection with a message meant for the acting user.
type RuleError struct {
	Kind    error
	Message string
}

func (e *RuleError) Error() string { return e.Message }
func (e *RuleError) Unwrap() error { return e.Kind }

func ruleError(kind error, message string) error {
	return &RuleError{Kind: kind, Message: message}
}

var rejections = []error{
	ErrForbidden,
	ErrInvalidRequest,
	ErrAlreadyAdmin,
	ErrNotAdmin,
	ErrNotScheduled,
	repository.ErrMessageNotFound,
	repository.ErrGroupNotFound,
	repository.ErrGroupExists,
	repository.ErrPollNotFound,
	repository.ErrUserNotFound,
	chat.ErrNotMember,
	chat.ErrNotGroupMessage,
	chat.ErrAlreadyPinned,
	chat.ErrNotPinned,
	chat.ErrInvalidPoll,
	chat.ErrPollInactive,
	chat.ErrPollExpired,
	chat.ErrInvalidOption,
	chat.ErrNotPollCreator,
	chat.ErrNotViewOnce,
	chat.ErrAlreadyViewed,
	chat.ErrEmptyReaction,
}

// IsRejection reports whether err is a refused action rather than a
// failure. Rejections leave no trace beyond a debug log.
func IsRejection(err error) bool {
	for _, target := range rejections {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
