package chat

import "errors"

// Rule violations. Callers treat all of them as a silent no-op.
var (
	ErrNotMember       = errors.New("actor is not a member of the group")
	ErrNotGroupMessage = errors.New("message is not addressed to a group")
	ErrAlreadyPinned   = errors.New("message is already pinned")
	ErrNotPinned       = errors.New("message is not pinned")
	ErrInvalidPoll     = errors.New("poll needs a question, a group and at least two options")
	ErrPollInactive    = errors.New("poll is closed")
	ErrPollExpired     = errors.New("poll has expired")
	ErrInvalidOption   = errors.New("poll option does not exist")
	ErrNotPollCreator  = errors.New("only the poll creator can close it")
	ErrNotViewOnce     = errors.New("message is not a view-once image")
	ErrAlreadyViewed   = errors.New("viewer has already opened the image")
	ErrEmptyReaction   = errors.New("reaction is empty")
)
