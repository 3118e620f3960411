package service

import (
	"context"

	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/hub"
)

// ChatService handles the actions of one WebSocket connection. Every
// action except join requires a joined session and acts as its name.
type ChatService interface {
	HandleJoin(ctx context.Context, client *hub.Client, req *domain.JoinMessage) error
	HandleDisconnect(ctx context.Context, client *hub.Client) error
	HandleCreateGroup(ctx context.Context, client *hub.Client, req *domain.CreateGroupMessage) error

	HandleSendMessage(ctx context.Context, client *hub.Client, req *domain.SendMessageRequest) error
	HandleDeleteMessage(ctx context.Context, client *hub.Client, req *domain.MessageRefRequest) error
	HandleEditMessage(ctx context.Context, client *hub.Client, req *domain.EditMessageRequest) error
	HandleMessageSeen(ctx context.Context, client *hub.Client, req *domain.MessageRefRequest) error
	HandleReactMessage(ctx context.Context, client *hub.Client, req *domain.ReactMessageRequest) error
	HandlePinMessage(ctx context.Context, client *hub.Client, req *domain.MessageRefRequest) error
	HandleUnpinMessage(ctx context.Context, client *hub.Client, req *domain.MessageRefRequest) error
	HandleViewOnce(ctx context.Context, client *hub.Client, req *domain.MessageRefRequest) error
	HandleCancelScheduled(ctx context.Context, client *hub.Client, req *domain.MessageRefRequest) error

	HandleCreatePoll(ctx context.Context, client *hub.Client, req *domain.CreatePollRequest) error
	HandleVotePoll(ctx context.Context, client *hub.Client, req *domain.VotePollRequest) error
	HandleClosePoll(ctx context.Context, client *hub.Client, req *domain.PollRefRequest) error

	HandleTyping(ctx context.Context, client *hub.Client, req *domain.TypingRequest, typing bool) error
	HandleAddAdmin(ctx context.Context, client *hub.Client, req *domain.AdminRequest) error
	HandleRemoveAdmin(ctx context.Context, client *hub.Client, req *domain.AdminRequest) error
}

// GroupService holds the request/response group and profile operations.
// actor is the authenticated user name.
type GroupService interface {
	RenameGroup(ctx context.Context, actor, name, newName string) (*domain.Group, error)
	UpdateDescription(ctx context.Context, actor, name, description string) (*domain.Group, error)
	UpdateAvatar(ctx context.Context, actor, name, avatarURL string) (*domain.Group, error)
	UpdateMembers(ctx context.Context, actor, name string, members []string) (*domain.Group, error)
	LeaveGroup(ctx context.Context, actor, name string) error
	DeleteGroup(ctx context.Context, actor, name string) error

	// AddAdmin and RemoveAdmin return the confirmation for the actor.
	AddAdmin(ctx context.Context, actor, name, target string) (string, error)
	RemoveAdmin(ctx context.Context, actor, name, target string) (string, error)

	ListPolls(ctx context.Context, actor, name string) ([]*domain.Poll, error)
	UpdateProfile(ctx context.Context, actor string, bio, avatarURL *string) (*domain.User, error)
}
