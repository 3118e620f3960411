package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/weiawesome/wes-chat/internal/audit"
	"github.com/weiawesome/wes-chat/internal/chat"
	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/hub"
	"github.com/weiawesome/wes-chat/internal/repository"
	"github.com/weiawesome/wes-chat/pkg/log"
)

type chatService struct {
	*core
	groupSvc *groupService
}

func NewChatService(deps *Dependencies) ChatService {
	c := newCore(deps)
	return &chatService{
		core:     c,
		groupSvc: &groupService{core: c},
	}
}

// actorOf returns the name c acts as.
func actorOf(c *hub.Client) (string, error) {
	if !c.Session.IsJoined() {
		return "", ErrNotJoined
	}
	return c.Session.GetDisplayName(), nil
}

// actorFor also checks the username a payload claims to act as. An empty
// claim means the session name.
func actorFor(c *hub.Client, claimed string) (string, error) {
	actor, err := actorOf(c)
	if err != nil {
		return "", err
	}
	if claimed != "" && claimed != actor {
		return "", fmt.Errorf("%w: %s cannot act as %s", ErrForbidden, actor, claimed)
	}
	return actor, nil
}

func (s *chatService) toClient(c *hub.Client, event string, payload any) error {
	return s.router.ToConnections(event, payload, c.ID)
}

func (s *chatService) HandleJoin(ctx context.Context, c *hub.Client, req *domain.JoinMessage) error {
	name := strings.TrimSpace(req.Username)
	if name == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidRequest)
	}
	if name == domain.SystemSender || name == domain.PublicTarget {
		return fmt.Errorf("%w: username %q is reserved", ErrInvalidRequest, name)
	}
	if auth := c.Session.AuthenticatedAs(); auth != "" && auth != name {
		return fmt.Errorf("%w: token belongs to %s", ErrForbidden, auth)
	}

	if err := s.users.Touch(ctx, name); err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}
	if err := c.Session.Join(name); err != nil {
		return err
	}
	s.registry.Join(c.ID, name)
	audit.LogTarget(ctx, audit.ActionJoin, name, c.ID, "user joined")

	s.broadcastRoster(ctx, true)

	groups, err := s.loadGroups(ctx, false)
	if err != nil {
		return err
	}
	if err := s.toClient(c, domain.EventGroupsList, groups); err != nil {
		return err
	}

	public, err := s.messages.RecentPublic(ctx, name, s.historyLimit)
	if err != nil {
		return fmt.Errorf("failed to load public history: %w", err)
	}
	if err := s.toClient(c, domain.EventMessageHistory, public); err != nil {
		return err
	}

	private, err := s.messages.PrivateHistory(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to load private history: %w", err)
	}
	if err := s.toClient(c, domain.EventPrivateMessageHistory, private); err != nil {
		return err
	}

	memberOf, err := s.groups.ListForMember(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to list groups of %s: %w", name, err)
	}
	for _, g := range memberOf {
		history, err := s.messages.GroupHistory(ctx, g.Name, name)
		if err != nil {
			return fmt.Errorf("failed to load history of %s: %w", g.Name, err)
		}
		payload := domain.GroupHistory{Group: g.Name, Messages: history}
		if err := s.toClient(c, domain.EventGroupMessageHistory, payload); err != nil {
			return err
		}
	}
	return nil
}

func (s *chatService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	name, wasJoined := c.Session.Disconnect()
	s.registry.Leave(c.ID)
	if !wasJoined {
		return nil
	}

	audit.LogTarget(ctx, audit.ActionDisconnect, name, c.ID, "user disconnected")
	s.broadcastRoster(ctx, false)
	return nil
}

func (s *chatService) HandleCreateGroup(ctx context.Context, c *hub.Client, req *domain.CreateGroupMessage) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return fmt.Errorf("%w: group name is required", ErrInvalidRequest)
	}

	g := &domain.Group{
		Name:           name,
		Members:        normalizeNames(append([]string{actor}, req.Members...)),
		Admins:         []string{actor},
		Creator:        actor,
		PinnedMessages: []string{},
		CreatedAt:      s.now(),
	}

	unlock := s.locks.Lock(groupKey(name))
	defer unlock()

	if err := s.groups.Create(ctx, g); err != nil {
		if errors.Is(err, repository.ErrGroupExists) {
			return err
		}
		return fmt.Errorf("failed to create group: %w", err)
	}

	audit.LogTarget(ctx, audit.ActionCreateGroup, actor, name, "group created")
	s.broadcastGroups(ctx)
	return nil
}

func (s *chatService) HandleTyping(ctx context.Context, c *hub.Client, req *domain.TypingRequest, typing bool) error {
	actor, err := actorFor(c, req.Username)
	if err != nil {
		return err
	}
	event := domain.EventStopTyping
	if typing {
		event = domain.EventTyping
	}

	switch {
	case req.Group != "":
		g, err := s.groups.GetByName(ctx, req.Group)
		if err != nil {
			return err
		}
		if !g.IsMember(actor) {
			return fmt.Errorf("%w: %s", chat.ErrNotMember, g.Name)
		}
		notice := domain.TypingNotice{Group: g.Name, Username: actor}
		return s.router.ToMembers(g, event, notice, s.registry.ConnectionsFor(actor)...)
	case req.To != "":
		if !s.registry.IsOnline(req.To) {
			return nil
		}
		return s.router.ToUsers(event, domain.TypingNotice{From: actor}, req.To)
	default:
		return fmt.Errorf("%w: typing needs a group or a recipient", ErrInvalidRequest)
	}
}

func (s *chatService) HandleAddAdmin(ctx context.Context, c *hub.Client, req *domain.AdminRequest) error {
	return s.adminAction(ctx, c, req, s.groupSvc.AddAdmin, "Failed to add admin")
}

func (s *chatService) HandleRemoveAdmin(ctx context.Context, c *hub.Client, req *domain.AdminRequest) error {
	return s.adminAction(ctx, c, req, s.groupSvc.RemoveAdmin, "Failed to remove admin")
}

type adminFunc func(ctx context.Context, actor, name, target string) (string, error)

// adminAction runs an admin change and reports the outcome to the origin
// connection only.
func (s *chatService) adminAction(ctx context.Context, c *hub.Client, req *domain.AdminRequest, fn adminFunc, failure string) error {
	actor, err := actorFor(c, req.Username)
	if err != nil {
		return err
	}

	msg, err := fn(ctx, actor, req.GroupName, req.TargetUser)
	if err != nil {
		text := failure
		var re *RuleError
		if errors.As(err, &re) {
			text = re.Message
		}
		if sendErr := s.toClient(c, domain.EventAdminError, domain.AdminResult{Message: text}); sendErr != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(sendErr).Msg("failed to report admin error")
		}
		return err
	}
	return s.toClient(c, domain.EventAdminSuccess, domain.AdminResult{Message: msg})
}

// normalizeNames trims names and drops blanks and repeats, keeping the
// first occurrence.
func normalizeNames(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
