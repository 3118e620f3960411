package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/weiawesome/wes-chat/internal/audit"
	"github.com/weiawesome/wes-chat/internal/chat"
	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/hub"
	"github.com/weiawesome/wes-chat/internal/repository"
	"github.com/weiawesome/wes-chat/pkg/pubsub"
)

const scheduledConfirmation = "Message scheduled successfully!"

// visibleMessage loads id for viewer. Messages the viewer may not see yet
// are reported as missing.
func (s *chatService) visibleMessage(ctx context.Context, id, viewer string) (*domain.Message, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: message id is required", ErrInvalidRequest)
	}
	m, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.VisibleTo(viewer) {
		return nil, repository.ErrMessageNotFound
	}
	return m, nil
}

func (s *chatService) HandleSendMessage(ctx context.Context, c *hub.Client, req *domain.SendMessageRequest) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	if strings.TrimSpace(req.Message) == "" && req.MediaURL == "" {
		return fmt.Errorf("%w: message has no body or media", ErrInvalidRequest)
	}

	now := s.now()
	id, err := s.newID(now)
	if err != nil {
		return err
	}

	m := &domain.Message{
		ID:            id,
		Sender:        actor,
		Body:          req.Message,
		MediaURL:      req.MediaURL,
		MediaType:     req.MediaType,
		Timestamp:     now,
		SeenBy:        []string{},
		Reactions:     []domain.Reaction{},
		ViewedBy:      []string{},
		ReplyTo:       req.ReplyTo,
		ForwardedFrom: req.ForwardedFrom,
	}

	group := strings.TrimSpace(req.Group)
	to := strings.TrimSpace(req.To)
	switch {
	case group != "":
		g, err := s.groups.GetByName(ctx, group)
		if err != nil {
			return err
		}
		if !g.IsMember(actor) {
			return fmt.Errorf("%w: %s", chat.ErrNotMember, group)
		}
		m.Kind, m.Target = domain.DestinationGroup, g.Name
		m.Mentions = chat.ResolveMentions(m.Body, g)
	case to != "" && to != domain.PublicTarget:
		m.Kind, m.Target = domain.DestinationPrivate, to
	default:
		m.Kind, m.Target = domain.DestinationPublic, domain.PublicTarget
	}

	if req.IsTemporary && req.ExpiresIn > 0 {
		expires := now.Add(time.Duration(req.ExpiresIn) * time.Second)
		m.IsTemporary, m.ExpiresAt = true, &expires
	}
	m.IsViewOnce = req.IsViewOnce && m.HasImage()
	if req.IsScheduled && req.ScheduledAt != nil {
		at := req.ScheduledAt.UTC()
		m.IsScheduled, m.ScheduledAt = true, &at
	}

	if err := s.messages.Create(ctx, m); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	audit.LogTarget(ctx, audit.ActionSendMessage, actor, m.ID, "message sent")

	if m.Pending() {
		notice := domain.ScheduledNotice{
			MessageID:   m.ID,
			ScheduledAt: m.ScheduledAt,
			Message:     scheduledConfirmation,
		}
		delivered(ctx, domain.EventMessageScheduled, s.toClient(c, domain.EventMessageScheduled, notice))
		s.emit(ctx, pubsub.EventMessageScheduled, m)
		return nil
	}

	delivered(ctx, domain.EventReceiveMessage, s.router.DeliverNew(ctx, m))
	s.emit(ctx, pubsub.EventMessageCreated, m)
	return nil
}

func (s *chatService) HandleDeleteMessage(ctx context.Context, c *hub.Client, req *domain.MessageRefRequest) error {
	actor, err := actorFor(c, req.Username)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(messageKey(req.MessageID))
	defer unlock()

	m, err := s.visibleMessage(ctx, req.MessageID, actor)
	if err != nil {
		return err
	}
	if m.Sender != actor {
		return fmt.Errorf("%w: only the sender can delete a message", ErrForbidden)
	}
	if err := s.messages.MarkDeleted(ctx, m.ID); err != nil {
		return err
	}
	m.Deleted = true
	audit.LogTarget(ctx, audit.ActionDeleteMessage, actor, m.ID, "message deleted")

	s.toVisible(ctx, m, domain.EventMessageDeleted, domain.MessageRef{MessageID: m.ID})
	pubsub.Emit(ctx, s.events, pubsub.EventMessageDeleted, m.EventKey(), domain.MessageRef{MessageID: m.ID}, s.now())
	return nil
}

func (s *chatService) HandleEditMessage(ctx context.Context, c *hub.Client, req *domain.EditMessageRequest) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	if strings.TrimSpace(req.NewMessage) == "" {
		return fmt.Errorf("%w: edited message is empty", ErrInvalidRequest)
	}

	unlock := s.locks.Lock(messageKey(req.MessageID))
	defer unlock()

	m, err := s.visibleMessage(ctx, req.MessageID, actor)
	if err != nil {
		return err
	}
	if m.Sender != actor {
		return fmt.Errorf("%w: only the sender can edit a message", ErrForbidden)
	}
	if m.Deleted {
		return repository.ErrMessageNotFound
	}

	now := s.now()
	if err := s.messages.UpdateBody(ctx, m.ID, req.NewMessage, now); err != nil {
		return err
	}
	m.Body, m.Edited, m.EditedAt = req.NewMessage, true, &now
	audit.LogTarget(ctx, audit.ActionEditMessage, actor, m.ID, "message edited")

	s.toVisible(ctx, m, domain.EventMessageEdited, m)
	s.emit(ctx, pubsub.EventMessageEdited, m)
	return nil
}

func (s *chatService) HandleMessageSeen(ctx context.Context, c *hub.Client, req *domain.MessageRefRequest) error {
	actor, err := actorFor(c, req.Username)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(messageKey(req.MessageID))
	defer unlock()

	m, err := s.visibleMessage(ctx, req.MessageID, actor)
	if err != nil {
		return err
	}
	for _, v := range m.SeenBy {
		if v == actor {
			return nil
		}
	}

	m.SeenBy = append(m.SeenBy, actor)
	if err := s.messages.UpdateSeenBy(ctx, m.ID, m.SeenBy); err != nil {
		return err
	}

	if m.Kind == domain.DestinationPrivate && m.Sender != actor {
		update := domain.ReceiptUpdate{MessageID: m.ID, SeenBy: m.SeenBy}
		delivered(ctx, domain.EventMessageReceiptUpdate,
			s.router.ToUsers(domain.EventMessageReceiptUpdate, update, m.Sender))
	}
	return nil
}

func (s *chatService) HandleReactMessage(ctx context.Context, c *hub.Client, req *domain.ReactMessageRequest) error {
	actor, err := actorFor(c, req.Username)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(messageKey(req.MessageID))
	defer unlock()

	m, err := s.visibleMessage(ctx, req.MessageID, actor)
	if err != nil {
		return err
	}
	if m.Deleted {
		return repository.ErrMessageNotFound
	}

	reactions, err := chat.ApplyReaction(m, actor, req.Emoji)
	if err != nil {
		return err
	}
	if err := s.messages.UpdateReactions(ctx, m.ID, reactions); err != nil {
		return err
	}

	s.toVisible(ctx, m, domain.EventMessageReactionUpdate, domain.ReactionUpdate{MessageID: m.ID, Reactions: reactions})
	return nil
}

func (s *chatService) HandleViewOnce(ctx context.Context, c *hub.Client, req *domain.MessageRefRequest) error {
	actor, err := actorFor(c, req.Username)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(messageKey(req.MessageID))
	defer unlock()

	m, err := s.visibleMessage(ctx, req.MessageID, actor)
	if err != nil {
		return err
	}
	if err := chat.ConsumeViewOnce(m, actor); err != nil {
		return err
	}
	if err := s.messages.UpdateViewedBy(ctx, m.ID, m.ViewedBy); err != nil {
		return err
	}

	s.toVisible(ctx, m, domain.EventViewOnceUpdated, domain.ViewOnceUpdate{MessageID: m.ID, ViewedBy: m.ViewedBy})
	return nil
}

func (s *chatService) HandleCancelScheduled(ctx context.Context, c *hub.Client, req *domain.MessageRefRequest) error {
	actor, err := actorFor(c, req.Username)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(messageKey(req.MessageID))
	defer unlock()

	m, err := s.visibleMessage(ctx, req.MessageID, actor)
	if err != nil {
		return err
	}
	if m.Sender != actor {
		return fmt.Errorf("%w: only the sender can cancel a scheduled message", ErrForbidden)
	}

	// The dispatcher may have claimed it since the read; the conditional
	// update decides.
	ok, err := s.messages.CancelScheduled(ctx, m.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotScheduled
	}
	audit.LogTarget(ctx, audit.ActionCancelScheduled, actor, m.ID, "scheduled message cancelled")

	ref := domain.MessageRef{MessageID: m.ID}
	delivered(ctx, domain.EventMessageDeleted, s.router.ToUsers(domain.EventMessageDeleted, ref, actor))
	pubsub.Emit(ctx, s.events, pubsub.EventMessageDeleted, m.EventKey(), ref, s.now())
	return nil
}

func (s *chatService) HandlePinMessage(ctx context.Context, c *hub.Client, req *domain.MessageRefRequest) error {
	actor, err := actorFor(c, req.Username)
	if err != nil {
		return err
	}

	return s.withPinState(ctx, req.MessageID, actor, func(m *domain.Message, g *domain.Group, pinned []*domain.Message) (*domain.PinUpdate, []*domain.Message, error) {
		if err := chat.Pin(m, g, pinned, actor, s.now()); err != nil {
			return nil, nil, err
		}
		update := &domain.PinUpdate{
			MessageID:   m.ID,
			Pinned:      true,
			PinnedBy:    m.PinnedBy,
			PinnedAt:    m.PinnedAt,
			PinOrder:    m.PinOrder,
			PinnedOrder: chat.PinnedOrder(append(pinned, m)),
		}
		return update, []*domain.Message{m}, nil
	})
}

func (s *chatService) HandleUnpinMessage(ctx context.Context, c *hub.Client, req *domain.MessageRefRequest) error {
	actor, err := actorFor(c, req.Username)
	if err != nil {
		return err
	}

	return s.withPinState(ctx, req.MessageID, actor, func(m *domain.Message, g *domain.Group, pinned []*domain.Message) (*domain.PinUpdate, []*domain.Message, error) {
		remaining, err := chat.Unpin(m, g, pinned, actor)
		if err != nil {
			return nil, nil, err
		}
		update := &domain.PinUpdate{
			MessageID:   m.ID,
			Pinned:      false,
			PinnedOrder: chat.PinnedOrder(remaining),
		}
		return update, append(remaining, m), nil
	})
}

type pinFunc func(m *domain.Message, g *domain.Group, pinned []*domain.Message) (*domain.PinUpdate, []*domain.Message, error)

// withPinState runs fn under the group lock, since pin order is a property
// of the whole group, then saves the changed messages and tells the members.
func (s *chatService) withPinState(ctx context.Context, messageID, actor string, fn pinFunc) error {
	m, err := s.visibleMessage(ctx, messageID, actor)
	if err != nil {
		return err
	}
	if m.Kind != domain.DestinationGroup {
		return chat.ErrNotGroupMessage
	}
	if m.Pending() {
		return repository.ErrMessageNotFound
	}

	unlockGroup := s.locks.Lock(groupKey(m.Target))
	defer unlockGroup()
	unlockMessage := s.locks.Lock(messageKey(m.ID))
	defer unlockMessage()

	// Re-read under the locks.
	m, err = s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	g, err := s.groups.GetByName(ctx, m.Target)
	if err != nil {
		return err
	}
	pinned, err := s.messages.PinnedInGroup(ctx, g.Name)
	if err != nil {
		return fmt.Errorf("failed to load pinned messages: %w", err)
	}
	// PinnedInGroup returns its own copy of m when m is pinned.
	for i, p := range pinned {
		if p.ID == m.ID {
			pinned[i] = m
		}
	}

	update, changed, err := fn(m, g, pinned)
	if err != nil {
		return err
	}
	if err := s.groups.SavePinState(ctx, g, changed); err != nil {
		return fmt.Errorf("failed to save pin state: %w", err)
	}

	delivered(ctx, domain.EventMessagePinned, s.router.ToMembers(g, domain.EventMessagePinned, update))
	return nil
}
