package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/weiawesome/wes-chat/internal/chat"
	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/hub"
	"github.com/weiawesome/wes-chat/pkg/log"
	"github.com/weiawesome/wes-chat/pkg/pubsub"
)

func (s *chatService) HandleCreatePoll(ctx context.Context, c *hub.Client, req *domain.CreatePollRequest) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}

	g, err := s.groups.GetByName(ctx, req.Group)
	if err != nil {
		return err
	}
	if !g.IsMember(actor) {
		return fmt.Errorf("%w: %s", chat.ErrNotMember, g.Name)
	}

	now := s.now()
	pollID, err := s.newID(now)
	if err != nil {
		return err
	}
	expires := req.ExpiresAt
	if expires != nil {
		at := expires.UTC()
		expires = &at
	}
	p, err := chat.NewPoll(pollID, req.Question, req.Options, g.Name, actor, req.AllowMultipleVotes, expires, now)
	if err != nil {
		return err
	}

	messageID, err := s.newID(now)
	if err != nil {
		return err
	}
	companion := &domain.Message{
		ID:        messageID,
		Sender:    actor,
		Kind:      domain.DestinationGroup,
		Target:    g.Name,
		Body:      chat.PollAnnouncement(p.Question),
		PollID:    p.ID,
		Timestamp: now,
		SeenBy:    []string{},
		Reactions: []domain.Reaction{},
		ViewedBy:  []string{},
	}

	if err := s.polls.Create(ctx, p, companion); err != nil {
		return fmt.Errorf("failed to save poll: %w", err)
	}

	delivered(ctx, domain.EventReceiveMessage, s.router.ToMembers(g, domain.EventReceiveMessage, companion))
	delivered(ctx, domain.EventPollCreated,
		s.router.ToMembers(g, domain.EventPollCreated, domain.PollCreated{Poll: p, MessageID: companion.ID}))
	s.emit(ctx, pubsub.EventMessageCreated, companion)
	return nil
}

func (s *chatService) HandleVotePoll(ctx context.Context, c *hub.Client, req *domain.VotePollRequest) error {
	actor, err := actorFor(c, req.Username)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(pollKey(req.PollID))
	defer unlock()

	p, err := s.polls.GetByID(ctx, req.PollID)
	if err != nil {
		return err
	}
	g, err := s.groups.GetByName(ctx, p.Group)
	if err != nil {
		return err
	}

	if err := chat.Vote(p, g, req.OptionIndex, actor, s.now()); err != nil {
		if errors.Is(err, chat.ErrPollExpired) {
			// The vote is refused but the poll closes for good.
			if updateErr := s.polls.Update(ctx, p); updateErr != nil {
				l := log.Ctx(ctx)
				l.Error().Err(updateErr).Str(log.FieldPollID, p.ID).Msg("failed to close expired poll")
			}
		}
		return err
	}
	if err := s.polls.Update(ctx, p); err != nil {
		return fmt.Errorf("failed to save vote: %w", err)
	}

	update := domain.PollUpdate{PollID: p.ID, Poll: p}
	delivered(ctx, domain.EventPollUpdated, s.router.ToMembers(g, domain.EventPollUpdated, update))
	pubsub.Emit(ctx, s.events, pubsub.EventPollUpdated, p.Group, update, s.now())
	return nil
}

func (s *chatService) HandleClosePoll(ctx context.Context, c *hub.Client, req *domain.PollRefRequest) error {
	actor, err := actorFor(c, req.Username)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(pollKey(req.PollID))
	defer unlock()

	p, err := s.polls.GetByID(ctx, req.PollID)
	if err != nil {
		return err
	}
	if err := chat.Close(p, actor); err != nil {
		return err
	}
	if err := s.polls.Update(ctx, p); err != nil {
		return fmt.Errorf("failed to close poll: %w", err)
	}

	update := domain.PollUpdate{PollID: p.ID, Poll: p}
	delivered(ctx, domain.EventPollClosed, s.router.ToGroup(ctx, p.Group, domain.EventPollClosed, update))
	pubsub.Emit(ctx, s.events, pubsub.EventPollUpdated, p.Group, update, s.now())
	return nil
}
