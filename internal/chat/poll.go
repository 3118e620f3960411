package chat

import (
	"strings"
	"time"

	"github.com/weiawesome/wes-chat/internal/domain"
)

// PollAnnouncement is the body of the message that carries a poll.
func PollAnnouncement(question string) string {
	return "📊 Poll: " + question
}

// NewPoll validates the input and builds an open poll. Blank options are
// dropped before counting.
func NewPoll(id, question string, options []string, group, createdBy string, multi bool, expiresAt *time.Time, now time.Time) (*domain.Poll, error) {
	question = strings.TrimSpace(question)
	group = strings.TrimSpace(group)

	opts := make([]domain.PollOption, 0, len(options))
	for _, o := range options {
		if o = strings.TrimSpace(o); o != "" {
			opts = append(opts, domain.PollOption{Text: o, Votes: []string{}})
		}
	}

	if question == "" || group == "" || len(opts) < 2 {
		return nil, ErrInvalidPoll
	}

	return &domain.Poll{
		ID:                 id,
		Question:           question,
		Options:            opts,
		CreatedBy:          createdBy,
		Group:              group,
		IsActive:           true,
		AllowMultipleVotes: multi,
		ExpiresAt:          expiresAt,
		CreatedAt:          now,
	}, nil
}

// Vote applies user's vote on option index of p. On ErrPollExpired the
// poll has been flipped inactive and the caller must persist that.
//
// In multi-vote mode the option is toggled. In single-vote mode the user's
// vote is first removed from every option, then added to the chosen one.
func Vote(p *domain.Poll, g *domain.Group, index int, user string, now time.Time) error {
	if !p.IsActive {
		return ErrPollInactive
	}
	if !g.IsMember(user) {
		return ErrNotMember
	}
	if p.ExpiresAt != nil && now.After(*p.ExpiresAt) {
		p.IsActive = false
		return ErrPollExpired
	}
	if index < 0 || index >= len(p.Options) {
		return ErrInvalidOption
	}

	option := &p.Options[index]
	if p.AllowMultipleVotes {
		if removeVote(option, user) {
			p.TotalVotes--
		} else {
			option.Votes = append(option.Votes, user)
			p.TotalVotes++
		}
		return nil
	}

	for i := range p.Options {
		if removeVote(&p.Options[i], user) {
			p.TotalVotes--
		}
	}
	option.Votes = append(option.Votes, user)
	p.TotalVotes++
	return nil
}

// Close deactivates p for good. Only the creator may close.
func Close(p *domain.Poll, actor string) error {
	if p.CreatedBy != actor {
		return ErrNotPollCreator
	}
	if !p.IsActive {
		return ErrPollInactive
	}
	p.IsActive = false
	return nil
}

// CountVotes sums the option vote sets.
func CountVotes(p *domain.Poll) int {
	n := 0
	for _, o := range p.Options {
		n += len(o.Votes)
	}
	return n
}

func removeVote(o *domain.PollOption, user string) bool {
	for i, v := range o.Votes {
		if v == user {
			o.Votes = append(o.Votes[:i], o.Votes[i+1:]...)
			return true
		}
	}
	return false
}
