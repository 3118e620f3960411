package scheduler

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/metrics"
	"github.com/weiawesome/wes-chat/internal/repository"
	"github.com/weiawesome/wes-chat/pkg/log"
	"github.com/weiawesome/wes-chat/pkg/pubsub"
)

// ExpiryReaper soft-deletes temporary messages whose time is up and tells
// their audience.
type ExpiryReaper struct {
	messages repository.MessageRepository
	notify   Notifier
	events   pubsub.Publisher
	clock    clockwork.Clock
	batch    int
}

func NewExpiryReaper(messages repository.MessageRepository, notify Notifier, events pubsub.Publisher, clock clockwork.Clock) *ExpiryReaper {
	return &ExpiryReaper{
		messages: messages,
		notify:   notify,
		events:   events,
		clock:    clock,
		batch:    defaultBatchSize,
	}
}

func (r *ExpiryReaper) Name() string { return "expiry" }

// Sweep claims every expired message once. Only the claiming caller
// notifies, so overlapping sweeps never emit twice.
func (r *ExpiryReaper) Sweep(ctx context.Context) int {
	l := log.Ctx(ctx)
	now := r.clock.Now()

	due, err := r.messages.ListExpired(ctx, now, r.batch)
	if err != nil {
		l.Error().Err(err).Msg("failed to list expired messages")
		return 0
	}

	claimed := 0
	for _, m := range due {
		ok, err := r.messages.ClaimExpired(ctx, m.ID)
		if err != nil {
			l.Error().Err(err).Str(log.FieldMessageID, m.ID).Msg("failed to claim expired message")
			continue
		}
		if !ok {
			continue
		}
		claimed++
		m.Deleted, m.Expired = true, true

		ref := domain.MessageRef{MessageID: m.ID}
		var notifyErr error
		if m.Pending() {
			// Nobody but the sender has seen it yet.
			notifyErr = r.notify.ToUsers(domain.EventMessageExpired, ref, m.Sender)
		} else {
			notifyErr = r.notify.ToAudience(ctx, m, domain.EventMessageExpired, ref)
		}
		if notifyErr != nil {
			l.Warn().Err(notifyErr).Str(log.FieldMessageID, m.ID).Msg("failed to notify expiry")
		}
		pubsub.Emit(ctx, r.events, pubsub.EventMessageExpired, m.EventKey(), ref, now)
	}

	metrics.SweepClaims.WithLabelValues(r.Name()).Add(float64(claimed))
	return claimed
}
