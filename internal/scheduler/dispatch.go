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

// DeferredDispatcher releases scheduled messages once their time has come.
type DeferredDispatcher struct {
	messages repository.MessageRepository
	notify   Notifier
	events   pubsub.Publisher
	clock    clockwork.Clock
	batch    int
}

func NewDeferredDispatcher(messages repository.MessageRepository, notify Notifier, events pubsub.Publisher, clock clockwork.Clock) *DeferredDispatcher {
	return &DeferredDispatcher{
		messages: messages,
		notify:   notify,
		events:   events,
		clock:    clock,
		batch:    defaultBatchSize,
	}
}

func (d *DeferredDispatcher) Name() string { return "dispatch" }

// Sweep claims and delivers every due scheduled message exactly once and
// confirms each delivery to its sender.
func (d *DeferredDispatcher) Sweep(ctx context.Context) int {
	l := log.Ctx(ctx)
	now := d.clock.Now()

	due, err := d.messages.ListDue(ctx, now, d.batch)
	if err != nil {
		l.Error().Err(err).Msg("failed to list due messages")
		return 0
	}

	claimed := 0
	for _, m := range due {
		ok, err := d.messages.ClaimDispatch(ctx, m.ID)
		if err != nil {
			l.Error().Err(err).Str(log.FieldMessageID, m.ID).Msg("failed to claim scheduled message")
			continue
		}
		if !ok {
			continue
		}
		claimed++
		m.Dispatched = true

		if err := d.notify.DeliverNew(ctx, m); err != nil {
			l.Warn().Err(err).Str(log.FieldMessageID, m.ID).Msg("failed to deliver scheduled message")
		}
		sent := domain.ScheduledNotice{MessageID: m.ID, ScheduledAt: m.ScheduledAt}
		if err := d.notify.ToUsers(domain.EventScheduledMessageSent, sent, m.Sender); err != nil {
			l.Warn().Err(err).Str(log.FieldMessageID, m.ID).Msg("failed to confirm scheduled message")
		}
		pubsub.Emit(ctx, d.events, pubsub.EventMessageDispatched, m.EventKey(), m, now)
	}

	metrics.SweepClaims.WithLabelValues(d.Name()).Add(float64(claimed))
	return claimed
}
