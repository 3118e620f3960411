package scheduler

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/metrics"
	"github.com/weiawesome/wes-chat/internal/repository"
	"github.com/weiawesome/wes-chat/pkg/log"
	"github.com/weiawesome/wes-chat/pkg/pubsub"
)

const defaultBatchSize = 500

// Notifier delivers lifecycle events to connected users.
type Notifier interface {
	ToAudience(ctx context.Context, m *domain.Message, event string, payload any) error
	DeliverNew(ctx context.Context, m *domain.Message) error
	ToUsers(event string, payload any, names ...string) error
}

// Sweeper is one periodic lifecycle pass. Sweep returns the number of
// messages it claimed.
type Sweeper interface {
	Name() string
	Sweep(ctx context.Context) int
}

// Config holds the sweep intervals.
type Config struct {
	ExpiryInterval   time.Duration
	DispatchInterval time.Duration
}

// Scheduler runs the expiry reaper and the deferred dispatcher side by
// side until its context is cancelled.
type Scheduler struct {
	Expiry   *ExpiryReaper
	Dispatch *DeferredDispatcher
	clock    clockwork.Clock
	cfg      Config
}

func New(
	messages repository.MessageRepository,
	notify Notifier,
	events pubsub.Publisher,
	clock clockwork.Clock,
	cfg Config,
) *Scheduler {
	return &Scheduler{
		Expiry:   NewExpiryReaper(messages, notify, events, clock),
		Dispatch: NewDeferredDispatcher(messages, notify, events, clock),
		clock:    clock,
		cfg:      cfg,
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		RunEvery(ctx, s.clock, s.cfg.ExpiryInterval, s.Expiry)
		return nil
	})
	g.Go(func() error {
		RunEvery(ctx, s.clock, s.cfg.DispatchInterval, s.Dispatch)
		return nil
	})
	return g.Wait()
}

// RunEvery calls sw.Sweep on every tick of interval until ctx is done.
func RunEvery(ctx context.Context, clock clockwork.Clock, interval time.Duration, sw Sweeper) {
	l := log.Ctx(ctx).With().Str(log.FieldSweep, sw.Name()).Logger()
	ctx = log.WithLogger(ctx, l)

	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	l.Info().Dur("interval", interval).Msg("sweep started")
	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("sweep stopped")
			return
		case <-ticker.Chan():
			start := time.Now()
			if n := sw.Sweep(ctx); n > 0 {
				l.Debug().Int(log.FieldClaimed, n).Msg("sweep claimed messages")
			}
			metrics.SweepDuration.WithLabelValues(sw.Name()).Observe(time.Since(start).Seconds())
		}
	}
}
