package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/idgen"
	"github.com/weiawesome/wes-chat/internal/presence"
	"github.com/weiawesome/wes-chat/internal/repository"
	"github.com/weiawesome/wes-chat/internal/router"
	"github.com/weiawesome/wes-chat/pkg/log"
	"github.com/weiawesome/wes-chat/pkg/pubsub"
)

const defaultHistoryLimit = 50

// Dependencies are shared by the chat and group services. Pass the same
// value to both constructors so they share one lock table.
type Dependencies struct {
	Registry     *presence.Registry
	Router       *router.Router
	Messages     repository.MessageRepository
	Groups       repository.GroupRepository
	Polls        repository.PollRepository
	Users        repository.UserRepository
	Publisher    pubsub.Publisher
	Clock        clockwork.Clock
	IDs          *idgen.Generator
	Locks        *KeyedMutex
	HistoryLimit int
}

func (d *Dependencies) setDefaults() {
	if d.Publisher == nil {
		d.Publisher = pubsub.NopPublisher{}
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.IDs == nil {
		d.IDs = idgen.New()
	}
	if d.Locks == nil {
		d.Locks = NewKeyedMutex()
	}
	if d.HistoryLimit <= 0 {
		d.HistoryLimit = defaultHistoryLimit
	}
}

// core carries the collaborators and the fan-out helpers both services use.
type core struct {
	registry     *presence.Registry
	router       *router.Router
	messages     repository.MessageRepository
	groups       repository.GroupRepository
	polls        repository.PollRepository
	users        repository.UserRepository
	events       pubsub.Publisher
	clock        clockwork.Clock
	ids          *idgen.Generator
	locks        *KeyedMutex
	historyLimit int
	flight       singleflight.Group
}

func newCore(deps *Dependencies) *core {
	deps.setDefaults()
	return &core{
		registry:     deps.Registry,
		router:       deps.Router,
		messages:     deps.Messages,
		groups:       deps.Groups,
		polls:        deps.Polls,
		users:        deps.Users,
		events:       deps.Publisher,
		clock:        deps.Clock,
		ids:          deps.IDs,
		locks:        deps.Locks,
		historyLimit: deps.HistoryLimit,
	}
}

func (s *core) now() time.Time {
	return s.clock.Now().UTC()
}

func (s *core) newID(at time.Time) (string, error) {
	return s.ids.NewID(at)
}

func (s *core) emit(ctx context.Context, eventType string, m *domain.Message) {
	pubsub.Emit(ctx, s.events, eventType, m.EventKey(), m, s.now())
}

// delivered logs a fan-out failure. The action it belongs to has already
// been persisted, so the failure is not returned.
func delivered(ctx context.Context, event string, err error) {
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldEventType, event).Msg("failed to deliver event")
	}
}

// toVisible sends an event about m to whoever can currently see it. A
// scheduled message that has not gone out yet is only known to its sender.
func (s *core) toVisible(ctx context.Context, m *domain.Message, event string, payload any) {
	if m.Pending() {
		delivered(ctx, event, s.router.ToUsers(event, payload, m.Sender))
		return
	}
	delivered(ctx, event, s.router.ToAudience(ctx, m, event, payload))
}

// loadGroups and loadUsers share concurrent loads. fresh skips a load
// already in flight, which may predate the caller's own write.
func (s *core) loadGroups(ctx context.Context, fresh bool) ([]*domain.Group, error) {
	if fresh {
		s.flight.Forget("groups")
	}
	v, err, _ := s.flight.Do("groups", func() (interface{}, error) {
		return s.groups.List(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return v.([]*domain.Group), nil
}

func (s *core) loadUsers(ctx context.Context, fresh bool) ([]*domain.User, error) {
	if fresh {
		s.flight.Forget("users")
	}
	v, err, _ := s.flight.Do("users", func() (interface{}, error) {
		return s.users.List(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return v.([]*domain.User), nil
}

// broadcastGroups sends the full group list to every connection after a
// group change.
func (s *core) broadcastGroups(ctx context.Context) {
	groups, err := s.loadGroups(ctx, true)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to refresh groups list")
		return
	}
	delivered(ctx, domain.EventGroupsList, s.router.ToAll(domain.EventGroupsList, groups))
}

// broadcastRoster sends the user profiles and the online names to every
// connection.
func (s *core) broadcastRoster(ctx context.Context, fresh bool) {
	users, err := s.loadUsers(ctx, fresh)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to refresh users list")
	} else {
		delivered(ctx, domain.EventUsersList, s.router.ToAll(domain.EventUsersList, users))
	}
	delivered(ctx, domain.EventOnlineUsers, s.router.ToAll(domain.EventOnlineUsers, s.registry.OnlineNames()))
}

// postSystemMessage stores a system announcement in g and delivers it to
// the members of audience.
func (s *core) postSystemMessage(ctx context.Context, g *domain.Group, audience []string, body string) error {
	now := s.now()
	id, err := s.newID(now)
	if err != nil {
		return err
	}

	m := domain.NewSystemMessage(id, g.Name, body, now)
	if err := s.messages.Create(ctx, m); err != nil {
		return fmt.Errorf("failed to save system message: %w", err)
	}

	delivered(ctx, domain.EventReceiveMessage,
		s.router.ToUsers(domain.EventReceiveMessage, m, audience...))
	s.emit(ctx, pubsub.EventMessageCreated, m)
	return nil
}
