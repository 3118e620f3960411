package router

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/weiawesome/wes-chat/internal/chat"
	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/metrics"
	"github.com/weiawesome/wes-chat/internal/presence"
)

// Deliverer hands encoded frames to live connections.
type Deliverer interface {
	Send(connIDs []string, data []byte)
	SendAll(data []byte)
}

// GroupLookup resolves a group by name.
type GroupLookup interface {
	GetByName(ctx context.Context, name string) (*domain.Group, error)
}

// Router resolves the audience of an event from the presence registry and
// hands the encoded envelope to the hub. Delivery is fire-and-forget:
// offline users simply receive nothing.
type Router struct {
	out      Deliverer
	registry *presence.Registry
	groups   GroupLookup
}

func New(out Deliverer, registry *presence.Registry, groups GroupLookup) *Router {
	return &Router{
		out:      out,
		registry: registry,
		groups:   groups,
	}
}

func encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(domain.Envelope{Type: event, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", event, err)
	}
	return data, nil
}

// ToAll sends the event to every live connection.
func (r *Router) ToAll(event string, payload any) error {
	data, err := encode(event, payload)
	if err != nil {
		return err
	}
	r.out.SendAll(data)
	metrics.EventsDelivered.WithLabelValues(event).Inc()
	return nil
}

// ToConnections sends the event to the given connections.
func (r *Router) ToConnections(event string, payload any, connIDs ...string) error {
	if len(connIDs) == 0 {
		return nil
	}
	data, err := encode(event, payload)
	if err != nil {
		return err
	}
	r.out.Send(connIDs, data)
	metrics.EventsDelivered.WithLabelValues(event).Inc()
	return nil
}

// ToUsers sends the event to every connection of the named users.
func (r *Router) ToUsers(event string, payload any, names ...string) error {
	return r.ToConnections(event, payload, r.registry.ConnectionsForAll(names...)...)
}

// ToMembers sends the event to every connection of every member of g,
// except the listed connections.
func (r *Router) ToMembers(g *domain.Group, event string, payload any, excludeConnIDs ...string) error {
	conns := r.registry.ConnectionsForAll(g.Members...)
	if len(excludeConnIDs) > 0 {
		kept := conns[:0]
		for _, id := range conns {
			if !contains(excludeConnIDs, id) {
				kept = append(kept, id)
			}
		}
		conns = kept
	}
	return r.ToConnections(event, payload, conns...)
}

// ToGroup looks the group up and sends the event to its members.
func (r *Router) ToGroup(ctx context.Context, name string, event string, payload any) error {
	g, err := r.groups.GetByName(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to resolve group %s: %w", name, err)
	}
	return r.ToMembers(g, event, payload)
}

// ToAudience sends the event to the audience of m: everyone for public
// messages, the current members for group messages, and both parties for
// private messages.
func (r *Router) ToAudience(ctx context.Context, m *domain.Message, event string, payload any) error {
	switch m.Kind {
	case domain.DestinationPublic:
		return r.ToAll(event, payload)
	case domain.DestinationGroup:
		return r.ToGroup(ctx, m.Target, event, payload)
	case domain.DestinationPrivate:
		return r.ToUsers(event, payload, m.Target, m.Sender)
	default:
		return fmt.Errorf("unknown destination kind %q", m.Kind)
	}
}

// DeliverNew delivers a freshly visible message as receive_message and
// notifies each individually mentioned member.
func (r *Router) DeliverNew(ctx context.Context, m *domain.Message) error {
	if err := r.ToAudience(ctx, m, domain.EventReceiveMessage, m); err != nil {
		return err
	}
	if m.Kind != domain.DestinationGroup {
		return nil
	}

	for _, name := range chat.MentionedMembers(m.Mentions) {
		notice := domain.MentionNotice{
			Message:   fmt.Sprintf("%s mentioned you in %s", m.Sender, m.Target),
			Group:     m.Target,
			MessageID: m.ID,
		}
		if err := r.ToUsers(domain.EventMentionNotification, notice, name); err != nil {
			return err
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
