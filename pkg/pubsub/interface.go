package pubsub

import (
	"context"
	"encoding/json"
	"time"
)

// Lifecycle event types published for downstream consumers.
const (
	EventMessageCreated    = "message.created"
	EventMessageEdited     = "message.edited"
	EventMessageDeleted    = "message.deleted"
	EventMessageExpired    = "message.expired"
	EventMessageDispatched = "message.dispatched"
	EventMessageScheduled  = "message.scheduled"
	EventPollUpdated       = "poll.updated"
	EventGroupChanged      = "group.changed"
)

// Event represents a message published to the event bus.
type Event struct {
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent creates a new event stamped with at.
// key is the partitioning key, usually the destination of the message.
func NewEvent(eventType, key string, payload any, at time.Time) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Key:       key,
		Payload:   data,
		Timestamp: at.UTC(),
	}, nil
}

// UnmarshalPayload unmarshals the event payload into the given struct.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Publisher publishes events to the event bus.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *Event) error { return nil }
func (NopPublisher) Close() error                          { return nil }
