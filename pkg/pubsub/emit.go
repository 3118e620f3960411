package pubsub

import (
	"context"
	"time"

	"github.com/weiawesome/wes-chat/pkg/log"
)

// Emit builds and publishes an event. Failures are logged and swallowed:
// the event stream is best-effort and never blocks the caller's operation.
func Emit(ctx context.Context, p Publisher, eventType, key string, payload any, at time.Time) {
	l := log.Ctx(ctx)

	event, err := NewEvent(eventType, key, payload, at)
	if err != nil {
		l.Error().Err(err).Str(log.FieldEventType, eventType).Msg("failed to build event")
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		l.Warn().Err(err).Str(log.FieldEventType, eventType).Str("key", key).Msg("failed to publish event")
	}
}
