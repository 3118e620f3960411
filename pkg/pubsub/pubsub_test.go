package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	ev, err := NewEvent(EventMessageCreated, "group:devs", map[string]string{"id": "m1"}, at)
	require.NoError(t, err)

	assert.Equal(t, EventMessageCreated, ev.Type)
	assert.Equal(t, "group:devs", ev.Key)
	assert.Equal(t, time.UTC, ev.Timestamp.Location())

	var payload map[string]string
	require.NoError(t, ev.UnmarshalPayload(&payload))
	assert.Equal(t, "m1", payload["id"])
}

func TestNewPublisher_Drivers(t *testing.T) {
	p, err := NewPublisher(Config{Driver: "none"})
	require.NoError(t, err)
	assert.IsType(t, NopPublisher{}, p)
	assert.NoError(t, p.Publish(context.Background(), &Event{}))

	_, err = NewPublisher(Config{Driver: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestRedisPublisher_Channel(t *testing.T) {
	p := NewRedisPublisherWithClient(redis.NewClient(&redis.Options{}), "")
	assert.Equal(t, "chat:events:message.expired", p.Channel(EventMessageExpired))
}

// Requires a reachable Redis; set REDIS_TEST_ADDR to run.
func TestRedisPublisher_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" || testing.Short() {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	pub := NewRedisPublisherWithClient(client, "test:events")
	defer pub.Close()

	sub := redis.NewClient(&redis.Options{Addr: addr}).Subscribe(ctx, pub.Channel(EventMessageDeleted))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	ev, err := NewEvent(EventMessageDeleted, "public", map[string]string{"message_id": "m1"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, pub.Publish(ctx, ev))

	select {
	case msg := <-sub.Channel():
		var got Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, EventMessageDeleted, got.Type)
		assert.Equal(t, "public", got.Key)
	case <-time.After(2 * time.Second):
		t.Fatal("event not received")
	}
}

type recordingPublisher struct {
	events []*Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e *Event) error {
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func TestEmit(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pub := &recordingPublisher{}

	Emit(context.Background(), pub, EventMessageExpired, "group:devs", map[string]string{"message_id": "m1"}, at)

	require.Len(t, pub.events, 1)
	assert.Equal(t, EventMessageExpired, pub.events[0].Type)
	assert.Equal(t, "group:devs", pub.events[0].Key)
	assert.JSONEq(t, `{"message_id":"m1"}`, string(pub.events[0].Payload))
}

func TestEmit_SwallowsFailures(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}

	assert.NotPanics(t, func() {
		Emit(context.Background(), pub, EventMessageCreated, "public:All", struct{}{}, time.Now())
		Emit(context.Background(), pub, EventMessageCreated, "public:All", func() {}, time.Now())
	})
	assert.Len(t, pub.events, 1, "unencodable payload is never published")
}
