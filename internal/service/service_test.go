package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-chat/internal/config"
	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/hub"
	"github.com/weiawesome/wes-chat/internal/presence"
	"github.com/weiawesome/wes-chat/internal/repository"
	"github.com/weiawesome/wes-chat/internal/router"
	"github.com/weiawesome/wes-chat/pkg/database"
)

var start = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

const flushType = "test_flush"

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type testEnv struct {
	hub      *hub.Hub
	registry *presence.Registry
	chat     ChatService
	groups   GroupService
	messages repository.MessageRepository
	groupDB  repository.GroupRepository
	polls    repository.PollRepository
	clock    *clockwork.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.New(&database.Config{
		Driver:       "sqlite",
		FilePath:     fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, domain.Models()...))
	t.Cleanup(func() { _ = database.Close(db) })

	h := hub.NewHub(config.WebSocketConfig{SendBuffer: 512})
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)

	registry := presence.NewRegistry()
	groupRepo := repository.NewGormGroupRepository(db)
	deps := &Dependencies{
		Registry:     registry,
		Router:       router.New(h, registry, groupRepo),
		Messages:     repository.NewGormMessageRepository(db),
		Groups:       groupRepo,
		Polls:        repository.NewGormPollRepository(db),
		Users:        repository.NewGormUserRepository(db),
		Clock:        clockwork.NewFakeClockAt(start),
		HistoryLimit: 20,
	}

	env := &testEnv{
		hub:      h,
		registry: registry,
		chat:     NewChatService(deps),
		groups:   NewGroupService(deps),
		messages: deps.Messages,
		groupDB:  groupRepo,
		polls:    deps.Polls,
		clock:    deps.Clock.(*clockwork.FakeClock),
	}
	return env
}

func (e *testEnv) connect(id string) *hub.Client {
	c := hub.NewClient(id, e.hub, nil, config.WebSocketConfig{SendBuffer: 512})
	e.hub.Register(c)
	return c
}

// joined connects and joins a client, then discards everything queued so
// far for every given client.
func (e *testEnv) joined(t *testing.T, id, name string) *hub.Client {
	t.Helper()
	c := e.connect(id)
	require.NoError(t, e.chat.HandleJoin(context.Background(), c, &domain.JoinMessage{Username: name}))
	e.frames(t, c)
	return c
}

// frames returns every frame queued for c so far. The hub keeps each
// connection FIFO, so a marker sent now arrives after all of them.
func (e *testEnv) frames(t *testing.T, c *hub.Client) []frame {
	t.Helper()
	e.hub.Send([]string{c.ID}, []byte(`{"type":"`+flushType+`"}`))

	var out []frame
	for {
		select {
		case data, ok := <-c.Send:
			require.True(t, ok, "send queue closed")
			var f frame
			require.NoError(t, json.Unmarshal(data, &f))
			if f.Type == flushType {
				return out
			}
			out = append(out, f)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for frames")
			return nil
		}
	}
}

func (e *testEnv) drain(t *testing.T, clients ...*hub.Client) {
	t.Helper()
	for _, c := range clients {
		e.frames(t, c)
	}
}

func (e *testEnv) createGroup(t *testing.T, creator *hub.Client, name string, members ...string) {
	t.Helper()
	req := &domain.CreateGroupMessage{Name: name, Members: members}
	require.NoError(t, e.chat.HandleCreateGroup(context.Background(), creator, req))
}

func types(frames []frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Type
	}
	return out
}

func ofType(frames []frame, typ string) []frame {
	var out []frame
	for _, f := range frames {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

func decode[T any](t *testing.T, f frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(f.Data, &v))
	return v
}
