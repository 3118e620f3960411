package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-chat/internal/chat"
	"github.com/weiawesome/wes-chat/internal/domain"
	"github.com/weiawesome/wes-chat/internal/hub"
	"github.com/weiawesome/wes-chat/internal/repository"
)

func TestJoin_PushesRosterGroupsAndHistory(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	alice := env.joined(t, "c-alice", "alice")
	env.createGroup(t, alice, "devs", "bob")
	require.NoError(t, env.chat.HandleSendMessage(ctx, alice, &domain.SendMessageRequest{Message: "hello all"}))
	require.NoError(t, env.chat.HandleSendMessage(ctx, alice, &domain.SendMessageRequest{Message: "psst", To: "bob"}))
	require.NoError(t, env.chat.HandleSendMessage(ctx, alice, &domain.SendMessageRequest{Message: "standup", Group: "devs"}))
	env.drain(t, alice)

	bob := env.connect("c-bob")
	require.NoError(t, env.chat.HandleJoin(ctx, bob, &domain.JoinMessage{Username: " bob "}))

	frames := env.frames(t, bob)
	assert.Equal(t, []string{
		domain.EventUsersList,
		domain.EventOnlineUsers,
		domain.EventGroupsList,
		domain.EventMessageHistory,
		domain.EventPrivateMessageHistory,
		domain.EventGroupMessageHistory,
	}, types(frames))

	users := decode[[]domain.User](t, frames[0])
	require.Len(t, users, 2)
	assert.Equal(t, []string{"alice", "bob"}, decode[[]string](t, frames[1]))

	public := decode[[]domain.Message](t, frames[3])
	require.Len(t, public, 1)
	assert.Equal(t, "hello all", public[0].Body)

	private := decode[[]domain.Message](t, frames[4])
	require.Len(t, private, 1)
	assert.Equal(t, "psst", private[0].Body)

	history := decode[domain.GroupHistory](t, frames[5])
	assert.Equal(t, "devs", history.Group)
	require.Len(t, history.Messages, 1)
	assert.Equal(t, "standup", history.Messages[0].Body)

	// Everyone else only sees the roster change.
	assert.Equal(t, []string{domain.EventUsersList, domain.EventOnlineUsers}, types(env.frames(t, alice)))
	assert.True(t, bob.Session.IsJoined())
	assert.Equal(t, "bob", bob.Session.GetDisplayName())
}

func TestJoin_Validation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	c := env.connect("c1")

	assert.ErrorIs(t, env.chat.HandleJoin(ctx, c, &domain.JoinMessage{Username: "  "}), ErrInvalidRequest)
	assert.ErrorIs(t, env.chat.HandleJoin(ctx, c, &domain.JoinMessage{Username: domain.SystemSender}), ErrInvalidRequest)

	c.Session.Authenticate("alice")
	assert.ErrorIs(t, env.chat.HandleJoin(ctx, c, &domain.JoinMessage{Username: "mallory"}), ErrForbidden)
	assert.False(t, c.Session.IsJoined())
	assert.Zero(t, env.registry.Count())

	require.NoError(t, env.chat.HandleJoin(ctx, c, &domain.JoinMessage{Username: "alice"}))
	assert.True(t, env.registry.IsOnline("alice"))
}

func TestActionsRequireJoin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	c := env.connect("c1")

	assert.ErrorIs(t, env.chat.HandleSendMessage(ctx, c, &domain.SendMessageRequest{Message: "hi"}), ErrNotJoined)
	assert.ErrorIs(t, env.chat.HandleCreateGroup(ctx, c, &domain.CreateGroupMessage{Name: "devs"}), ErrNotJoined)
	assert.ErrorIs(t, env.chat.HandleTyping(ctx, c, &domain.TypingRequest{To: "bob"}, true), ErrNotJoined)
}

func TestDisconnect_RebroadcastsRoster(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.joined(t, "c-alice", "alice")
	bob := env.joined(t, "c-bob", "bob")
	env.drain(t, alice)

	require.NoError(t, env.chat.HandleDisconnect(ctx, bob))
	assert.False(t, env.registry.IsOnline("bob"))
	assert.Equal(t, domain.StateDisconnected, bob.Session.GetState())

	frames := env.frames(t, alice)
	assert.Equal(t, []string{domain.EventUsersList, domain.EventOnlineUsers}, types(frames))
	assert.Equal(t, []string{"alice"}, decode[[]string](t, frames[1]))

	// A second disconnect is a no-op.
	require.NoError(t, env.chat.HandleDisconnect(ctx, bob))
	assert.Empty(t, env.frames(t, alice))
}

func TestCreateGroup(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.joined(t, "c-alice", "alice")

	env.createGroup(t, alice, " devs ", "bob", "alice", "", "bob")

	frames := env.frames(t, alice)
	require.Equal(t, []string{domain.EventGroupsList}, types(frames))

	g, err := env.groupDB.GetByName(ctx, "devs")
	require.NoError(t, err)
	assert.Equal(t, "alice", g.Creator)
	assert.Equal(t, []string{"alice", "bob"}, g.Members)
	assert.Equal(t, []string{"alice"}, g.Admins)

	err = env.chat.HandleCreateGroup(ctx, alice, &domain.CreateGroupMessage{Name: "devs"})
	assert.ErrorIs(t, err, repository.ErrGroupExists)
	assert.True(t, IsRejection(err))
}

func TestSendMessage_PrivateReachesBothPartiesOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.joined(t, "c-alice", "alice")
	bob := env.joined(t, "c-bob", "Bob")
	carol := env.joined(t, "c-carol", "carol")
	env.drain(t, alice, bob, carol)

	require.NoError(t, env.chat.HandleSendMessage(ctx, alice, &domain.SendMessageRequest{Message: "hi", To: "Bob"}))

	for _, c := range []*hub.Client{alice, bob} {
		frames := env.frames(t, c)
		require.Equal(t, []string{domain.EventReceiveMessage}, types(frames), c.ID)
		m := decode[domain.Message](t, frames[0])
		assert.Equal(t, "alice", m.Sender)
		assert.Equal(t, "Bob", m.Target)
		assert.Equal(t, domain.DestinationPrivate, m.Kind)
	}
	assert.Empty(t, env.frames(t, carol))
}

func TestSendMessage_PublicAndValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.joined(t, "c-alice", "alice")
	bob := env.joined(t, "c-bob", "bob")
	env.drain(t, alice)

	require.NoError(t, env.chat.HandleSendMessage(ctx, alice, &domain.SendMessageRequest{Message: "everyone", To: domain.PublicTarget}))
	m := decode[domain.Message](t, env.frames(t, bob)[0])
	assert.Equal(t, domain.DestinationPublic, m.Kind)
	assert.Equal(t, domain.PublicTarget, m.Target)

	err := env.chat.HandleSendMessage(ctx, alice, &domain.SendMessageRequest{Message: "   "})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	err = env.chat.HandleSendMessage(ctx, alice, &domain.SendMessageRequest{Message: "x", Group: "nowhere"})
	assert.ErrorIs(t, err, repository.ErrGroupNotFound)
}

func TestSendMessage_GroupMentionsNotifyMembers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.joined(t, "c-alice", "alice")
	bob := env.joined(t, "c-bob", "bob")
	carol := env.joined(t, "c-carol", "Carol")
	dave := env.joined(t, "c-dave", "dave")
	env.createGroup(t, alice, "devs", "bob", "Carol")
	env.drain(t, alice, bob, carol, dave)

	req := &domain.SendMessageRequest{Message: "hey @all and @Carol and @dave", Group: "devs"}
	require.NoError(t, env.chat.HandleSendMessage(ctx, alice, req))

	carolFrames := env.frames(t, carol)
	require.Equal(t, []string{domain.EventReceiveMessage, domain.EventMentionNotification}, types(carolFrames))
	m := decode[domain.Message](t, carolFrames[0])
	assert.Equal(t, []string{"@all", "Carol"}, m.Mentions)
	notice := decode[domain.MentionNotice](t, carolFrames[1])
	assert.Equal(t, "alice mentioned you in devs", notice.Message)
	assert.Equal(t, m.ID, notice.MessageID)

	assert.Equal(t, []string{domain.EventReceiveMessage}, types(env.frames(t, bob)))
	assert.Empty(t, env.frames(t, dave), "non-members see nothing")

	env.drain(t, alice)

	err := env.chat.HandleSendMessage(ctx, dave, &domain.SendMessageRequest{Message: "let me in", Group: "devs"})
	assert.ErrorIs(t, err, chat.ErrNotMember)
	assert.Empty(t, env.frames(t, alice))
}

func TestSendMessage_TemporaryAndViewOnceFlags(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.joined(t, "c-alice", "alice")

	require.NoError(t, env.chat.HandleSendMessage(ctx, alice, &domain.SendMessageRequest{
		Message: "poof", IsTemporary: true, ExpiresIn: 30, IsViewOnce: true,
	}))
	require.NoError(t, env.chat.HandleSendMessage(ctx, alice, &domain.SendMessageRequest{
		MediaURL: "https://cdn/x.png", MediaType: "image/png", IsViewOnce: true, ExpiresIn: 30,
	}))

	frames := env.frames(t, alice)
	require.Len(t, frames, 2)

	text := decode[domain.Message](t, frames[0])
	assert.True(t, text.IsTemporary)
	require.NotNil(t, text.ExpiresAt)
	assert.True(t, start.Add(30*time.Second).Equal(*text.ExpiresAt))
	assert.False(t, text.IsViewOnce, "view-once needs an image")

	image := decode[domain.Message](t, frames[1])
	assert.True(t, image.IsViewOnce)
	assert.False(t, image.IsTemporary, "expires_in alone does not make a message temporary")
	assert.Nil(t, image.ExpiresAt)
}

func TestSendMessage_ScheduledOnlyConfirmsToOrigin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.joined(t, "c-alice", "alice")
	aliceTab := env.joined(t, "c-alice-2", "alice")
	bob := env.joined(t, "c-bob", "bob")
	env.drain(t, alice, aliceTab, bob)

	at := start.Add(time.Minute)
	require.NoError(t, env.chat.HandleSendMessage(ctx, alice, &domain.SendMessageRequest{
		Message: "later", To: "bob", IsScheduled: true, ScheduledAt: &at,
	}))

	frames := env.frames(t, alice)
	require.Equal(t, []string{domain.EventMessageScheduled}, types(frames))
	notice := decode[domain.ScheduledNotice](t, frames[0])
	assert.Equal(t, "Message scheduled successfully!", notice.Message)
	assert.True(t, at.Equal(*notice.ScheduledAt))

	assert.Empty(t, env.frames(t, aliceTab))
	assert.Empty(t, env.frames(t, bob))

	m, err := env.messages.GetByID(ctx, notice.MessageID)
	require.NoError(t, err)
	assert.True(t, m.Pending())

	history, err := env.messages.PrivateHistory(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func sendTo(t *testing.T, env *testEnv, from *hub.Client, req *domain.SendMessageRequest) *domain.Message {
	t.Helper()
	require.NoError(t, env.chat.HandleSendMessage(context.Background(), from, req))
	frames := ofType(env.frames(t, from), domain.EventReceiveMessage)
	require.NotEmpty(t, frames)
	m := decode[domain.Message](t, frames[len(frames)-1])
	return &m
}

func TestEditAndDelete_SenderOnly(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.joined(t, "c-alice", "alice")
	bob := env.joined(t, "c-bob", "bob")
	env.drain(t, alice)

	m := sendTo(t, env, alice, &domain.SendMessageRequest{Message: "tpyo", To: "bob"})
	env.drain(t, bob)

	err := env.chat.HandleEditMessage(ctx, bob, &domain.EditMessageRequest{MessageID: m.ID, NewMessage: "mine now"})
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, env.chat.HandleEditMessage(ctx, alice, &domain.EditMessageRequest{MessageID: m.ID, NewMessage: "typo"}))
	for _, c := range []*hub.Client{alice, bob} {
		frames := env.frames(t, c)
		require.Equal(t, []string{domain.EventMessageEdited}, types(frames))
		edited := decode[domain.Message](t, frames[0])
		assert.Equal(t, "typo", edited.Body)
		assert.True(t, edited.Edited)
	}

	err = env.chat.HandleDeleteMessage(ctx, bob, &domain.MessageRefRequest{MessageID: m.ID})
	assert.ErrorIs(t, err, ErrForbidden)
	err = env.chat.HandleDeleteMessage(ctx, bob, &domain.MessageRefRequest{MessageID: m.ID, Username: "alice"})
	assert.ErrorIs(t, err, ErrForbidden, "claiming another name is refused")

	require.NoError(t, env.chat.HandleDeleteMessage(ctx, alice, &domain.MessageRefRequest{MessageID: m.ID, Username: "alice"}))
	frames := env.frames(t, bob)
	require.Equal(t, []string{domain.EventMessageDeleted}, types(frames))
	assert.Equal(t, m.ID, decode[domain.MessageRef](t, frames[0]).MessageID)

	err = env.chat.HandleEditMessage(ctx, alice, &domain.EditMessageRequest{MessageID: m.ID, NewMessage: "again"})
	assert.ErrorIs(t, err, repository.ErrMessageNotFound)

	stored, err := env.messages.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, stored.Deleted)
	assert.Equal(t, "typo", stored.Body)
}

func TestMessageSeen_ReceiptGoesToSender(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.joined(t, "c-alice", "alice")
	bob := env.joined(t, "c-bob", "bob")
	env.drain(t, alice)

	m := sendTo(t, env, alice, &domain.SendMessageRequest{Message: "read me", To: "bob"})
	env.drain(t, bob)

	require.NoError(t, env.chat.HandleMessageSeen(ctx, bob, &domain.MessageRefRequest{MessageID: m.ID, Username: "bob"}))
	frames := env.frames(t, alice)
	require.Equal(t, []string{domain.EventMessageReceiptUpdate}, types(frames))
	assert.Equal(t, []string{"bob"}, decode[domain.ReceiptUpdate](t, frames[0]).SeenBy)

	// Seen twice, or by the sender, changes nothing visible.
	require.NoError(t, env.chat.HandleMessageSeen(ctx, bob, &domain.MessageRefRequest{MessageID: m.ID}))
	require.NoError(t, env.chat.HandleMessageSeen(ctx, alice, &domain.MessageRefRequest{MessageID: m.ID}))
	assert.Empty(t, env.frames(t, alice))
	assert.Empty(t, env.frames(t, bob))

	stored, err := env.messages.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "alice"}, stored.SeenBy)
}

func TestReactMessage_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.joined(t, "c-alice", "alice")
	bob := env.joined(t, "c-bob", "bob")
	env.drain(t, alice)

	m := sendTo(t, env, alice, &domain.SendMessageRequest{Message: "lunch?"})
	env.drain(t, bob)

	react := func(c *hub.Client, emoji string) {
		require.NoError(t, env.chat.HandleReactMessage(ctx, c, &domain.ReactMessageRequest{MessageID: m.ID, Emoji: emoji}))
	}
	react(bob, "👍")
	react(alice, "🎉")
	react(bob, "❤️")

	frames := env.frames(t, alice)
	require.Len(t, frames, 3)
	last := decode[domain.ReactionUpdate](t, frames[2])
	assert.Equal(t, []domain.Reaction{{Username: "alice", Emoji: "🎉"}, {Username: "bob", Emoji: "❤️"}}, last.Reactions)

	err := env.chat.HandleReactMessage(ctx, bob, &domain.ReactMessageRequest{MessageID: m.ID})
	assert.ErrorIs(t, err, chat.ErrEmptyReaction)
}

func TestReactMessage_ConcurrentUsersAllKept(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.joined(t, "c-alice", "alice")
	m := sendTo(t, env, alice, &domain.SendMessageRequest{Message: "vote with emoji"})

	const n = 8
	clients := make([]*hub.Client, n)
	for i := range clients {
		clients[i] = env.joined(t, fmt.Sprintf("c-%d", i), fmt.Sprintf("user%d", i))
	}

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *hub.Client) {
			defer wg.Done()
			assert.NoError(t, env.chat.HandleReactMessage(ctx, c, &domain.ReactMessageRequest{MessageID: m.ID, Emoji: "🔥"}))
		}(c)
	}
	wg.Wait()

	stored, err := env.messages.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Reactions, n)
}

func pinGroupMessages(t *testing.T, env *testEnv, alice *hub.Client, n int) []*domain.Message {
	t.Helper()
	var msgs []*domain.Message
	for i := 0; i < n; i++ {
		msgs = append(msgs, sendTo(t, env, alice, &domain.SendMessageRequest{Message: fmt.Sprintf("m%d", i+1), Group: "devs"}))
	}
	return msgs
}

func TestPinUnpin_KeepsOrderDense(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.joined(t, "c-alice", "alice")
	bob := env.joined(t, "c-bob", "bob")
	env.createGroup(t, alice, "devs", "bob")
	env.drain(t, alice)

	msgs := pinGroupMessages(t, env, alice, 3)
	env.drain(t, bob)

	for _, m := range msgs {
		env.clock.Advance(time.Second)
		require.NoError(t, env.chat.HandlePinMessage(ctx, bob, &domain.MessageRefRequest{MessageID: m.ID, Username: "bob"}))
	}
	frames := env.frames(t, alice)
	require.Len(t, frames, 3)
	third := decode[domain.PinUpdate](t, frames[2])
	assert.Equal(t, 3, third.PinOrder)
	assert.Equal(t, "bob", third.PinnedBy)
	assert.Equal(t, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID}, third.PinnedOrder)

	err := env.chat.HandlePinMessage(ctx, bob, &domain.MessageRefRequest{MessageID: msgs[0].ID})
	assert.ErrorIs(t, err, chat.ErrAlreadyPinned)
	env.drain(t, bob)

	require.NoError(t, env.chat.HandleUnpinMessage(ctx, alice, &domain.MessageRefRequest{MessageID: msgs[1].ID}))
	frames = env.frames(t, bob)
	require.Len(t, frames, 1)
	update := decode[domain.PinUpdate](t, frames[0])
	assert.False(t, update.Pinned)
	assert.Equal(t, []string{msgs[0].ID, msgs[2].ID}, update.PinnedOrder)

	pinned, err := env.messages.PinnedInGroup(ctx, "devs")
	require.NoError(t, err)
	orders := map[string]int{}
	for _, p := range pinned {
		orders[p.ID] = p.PinOrder
	}
	assert.Equal(t, map[string]int{msgs[0].ID: 1, msgs[2].ID: 2}, orders)

	g, err := env.groupDB.GetByName(ctx, "devs")
	require.NoError(t, err)
	assert.Equal(t, []string{msgs[0].ID, msgs[2].ID}, g.PinnedMessages)
}

func TestPin_ConcurrentPinsStayDense(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.joined(t, "c-alice", "alice")
	env.createGroup(t, alice, "devs")
	msgs := pinGroupMessages(t, env, alice, 8)

	var wg sync.WaitGroup
	for _, m := range msgs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, env.chat.HandlePinMessage(ctx, alice, &domain.MessageRefRequest{MessageID: id}))
		}(m.ID)
	}
	wg.Wait()

	pinned, err := env.messages.PinnedInGroup(ctx, "devs")
	require.NoError(t, err)
	require.Len(t, pinned, len(msgs))
	seen := map[int]bool{}
	for _, p := range pinned {
		seen[p.PinOrder] = true
	}
	for i := 1; i <= len(msgs); i++ {
		assert.True(t, seen[i], "missing pin order %d", i)
	}
}

func TestPin_Rules(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.joined(t, "c-alice", "alice")
	mallory := env.joined(t, "c-mallory", "mallory")
	env.createGroup(t, alice, "devs")

	groupMsg := sendTo(t, env, alice, &domain.SendMessageRequest{Message: "g", Group: "devs"})
	publicMsg := sendTo(t, env, alice, &domain.SendMessageRequest{Message: "p"})

	err := env.chat.HandlePinMessage(ctx, mallory, &domain.MessageRefRequest{MessageID: groupMsg.ID})
	assert.ErrorIs(t, err, chat.ErrNotMember)
	err = env.chat.HandlePinMessage(ctx, alice, &domain.MessageRefRequest{MessageID: publicMsg.ID})
	assert.ErrorIs(t, err, chat.ErrNotGroupMessage)
	err = env.chat.HandleUnpinMessage(ctx, alice, &domain.MessageRefRequest{MessageID: groupMsg.ID})
	assert.ErrorIs(t, err, chat.ErrNotPinned)
	err = env.chat.HandlePinMessage(ctx, alice, &domain.MessageRefRequest{MessageID: "missing"})
	assert.ErrorIs(t, err, repository.ErrMessageNotFound)
}

func TestPolls_SingleVoteMovesVote(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.joined(t, "c-alice", "alice")
	bob := env.joined(t, "c-bob", "bob")
	env.createGroup(t, alice, "devs", "bob")
	env.drain(t, alice, bob)

	require.NoError(t, env.chat.HandleCreatePoll(ctx, alice, &domain.CreatePollRequest{
		Question: "Lunch?", Options: []string{"pizza", "sushi"}, Group: "devs",
	}))
	frames := env.frames(t, bob)
	require.Equal(t, []string{domain.EventReceiveMessage, domain.EventPollCreated}, types(frames))
	companion := decode[domain.Message](t, frames[0])
	assert.Equal(t, "📊 Poll: Lunch?", companion.Body)
	created := decode[domain.PollCreated](t, frames[1])
	assert.Equal(t, companion.ID, created.MessageID)
	assert.Equal(t, created.Poll.ID, companion.PollID)
	pollID := created.Poll.ID

	vote := func(c *hub.Client, option int) error {
		return env.chat.HandleVotePoll(ctx, c, &domain.VotePollRequest{PollID: pollID, OptionIndex: option})
	}
	require.NoError(t, vote(bob, 0))
	require.NoError(t, vote(bob, 1))

	frames = env.frames(t, alice)
	require.Equal(t, []string{domain.EventReceiveMessage, domain.EventPollCreated, domain.EventPollUpdated, domain.EventPollUpdated}, types(frames))
	update := decode[domain.PollUpdate](t, frames[3])
	assert.Empty(t, update.Poll.Options[0].Votes)
	assert.Equal(t, []string{"bob"}, update.Poll.Options[1].Votes)
	assert.Equal(t, 1, update.Poll.TotalVotes)

	assert.ErrorIs(t, vote(bob, 7), chat.ErrInvalidOption)

	err := env.chat.HandleClosePoll(ctx, bob, &domain.PollRefRequest{PollID: pollID})
	assert.ErrorIs(t, err, chat.ErrNotPollCreator)

	require.NoError(t, env.chat.HandleClosePoll(ctx, alice, &domain.PollRefRequest{PollID: pollID, Username: "alice"}))
	frames = env.frames(t, bob)
	assert.Contains(t, types(frames), domain.EventPollClosed)
	assert.ErrorIs(t, vote(bob, 0), chat.ErrPollInactive)
}

func TestPolls_CreateValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.joined(t, "c-alice", "alice")
	mallory := env.joined(t, "c-mallory", "mallory")
	env.createGroup(t, alice, "devs")

	err := env.chat.HandleCreatePoll(ctx, alice, &domain.CreatePollRequest{Question: "?", Options: []string{"only"}, Group: "devs"})
	assert.ErrorIs(t, err, chat.ErrInvalidPoll)
	err = env.chat.HandleCreatePoll(ctx, mallory, &domain.CreatePollRequest{Question: "?", Options: []string{"a", "b"}, Group: "devs"})
	assert.ErrorIs(t, err, chat.ErrNotMember)

	polls, err := env.polls.ListByGroup(ctx, "devs")
	require.NoError(t, err)
	assert.Empty(t, polls)
}

func TestPolls_ExpiredVoteClosesPoll(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.joined(t, "c-alice", "alice")
	env.createGroup(t, alice, "devs")

	expires := start.Add(time.Minute)
	require.NoError(t, env.chat.HandleCreatePoll(ctx, alice, &domain.CreatePollRequest{
		Question: "Soon?", Options: []string{"yes", "no"}, Group: "devs", ExpiresAt: &expires,
	}))
	created := decode[domain.PollCreated](t, ofType(env.frames(t, alice), domain.EventPollCreated)[0])

	env.clock.Advance(2 * time.Minute)
	err := env.chat.HandleVotePoll(ctx, alice, &domain.VotePollRequest{PollID: created.Poll.ID})
	assert.ErrorIs(t, err, chat.ErrPollExpired)

	p, err := env.polls.GetByID(ctx, created.Poll.ID)
	require.NoError(t, err)
	assert.False(t, p.IsActive)
	assert.Zero(t, p.TotalVotes)
}

func TestPolls_ConcurrentVotesKeepTotals(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.joined(t, "c-alice", "alice")

	const n = 8
	names := make([]string, n)
	clients := make([]*hub.Client, n)
	for i := range clients {
		names[i] = fmt.Sprintf("user%d", i)
		clients[i] = env.joined(t, fmt.Sprintf("c-%d", i), names[i])
	}
	env.createGroup(t, alice, "devs", names...)
	require.NoError(t, env.chat.HandleCreatePoll(ctx, alice, &domain.CreatePollRequest{
		Question: "Best?", Options: []string{"a", "b", "c"}, Group: "devs",
	}))
	created := decode[domain.PollCreated](t, ofType(env.frames(t, alice), domain.EventPollCreated)[0])

	var wg sync.WaitGroup
	for i, c := range clients {
		wg.Add(1)
		go func(c *hub.Client, option int) {
			defer wg.Done()
			for j := 0; j < 3; j++ {
				assert.NoError(t, env.chat.HandleVotePoll(ctx, c, &domain.VotePollRequest{PollID: created.Poll.ID, OptionIndex: (option + j) % 3}))
			}
		}(c, i)
	}
	wg.Wait()

	p, err := env.polls.GetByID(ctx, created.Poll.ID)
	require.NoError(t, err)
	assert.Equal(t, n, p.TotalVotes)
	assert.Equal(t, n, chat.CountVotes(p))
}

func TestViewOnce_FirstViewOnly(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.joined(t, "c-alice", "alice")
	bob := env.joined(t, "c-bob", "bob")
	env.drain(t, alice)

	m := sendTo(t, env, alice, &domain.SendMessageRequest{
		To: "bob", MediaURL: "https://cdn/p.jpg", MediaType: "image/jpeg", IsViewOnce: true,
	})
	env.drain(t, bob)

	require.NoError(t, env.chat.HandleViewOnce(ctx, bob, &domain.MessageRefRequest{MessageID: m.ID, Username: "bob"}))
	frames := env.frames(t, alice)
	require.Equal(t, []string{domain.EventViewOnceUpdated}, types(frames))
	assert.Equal(t, []string{"bob"}, decode[domain.ViewOnceUpdate](t, frames[0]).ViewedBy)

	err := env.chat.HandleViewOnce(ctx, bob, &domain.MessageRefRequest{MessageID: m.ID})
	assert.ErrorIs(t, err, chat.ErrAlreadyViewed)

	stored, err := env.messages.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/p.jpg", stored.MediaURL, "media is kept")

	text := sendTo(t, env, alice, &domain.SendMessageRequest{To: "bob", Message: "plain"})
	err = env.chat.HandleViewOnce(ctx, bob, &domain.MessageRefRequest{MessageID: text.ID})
	assert.ErrorIs(t, err, chat.ErrNotViewOnce)
}

func TestCancelScheduled(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.joined(t, "c-alice", "alice")
	bob := env.joined(t, "c-bob", "bob")
	env.drain(t, alice)

	at := start.Add(time.Hour)
	require.NoError(t, env.chat.HandleSendMessage(ctx, alice, &domain.SendMessageRequest{
		Message: "later", To: "bob", IsScheduled: true, ScheduledAt: &at,
	}))
	notice := decode[domain.ScheduledNotice](t, env.frames(t, alice)[0])

	err := env.chat.HandleCancelScheduled(ctx, bob, &domain.MessageRefRequest{MessageID: notice.MessageID})
	assert.ErrorIs(t, err, repository.ErrMessageNotFound, "bob cannot see it yet")

	require.NoError(t, env.chat.HandleCancelScheduled(ctx, alice, &domain.MessageRefRequest{MessageID: notice.MessageID}))
	frames := env.frames(t, alice)
	require.Equal(t, []string{domain.EventMessageDeleted}, types(frames))
	assert.Empty(t, env.frames(t, bob))

	err = env.chat.HandleCancelScheduled(ctx, alice, &domain.MessageRefRequest{MessageID: notice.MessageID})
	assert.ErrorIs(t, err, ErrNotScheduled)

	due, err := env.messages.ListDue(ctx, at.Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestTyping(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.joined(t, "c-alice", "alice")
	aliceTab := env.joined(t, "c-alice-2", "alice")
	bob := env.joined(t, "c-bob", "bob")
	carol := env.joined(t, "c-carol", "carol")
	env.createGroup(t, alice, "devs", "bob")
	env.drain(t, alice, aliceTab, bob, carol)

	require.NoError(t, env.chat.HandleTyping(ctx, alice, &domain.TypingRequest{Group: "devs"}, true))
	frames := env.frames(t, bob)
	require.Equal(t, []string{domain.EventTyping}, types(frames))
	assert.Equal(t, domain.TypingNotice{Group: "devs", Username: "alice"}, decode[domain.TypingNotice](t, frames[0]))
	assert.Empty(t, env.frames(t, aliceTab), "the typer's own connections are skipped")
	assert.Empty(t, env.frames(t, carol))

	require.NoError(t, env.chat.HandleTyping(ctx, bob, &domain.TypingRequest{To: "alice", Username: "bob"}, false))
	for _, c := range []*hub.Client{alice, aliceTab} {
		frames := env.frames(t, c)
		require.Equal(t, []string{domain.EventStopTyping}, types(frames))
		assert.Equal(t, domain.TypingNotice{From: "bob"}, decode[domain.TypingNotice](t, frames[0]))
	}

	// Typing at someone with no live connection is dropped.
	require.NoError(t, env.chat.HandleTyping(ctx, bob, &domain.TypingRequest{To: "dave"}, true))
	assert.Empty(t, env.frames(t, alice))

	err := env.chat.HandleTyping(ctx, carol, &domain.TypingRequest{Group: "devs"}, true)
	assert.ErrorIs(t, err, chat.ErrNotMember)
	assert.ErrorIs(t, env.chat.HandleTyping(ctx, carol, &domain.TypingRequest{}, true), ErrInvalidRequest)
}

func TestAdminActions_ReportToOriginOnly(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.joined(t, "c-alice", "alice")
	bob := env.joined(t, "c-bob", "bob")
	carol := env.joined(t, "c-carol", "carol")
	env.createGroup(t, alice, "devs", "bob")
	env.drain(t, alice, bob, carol)

	err := env.chat.HandleAddAdmin(ctx, alice, &domain.AdminRequest{GroupName: "devs", Username: "alice", TargetUser: "carol"})
	assert.ErrorIs(t, err, chat.ErrNotMember)
	frames := env.frames(t, alice)
	require.Equal(t, []string{domain.EventAdminError}, types(frames))
	assert.Equal(t, "User must be a member of the group", decode[domain.AdminResult](t, frames[0]).Message)
	assert.Empty(t, env.frames(t, bob))

	require.NoError(t, env.chat.HandleAddAdmin(ctx, alice, &domain.AdminRequest{GroupName: "devs", TargetUser: "bob"}))
	frames = env.frames(t, alice)
	require.Equal(t, []string{domain.EventReceiveMessage, domain.EventGroupsList, domain.EventAdminSuccess}, types(frames))
	system := decode[domain.Message](t, frames[0])
	assert.Equal(t, "bob was promoted to admin by alice", system.Body)
	assert.True(t, system.IsSystemMessage)
	assert.Equal(t, domain.SystemSender, system.Sender)
	assert.Equal(t, "bob is now an admin", decode[domain.AdminResult](t, frames[2]).Message)

	assert.Equal(t, []string{domain.EventReceiveMessage, domain.EventGroupsList}, types(env.frames(t, bob)))
	assert.Equal(t, []string{domain.EventGroupsList}, types(env.frames(t, carol)))

	err = env.chat.HandleRemoveAdmin(ctx, bob, &domain.AdminRequest{GroupName: "devs", TargetUser: "alice"})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, "Only the group creator can remove admins",
		decode[domain.AdminResult](t, env.frames(t, bob)[0]).Message)
}
