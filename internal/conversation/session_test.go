package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anshu-sharma0/chatmessage/internal/domain"
	"github.com/anshu-sharma0/chatmessage/internal/identity"
	"github.com/anshu-sharma0/chatmessage/internal/protocol"
)

type bridgeCall struct {
	kind           string
	conversationID string
	userID         string
	msg            domain.Message
}

type recordingBridge struct {
	mu    sync.Mutex
	calls []bridgeCall
}

func (b *recordingBridge) record(c bridgeCall) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, c)
	return nil
}

func (b *recordingBridge) Join(conversationID, userID string) error {
	return b.record(bridgeCall{kind: protocol.TypeJoinConversation, conversationID: conversationID, userID: userID})
}

func (b *recordingBridge) Typing(conversationID, userID string) error {
	return b.record(bridgeCall{kind: protocol.TypeTyping, conversationID: conversationID, userID: userID})
}

func (b *recordingBridge) StopTyping(conversationID, userID string) error {
	return b.record(bridgeCall{kind: protocol.TypeStopTyping, conversationID: conversationID, userID: userID})
}

func (b *recordingBridge) Publish(conversationID string, msg domain.Message) error {
	return b.record(bridgeCall{kind: protocol.TypeSendMessage, conversationID: conversationID, msg: msg})
}

func (b *recordingBridge) kinds() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.calls))
	for _, c := range b.calls {
		out = append(out, c.kind)
	}
	return out
}

var (
	me   = identity.Identity{Token: "tok", Profile: domain.Profile{ID: "1", Name: "Sarah Wilson"}}
	john = domain.User{ID: "2", Name: "John Doe", Email: "john@example.com"}
	alex = domain.User{ID: "3", Name: "Alex Chen", Email: "alex@example.com"}
)

func testOptions() Options {
	return Options{
		TypingDebounce:  30 * time.Millisecond,
		StopTypingDelay: 30 * time.Millisecond,
		PeerTypingTTL:   time.Second,
	}
}

func newTestSession(t *testing.T, api *fakeAPI) (*Session, *recordingBridge) {
	t.Helper()
	b := &recordingBridge{}
	s := New(me, api, b, testOptions())
	t.Cleanup(s.Close)
	return s, b
}

func TestSessionEndToEnd(t *testing.T) {
	api := newFakeAPI()
	api.users = []domain.User{john}
	s, b := newTestSession(t, api)
	ctx := context.Background()

	users := s.Users(ctx)
	require.Len(t, users, 1)
	require.NoError(t, s.Switch(ctx, users[0]))

	snap := s.Snapshot()
	assert.Equal(t, "srv_1_2", snap.ConversationID)
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Entries)

	msg, err := s.Send(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Body)

	snap = s.Snapshot()
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "hello", snap.Entries[0].Body)
	assert.Equal(t, "1", snap.Entries[0].SenderID)
	assert.Equal(t, domain.SenderLocal, snap.Entries[0].Kind)

	assert.Equal(t, []string{protocol.TypeJoinConversation, protocol.TypeSendMessage}, b.kinds())
	require.Len(t, api.sent, 1)
	assert.NotEmpty(t, api.sent[0].ClientID)
}

func TestSendTrimsBody(t *testing.T) {
	s, _ := newTestSession(t, newFakeAPI())
	ctx := context.Background()
	require.NoError(t, s.Switch(ctx, john))

	_, err := s.Send(ctx, "  hi there \n")
	require.NoError(t, err)

	snap := s.Snapshot()
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "hi there", snap.Entries[0].Body)
}

func TestSendEmptyBodyIsNoop(t *testing.T) {
	api := newFakeAPI()
	s, b := newTestSession(t, api)
	ctx := context.Background()
	require.NoError(t, s.Switch(ctx, john))

	for _, body := range []string{"", "   ", "\t\n"} {
		_, err := s.Send(ctx, body)
		assert.ErrorIs(t, err, ErrEmptyBody)
	}
	assert.Empty(t, s.Snapshot().Entries)
	assert.Empty(t, api.sent)
	assert.Equal(t, []string{protocol.TypeJoinConversation}, b.kinds())
}

func TestSendWithoutConversation(t *testing.T) {
	s, _ := newTestSession(t, newFakeAPI())

	_, err := s.Send(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNoConversation)
	assert.Empty(t, s.Snapshot().Entries)
}

func TestSendFallsBackToLocalMessage(t *testing.T) {
	api := newFakeAPI()
	s, b := newTestSession(t, api)
	ctx := context.Background()
	require.NoError(t, s.Switch(ctx, john))

	api.mu.Lock()
	api.down = true
	api.mu.Unlock()
	s.now = func() time.Time { return time.UnixMilli(1714557600123) }

	msg, err := s.Send(ctx, "offline")
	require.NoError(t, err)
	assert.Equal(t, "msg_1714557600123", msg.ID)
	assert.Equal(t, "2024-05-01T10:00:00.123Z", msg.Timestamp)
	assert.Equal(t, "1", msg.SenderID)
	assert.NotEmpty(t, msg.ClientID)

	assert.Len(t, s.Snapshot().Entries, 1)
	assert.Contains(t, b.kinds(), protocol.TypeSendMessage)
}

func TestSwitchClearsTimeline(t *testing.T) {
	api := newFakeAPI()
	api.history["srv_1_2"] = []domain.Message{{ID: "a", SenderID: "2", Body: "from john"}}
	s, _ := newTestSession(t, api)
	ctx := context.Background()

	require.NoError(t, s.Switch(ctx, john))
	require.Len(t, s.Snapshot().Entries, 1)

	_, err := s.Select(alex)
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Empty(t, snap.Entries)
	assert.Empty(t, snap.ConversationID)
	assert.True(t, snap.Loading)
	assert.Equal(t, "Alex Chen", snap.Peer.Name)
}

func TestSelectRejectsSelf(t *testing.T) {
	s, _ := newTestSession(t, newFakeAPI())

	_, err := s.Select(domain.User{ID: "1"})
	assert.ErrorIs(t, err, ErrSelfConversation)
	_, err = s.Select(domain.User{})
	assert.ErrorIs(t, err, ErrMissingParticipant)
}

func TestStaleHistoryIsDiscarded(t *testing.T) {
	api := newFakeAPI()
	api.history["srv_1_2"] = []domain.Message{{ID: "a", SenderID: "2", Body: "from john"}}
	api.gate = make(chan struct{})
	s, _ := newTestSession(t, api)
	ctx := context.Background()

	first, err := s.Select(john)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- s.Open(ctx, first) }()

	second, err := s.Select(alex)
	require.NoError(t, err)
	close(api.gate)

	require.ErrorIs(t, <-done, ErrStaleSelection)
	require.NoError(t, s.Open(ctx, second))

	snap := s.Snapshot()
	assert.Equal(t, "srv_1_3", snap.ConversationID)
	assert.Empty(t, snap.Entries)
}

func TestHistoryFailureYieldsEmptyTimeline(t *testing.T) {
	api := newFakeAPI()
	api.down = true
	s, _ := newTestSession(t, api)

	require.NoError(t, s.Switch(context.Background(), john))

	snap := s.Snapshot()
	assert.Equal(t, "conv_1_2", snap.ConversationID)
	assert.Empty(t, snap.Entries)
	assert.False(t, snap.Loading)
}

func TestEchoDoesNotDuplicate(t *testing.T) {
	s, _ := newTestSession(t, newFakeAPI())
	ctx := context.Background()
	require.NoError(t, s.Switch(ctx, john))

	msg, err := s.Send(ctx, "hello")
	require.NoError(t, err)

	s.HandleEvent(protocol.NewReceiveMessage(msg.ConversationID, msg))
	assert.Len(t, s.Snapshot().Entries, 1)
}

func TestReceiveMessage(t *testing.T) {
	s, _ := newTestSession(t, newFakeAPI())
	require.NoError(t, s.Switch(context.Background(), john))

	s.HandleEvent(protocol.NewReceiveMessage("srv_1_2", domain.Message{ID: "r1", SenderID: "2", Body: "hey"}))
	s.HandleEvent(protocol.NewReceiveMessage("srv_1_3", domain.Message{ID: "r2", SenderID: "3", Body: "wrong room"}))
	s.HandleEvent(protocol.NewReceiveMessage("srv_1_2", domain.Message{ID: "r3", SenderID: "2", Body: "  "}))

	snap := s.Snapshot()
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "hey", snap.Entries[0].Body)
	assert.Equal(t, domain.SenderRemote, snap.Entries[0].Kind)
}

func TestPeerTyping(t *testing.T) {
	s, _ := newTestSession(t, newFakeAPI())
	require.NoError(t, s.Switch(context.Background(), john))

	s.HandleEvent(protocol.NewTypingNotice(protocol.TypeTyping, "srv_1_2", "1"))
	assert.False(t, s.Snapshot().PeerTyping, "own typing is ignored")

	s.HandleEvent(protocol.NewTypingNotice(protocol.TypeTyping, "srv_1_3", "3"))
	assert.False(t, s.Snapshot().PeerTyping, "other conversations are ignored")

	s.HandleEvent(protocol.NewTypingNotice(protocol.TypeTyping, "srv_1_2", "2"))
	assert.True(t, s.Snapshot().PeerTyping)

	s.HandleEvent(protocol.NewTypingNotice(protocol.TypeStopTyping, "srv_1_2", "2"))
	assert.True(t, s.Snapshot().PeerTyping)
	assert.Eventually(t, func() bool { return !s.Snapshot().PeerTyping }, time.Second, 5*time.Millisecond)
}

func TestLocalTypingSignals(t *testing.T) {
	b := &recordingBridge{}
	opts := testOptions()
	opts.TypingDebounce = time.Minute
	s := New(me, newFakeAPI(), b, opts)
	defer s.Close()
	ctx := context.Background()

	s.InputChanged("ignored before a conversation is open")
	assert.Empty(t, b.kinds())

	require.NoError(t, s.Switch(ctx, john))
	s.InputChanged("h")
	s.InputChanged("he")
	s.InputChanged("hel")
	assert.Equal(t, []string{protocol.TypeJoinConversation, protocol.TypeTyping}, b.kinds())

	_, err := s.Send(ctx, "hel")
	require.NoError(t, err)
	assert.Equal(t, []string{
		protocol.TypeJoinConversation,
		protocol.TypeTyping,
		protocol.TypeSendMessage,
		protocol.TypeStopTyping,
	}, b.kinds())

	b.mu.Lock()
	for _, c := range b.calls {
		if c.kind == protocol.TypeTyping || c.kind == protocol.TypeStopTyping {
			assert.Equal(t, "1", c.userID)
			assert.Equal(t, "srv_1_2", c.conversationID)
		}
	}
	b.mu.Unlock()
}

func TestListenStopsWhenStreamCloses(t *testing.T) {
	s, _ := newTestSession(t, newFakeAPI())
	require.NoError(t, s.Switch(context.Background(), john))

	events := make(chan protocol.Event, 1)
	events <- protocol.NewReceiveMessage("srv_1_2", domain.Message{ID: "r1", SenderID: "2", Body: "hey"})
	close(events)

	s.Listen(context.Background(), events)
	assert.Len(t, s.Snapshot().Entries, 1)
}

func TestUpdatesCoalesce(t *testing.T) {
	s, _ := newTestSession(t, newFakeAPI())
	require.NoError(t, s.Switch(context.Background(), john))

	select {
	case <-s.Updates():
	default:
		t.Fatal("expected a pending update")
	}
	select {
	case <-s.Updates():
		t.Fatal("updates did not coalesce")
	default:
	}
}

func TestUsersHidesLocalUser(t *testing.T) {
	api := newFakeAPI()
	api.down = true
	s, _ := newTestSession(t, api)

	users := s.Users(context.Background())
	require.Len(t, users, 4)
	for _, u := range users {
		assert.NotEqual(t, "1", u.ID)
	}
}
