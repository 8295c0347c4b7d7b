package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anshu-sharma0/chatmessage/internal/domain"
)

var errUnreachable = errors.New("dial tcp: connection refused")

// fakeAPI is an in-memory backend. Setting down makes every call fail like an unreachable server.
type fakeAPI struct {
	mu       sync.Mutex
	down     bool
	users    []domain.User
	history  map[string][]domain.Message
	creates  int
	sent     []domain.SendMessageRequest

	// gate, when set, blocks GetMessages until it is closed.
	gate chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{history: make(map[string][]domain.Message)}
}

func (f *fakeAPI) ListUsers(ctx context.Context) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errUnreachable
	}
	return f.users, nil
}

func (f *fakeAPI) CreateConversation(ctx context.Context, user1, user2 string) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errUnreachable
	}
	f.creates++
	a, b := user1, user2
	if b < a {
		a, b = b, a
	}
	return &domain.Conversation{ID: "srv_" + a + "_" + b, Participants: []string{user1, user2}}, nil
}

func (f *fakeAPI) GetMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errUnreachable
	}
	return append([]domain.Message(nil), f.history[conversationID]...), nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, req *domain.SendMessageRequest) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errUnreachable
	}
	f.sent = append(f.sent, *req)
	msg := domain.Message{
		ID:             fmt.Sprintf("m%d", len(f.sent)),
		ConversationID: req.ConversationID,
		SenderID:       req.SenderID,
		Body:           req.Message,
		Timestamp:      "2024-05-01T10:00:00.000Z",
		ClientID:       req.ClientID,
	}
	f.history[req.ConversationID] = append(f.history[req.ConversationID], msg)
	return &msg, nil
}

func TestDirectoryFallback(t *testing.T) {
	api := newFakeAPI()
	api.down = true

	users := NewDirectory(api).List(context.Background())
	require.Len(t, users, 5)
	want := []struct{ id, name, email string }{
		{"1", "Sarah Wilson", "sarah@example.com"},
		{"2", "John Doe", "john@example.com"},
		{"3", "Alex Chen", "alex@example.com"},
		{"4", "Emma Davis", "emma@example.com"},
		{"5", "Mike Johnson", "mike@example.com"},
	}
	for i, w := range want {
		assert.Equal(t, w.id, users[i].ID)
		assert.Equal(t, w.name, users[i].Name)
		assert.Equal(t, w.email, users[i].Email)
	}

	// Callers cannot corrupt the fallback list.
	users[0].Name = "changed"
	assert.Equal(t, "Sarah Wilson", FallbackUsers()[0].Name)
}

func TestDirectoryFromBackend(t *testing.T) {
	api := newFakeAPI()
	api.users = []domain.User{{ID: "2", Name: "John Doe"}}

	users := NewDirectory(api).List(context.Background())
	assert.Equal(t, api.users, users)
}

func TestResolverValidation(t *testing.T) {
	api := newFakeAPI()
	r := NewResolver(api)

	_, err := r.Resolve(context.Background(), "", "2")
	assert.ErrorIs(t, err, ErrMissingParticipant)
	_, err = r.Resolve(context.Background(), "1", "")
	assert.ErrorIs(t, err, ErrMissingParticipant)
	_, err = r.Resolve(context.Background(), "1", "1")
	assert.ErrorIs(t, err, ErrSelfConversation)
	assert.Zero(t, api.creates)
}

func TestResolverRemembersBackendIDs(t *testing.T) {
	api := newFakeAPI()
	r := NewResolver(api)

	first, err := r.Resolve(context.Background(), "1", "2")
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), "2", "1")
	require.NoError(t, err)

	assert.Equal(t, "srv_1_2", first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, api.creates)
}

func TestResolverFallbackIsSymmetric(t *testing.T) {
	api := newFakeAPI()
	api.down = true
	r := NewResolver(api)

	ab, err := r.Resolve(context.Background(), "b", "a")
	require.NoError(t, err)
	ba, err := r.Resolve(context.Background(), "a", "b")
	require.NoError(t, err)

	assert.Equal(t, "conv_a_b", ab)
	assert.Equal(t, ab, ba)
}

func TestFallbackConversationID(t *testing.T) {
	assert.Equal(t, "conv_1_2", FallbackConversationID("1", "2"))
	assert.Equal(t, "conv_1_2", FallbackConversationID("2", "1"))
	// Ordering is lexicographic, not numeric.
	assert.Equal(t, "conv_10_9", FallbackConversationID("9", "10"))
}

func TestTimelineMerge(t *testing.T) {
	var tl Timeline
	tl.Append(domain.Message{ID: "m1", Body: "first"})
	assert.True(t, tl.Merge(domain.Message{ID: "m2", Body: "second", ClientID: "k2"}))
	assert.False(t, tl.Merge(domain.Message{ID: "m2", Body: "second (echo)", ClientID: "k2"}))
	// Without a client id nothing is deduplicated.
	assert.True(t, tl.Merge(domain.Message{ID: "m3", Body: "third"}))

	msgs := tl.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"first", "second (echo)", "third"}, bodies(msgs))

	tl.Reset()
	assert.Zero(t, tl.Len())
}

func TestTimelineHydrateKeepsEarlyArrivals(t *testing.T) {
	var tl Timeline
	tl.Merge(domain.Message{ID: "m2", Body: "already in history", ClientID: "k2"})
	tl.Merge(domain.Message{ID: "m9", Body: "live"})

	tl.Hydrate([]domain.Message{
		{ID: "m1", Body: "old"},
		{ID: "m2", Body: "already in history", ClientID: "k2"},
	})

	assert.Equal(t, []string{"old", "already in history", "live"}, bodies(tl.Messages()))
}

func TestTimelineHydrateKeepsFallbackSendsWithSharedID(t *testing.T) {
	var tl Timeline
	tl.Merge(domain.Message{ID: "msg_1714557600000", Body: "one", ClientID: "k1"})
	tl.Merge(domain.Message{ID: "msg_1714557600000", Body: "two", ClientID: "k2"})

	tl.Hydrate([]domain.Message{{ID: "m1", Body: "old"}})

	assert.Equal(t, []string{"old", "one", "two"}, bodies(tl.Messages()))
}

func bodies(msgs []domain.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Body)
	}
	return out
}
