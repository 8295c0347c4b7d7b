package conversation

import (
	"context"
	"errors"
	"sync"

	"github.com/golang/glog"

	"github.com/anshu-sharma0/chatmessage/internal/domain"
)

var (
	// ErrMissingParticipant is returned when one of the pair is empty.
	ErrMissingParticipant = errors.New("both participants are required")
	// ErrSelfConversation is returned when both participants are the same user.
	ErrSelfConversation = errors.New("cannot open a conversation with yourself")
)

// ConversationCreator obtains or creates the conversation of a pair.
type ConversationCreator interface {
	CreateConversation(ctx context.Context, user1, user2 string) (*domain.Conversation, error)
}

// FallbackConversationID derives a local conversation id for a pair.
// The pair is ordered first, so both participants derive the same id.
func FallbackConversationID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "conv_" + a + "_" + b
}

// Resolver maps a pair of users to a conversation id.
type Resolver struct {
	api ConversationCreator

	mu       sync.Mutex
	resolved map[[2]string]string
}

// NewResolver creates a resolver backed by api.
func NewResolver(api ConversationCreator) *Resolver {
	return &Resolver{
		api:      api,
		resolved: make(map[[2]string]string),
	}
}

// Resolve returns the conversation id for selfID and peerID. Ids obtained from the backend are
// remembered for the lifetime of the resolver. On transport failure a local id is derived
// with FallbackConversationID.
func (r *Resolver) Resolve(ctx context.Context, selfID, peerID string) (string, error) {
	if selfID == "" || peerID == "" {
		return "", ErrMissingParticipant
	}
	if selfID == peerID {
		return "", ErrSelfConversation
	}

	key := pairKey(selfID, peerID)
	r.mu.Lock()
	id, ok := r.resolved[key]
	r.mu.Unlock()
	if ok {
		return id, nil
	}

	conv, err := r.api.CreateConversation(ctx, selfID, peerID)
	if err != nil {
		id := FallbackConversationID(selfID, peerID)
		glog.Warningf("resolver: %v; using local conversation id %s", err, id)
		return id, nil
	}

	r.mu.Lock()
	r.resolved[key] = conv.ID
	r.mu.Unlock()
	return conv.ID, nil
}

func pairKey(a, b string) [2]string {
	if b < a {
		a, b = b, a
	}
	return [2]string{a, b}
}
