package conversation

import (
	"github.com/anshu-sharma0/chatmessage/internal/domain"
)

// Timeline is the ordered, in-memory message sequence of the active conversation.
// It is not safe for concurrent use; Session guards it.
type Timeline struct {
	messages []domain.Message
}

// Len returns the number of messages.
func (t *Timeline) Len() int {
	return len(t.messages)
}

// Messages returns a copy of the messages in insertion order.
func (t *Timeline) Messages() []domain.Message {
	return append([]domain.Message(nil), t.messages...)
}

// Reset empties the timeline.
func (t *Timeline) Reset() {
	t.messages = nil
}

// Append adds msg to the end.
func (t *Timeline) Append(msg domain.Message) {
	t.messages = append(t.messages, msg)
}

// Merge replaces the message carrying the same client id as msg, or appends msg.
// It reports whether msg was appended.
func (t *Timeline) Merge(msg domain.Message) bool {
	if i := t.index(msg); i >= 0 {
		t.messages[i] = msg
		return false
	}
	t.Append(msg)
	return true
}

// Hydrate installs history and merges back any messages that arrived while it was loading.
// A pending message is dropped only when history already holds its id; fallback ids are
// not unique, so pending messages are never compared with each other.
func (t *Timeline) Hydrate(history []domain.Message) {
	stored := make(map[string]struct{}, len(history))
	for _, msg := range history {
		if msg.ID != "" {
			stored[msg.ID] = struct{}{}
		}
	}

	pending := t.messages
	t.messages = append(make([]domain.Message, 0, len(history)+len(pending)), history...)
	for _, msg := range pending {
		if _, ok := stored[msg.ID]; ok {
			continue
		}
		t.Merge(msg)
	}
}

func (t *Timeline) index(msg domain.Message) int {
	if msg.ClientID == "" {
		return -1
	}
	for i := range t.messages {
		if t.messages[i].ClientID == msg.ClientID {
			return i
		}
	}
	return -1
}
