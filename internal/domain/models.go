// Package domain defines the chat models shared by the client and the reference backend.
package domain

import (
	"strings"
	"time"
)

// TimestampLayout is the ISO-8601 layout used for message timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// User is an entry of the user directory.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Initials returns up to two upper-cased initials of the user's name.
func (u User) Initials() string {
	var initials []rune
	for _, word := range strings.Fields(u.Name) {
		initials = append(initials, []rune(word)[0])
		if len(initials) == 2 {
			break
		}
	}
	return strings.ToUpper(string(initials))
}

// Profile is the user profile returned by the auth service.
// It uses "id" where the directory uses "_id".
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Conversation scopes the message history of a pair of participants.
type Conversation struct {
	ID           string   `json:"_id"`
	Participants []string `json:"participants"`
}

// Message is a single chat message.
type Message struct {
	ID             string `json:"_id,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	SenderID       string `json:"senderId"`
	Body           string `json:"message"`
	Timestamp      string `json:"timestamp"`
	// ClientID correlates a locally sent message with its server and realtime echoes.
	ClientID string `json:"clientId,omitempty"`
}

// Time parses the message timestamp. The zero time is returned for unparsable values.
func (m Message) Time() time.Time {
	t, err := time.Parse(time.RFC3339Nano, m.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FormatTimestamp formats t the way message timestamps are exchanged.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
