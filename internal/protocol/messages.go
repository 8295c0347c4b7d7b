// Package protocol defines the realtime event protocol between chat clients and the event service.
package protocol

import (
	"time"

	"github.com/anshu-sharma0/chatmessage/internal/domain"
)

// Event types from client to event service
const (
	TypeJoinConversation = "join_conversation"
	TypeSendMessage      = "send_message"
)

// Event types sent in both directions
const (
	TypeTyping     = "typing"
	TypeStopTyping = "stop_typing"
)

// Event types from event service to client
const (
	TypeReceiveMessage = "receive_message"
	TypeError          = "error"
)

// Error codes
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeForbidden      = "forbidden"
	ErrorCodeNotJoined      = "not_joined"
	ErrorCodeRateLimited    = "rate_limited"
	ErrorCodeInternalError  = "internal_error"
)

// BaseMessage contains common fields for all events.
type BaseMessage struct {
	Type           string `json:"type"`
	Ts             int64  `json:"ts"`
	ConversationID string `json:"conversationId,omitempty"`
}

// UserRef identifies the subject of a presence event.
type UserRef struct {
	ID string `json:"_id"`
}

// Event is the envelope of every realtime event. Which fields are set depends on Type.
type Event struct {
	BaseMessage
	// UserID is the local user on outbound join and typing events.
	UserID string `json:"userId,omitempty"`
	// User is the subject of inbound typing events.
	User    *UserRef        `json:"user,omitempty"`
	Message *domain.Message `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
	Text    string          `json:"text,omitempty"`
}

// Subject returns the user a presence event is about.
func (e Event) Subject() string {
	if e.User != nil && e.User.ID != "" {
		return e.User.ID
	}
	return e.UserID
}

func base(eventType, conversationID string) BaseMessage {
	return BaseMessage{
		Type:           eventType,
		Ts:             time.Now().UnixMilli(),
		ConversationID: conversationID,
	}
}

// NewJoin announces interest in a conversation's events.
func NewJoin(conversationID, userID string) Event {
	return Event{BaseMessage: base(TypeJoinConversation, conversationID), UserID: userID}
}

// NewTyping builds a typing or stop_typing event for userID.
func NewTyping(eventType, conversationID, userID string) Event {
	return Event{BaseMessage: base(eventType, conversationID), UserID: userID}
}

// NewTypingNotice builds the typing event the event service fans out to the room.
func NewTypingNotice(eventType, conversationID, userID string) Event {
	return Event{BaseMessage: base(eventType, conversationID), User: &UserRef{ID: userID}}
}

// NewSendMessage publishes msg to the conversation's subscribers.
func NewSendMessage(conversationID string, msg domain.Message) Event {
	return Event{BaseMessage: base(TypeSendMessage, conversationID), Message: &msg}
}

// NewReceiveMessage delivers msg to a subscriber.
func NewReceiveMessage(conversationID string, msg domain.Message) Event {
	return Event{BaseMessage: base(TypeReceiveMessage, conversationID), Message: &msg}
}

// NewError reports a failure to the client that caused it.
func NewError(conversationID, code, text string) Event {
	return Event{BaseMessage: base(TypeError, conversationID), Code: code, Text: text}
}
