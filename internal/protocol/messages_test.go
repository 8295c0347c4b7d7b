package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anshu-sharma0/chatmessage/internal/domain"
)

func TestEventSubject(t *testing.T) {
	assert.Equal(t, "u1", NewTyping(TypeTyping, "c1", "u1").Subject())
	assert.Equal(t, "u2", NewTypingNotice(TypeStopTyping, "c1", "u2").Subject())
	assert.Equal(t, "", Event{}.Subject())
}

func TestTypingNoticeWireFormat(t *testing.T) {
	data, err := json.Marshal(NewTypingNotice(TypeTyping, "c1", "u2"))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "typing", raw["type"])
	assert.Equal(t, "c1", raw["conversationId"])
	assert.Equal(t, map[string]any{"_id": "u2"}, raw["user"])
	assert.NotContains(t, raw, "message")
}

func TestReceiveMessageDecodes(t *testing.T) {
	in := `{"type":"receive_message","ts":1,"conversationId":"c1",
		"message":{"_id":"m1","senderId":"2","message":"hey","timestamp":"2024-01-01T00:00:00.000Z","clientId":"k1"}}`

	var evt Event
	require.NoError(t, json.Unmarshal([]byte(in), &evt))
	require.NotNil(t, evt.Message)
	assert.Equal(t, TypeReceiveMessage, evt.Type)
	assert.Equal(t, domain.Message{
		ID:        "m1",
		SenderID:  "2",
		Body:      "hey",
		Timestamp: "2024-01-01T00:00:00.000Z",
		ClientID:  "k1",
	}, *evt.Message)
}
