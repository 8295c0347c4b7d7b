package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	engine, err := NewEngine(context.Background(), DefaultPolicy)
	require.NoError(t, err)

	pair := []string{"1", "2"}
	tests := []struct {
		name  string
		input Input
		want  bool
	}{
		{"participant reads", Input{Action: ActionReadConversation, UserID: "1", Participants: pair}, true},
		{"outsider reads", Input{Action: ActionReadConversation, UserID: "3", Participants: pair}, false},
		{"participant joins", Input{Action: ActionJoinConversation, UserID: "2", Participants: pair}, true},
		{"outsider joins", Input{Action: ActionJoinConversation, UserID: "3", Participants: pair}, false},
		{"participant types", Input{Action: ActionTyping, UserID: "2", Participants: pair}, true},
		{"create own pair", Input{Action: ActionCreateConversation, UserID: "1", Participants: pair}, true},
		{"create for others", Input{Action: ActionCreateConversation, UserID: "3", Participants: pair}, false},
		{"create with self", Input{Action: ActionCreateConversation, UserID: "1", Participants: []string{"1", "1"}}, false},
		{"send as self", Input{Action: ActionSendMessage, UserID: "1", Participants: pair, SenderID: "1"}, true},
		{"send as peer", Input{Action: ActionSendMessage, UserID: "1", Participants: pair, SenderID: "2"}, false},
		{"unknown action", Input{Action: "delete_conversation", UserID: "1", Participants: pair}, false},
		{"no participants", Input{Action: ActionReadConversation, UserID: "1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Allow(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewEngineRejectsInvalidPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), "package chat.authz\n\nallow if {")
	assert.Error(t, err)
}

func TestPolicyWithoutAllowDenies(t *testing.T) {
	engine, err := NewEngine(context.Background(), "package chat.authz\n\nother := true\n")
	require.NoError(t, err)

	got, err := engine.Allow(context.Background(), Input{Action: ActionReadConversation, UserID: "1"})
	require.NoError(t, err)
	assert.False(t, got)
}
