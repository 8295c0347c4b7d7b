// Package policy evaluates conversation access rules with OPA.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Actions checked against the policy.
const (
	ActionCreateConversation = "create_conversation"
	ActionReadConversation   = "read_conversation"
	ActionSendMessage        = "send_message"
	ActionJoinConversation   = "join_conversation"
	ActionTyping             = "typing"
)

// Input is the document a decision is made on.
type Input struct {
	Action       string   `json:"action"`
	UserID       string   `json:"user_id"`
	Participants []string `json:"participants,omitempty"`
	SenderID     string   `json:"sender_id,omitempty"`
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
// The policy must define data.chat.authz.allow.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.chat.authz.allow"),
		rego.Module("chat_authz.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Allow reports whether the input is permitted. Anything but a boolean true denies.
func (e *Engine) Allow(ctx context.Context, input Input) (bool, error) {
	doc := map[string]any{
		"action":       input.Action,
		"user_id":      input.UserID,
		"participants": input.Participants,
		"sender_id":    input.SenderID,
	}
	if input.Participants == nil {
		doc["participants"] = []string{}
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(doc))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}

	allowed, ok := results[0].Expressions[0].Value.(bool)
	return ok && allowed, nil
}

// DefaultPolicy only lets participants touch a conversation, and only as themselves.
const DefaultPolicy = `
package chat.authz

import rego.v1

default allow := false

participant if {
	some p in input.participants
	p == input.user_id
}

allow if {
	input.action in {"read_conversation", "join_conversation", "typing"}
	participant
}

allow if {
	input.action == "create_conversation"
	participant
	count(input.participants) == 2
	input.participants[0] != input.participants[1]
}

allow if {
	input.action == "send_message"
	participant
	input.sender_id == input.user_id
}
`
