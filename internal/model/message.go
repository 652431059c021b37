package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role represents the role of a message sender. Only RoleUser and
// RoleAssistant exist; decoding any other value fails.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant:
		return true
	}
	return false
}

// ParseRole converts s into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown message role %q", s)
	}
	return r, nil
}

// UnmarshalJSON rejects unknown roles.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// MessageMetadata is recorded with every message.
type MessageMetadata struct {
	// MessageIndex is the 0-based position of the message at append time.
	MessageIndex int `json:"message_index"`

	// LLM metadata (assistant messages only)
	Model      string `json:"model,omitempty"`
	TokensIn   int    `json:"tokens_in,omitempty"`
	TokensOut  int    `json:"tokens_out,omitempty"`
	LatencyMs  int64  `json:"latency_ms,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
}

// Message represents a conversation message.
type Message struct {
	MessageID string          `json:"message_id"`
	Role      Role            `json:"role"`
	Content   string          `json:"content"`
	Timestamp time.Time       `json:"timestamp"`
	Metadata  MessageMetadata `json:"metadata"`
}

// SendMessageRequest is the request to send a chat turn.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessageResponse is the response after a completed chat turn.
type SendMessageResponse struct {
	ConversationID   string   `json:"conversation_id"`
	UserMessage      *Message `json:"user_message"`
	AssistantMessage *Message `json:"assistant_message,omitempty"`
}

// TokenEvent represents a streaming token event.
type TokenEvent struct {
	Token string `json:"token"`
	Index int    `json:"index"`
}

// MessageCompleteEvent represents a message completion event.
type MessageCompleteEvent struct {
	ConversationID string  `json:"conversation_id"`
	Message        Message `json:"message"`
}

// ErrorEvent represents an error event.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
