package model

import (
	"time"
)

// EventType represents the type of conversation event.
type EventType string

const (
	EventTypeMessageAppended EventType = "message_appended"
	EventTypeProviderError   EventType = "provider_error"
	EventTypeConversation    EventType = "conversation_started"
)

// ConversationEvent is published to the event stream after a chat turn step.
type ConversationEvent struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	UserID         string         `json:"user_id"`
	Type           EventType      `json:"type"`
	Role           Role           `json:"role,omitempty"`
	MessageIndex   int            `json:"message_index,omitempty"`
	Reason         string         `json:"reason,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
