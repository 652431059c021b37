package model

import (
	"time"
)

// DefaultTitleLayout formats the creation time used as a summary title
// when none is given.
const DefaultTitleLayout = "Jan 2, 2006 15:04 UTC"

// ConversationSummary is one entry of a user's conversation index.
type ConversationSummary struct {
	ConversationID string    `json:"conversation_id"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"created_at"`
	LastUpdated    time.Time `json:"last_updated"`
	MessageCount   int       `json:"message_count"`
}

// Conversation is a full conversation document.
// Stored at users/{user_id}/conversations/{conversation_id}.json.
type Conversation struct {
	ConversationID string            `json:"conversation_id"`
	UserID         string            `json:"user_id"`
	CreatedAt      time.Time         `json:"created_at"`
	LastUpdated    time.Time         `json:"last_updated"`
	Messages       []Message         `json:"messages"`
	Metadata       map[string]string `json:"metadata"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
	ActiveID      string                `json:"active_conversation_id,omitempty"`
}

// RenameConversationRequest is the request to rename a conversation.
type RenameConversationRequest struct {
	Title string `json:"title"`
}
