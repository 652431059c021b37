package objectstore

import (
	"errors"
	"strings"
)

// ErrInvalidID is returned for ids that cannot be used as a key segment.
var ErrInvalidID = errors.New("invalid id")

// ValidateID checks that id is safe to embed in an object key.
func ValidateID(id string) error {
	if id == "" || len(id) > 128 || id == "." || strings.Contains(id, "..") || strings.ContainsAny(id, "/\\ \t\n") {
		return ErrInvalidID
	}
	return nil
}

// UserInfoKey is the key of a user's profile document.
func UserInfoKey(userID string) string {
	return "users/" + userID + "/info.json"
}

// ConversationIndexKey is the key of a user's conversation index.
func ConversationIndexKey(userID string) string {
	return "users/" + userID + "/conversations.json"
}

// ConversationKey is the key of one conversation document.
func ConversationKey(userID, conversationID string) string {
	return "users/" + userID + "/conversations/" + conversationID + ".json"
}
