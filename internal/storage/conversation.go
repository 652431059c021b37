package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/archpal/coaching-platform/internal/model"
	"github.com/archpal/coaching-platform/internal/objectstore"
	"github.com/archpal/coaching-platform/pkg/metrics"
)

// AppendOptions carries optional data for AppendMessage.
type AppendOptions struct {
	// Metadata is stored with the message. MessageIndex is always
	// overwritten with the message's position.
	Metadata model.MessageMetadata

	// ConversationMetadata is applied only when the document has no
	// metadata yet.
	ConversationMetadata map[string]string
}

// GetConversation returns the conversation document, or nil when it does
// not exist.
func (s *Store) GetConversation(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	if err := validateIDs(userID, conversationID); err != nil {
		return nil, err
	}

	var conv model.Conversation
	ok, err := s.load(ctx, "get_conversation", objectstore.ConversationKey(userID, conversationID), &conv)
	if err != nil || !ok {
		return nil, err
	}
	if conv.Messages == nil {
		conv.Messages = []model.Message{}
	}
	return &conv, nil
}

// SaveConversation overwrites the conversation document. The ids are
// stamped from the arguments, CreatedAt is set if zero and LastUpdated is
// refreshed.
func (s *Store) SaveConversation(ctx context.Context, userID, conversationID string, conv model.Conversation) (*model.Conversation, error) {
	if err := validateIDs(userID, conversationID); err != nil {
		return nil, err
	}

	return updateJSON(ctx, s, "save_conversation", objectstore.ConversationKey(userID, conversationID), func(doc *model.Conversation, _ bool) error {
		*doc = conv
		stampConversation(doc, userID, conversationID, s.timestamp())
		return nil
	})
}

// AppendMessage appends one message to the conversation, creating the
// document when it does not exist, and then records the new message count
// in the index.
//
// The document is written with a single put. If that put fails the stored
// document and the index are left untouched. A failed index update after a
// successful put is logged and not returned: the document's message list is
// the authoritative count.
func (s *Store) AppendMessage(ctx context.Context, userID, conversationID string, role model.Role, content string, opts AppendOptions) (*model.Message, error) {
	if err := validateIDs(userID, conversationID); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, fmt.Errorf("append message: unknown role %q", role)
	}

	var (
		msg   model.Message
		count int
	)
	_, err := updateJSON(ctx, s, "append_message", objectstore.ConversationKey(userID, conversationID), func(doc *model.Conversation, exists bool) error {
		now := s.timestamp()
		if !exists {
			doc.CreatedAt = now
			doc.Messages = []model.Message{}
		}

		meta := opts.Metadata
		meta.MessageIndex = len(doc.Messages)
		msg = model.Message{
			MessageID: s.newID(),
			Role:      role,
			Content:   content,
			Timestamp: now,
			Metadata:  meta,
		}
		doc.Messages = append(doc.Messages, msg)

		if len(doc.Metadata) == 0 && len(opts.ConversationMetadata) > 0 {
			doc.Metadata = make(map[string]string, len(opts.ConversationMetadata))
			for k, v := range opts.ConversationMetadata {
				doc.Metadata[k] = v
			}
		}

		stampConversation(doc, userID, conversationID, now)
		count = len(doc.Messages)
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.MessagesAppendedTotal.WithLabelValues(string(role)).Inc()

	if _, err := s.SetMessageCount(ctx, userID, conversationID, count); err != nil {
		s.logger.Error("Failed to update message count",
			zap.String("user_id", userID),
			zap.String("conversation_id", conversationID),
			zap.Int("count", count),
			zap.Error(err),
		)
	}

	return &msg, nil
}

func stampConversation(doc *model.Conversation, userID, conversationID string, now time.Time) {
	doc.UserID = userID
	doc.ConversationID = conversationID
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.LastUpdated = now
	if doc.Messages == nil {
		doc.Messages = []model.Message{}
	}
}
