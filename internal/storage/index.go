package storage

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/archpal/coaching-platform/internal/model"
	"github.com/archpal/coaching-platform/internal/objectstore"
)

// index is the stored form of users/{user_id}/conversations.json.
type index []model.ConversationSummary

func (ix index) find(conversationID string) int {
	for i := range ix {
		if ix[i].ConversationID == conversationID {
			return i
		}
	}
	return -1
}

func (s *Store) loadIndex(ctx context.Context, op, userID string) (index, error) {
	var ix index
	if _, err := s.load(ctx, op, objectstore.ConversationIndexKey(userID), &ix); err != nil {
		return nil, err
	}
	return ix, nil
}

// ListSummaries returns the user's conversations, most recently updated
// first. A limit of zero or less returns all of them.
func (s *Store) ListSummaries(ctx context.Context, userID string, limit int) ([]model.ConversationSummary, error) {
	if err := objectstore.ValidateID(userID); err != nil {
		return nil, err
	}

	ix, err := s.loadIndex(ctx, "list_summaries", userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]model.ConversationSummary, len(ix))
	copy(summaries, ix)
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastUpdated.After(summaries[j].LastUpdated)
	})

	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// GetSummary returns one index entry, or nil when it is not indexed.
func (s *Store) GetSummary(ctx context.Context, userID, conversationID string) (*model.ConversationSummary, error) {
	if err := validateIDs(userID, conversationID); err != nil {
		return nil, err
	}

	ix, err := s.loadIndex(ctx, "get_summary", userID)
	if err != nil {
		return nil, err
	}
	if i := ix.find(conversationID); i >= 0 {
		summary := ix[i]
		return &summary, nil
	}
	return nil, nil
}

// UpsertSummary refreshes LastUpdated of an indexed conversation, or adds
// it with a zero message count. An empty title is replaced by the
// formatted creation time. The title of an existing entry is never changed.
func (s *Store) UpsertSummary(ctx context.Context, userID, conversationID, title string) (*model.ConversationSummary, error) {
	if err := validateIDs(userID, conversationID); err != nil {
		return nil, err
	}

	var summary model.ConversationSummary
	_, err := updateJSON(ctx, s, "upsert_summary", objectstore.ConversationIndexKey(userID), func(ix *index, _ bool) error {
		now := s.timestamp()
		if i := ix.find(conversationID); i >= 0 {
			(*ix)[i].LastUpdated = now
			summary = (*ix)[i]
			return nil
		}

		entryTitle := title
		if entryTitle == "" {
			entryTitle = now.Format(model.DefaultTitleLayout)
		}
		summary = model.ConversationSummary{
			ConversationID: conversationID,
			Title:          entryTitle,
			CreatedAt:      now,
			LastUpdated:    now,
			MessageCount:   0,
		}
		*ix = append(*ix, summary)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// SetMessageCount raises the message count of an indexed conversation to
// count and refreshes its LastUpdated. A lower count never replaces a higher
// one, so a late writer cannot roll the index back. It returns false without
// writing when the conversation is not indexed.
func (s *Store) SetMessageCount(ctx context.Context, userID, conversationID string, count int) (bool, error) {
	if err := validateIDs(userID, conversationID); err != nil {
		return false, err
	}

	found := false
	_, err := updateJSON(ctx, s, "set_message_count", objectstore.ConversationIndexKey(userID), func(ix *index, _ bool) error {
		i := ix.find(conversationID)
		if i < 0 {
			found = false
			return errNoChange
		}
		found = true
		if count > (*ix)[i].MessageCount {
			(*ix)[i].MessageCount = count
		}
		(*ix)[i].LastUpdated = s.timestamp()
		return nil
	})
	if err != nil && !errors.Is(err, errNoChange) {
		return false, err
	}

	if !found {
		s.logger.Warn("Message count update for unindexed conversation",
			zap.String("user_id", userID),
			zap.String("conversation_id", conversationID),
			zap.Int("count", count),
		)
	}
	return found, nil
}

// RenameSummary changes the title of an indexed conversation. It returns
// false when the conversation is not indexed.
func (s *Store) RenameSummary(ctx context.Context, userID, conversationID, title string) (bool, error) {
	if err := validateIDs(userID, conversationID); err != nil {
		return false, err
	}

	found := false
	_, err := updateJSON(ctx, s, "rename_summary", objectstore.ConversationIndexKey(userID), func(ix *index, _ bool) error {
		i := ix.find(conversationID)
		if i < 0 {
			found = false
			return errNoChange
		}
		found = true
		if (*ix)[i].Title == title {
			return errNoChange
		}
		(*ix)[i].Title = title
		return nil
	})
	if err != nil && !errors.Is(err, errNoChange) {
		return false, err
	}
	return found, nil
}

func validateIDs(userID, conversationID string) error {
	if err := objectstore.ValidateID(userID); err != nil {
		return err
	}
	return objectstore.ValidateID(conversationID)
}
