package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/archpal/coaching-platform/internal/lock"
	"github.com/archpal/coaching-platform/internal/model"
	"github.com/archpal/coaching-platform/internal/objectstore"
)

func TestGetConversation_Missing(t *testing.T) {
	s, _ := newTestStore(objectstore.NewMemoryStore(), Options{})

	conv, err := s.GetConversation(context.Background(), "u1", "c1")
	if err != nil || conv != nil {
		t.Errorf("GetConversation() = %v, %v; want nil, nil", conv, err)
	}
}

func TestAppendMessage_Monotonic(t *testing.T) {
	s, _ := newTestStore(objectstore.NewMemoryStore(), Options{})
	ctx := context.Background()

	if _, err := s.UpsertSummary(ctx, "u1", "c1", ""); err != nil {
		t.Fatal(err)
	}

	const n = 6
	for i := 0; i < n; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		msg, err := s.AppendMessage(ctx, "u1", "c1", role, fmt.Sprintf("message %d", i), AppendOptions{})
		if err != nil {
			t.Fatalf("AppendMessage(%d) error = %v", i, err)
		}
		if msg.Metadata.MessageIndex != i {
			t.Errorf("returned message_index = %d, want %d", msg.Metadata.MessageIndex, i)
		}

		// Index and document converge after every append.
		summary, _ := s.GetSummary(ctx, "u1", "c1")
		conv, _ := s.GetConversation(ctx, "u1", "c1")
		if summary.MessageCount != len(conv.Messages) {
			t.Errorf("after append %d: index count %d, document has %d", i, summary.MessageCount, len(conv.Messages))
		}
	}

	conv, err := s.GetConversation(ctx, "u1", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(conv.Messages) != n {
		t.Fatalf("document has %d messages, want %d", len(conv.Messages), n)
	}
	for i, m := range conv.Messages {
		if m.Content != fmt.Sprintf("message %d", i) {
			t.Errorf("message %d content = %q", i, m.Content)
		}
		if m.Metadata.MessageIndex != i {
			t.Errorf("message %d message_index = %d", i, m.Metadata.MessageIndex)
		}
		if i > 0 && m.Timestamp.Before(conv.Messages[i-1].Timestamp) {
			t.Errorf("message %d timestamp goes backwards", i)
		}
	}
	if conv.UserID != "u1" || conv.ConversationID != "c1" {
		t.Errorf("ids = %q/%q", conv.UserID, conv.ConversationID)
	}
	if conv.LastUpdated.Before(conv.CreatedAt) {
		t.Error("last_updated before created_at")
	}
}

func TestAppendMessage_CreatesDocument(t *testing.T) {
	s, _ := newTestStore(objectstore.NewMemoryStore(), Options{})
	ctx := context.Background()

	msg, err := s.AppendMessage(ctx, "u1", "c1", model.RoleUser, "hi", AppendOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if msg.MessageID == "" {
		t.Error("message id not assigned")
	}

	conv, _ := s.GetConversation(ctx, "u1", "c1")
	if conv == nil || len(conv.Messages) != 1 {
		t.Fatalf("conversation = %+v, want one message", conv)
	}
	if conv.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}

func TestAppendMessage_Metadata(t *testing.T) {
	s, _ := newTestStore(objectstore.NewMemoryStore(), Options{})
	ctx := context.Background()

	first := map[string]string{"college_year": "First Year", "major": "Biology"}
	_, err := s.AppendMessage(ctx, "u1", "c1", model.RoleUser, "hi", AppendOptions{ConversationMetadata: first})
	if err != nil {
		t.Fatal(err)
	}

	msg, err := s.AppendMessage(ctx, "u1", "c1", model.RoleAssistant, "hello", AppendOptions{
		Metadata:             model.MessageMetadata{MessageIndex: 99, Model: "claude", TokensIn: 10, TokensOut: 4},
		ConversationMetadata: map[string]string{"major": "History"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if msg.Metadata.MessageIndex != 1 {
		t.Errorf("message_index = %d, want 1", msg.Metadata.MessageIndex)
	}

	conv, _ := s.GetConversation(ctx, "u1", "c1")
	if conv.Metadata["major"] != "Biology" {
		t.Errorf("conversation metadata overwritten: %v", conv.Metadata)
	}
	if got := conv.Messages[1].Metadata; got.Model != "claude" || got.TokensOut != 4 {
		t.Errorf("assistant metadata = %+v", got)
	}
}

func TestAppendMessage_InvalidRole(t *testing.T) {
	s, _ := newTestStore(objectstore.NewMemoryStore(), Options{})

	if _, err := s.AppendMessage(context.Background(), "u1", "c1", model.Role("system"), "x", AppendOptions{}); err == nil {
		t.Error("AppendMessage() with unknown role should fail")
	}
}

func TestAppendMessage_FailedPutKeepsState(t *testing.T) {
	faulty := &faultyStore{Store: objectstore.NewMemoryStore(), failPut: map[string]bool{}}
	s, _ := newTestStore(faulty, Options{})
	ctx := context.Background()

	if _, err := s.UpsertSummary(ctx, "u1", "c1", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AppendMessage(ctx, "u1", "c1", model.RoleUser, "first", AppendOptions{}); err != nil {
		t.Fatal(err)
	}
	indexBefore, _ := s.GetSummary(ctx, "u1", "c1")

	faulty.failPut[objectstore.ConversationKey("u1", "c1")] = true

	_, err := s.AppendMessage(ctx, "u1", "c1", model.RoleAssistant, "second", AppendOptions{})
	if !errors.Is(err, objectstore.ErrUnavailable) {
		t.Fatalf("AppendMessage() error = %v, want ErrUnavailable", err)
	}

	conv, _ := s.GetConversation(ctx, "u1", "c1")
	if len(conv.Messages) != 1 || conv.Messages[0].Content != "first" {
		t.Errorf("document changed after failed put: %+v", conv.Messages)
	}
	indexAfter, _ := s.GetSummary(ctx, "u1", "c1")
	if indexAfter.MessageCount != 1 || !indexAfter.LastUpdated.Equal(indexBefore.LastUpdated) {
		t.Errorf("index touched after failed document put: %+v", indexAfter)
	}
}

func TestAppendMessage_IndexFailureIsNotFatal(t *testing.T) {
	faulty := &faultyStore{Store: objectstore.NewMemoryStore(), failPut: map[string]bool{}}
	s, _ := newTestStore(faulty, Options{})
	ctx := context.Background()

	if _, err := s.UpsertSummary(ctx, "u1", "c1", ""); err != nil {
		t.Fatal(err)
	}
	faulty.failPut[objectstore.ConversationIndexKey("u1")] = true

	if _, err := s.AppendMessage(ctx, "u1", "c1", model.RoleUser, "hi", AppendOptions{}); err != nil {
		t.Fatalf("AppendMessage() error = %v, want nil", err)
	}

	conv, _ := s.GetConversation(ctx, "u1", "c1")
	if len(conv.Messages) != 1 {
		t.Errorf("document has %d messages, want 1", len(conv.Messages))
	}
	summary, _ := s.GetSummary(ctx, "u1", "c1")
	if summary.MessageCount != 0 {
		t.Errorf("index count = %d, want stale 0", summary.MessageCount)
	}
}

func TestSaveConversation_RoundTrip(t *testing.T) {
	s, _ := newTestStore(objectstore.NewMemoryStore(), Options{})
	ctx := context.Background()

	created := newFakeClock().Now()
	doc := model.Conversation{
		CreatedAt:   created,
		LastUpdated: created,
		Messages: []model.Message{
			{MessageID: "m1", Role: model.RoleUser, Content: "hi", Timestamp: created, Metadata: model.MessageMetadata{MessageIndex: 0}},
			{MessageID: "m2", Role: model.RoleAssistant, Content: "hello", Timestamp: created, Metadata: model.MessageMetadata{MessageIndex: 1, Model: "x"}},
		},
		Metadata: map[string]string{"major": "Biology"},
	}

	if _, err := s.SaveConversation(ctx, "u1", "c1", doc); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetConversation(ctx, "u1", "c1")
	if err != nil {
		t.Fatal(err)
	}

	if got.ConversationID != "c1" || got.UserID != "u1" {
		t.Errorf("ids = %q/%q", got.ConversationID, got.UserID)
	}
	if !got.CreatedAt.Equal(doc.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, doc.CreatedAt)
	}
	if got.LastUpdated.Before(doc.LastUpdated) {
		t.Errorf("last_updated %v before original %v", got.LastUpdated, doc.LastUpdated)
	}
	if len(got.Messages) != len(doc.Messages) {
		t.Fatalf("got %d messages, want %d", len(got.Messages), len(doc.Messages))
	}
	for i := range doc.Messages {
		w, g := doc.Messages[i], got.Messages[i]
		if g.MessageID != w.MessageID || g.Role != w.Role || g.Content != w.Content ||
			!g.Timestamp.Equal(w.Timestamp) || g.Metadata != w.Metadata {
			t.Errorf("message %d = %+v, want %+v", i, g, w)
		}
	}
	if got.Metadata["major"] != "Biology" {
		t.Errorf("metadata = %v", got.Metadata)
	}
}

func TestAppendMessage_ConcurrentVersioned(t *testing.T) {
	s, _ := newTestStore(objectstore.NewMemoryStore(), Options{MaxRetries: 100})
	assertConcurrentAppends(t, s)
}

func TestAppendMessage_ConcurrentLocked(t *testing.T) {
	s, _ := newTestStore(plainStore{objectstore.NewMemoryStore()}, Options{Locker: lock.NewLocalLocker()})
	assertConcurrentAppends(t, s)
}

func TestAppendMessage_LateIndexUpdateKeepsHigherCount(t *testing.T) {
	locker := newGateLocker(lock.NewLocalLocker(), objectstore.ConversationIndexKey("u1"))
	s, _ := newTestStore(plainStore{objectstore.NewMemoryStore()}, Options{Locker: locker})
	ctx := context.Background()

	if _, err := s.UpsertSummary(ctx, "u1", "c1", "Essay"); err != nil {
		t.Fatal(err)
	}

	// The first append writes its document, then stalls before the index
	// update while a second append completes both steps.
	locker.arm()
	done := make(chan error, 1)
	go func() {
		_, err := s.AppendMessage(ctx, "u1", "c1", model.RoleUser, "first", AppendOptions{})
		done <- err
	}()
	<-locker.waiting

	if _, err := s.AppendMessage(ctx, "u1", "c1", model.RoleAssistant, "second", AppendOptions{}); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	locker.open()
	if err := <-done; err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	conv, _ := s.GetConversation(ctx, "u1", "c1")
	summary, _ := s.GetSummary(ctx, "u1", "c1")
	if len(conv.Messages) != 2 {
		t.Fatalf("document has %d messages, want 2", len(conv.Messages))
	}
	if summary.MessageCount != len(conv.Messages) {
		t.Errorf("index message_count = %d, document has %d messages", summary.MessageCount, len(conv.Messages))
	}
}

func assertConcurrentAppends(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	const writers, perWriter = 8, 5
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := s.AppendMessage(ctx, "u1", "c1", model.RoleUser, fmt.Sprintf("w%d-%d", w, i), AppendOptions{}); err != nil {
					t.Errorf("AppendMessage() error = %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	conv, err := s.GetConversation(ctx, "u1", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(conv.Messages) != writers*perWriter {
		t.Fatalf("document has %d messages, want %d", len(conv.Messages), writers*perWriter)
	}
	seen := make(map[string]bool)
	for i, m := range conv.Messages {
		if m.Metadata.MessageIndex != i {
			t.Errorf("message %d has message_index %d", i, m.Metadata.MessageIndex)
		}
		seen[m.Content] = true
	}
	if len(seen) != writers*perWriter {
		t.Errorf("%d distinct messages, want %d", len(seen), writers*perWriter)
	}
}
