package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/archpal/coaching-platform/internal/llm"
	"github.com/archpal/coaching-platform/internal/model"
	"github.com/archpal/coaching-platform/internal/storage"
	"github.com/archpal/coaching-platform/pkg/metrics"
)

// MaxContentLength bounds one chat message in bytes.
const MaxContentLength = 100 * 1024

// TokenCallback is called for each token during streaming.
type TokenCallback func(token string, index int) error

// StreamCallbacks receive progress of a streamed turn.
type StreamCallbacks struct {
	// UserMessage is called once the user message is persisted.
	UserMessage func(conversationID string, msg *model.Message) error

	// Token is called for every generated token.
	Token TokenCallback
}

// TurnResult is the outcome of one chat turn. AssistantMessage is nil when
// the LLM call failed.
type TurnResult struct {
	ConversationID   string
	UserMessage      *model.Message
	AssistantMessage *model.Message
}

type completeFunc func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error)

// SendMessage runs one chat turn: it starts a conversation if none is
// active, persists the user message, asks the LLM with the full history and
// persists the reply.
//
// On an LLM failure the user message stays persisted and the returned state
// still carries the conversation id. If ctx is cancelled during the LLM call
// the reply is discarded.
func (c *Controller) SendMessage(ctx context.Context, state SessionState, content string) (SessionState, *TurnResult, error) {
	return c.turn(ctx, state, content, nil, c.llm.Complete)
}

// StreamMessage is SendMessage with tokens forwarded as they arrive.
func (c *Controller) StreamMessage(ctx context.Context, state SessionState, content string, cb StreamCallbacks) (SessionState, *TurnResult, error) {
	complete := func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return c.llm.CompleteStream(ctx, req, func(token string, index int) error {
			if cb.Token == nil {
				return nil
			}
			return cb.Token(token, index)
		})
	}
	return c.turn(ctx, state, content, cb.UserMessage, complete)
}

func (c *Controller) turn(
	ctx context.Context,
	state SessionState,
	content string,
	onUserMessage func(string, *model.Message) error,
	complete completeFunc,
) (SessionState, *TurnResult, error) {
	if err := validateContent(content); err != nil {
		return state, nil, err
	}

	profile, err := c.store.GetProfile(ctx, state.UserID)
	if err != nil {
		return state, nil, err
	}
	if profile == nil {
		state.HasProfile = false
		return state, nil, model.ErrNoProfile
	}
	state.HasProfile = true

	log := c.logger.With(zap.String("user_id", state.UserID))

	if state.ConversationID == "" {
		conversationID := c.newID()
		if _, err := c.store.UpsertSummary(ctx, state.UserID, conversationID, ""); err != nil {
			return state, nil, fmt.Errorf("failed to start conversation: %w", err)
		}
		state.ConversationID = conversationID
		metrics.ConversationsTotal.Inc()
		c.publish(ctx, state, &model.ConversationEvent{Type: model.EventTypeConversation})
		log.Info("Conversation started", zap.String("conversation_id", conversationID))
	}
	log = log.With(zap.String("conversation_id", state.ConversationID))

	result := &TurnResult{ConversationID: state.ConversationID}

	userMsg, err := c.store.AppendMessage(ctx, state.UserID, state.ConversationID, model.RoleUser, content, storage.AppendOptions{
		ConversationMetadata: profile.ConversationMetadata(),
	})
	if err != nil {
		return state, nil, fmt.Errorf("failed to save message: %w", err)
	}
	result.UserMessage = userMsg
	c.publish(ctx, state, messageEvent(userMsg))

	if onUserMessage != nil {
		if err := onUserMessage(state.ConversationID, userMsg); err != nil {
			return state, result, err
		}
	}

	conv, err := c.store.GetConversation(ctx, state.UserID, state.ConversationID)
	if err != nil {
		return state, result, fmt.Errorf("failed to load conversation: %w", err)
	}
	history := []model.Message{*userMsg}
	if conv != nil && len(conv.Messages) > 0 {
		history = conv.Messages
	}

	req := &llm.CompletionRequest{
		Model:        c.cfg.Model,
		SystemPrompt: buildSystemPrompt(c.cfg.SystemPrompt, profile),
		Messages:     chatMessages(history),
		MaxTokens:    c.cfg.MaxTokens,
		Temperature:  c.cfg.Temperature,
	}

	resp, err := complete(ctx, req)
	if ctx.Err() != nil {
		log.Info("Chat turn abandoned by client, reply discarded")
		return state, result, ctx.Err()
	}
	if err != nil {
		log.Error("LLM call failed", zap.Error(err))
		c.publish(ctx, state, &model.ConversationEvent{Type: model.EventTypeProviderError, Reason: err.Error()})
		return state, result, err
	}

	assistantMsg, err := c.store.AppendMessage(ctx, state.UserID, state.ConversationID, model.RoleAssistant, resp.Content, storage.AppendOptions{
		Metadata: resp.Metadata(),
	})
	if err != nil {
		return state, result, fmt.Errorf("failed to save reply: %w", err)
	}
	result.AssistantMessage = assistantMsg
	c.publish(ctx, state, messageEvent(assistantMsg))

	log.Debug("Chat turn completed",
		zap.Int("message_index", assistantMsg.Metadata.MessageIndex),
		zap.Int("tokens_out", resp.TokensOut),
	)
	return state, result, nil
}

func validateContent(content string) error {
	switch {
	case strings.TrimSpace(content) == "":
		return &model.PolicyViolationError{Reason: "message is empty", Fields: map[string]string{"content": "is required"}}
	case len(content) > MaxContentLength:
		return &model.PolicyViolationError{Reason: "message is too long", Fields: map[string]string{"content": "must be at most 100KB"}}
	}
	return nil
}

// chatMessages converts stored messages into LLM messages in order.
func chatMessages(messages []model.Message) []llm.ChatMessage {
	out := make([]llm.ChatMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case model.RoleUser, model.RoleAssistant:
			out = append(out, llm.ChatMessage{Role: m.Role, Content: m.Content})
		}
	}
	return out
}

func messageEvent(msg *model.Message) *model.ConversationEvent {
	return &model.ConversationEvent{
		Type:         model.EventTypeMessageAppended,
		Role:         msg.Role,
		MessageIndex: msg.Metadata.MessageIndex,
	}
}

// publish fills in the event identity and sends it. Failures are logged
// and never fail the turn.
func (c *Controller) publish(ctx context.Context, state SessionState, event *model.ConversationEvent) {
	if c.events == nil {
		return
	}

	event.ID = uuid.NewString()
	event.ConversationID = state.ConversationID
	event.UserID = state.UserID
	event.CreatedAt = c.now().UTC()

	result := "success"
	if _, err := c.events.PublishEvent(ctx, event); err != nil {
		result = "error"
		c.logger.Warn("Failed to publish conversation event",
			zap.String("type", string(event.Type)),
			zap.String("conversation_id", state.ConversationID),
			zap.Error(err),
		)
	}
	metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), result).Inc()
}

func newConversationID() string {
	return uuid.Must(uuid.NewV7()).String()
}
