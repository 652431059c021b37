// Package service implements the coaching session flow on top of the
// storage layer and the LLM client.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/archpal/coaching-platform/internal/llm"
	"github.com/archpal/coaching-platform/internal/model"
	"github.com/archpal/coaching-platform/internal/objectstore"
	"github.com/archpal/coaching-platform/internal/storage"
	"github.com/archpal/coaching-platform/pkg/logger"
)

// MaxTitleLength bounds user supplied conversation titles.
const MaxTitleLength = 256

// Store is the persistence the controller needs. *storage.Store implements it.
type Store interface {
	GetProfile(ctx context.Context, userID string) (*model.UserProfile, error)
	SaveProfile(ctx context.Context, userID string, profile model.UserProfile) (*model.UserProfile, error)

	ListSummaries(ctx context.Context, userID string, limit int) ([]model.ConversationSummary, error)
	GetSummary(ctx context.Context, userID, conversationID string) (*model.ConversationSummary, error)
	UpsertSummary(ctx context.Context, userID, conversationID, title string) (*model.ConversationSummary, error)
	RenameSummary(ctx context.Context, userID, conversationID, title string) (bool, error)

	GetConversation(ctx context.Context, userID, conversationID string) (*model.Conversation, error)
	AppendMessage(ctx context.Context, userID, conversationID string, role model.Role, content string, opts storage.AppendOptions) (*model.Message, error)
}

var _ Store = (*storage.Store)(nil)

// EventPublisher receives conversation events. *nats.StreamManager
// implements it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error)
}

// Config configures a Controller.
type Config struct {
	SystemPrompt string
	Model        string
	MaxTokens    int
	Temperature  float64
	HistoryLimit int
}

// Controller runs the session state machine. It holds no per-session
// state; callers pass the SessionState in and store the returned one.
type Controller struct {
	store    Store
	llm      llm.Client
	events   EventPublisher
	cfg      Config
	validate *validator.Validate
	logger   *logger.Logger
	now      func() time.Time
	newID    func() string
}

// NewController creates a new controller. events may be nil.
func NewController(store Store, llmClient llm.Client, events EventPublisher, cfg Config, log *logger.Logger) *Controller {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 5
	}
	if log == nil {
		log = logger.Global()
	}
	return &Controller{
		store:    store,
		llm:      llmClient,
		events:   events,
		cfg:      cfg,
		validate: newValidator(),
		logger:   log,
		now:      time.Now,
		newID:    newConversationID,
	}
}

// Login starts a session for an authenticated identity. The phase is
// decided by whether a profile was saved before.
func (c *Controller) Login(ctx context.Context, userID, email string) (SessionState, *model.UserProfile, error) {
	state := SessionState{UserID: userID, Email: email}

	profile, err := c.store.GetProfile(ctx, userID)
	if err != nil {
		return state, nil, err
	}
	state.HasProfile = profile != nil

	c.logger.Info("Session started",
		zap.String("user_id", userID),
		zap.Bool("has_profile", state.HasProfile),
	)
	return state, profile, nil
}

// Profile returns the stored profile, or nil when none exists.
func (c *Controller) Profile(ctx context.Context, state SessionState) (*model.UserProfile, error) {
	return c.store.GetProfile(ctx, state.UserID)
}

// SaveProfile validates and stores the profile form.
func (c *Controller) SaveProfile(ctx context.Context, state SessionState, req model.ProfileRequest) (SessionState, *model.UserProfile, error) {
	if err := c.validateProfile(&req); err != nil {
		return state, nil, err
	}

	profile, err := c.store.SaveProfile(ctx, state.UserID, model.UserProfile{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		CollegeYear:  model.CollegeYear(req.CollegeYear),
		Major:        req.Major,
		CourseNumber: req.CourseNumber,
	})
	if err != nil {
		return state, nil, err
	}

	state.HasProfile = true
	return state, profile, nil
}

// NewConversation clears the active conversation. The next chat message
// starts a new one.
func (c *Controller) NewConversation(state SessionState) SessionState {
	state.ConversationID = ""
	return state
}

// ListConversations returns the most recently updated conversations. A
// limit of zero or less uses the configured history limit.
func (c *Controller) ListConversations(ctx context.Context, state SessionState, limit int) (*model.ListConversationsResponse, error) {
	if limit <= 0 {
		limit = c.cfg.HistoryLimit
	}

	summaries, err := c.store.ListSummaries(ctx, state.UserID, limit)
	if err != nil {
		return nil, err
	}
	return &model.ListConversationsResponse{
		Conversations: summaries,
		ActiveID:      state.ConversationID,
	}, nil
}

// GetConversation loads a conversation without changing the session.
func (c *Controller) GetConversation(ctx context.Context, state SessionState, conversationID string) (*model.Conversation, error) {
	return c.loadConversation(ctx, state.UserID, conversationID)
}

// SelectConversation loads a conversation and makes it the active one.
// Messages are returned in their original order.
func (c *Controller) SelectConversation(ctx context.Context, state SessionState, conversationID string) (SessionState, *model.Conversation, error) {
	conv, err := c.loadConversation(ctx, state.UserID, conversationID)
	if err != nil {
		return state, nil, err
	}

	state.ConversationID = conversationID
	return state, conv, nil
}

// loadConversation returns the document, or an empty conversation when the
// index lists it but no message was written yet. It returns
// objectstore.ErrNotFound when neither exists.
func (c *Controller) loadConversation(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	if err := objectstore.ValidateID(conversationID); err != nil {
		return nil, objectstore.ErrNotFound
	}

	conv, err := c.store.GetConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}

	summary, err := c.store.GetSummary(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, objectstore.ErrNotFound
	}

	return &model.Conversation{
		ConversationID: conversationID,
		UserID:         userID,
		CreatedAt:      summary.CreatedAt,
		LastUpdated:    summary.LastUpdated,
		Messages:       []model.Message{},
	}, nil
}

// RenameConversation changes the title shown in the history list.
func (c *Controller) RenameConversation(ctx context.Context, state SessionState, conversationID, title string) error {
	title = strings.TrimSpace(title)
	switch {
	case title == "":
		return &model.PolicyViolationError{Reason: "title is required", Fields: map[string]string{"title": "is required"}}
	case len(title) > MaxTitleLength:
		return &model.PolicyViolationError{Reason: "title is too long", Fields: map[string]string{"title": "must be at most 256 characters"}}
	}
	if err := objectstore.ValidateID(conversationID); err != nil {
		return objectstore.ErrNotFound
	}

	ok, err := c.store.RenameSummary(ctx, state.UserID, conversationID, title)
	if err != nil {
		return err
	}
	if !ok {
		return objectstore.ErrNotFound
	}
	return nil
}
