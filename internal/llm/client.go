// Package llm provides LLM client interfaces and implementations.
package llm

import (
	"context"
	"fmt"

	"github.com/archpal/coaching-platform/internal/model"
)

// StreamCallback is called for each token during streaming.
type StreamCallback func(token string, index int) error

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	Messages     []ChatMessage
	MaxTokens    int
	Temperature  float64
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    model.Role `json:"role"`
	Content string     `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Metadata converts the response into stored message metadata.
func (r *CompletionResponse) Metadata() model.MessageMetadata {
	return model.MessageMetadata{
		Model:      r.Model,
		TokensIn:   r.TokensIn,
		TokensOut:  r.TokensOut,
		LatencyMs:  r.LatencyMs,
		StopReason: r.StopReason,
	}
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// CompleteStream sends a streaming completion request.
	CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string

	// Models returns available models.
	Models() []string
}

// ProviderError wraps every failure of an LLM call. It matches
// model.ErrProvider with errors.Is.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, model.ErrProvider) true.
func (e *ProviderError) Is(target error) bool {
	return target == model.ErrProvider
}

func providerError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
)

// Valid reports whether p is a supported provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderAnthropic, ProviderOpenAI, ProviderGemini:
		return true
	}
	return false
}

// NewClient creates a new LLM client based on provider. The returned
// client records metrics and traces for every call.
func NewClient(ctx context.Context, provider Provider, apiKey string) (Client, error) {
	var (
		client Client
		err    error
	)
	switch provider {
	case ProviderAnthropic:
		client, err = NewAnthropicClient(apiKey)
	case ProviderOpenAI:
		client, err = NewOpenAIClient(apiKey)
	case ProviderGemini:
		client, err = NewGeminiClient(ctx, apiKey)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(client), nil
}
