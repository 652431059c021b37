package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/archpal/coaching-platform/internal/model"
)

const defaultGeminiModel = "gemini-1.5-flash"

// GeminiClient is the Google Gemini LLM client.
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("Gemini API key is required")
	}

	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

// Close releases the underlying client.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// Name returns the provider name.
func (c *GeminiClient) Name() string {
	return "gemini"
}

// Models returns available models.
func (c *GeminiClient) Models() []string {
	return []string{
		"gemini-1.5-flash",
		"gemini-1.5-pro",
		"gemini-2.0-flash",
	}
}

// chat prepares a chat session whose history holds every message but the
// last, which is returned as the parts to send.
func (c *GeminiClient) chat(req *CompletionRequest) (*genai.ChatSession, []genai.Part, string, error) {
	name := req.Model
	if name == "" {
		name = defaultGeminiModel
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	if len(req.Messages) == 0 {
		return nil, nil, "", errors.New("no messages to send")
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != model.RoleUser {
		return nil, nil, "", fmt.Errorf("last message has role %q, want user", last.Role)
	}

	gm := c.client.GenerativeModel(name)
	gm.SetTemperature(float32(req.Temperature))
	gm.SetMaxOutputTokens(int32(maxTokens))
	if req.SystemPrompt != "" {
		gm.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemPrompt)},
		}
	}

	history := make([]*genai.Content, 0, len(req.Messages)-1)
	for _, msg := range req.Messages[:len(req.Messages)-1] {
		var role string
		switch msg.Role {
		case model.RoleUser:
			role = "user"
		case model.RoleAssistant:
			role = "model"
		default:
			return nil, nil, "", fmt.Errorf("unsupported role %q", msg.Role)
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}

	session := gm.StartChat()
	session.History = history
	return session, []genai.Part{genai.Text(last.Content)}, name, nil
}

// Complete sends a completion request.
func (c *GeminiClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	session, parts, name, err := c.chat(req)
	if err != nil {
		return nil, providerError(c.Name(), err)
	}

	resp, err := session.SendMessage(ctx, parts...)
	if err != nil {
		return nil, providerError(c.Name(), err)
	}

	text, stopReason := geminiText(resp)
	if text == "" {
		return nil, providerError(c.Name(), errors.New("empty response"))
	}

	out := &CompletionResponse{
		Content:    text,
		Model:      name,
		StopReason: stopReason,
		LatencyMs:  time.Since(start).Milliseconds(),
	}
	if resp.UsageMetadata != nil {
		out.TokensIn = int(resp.UsageMetadata.PromptTokenCount)
		out.TokensOut = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

// CompleteStream sends a streaming completion request.
func (c *GeminiClient) CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error) {
	start := time.Now()

	session, parts, name, err := c.chat(req)
	if err != nil {
		return nil, providerError(c.Name(), err)
	}

	iter := session.SendMessageStream(ctx, parts...)
	out := &CompletionResponse{Model: name}
	if err := c.collectStream(iter.Next, callback, out); err != nil {
		return nil, err
	}
	out.LatencyMs = time.Since(start).Milliseconds()
	return out, nil
}

// collectStream drains next into out, passing each text chunk to callback.
// A stream that carries no text is a provider error.
func (c *GeminiClient) collectStream(next func() (*genai.GenerateContentResponse, error), callback StreamCallback, out *CompletionResponse) error {
	var content strings.Builder
	index := 0

	for {
		resp, err := next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return providerError(c.Name(), err)
		}

		text, stopReason := geminiText(resp)
		if text != "" {
			content.WriteString(text)
			if err := callback(text, index); err != nil {
				return err
			}
			index++
		}
		if stopReason != "" {
			out.StopReason = stopReason
		}
		if resp.UsageMetadata != nil {
			out.TokensIn = int(resp.UsageMetadata.PromptTokenCount)
			out.TokensOut = int(resp.UsageMetadata.CandidatesTokenCount)
		}
	}

	if content.Len() == 0 {
		return providerError(c.Name(), errors.New("empty response"))
	}
	out.Content = content.String()
	return nil
}

func geminiText(resp *genai.GenerateContentResponse) (string, string) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ""
	}
	cand := resp.Candidates[0]

	var stopReason string
	if cand.FinishReason != genai.FinishReasonUnspecified {
		stopReason = cand.FinishReason.String()
	}
	if cand.Content == nil {
		return "", stopReason
	}

	var text strings.Builder
	for _, part := range cand.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}
	return text.String(), stopReason
}
