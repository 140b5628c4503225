// ABOUTME: Chat-completion client backed by github.com/sashabaranov/go-openai
// ABOUTME: Sends one request per call with no retry and maps the reply to store messages

package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/2389/kirogpt/internal/store"
)

// DefaultModel is the model used when none is configured.
const DefaultModel = openai.GPT3Dot5Turbo

// ErrEmptyChoices is returned when the service answers with no choices.
var ErrEmptyChoices = errors.New("completion response has no choices")

// Request is a chat-completion request.
type Request struct {
	Model    string
	Messages []store.ChatMessage
}

// Choice is one candidate answer.
type Choice struct {
	Index        int
	Message      store.ChatMessage
	FinishReason string
}

// Usage reports token accounting for a call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is a chat-completion response.
type Response struct {
	ID      string
	Object  string
	Created int64
	Choices []Choice
	Usage   Usage
}

// Reply returns the content of the last choice.
func (r *Response) Reply() (string, error) {
	if len(r.Choices) == 0 {
		return "", ErrEmptyChoices
	}
	return r.Choices[len(r.Choices)-1].Message.Content, nil
}

// Config configures the client.
type Config struct {
	APIKey  string
	BaseURL string // empty uses the OpenAI default
	Model   string // empty uses DefaultModel
}

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	api    *openai.Client
	model  string
	logger *slog.Logger
}

// New creates a completion client.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Client{
		api:    openai.NewClientWithConfig(oc),
		model:  model,
		logger: logger.With("component", "completion"),
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete issues a single chat-completion call. An empty req.Model uses the
// client's configured model.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	c.logger.Debug("requesting completion", "model", model, "messages", len(msgs))

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat completion: %w", err)
	}

	out := &Response{
		ID:      resp.ID,
		Object:  resp.Object,
		Created: resp.Created,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, ch := range resp.Choices {
		out.Choices = append(out.Choices, Choice{
			Index: ch.Index,
			Message: store.ChatMessage{
				Role:    store.Role(ch.Message.Role),
				Content: ch.Message.Content,
			},
			FinishReason: string(ch.FinishReason),
		})
	}

	c.logger.Debug("completion received",
		"id", out.ID,
		"choices", len(out.Choices),
		"prompt_tokens", out.Usage.PromptTokens,
		"completion_tokens", out.Usage.CompletionTokens,
		"total_tokens", out.Usage.TotalTokens,
	)

	return out, nil
}
