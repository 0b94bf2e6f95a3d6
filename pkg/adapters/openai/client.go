// Package openai implements ports.TextGenerator against any
// OpenAI-compatible chat completions endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ravituringworks/agency/pkg/domain"
)

// DefaultBaseURL is the public OpenAI API.
const DefaultBaseURL = "https://api.openai.com/v1"

// ErrEmptyCompletion is returned when the endpoint answers without choices.
var ErrEmptyCompletion = errors.New("completion has no choices")

// Config configures the Client.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
	Temperature    *float64
	MaxTokens      int
	Timeout        time.Duration
	MaxRetries     int
	RetryWait      time.Duration
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Client talks to the completions and embeddings endpoints.
type Client struct {
	client *resty.Client
	cfg    Config
}

// New creates a Client. Server errors and 429s are retried.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RetryWait == 0 {
		cfg.RetryWait = 500 * time.Millisecond
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryWait).
		SetHeader("Content-Type", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == 429 || r.StatusCode() >= 500
		})
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &Client{client: client, cfg: cfg}
}

// Generate sends the conversation and returns the first choice's content.
func (c *Client) Generate(ctx context.Context, messages []domain.Message) (string, error) {
	body := chatRequest{
		Model:       c.cfg.Model,
		Messages:    make([]chatMessage, 0, len(messages)),
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	for _, m := range messages {
		body.Messages = append(body.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	var out chatResponse
	var apiErr apiError
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}
	if resp.IsError() {
		return "", statusError(resp, apiErr)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return out.Choices[0].Message.Content, nil
}

// Embed returns the embedding of text. Its signature matches
// chromem.EmbeddingFunc.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	model := c.cfg.EmbeddingModel
	if model == "" {
		model = "text-embedding-3-small"
	}

	var out embeddingResponse
	var apiErr apiError
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(embeddingRequest{Model: model, Input: text}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/embeddings")
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if resp.IsError() {
		return nil, statusError(resp, apiErr)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("embedding response has no data")
	}
	return out.Data[0].Embedding, nil
}

func statusError(resp *resty.Response, apiErr apiError) error {
	if apiErr.Error.Message != "" {
		return fmt.Errorf("llm endpoint returned %d: %s", resp.StatusCode(), apiErr.Error.Message)
	}
	return fmt.Errorf("llm endpoint returned %d", resp.StatusCode())
}
