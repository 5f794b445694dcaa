// Package openai implements the oracle against any OpenAI-compatible chat
// completions endpoint (OpenAI, OpenRouter, Ollama, vLLM, ...).
package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/crimson-sun/whistle/internal/oracle"
)

const defaultTimeout = 30 * time.Second

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each completion call. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithJSONMode toggles the response_format=json_object request field.
// Some OpenAI-compatible servers reject it. Default: on.
func WithJSONMode(on bool) Option {
	return func(c *Client) { c.jsonMode = on }
}

// Client is an oracle.Oracle backed by go-openai.
type Client struct {
	api      *goopenai.Client
	model    string
	timeout  time.Duration
	jsonMode bool
}

// New creates a Client. An empty baseURL uses the OpenAI default.
func New(baseURL, apiKey, model string, opts ...Option) *Client {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	c := &Client{
		api:      goopenai.NewClientWithConfig(cfg),
		model:    model,
		timeout:  defaultTimeout,
		jsonMode: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends one chat completion and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, req oracle.Request) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	chatReq := goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: oracle.SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: oracle.BuildUserPrompt(req)},
		},
		Temperature: 0,
	}
	if c.jsonMode {
		chatReq.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", oracle.ErrEmptyResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", oracle.ErrEmptyResponse
	}
	return content, nil
}
