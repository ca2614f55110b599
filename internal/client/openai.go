package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-4o"

// LLM generates text from a system and a user prompt.
type LLM interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// OpenAIConfig configures NewOpenAIClient.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	Retry   RetryPolicy
	Breaker Breaker
}

// OpenAIClient implements LLM on the chat completions API.
type OpenAIClient struct {
	client  openai.Client
	model   string
	timeout time.Duration
	retry   RetryPolicy
	breaker Breaker
}

// NewOpenAIClient builds an LLM client. The SDK's own retries are disabled;
// retries follow cfg.Retry like the other upstreams.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: OpenAI key is required", ErrInvalidAPIKey)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		retry:   cfg.Retry,
		breaker: cfg.Breaker,
	}, nil
}

// Generate sends one chat completion and returns the first choice's content.
func (c *OpenAIClient) Generate(ctx context.Context, system, user string) (string, error) {
	var content string
	err := retry(ctx, UpstreamOpenAI, c.retry, c.breaker, func(ctx context.Context) error {
		var err error
		content, err = c.complete(ctx, system, user)
		return err
	})
	return content, err
}

func (c *OpenAIClient) complete(ctx context.Context, system, user string) (string, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var messages []openai.ChatCompletionMessageParamUnion
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(user))

	resp, err := c.client.Chat.Completions.New(reqCtx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			observe(UpstreamOpenAI, statusLabel(apiErr.StatusCode), start)
			return "", mapOpenAIStatus(apiErr.StatusCode, err)
		}
		observe(UpstreamOpenAI, "error", start)
		return "", wrapTransportError(err)
	}
	observe(UpstreamOpenAI, "success", start)

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no completions returned", ErrNoResults)
	}
	return resp.Choices[0].Message.Content, nil
}

func mapOpenAIStatus(status int, err error) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrInvalidAPIKey, err)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	case status >= 500:
		return fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	default:
		return fmt.Errorf("openai request failed: %w", err)
	}
}
