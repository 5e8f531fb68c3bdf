// Package llm talks to an OpenAI-compatible chat completions endpoint and
// holds the prompts and response parsers of the model-backed capabilities.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dgallion1/docresearch/internal/retry"
	"github.com/go-resty/resty/v2"
)

// Config configures a Client.
type Config struct {
	BaseURL     string // Endpoint root, e.g. http://localhost:8000/v1.
	APIKey      string // Optional bearer token.
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	Retry       retry.Policy
}

// Client calls a chat completions API.
type Client struct {
	http  *resty.Client
	cfg   Config
	stats *Stats
	log   *slog.Logger
}

// NewClient creates a client. A nil logger discards output.
func NewClient(cfg Config, log *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	hc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		hc.SetAuthToken(cfg.APIKey)
	}

	return &Client{
		http:  hc,
		cfg:   cfg,
		stats: NewStats(time.Hour),
		log:   log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	MaxTokens   int           `json:"max_tokens"`
	Seed        int           `json:"seed"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error *apiError `json:"error"`
}

// Complete sends one system+user exchange and returns the reply text.
// Rate limits, server errors and transport failures are retried per the
// configured policy.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	op := operationFrom(ctx)
	policy := c.cfg.Retry
	policy.OnRetry = func(attempt int, err error) {
		c.log.Warn("retryable model error", "op", op, "attempt", attempt, "error", err)
	}

	start := time.Now()
	text, err := retry.Do(ctx, policy, IsRetryable, func(ctx context.Context) (string, error) {
		return c.complete(ctx, system, user)
	})
	c.stats.Record(op, time.Since(start).Milliseconds(), err)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return text, nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	var messages []chatMessage
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	var out chatResponse
	var apiErr errorEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:       c.cfg.Model,
			Messages:    messages,
			Temperature: c.cfg.Temperature,
			TopP:        1,
			MaxTokens:   c.cfg.MaxTokens,
			Seed:        1,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &RetryableError{Message: err.Error()}
	}

	status := resp.StatusCode()
	if status == http.StatusTooManyRequests || status >= 500 {
		return "", &RetryableError{StatusCode: status, Message: string(resp.Body())}
	}
	if resp.IsError() {
		if apiErr.Error != nil {
			return "", fmt.Errorf("model api status %d: %s: %s", status, apiErr.Error.Type, apiErr.Error.Message)
		}
		return "", fmt.Errorf("model api status %d: %s", status, truncate(string(resp.Body()), 200))
	}
	if out.Error != nil {
		return "", fmt.Errorf("model error: %s: %s", out.Error.Type, out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("empty response from model")
	}
	return out.Choices[0].Message.Content, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

// Stats returns the call latency tracker.
func (c *Client) Stats() *Stats { return c.stats }

// Close releases resources.
func (c *Client) Close() {
	c.http.GetClient().CloseIdleConnections()
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int // Zero for transport failures.
	Message    string
}

func (e *RetryableError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("retryable transport error: %s", truncate(e.Message, 200))
	}
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

type operationKey struct{}

// WithOperation labels model calls made with ctx for stats and logs.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

func operationFrom(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey{}).(string); ok && op != "" {
		return op
	}
	return "chat"
}

// truncate shortens s to at most n characters, appending "..." when cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
