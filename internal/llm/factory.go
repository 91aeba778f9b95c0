package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// NewClient creates a rate-limited LLM client for the configured provider.
func NewClient(ctx context.Context, cfg Config) (*RateLimitedClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		client Client
		err    error
	)
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		client, err = newOpenAIClient(cfg)
	case "anthropic":
		client, err = newAnthropicClient(cfg)
	case "gemini":
		client, err = newGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewRateLimitedClient(client, cfg.RateLimit), nil
}

// RateLimitedClient wraps a Client with a token bucket.
type RateLimitedClient struct {
	client  Client
	limiter *rateLimiter
}

// NewRateLimitedClient wraps client so that at most requestsPerMinute calls start per minute.
func NewRateLimitedClient(client Client, requestsPerMinute int) *RateLimitedClient {
	return &RateLimitedClient{
		client:  client,
		limiter: newRateLimiter(requestsPerMinute),
	}
}

// Complete waits for a token and forwards the request.
func (c *RateLimitedClient) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	if err := c.limiter.wait(ctx); err != nil {
		return "", err
	}
	return c.client.Complete(ctx, systemPrompt, prompt)
}

// Close stops the limiter's refill goroutine.
func (c *RateLimitedClient) Close() {
	c.limiter.Close()
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
