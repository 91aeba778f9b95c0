package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultTimeout bounds a single completion request.
const DefaultTimeout = 30 * time.Second

// Client defines the interface for LLM providers.
type Client interface {
	// Complete sends one system and user prompt pair and returns the raw model text.
	Complete(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// Config holds language model settings.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	RateLimit   int
	Timeout     time.Duration
}

// Validate ensures the provider is known and has credentials.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Provider) {
	case "openai", "anthropic", "gemini":
	case "":
		return fmt.Errorf("llm provider is required")
	default:
		return fmt.Errorf("unsupported LLM provider: %s", c.Provider)
	}
	if c.APIKey == "" {
		return fmt.Errorf("%s API key is required", c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max tokens must not be negative")
	}
	return nil
}

func (c *Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func (c *Config) temperature() float64 {
	if c.Temperature == 0 {
		return 0.2
	}
	return c.Temperature
}

func (c *Config) maxTokens() int {
	if c.MaxTokens == 0 {
		return 4096
	}
	return c.MaxTokens
}
