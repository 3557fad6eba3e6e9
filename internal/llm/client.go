package llm

import (
	"context"
	"time"
)

// Client is a single-turn text completion provider.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest is one prompt sent to a provider.
type CompletionRequest struct {
	System string
	Prompt string
}

// Config holds provider and verifier settings.
type Config struct {
	Provider       string
	APIKey         string
	Model          string
	BaseURL        string // Overrides the provider endpoint; used by tests and proxies
	ClaudeCodePath string
	MaxRetries     int
	RetryDelay     time.Duration
	CacheTTL       time.Duration
	Timeout        time.Duration
	RateLimit      int // Requests per minute
	Temperature    float64
	MaxTokens      int
}

func (c Config) temperature() float64 {
	if c.Temperature == 0 {
		return 0.1
	}
	return c.Temperature
}

func (c Config) maxTokens() int {
	if c.MaxTokens == 0 {
		return 1024
	}
	return c.MaxTokens
}

func (c Config) timeout() time.Duration {
	if c.Timeout == 0 {
		return 60 * time.Second
	}
	return c.Timeout
}
