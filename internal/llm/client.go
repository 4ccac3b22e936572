package llm

import (
	"context"
	"time"
)

// Client defines the interface for raw text-generation providers.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config holds provider settings.
type Config struct {
	Provider     string
	APIKey       string
	Model        string
	BaseURL      string
	SystemPrompt string
	MaxRetries   int
	RetryDelay   time.Duration
	CacheTTL     time.Duration
	RateLimit    int
	Temperature  float64
	MaxTokens    int
}

// DefaultSystemPrompt frames every request as small-business finance advice.
const DefaultSystemPrompt = "You are a financial advisor for a small business owner. " +
	"Answer using the financial data provided. Be concise and practical."

func (cfg Config) systemPrompt() string {
	if cfg.SystemPrompt == "" {
		return DefaultSystemPrompt
	}
	return cfg.SystemPrompt
}

func (cfg Config) temperature() float64 {
	if cfg.Temperature == 0 {
		return 0.3
	}
	return cfg.Temperature
}

func (cfg Config) maxTokens() int {
	if cfg.MaxTokens == 0 {
		return 1024
	}
	return cfg.MaxTokens
}
