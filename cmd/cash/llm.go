package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/the-cash-must-flow/internal/common"
	"github.com/Veraticus/the-cash-must-flow/internal/llm"
)

// llmConfig builds the text model configuration from viper settings,
// falling back to the provider's environment variable for the API key.
func llmConfig(v *viper.Viper) (llm.Config, error) {
	provider := v.GetString("llm.provider")
	if provider == "" {
		provider = "anthropic"
	}

	cfg := llm.Config{
		Provider:    provider,
		Model:       v.GetString("llm.model"),
		BaseURL:     v.GetString("llm.base_url"),
		Temperature: v.GetFloat64("llm.temperature"),
		MaxTokens:   v.GetInt("llm.max_tokens"),
		MaxRetries:  v.GetInt("llm.max_retries"),
		RetryDelay:  v.GetDuration("llm.retry_delay"),
		CacheTTL:    v.GetDuration("llm.cache_ttl"),
		RateLimit:   v.GetInt("llm.rate_limit"),
	}

	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 60 // requests per minute
	}

	var keyName, envName string
	switch provider {
	case "anthropic":
		keyName, envName = "llm.anthropic_api_key", "ANTHROPIC_API_KEY"
	case "openai":
		keyName, envName = "llm.openai_api_key", "OPENAI_API_KEY"
	case "gemini":
		keyName, envName = "llm.gemini_api_key", "GEMINI_API_KEY"
	default:
		return llm.Config{}, fmt.Errorf("%w: unsupported LLM provider: %s", common.ErrInvalidConfig, provider)
	}

	cfg.APIKey = v.GetString(keyName)
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(envName)
	}
	if cfg.APIKey == "" {
		return llm.Config{}, fmt.Errorf("%w: %s API key not found in config or %s environment variable",
			common.ErrMissingConfig, provider, envName)
	}

	return cfg, nil
}

// createTextModel returns the configured text model.
func createTextModel(ctx context.Context) (*llm.TextModel, error) {
	cfg, err := llmConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}

	model, err := llm.New(ctx, cfg, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to create text model: %w", err)
	}
	return model, nil
}
