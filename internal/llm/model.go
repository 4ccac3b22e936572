package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/the-cash-must-flow/internal/common"
	"github.com/Veraticus/the-cash-must-flow/internal/service"
)

// TextModel wraps a provider client with caching, rate limiting and retries.
type TextModel struct {
	client  Client
	cache   *responseCache
	limiter *rateLimiter
	logger  *slog.Logger
	retry   service.RetryOptions
}

var _ service.TextModel = (*TextModel)(nil)

// New builds the provider client named in cfg and wraps it.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*TextModel, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return Wrap(client, cfg, logger), nil
}

// Wrap layers caching, rate limiting and retries over an existing client.
func Wrap(client Client, cfg Config, logger *slog.Logger) *TextModel {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	return &TextModel{
		client:  client,
		cache:   newResponseCache(cfg.CacheTTL),
		limiter: newRateLimiter(cfg.RateLimit),
		logger:  common.LoggerOrDefault(logger),
		retry: service.RetryOptions{
			MaxAttempts:  maxRetries,
			InitialDelay: retryDelay,
			MaxDelay:     retryDelay * 16,
			Multiplier:   2.0,
		},
	}
}

// Complete returns the model's reply to prompt, serving repeats from cache.
func (m *TextModel) Complete(ctx context.Context, prompt string) (string, error) {
	if text, found := m.cache.get(prompt); found {
		m.logger.Debug("cache hit for prompt", "prompt_chars", len(prompt))
		return text, nil
	}

	var text string
	err := common.WithRetry(ctx, func() error {
		if err := m.limiter.wait(ctx); err != nil {
			return &common.RetryableError{Err: err, Retryable: false}
		}
		reply, err := m.client.Complete(ctx, prompt)
		if err != nil {
			return err
		}
		if strings.TrimSpace(reply) == "" {
			return errors.New("empty completion")
		}
		text = reply
		return nil
	}, m.retry)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrTextModelUnavailable, err)
	}

	m.cache.set(prompt, text)
	return text, nil
}
