// Package advisor answers free-form questions about a user's finances by
// sending a financial-context prompt to a text model.
package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/the-cash-must-flow/internal/common"
	"github.com/Veraticus/the-cash-must-flow/internal/model"
	"github.com/Veraticus/the-cash-must-flow/internal/service"
)

// Fixed replies.
const (
	ErrorReply          = "Sorry, I encountered an error processing your request. Please try again."
	NotInitializedReply = "I need to access your financial data first. Please wait while I initialize..."
)

// QueryType tags a question for the prompt and the history.
type QueryType string

// Query types.
const (
	QueryGeneral     QueryType = "general"
	QueryAnomalies   QueryType = "anomaly_detection"
	QueryInsights    QueryType = "insights"
	QueryForecasting QueryType = "forecasting"
	QuerySummary     QueryType = "summary"
)

// Default periods for the canned queries.
const (
	DefaultForecastPeriod = "next_month"
	DefaultSummaryPeriod  = "this_month"
)

// Exchange is one answered question.
type Exchange struct {
	Timestamp time.Time `json:"timestamp"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Type      QueryType `json:"type"`
}

type userContext struct {
	loadedAt     time.Time
	userID       string
	transactions []model.Transaction
	categories   []model.Category
}

// Agent keeps one user's financial context and conversation history.
type Agent struct {
	now          func() time.Time
	transactions service.TransactionSource
	categories   service.CategorySource
	model        service.TextModel
	prompts      *PromptBuilder
	logger       *slog.Logger
	user         *userContext
	history      []Exchange
	mu           sync.Mutex
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the agent's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = common.LoggerOrDefault(logger)
	}
}

// WithClock sets the clock used to timestamp exchanges.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		if now != nil {
			a.now = now
		}
	}
}

// New creates an Agent. textModel may be nil, in which case every question
// is answered with ErrorReply and Narrative uses the template insights.
func New(transactions service.TransactionSource, categories service.CategorySource, textModel service.TextModel, prompts *PromptBuilder, opts ...Option) *Agent {
	a := &Agent{
		transactions: transactions,
		categories:   categories,
		model:        textModel,
		prompts:      prompts,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Initialize loads the user's transactions and categories.
func (a *Agent) Initialize(ctx context.Context, userID string) error {
	var txns []model.Transaction
	var categories []model.Category

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txns, err = a.transactions.GetAllTransactions(gctx, userID)
		if err != nil {
			return fmt.Errorf("loading transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		categories, err = a.categories.GetCategories(gctx, userID)
		if err != nil {
			return fmt.Errorf("loading categories: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		a.logger.Warn("failed to initialize advisor", "user", userID, "error", err)
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.user = &userContext{
		userID:       userID,
		transactions: txns,
		categories:   categories,
		loadedAt:     a.now(),
	}
	a.logger.Debug("advisor initialized",
		"user", userID,
		"transactions", len(txns),
		"categories", len(categories))
	return nil
}

// Initialized reports whether Initialize has succeeded.
func (a *Agent) Initialized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user != nil
}

// Ask answers query. Failures are logged and answered with ErrorReply;
// only successful exchanges are kept in the history.
func (a *Agent) Ask(ctx context.Context, query string, typ QueryType) string {
	if typ == "" {
		typ = QueryGeneral
	}

	a.mu.Lock()
	user := a.user
	history := append([]Exchange(nil), a.history...)
	a.mu.Unlock()

	if user == nil {
		return NotInitializedReply
	}

	prompt, err := a.prompts.BuildContextPrompt(NewContextData(user.transactions, user.categories, history, query, typ))
	if err != nil {
		a.logger.Warn("failed to build advisor prompt", "error", err)
		return ErrorReply
	}

	response, err := a.complete(ctx, prompt)
	if err != nil {
		a.logger.Warn("advisor query failed", "type", typ, "error", err)
		return ErrorReply
	}

	a.mu.Lock()
	a.history = append(a.history, Exchange{
		Query:     query,
		Response:  response,
		Timestamp: a.now(),
		Type:      typ,
	})
	a.mu.Unlock()

	return response
}

func (a *Agent) complete(ctx context.Context, prompt string) (string, error) {
	if a.model == nil {
		return "", common.ErrTextModelUnavailable
	}
	response, err := a.model.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	response = strings.TrimSpace(response)
	if response == "" {
		return "", fmt.Errorf("%w: empty response", common.ErrTextModelUnavailable)
	}
	return response, nil
}

// ReviewAnomalies asks for unusual spending patterns.
func (a *Agent) ReviewAnomalies(ctx context.Context) string {
	return a.Ask(ctx, "Analyze my transactions and identify any unusual spending patterns, large expenses, or anomalies that I should be aware of.", QueryAnomalies)
}

// Insights asks for five key financial insights.
func (a *Agent) Insights(ctx context.Context) string {
	return a.Ask(ctx, "Provide 5 key financial insights based on my spending patterns, including recommendations for improvement.", QueryInsights)
}

// ForecastExpenses asks for a per-category expense forecast for period.
func (a *Agent) ForecastExpenses(ctx context.Context, period string) string {
	if period == "" {
		period = DefaultForecastPeriod
	}
	return a.Ask(ctx, fmt.Sprintf("Based on my historical spending patterns, forecast my expenses for the %s. Break it down by category and provide reasoning.", period), QueryForecasting)
}

// Summary asks for a financial summary of period.
func (a *Agent) Summary(ctx context.Context, period string) string {
	if period == "" {
		period = DefaultSummaryPeriod
	}
	return a.Ask(ctx, fmt.Sprintf("Provide a comprehensive financial summary for %s, including income, expenses, top categories, and key trends.", period), QuerySummary)
}

// History returns a copy of the conversation so far.
func (a *Agent) History() []Exchange {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Exchange(nil), a.history...)
}

// ClearHistory forgets the conversation.
func (a *Agent) ClearHistory() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
}

// Narrative turns a weekly summary into prose. Without a working text model
// it returns the summary's template insights, one per line. Narratives are
// not added to the conversation history.
func (a *Agent) Narrative(ctx context.Context, summary *model.WeeklySummary) string {
	if summary == nil {
		return ""
	}

	prompt, err := a.prompts.BuildNarrativePrompt(summary)
	if err == nil {
		var text string
		text, err = a.complete(ctx, prompt)
		if err == nil {
			return text
		}
	}
	a.logger.Warn("using template insights for weekly narrative", "error", err)

	lines := make([]string, 0, len(summary.Insights))
	for _, in := range summary.Insights {
		lines = append(lines, in.Text)
	}
	return strings.Join(lines, "\n")
}
