// Package engine exposes the user-scoped forecasting, anomaly, recommendation
// and weekly summary entry points. Every method returns a safe default
// instead of an error; failures are logged.
package engine

import (
	"context"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"

	"github.com/Veraticus/the-cash-must-flow/internal/aggregate"
	"github.com/Veraticus/the-cash-must-flow/internal/anomaly"
	"github.com/Veraticus/the-cash-must-flow/internal/common"
	"github.com/Veraticus/the-cash-must-flow/internal/currency"
	"github.com/Veraticus/the-cash-must-flow/internal/model"
	"github.com/Veraticus/the-cash-must-flow/internal/predict"
	"github.com/Veraticus/the-cash-must-flow/internal/recommend"
	"github.com/Veraticus/the-cash-must-flow/internal/report"
	"github.com/Veraticus/the-cash-must-flow/internal/service"
)

// Data requirements for the forecast-driven recommendation path.
const (
	MinRecommendTransactions = 14
	MinRecommendPerType      = 5
)

// Config holds tunable engine defaults.
type Config struct {
	CurrencySymbol string
	LookbackDays   int
	HorizonDays    int
	LookaheadDays  int
	Sensitivity    float64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		CurrencySymbol: currency.DefaultSymbol,
		LookbackDays:   3653,
		HorizonDays:    30,
		LookaheadDays:  recommend.DefaultLookaheadDays,
		Sensitivity:    anomaly.DefaultSensitivity,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CurrencySymbol == "" {
		c.CurrencySymbol = d.CurrencySymbol
	}
	if c.LookbackDays <= 0 {
		c.LookbackDays = d.LookbackDays
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = d.HorizonDays
	}
	if c.LookaheadDays <= 0 {
		c.LookaheadDays = d.LookaheadDays
	}
	if c.Sensitivity <= 0 {
		c.Sensitivity = d.Sensitivity
	}
	return c
}

// Engine wires the transaction source to the analysis modules.
type Engine struct {
	transactions service.TransactionSource
	categories   service.CategorySource
	forecaster   *predict.Forecaster
	reports      *report.Generator
	logger       *slog.Logger
	today        func() civil.Date
	cfg          Config
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock fixes the engine's notion of today.
func WithClock(today func() civil.Date) Option {
	return func(e *Engine) {
		if today != nil {
			e.today = today
		}
	}
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = common.LoggerOrDefault(logger)
	}
}

// WithConfig overrides the defaults. Zero fields keep their default.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg.withDefaults()
	}
}

// New creates an Engine. categories may be nil.
func New(transactions service.TransactionSource, categories service.CategorySource, forecaster *predict.Forecaster, opts ...Option) *Engine {
	e := &Engine{
		transactions: transactions,
		categories:   categories,
		forecaster:   forecaster,
		logger:       slog.Default(),
		today:        func() civil.Date { return civil.DateOf(time.Now()) },
		cfg:          DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.reports = report.NewGenerator(e.cfg.CurrencySymbol)
	return e
}

func (e *Engine) history(ctx context.Context, userID string) ([]model.Transaction, error) {
	today := e.today()
	return e.transactions.GetTransactionsInRange(ctx, userID, today.AddDays(-e.cfg.LookbackDays), today)
}

// Forecast predicts days of typ amounts after today. days <= 0 uses the
// configured horizon.
func (e *Engine) Forecast(ctx context.Context, userID string, typ model.TransactionType, days int) predict.Forecast {
	if days <= 0 {
		days = e.cfg.HorizonDays
	}

	txns, err := e.history(ctx, userID)
	if err != nil {
		e.logger.Warn("failed to fetch transactions for forecast", "user", userID, "type", typ, "error", err)
		return predict.Forecast{
			Type:   typ,
			Status: predict.StatusFailed,
			Path:   predict.PathNone,
			Err:    err,
			Points: []model.PredictionPoint{},
		}
	}

	return e.forecast(ctx, txns, typ, days)
}

func (e *Engine) forecast(ctx context.Context, txns []model.Transaction, typ model.TransactionType, days int) predict.Forecast {
	series := aggregate.Daily(txns, typ)
	result := e.forecaster.Forecast(ctx, series, days, typ, e.today())

	e.logger.Debug("forecast complete",
		"type", typ,
		"points", len(series),
		"status", result.Status,
		"path", result.Path,
		"reason", result.Reason)
	return result
}

// DetectAnomalies flags unusual transactions. sensitivity <= 0 uses the default.
func (e *Engine) DetectAnomalies(ctx context.Context, userID string, sensitivity float64) []model.Anomaly {
	if sensitivity <= 0 {
		sensitivity = e.cfg.Sensitivity
	}

	txns, err := e.history(ctx, userID)
	if err != nil {
		e.logger.Warn("failed to fetch transactions for anomaly detection", "user", userID, "error", err)
		return []model.Anomaly{}
	}

	return anomaly.Detect(txns, sensitivity)
}

// RecommendPurchaseDays suggests up to three upcoming days with the best
// cash flow. lookahead <= 0 uses the configured default.
func (e *Engine) RecommendPurchaseDays(ctx context.Context, userID string, lookahead int) recommend.Result {
	if lookahead <= 0 {
		lookahead = e.cfg.LookaheadDays
	}
	empty := recommend.Result{Path: recommend.PathNone, Items: []model.Recommendation{}}

	txns, err := e.history(ctx, userID)
	if err != nil {
		e.logger.Warn("failed to fetch transactions for recommendations", "user", userID, "error", err)
		return empty
	}
	if len(txns) == 0 {
		return empty
	}

	historical := func(why string) recommend.Result {
		e.logger.Debug("using historical recommendations", "reason", why)
		return recommend.Result{
			Path:  recommend.PathHistorical,
			Items: recommend.Historical(txns, e.today()),
		}
	}

	incomeCount := len(model.FilterByType(txns, model.TransactionTypeIncome))
	expenseCount := len(model.FilterByType(txns, model.TransactionTypeExpense))
	switch {
	case len(txns) < MinRecommendTransactions:
		return historical("too few transactions")
	case incomeCount < MinRecommendPerType:
		return historical("too few income transactions")
	case expenseCount < MinRecommendPerType:
		return historical("too few expense transactions")
	}

	if !e.forecaster.Guard().Probe(ctx) {
		return historical("sequence runtime unavailable")
	}

	income := e.forecast(ctx, txns, model.TransactionTypeIncome, lookahead)
	expense := e.forecast(ctx, txns, model.TransactionTypeExpense, lookahead)
	if income.Empty() || expense.Empty() {
		return historical("forecast unavailable")
	}

	return recommend.Result{
		Path:  recommend.PathForecast,
		Items: recommend.FromForecasts(income, expense, e.cfg.CurrencySymbol),
	}
}

// WeeklySummary compares the current Sunday-Saturday week with the previous
// one. It returns nil when neither week has transactions.
func (e *Engine) WeeklySummary(ctx context.Context, userID string) *model.WeeklySummary {
	today := e.today()
	current := report.CurrentWeek(today)
	previous := report.PreviousWeek(today)

	currentTxns, err := e.transactions.GetTransactionsInRange(ctx, userID, current.Start, current.End)
	if err != nil {
		e.logger.Warn("failed to fetch current week", "user", userID, "error", err)
		return nil
	}
	previousTxns, err := e.transactions.GetTransactionsInRange(ctx, userID, previous.Start, previous.End)
	if err != nil {
		e.logger.Warn("failed to fetch previous week", "user", userID, "error", err)
		return nil
	}

	var categories []model.Category
	if e.categories != nil {
		categories, err = e.categories.GetCategories(ctx, userID)
		if err != nil {
			e.logger.Warn("failed to fetch categories, continuing without icons", "user", userID, "error", err)
			categories = nil
		}
	}

	return e.reports.Weekly(currentTxns, previousTxns, categories, current, previous)
}
