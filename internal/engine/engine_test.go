package engine

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-cash-must-flow/internal/model"
	"github.com/Veraticus/the-cash-must-flow/internal/predict"
	"github.com/Veraticus/the-cash-must-flow/internal/recommend"
	"github.com/Veraticus/the-cash-must-flow/internal/service"
	"github.com/Veraticus/the-cash-must-flow/internal/testutil"
)

var today = civil.Date{Year: 2024, Month: 3, Day: 31}

type lastValue struct{}

func (lastValue) Next(window []float64) (float64, error) {
	return window[len(window)-1], nil
}

type stubBackend struct {
	probeErr error
	fitErr   error
	fits     int
}

func (s *stubBackend) Probe() error { return s.probeErr }

func (s *stubBackend) Fit(_ context.Context, _ [][]float64, _ []float64, _ predict.TrainOptions) (predict.Regressor, error) {
	s.fits++
	if s.fitErr != nil {
		return nil, s.fitErr
	}
	return lastValue{}, nil
}

type failingSource struct{}

func (failingSource) GetTransactionsInRange(context.Context, string, civil.Date, civil.Date) ([]model.Transaction, error) {
	return nil, errors.New("database is locked")
}

func (failingSource) GetAllTransactions(context.Context, string) ([]model.Transaction, error) {
	return nil, errors.New("database is locked")
}

func (failingSource) GetCategories(context.Context, string) ([]model.Category, error) {
	return nil, errors.New("database is locked")
}

func newTestForecaster(flags service.FlagStore, backend predict.Backend) *predict.Forecaster {
	pctx := predict.NewPredictorContext(flags, nil)
	guard := predict.NewGuard(pctx, backend, predict.Environment{})
	return predict.NewForecaster(guard, predict.NewSequencePredictor(backend, predict.TrainOptions{Epochs: 1}, nil), nil)
}

func newTestEngine(t *testing.T, store service.Storage, backend predict.Backend) *Engine {
	t.Helper()
	return New(store, store, newTestForecaster(store, backend), WithClock(func() civil.Date { return today }))
}

// twentyDays returns twenty days of income and expense ending the day before today.
func twentyDays() []model.Transaction {
	return testutil.NewTxnBuilder().
		Daily(model.TransactionTypeIncome, "2024-03-11", "Sales", testutil.Ramp(500, 1, 20)...).
		Daily(model.TransactionTypeExpense, "2024-03-11", "Supplies", testutil.Ramp(100, 1, 20)...).
		Build()
}

func TestDefaultConfig(t *testing.T) {
	cfg := Config{LookbackDays: 90}.withDefaults()
	assert.Equal(t, 90, cfg.LookbackDays)
	assert.Equal(t, 30, cfg.HorizonDays)
	assert.Equal(t, recommend.DefaultLookaheadDays, cfg.LookaheadDays)
	assert.NotEmpty(t, cfg.CurrencySymbol)
	assert.Greater(t, cfg.Sensitivity, 0.0)
}

func TestForecast(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		txns       []model.Transaction
		typ        model.TransactionType
		days       int
		wantStatus predict.Status
		wantPath   predict.Path
		wantPoints int
	}{
		{
			name:       "sequence model with full history",
			txns:       twentyDays(),
			typ:        model.TransactionTypeIncome,
			days:       7,
			wantStatus: predict.StatusSuccess,
			wantPath:   predict.PathSequenceModel,
			wantPoints: 7,
		},
		{
			name:       "default horizon",
			txns:       twentyDays(),
			typ:        model.TransactionTypeExpense,
			days:       0,
			wantStatus: predict.StatusSuccess,
			wantPath:   predict.PathSequenceModel,
			wantPoints: 30,
		},
		{
			name: "short history uses fallback",
			txns: testutil.NewTxnBuilder().
				Daily(model.TransactionTypeExpense, "2024-03-20", "Supplies", 10, 20, 30, 40).
				Build(),
			typ:        model.TransactionTypeExpense,
			days:       5,
			wantStatus: predict.StatusSuccess,
			wantPath:   predict.PathFallback,
			wantPoints: 5,
		},
		{
			name:       "no history",
			typ:        model.TransactionTypeIncome,
			days:       5,
			wantStatus: predict.StatusInsufficientData,
			wantPath:   predict.PathNone,
			wantPoints: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t, tt.txns)
			e := newTestEngine(t, db.Storage, &stubBackend{})

			got := e.Forecast(ctx, testutil.TestUserID, tt.typ, tt.days)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantPath, got.Path)
			assert.Len(t, got.Points, tt.wantPoints)
			for i, p := range got.Points {
				assert.Equal(t, today.AddDays(i+1), p.Date)
				assert.Equal(t, tt.typ, p.Type)
			}
		})
	}
}

func TestForecastSourceError(t *testing.T) {
	e := New(failingSource{}, failingSource{}, newTestForecaster(nil, &stubBackend{}))

	got := e.Forecast(context.Background(), "u", model.TransactionTypeIncome, 7)
	assert.Equal(t, predict.StatusFailed, got.Status)
	assert.Equal(t, predict.PathNone, got.Path)
	require.Error(t, got.Err)
	assert.NotNil(t, got.Points)
	assert.Empty(t, got.Points)
}

func TestForecastOnlyCountsHistoryWindow(t *testing.T) {
	txns := testutil.NewTxnBuilder().
		Daily(model.TransactionTypeExpense, "2010-01-01", "Supplies", 10, 20, 30, 40).
		Build()
	db := testutil.SetupTestDB(t, txns)
	e := newTestEngine(t, db.Storage, &stubBackend{})

	got := e.Forecast(context.Background(), testutil.TestUserID, model.TransactionTypeExpense, 5)
	assert.Equal(t, predict.StatusInsufficientData, got.Status)
}

func TestDetectAnomalies(t *testing.T) {
	ctx := context.Background()
	b := testutil.NewTxnBuilder().
		Daily(model.TransactionTypeExpense, "2024-03-01", "Supplies", 100, 100, 100, 100, 100, 100, 100, 100, 100, 100)
	b.Expense("2024-03-20", 1000, "Supplies").Described("Forklift repair")
	db := testutil.SetupTestDB(t, b.Build())
	e := newTestEngine(t, db.Storage, &stubBackend{})

	got := e.DetectAnomalies(ctx, testutil.TestUserID, 0)
	require.Len(t, got, 1)
	assert.Equal(t, 1000.0, got[0].Amount)
	assert.Equal(t, "Forklift repair", got[0].Description)

	assert.Empty(t, e.DetectAnomalies(ctx, testutil.TestUserID, 10))

	failing := New(failingSource{}, nil, newTestForecaster(nil, &stubBackend{}))
	got = failing.DetectAnomalies(ctx, "u", 2)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRecommendPurchaseDays(t *testing.T) {
	ctx := context.Background()

	sparse := testutil.NewTxnBuilder().
		Income("2024-03-04", 900, "Sales").
		Income("2024-03-11", 900, "Sales").
		Expense("2024-03-05", 100, "Supplies").
		Build()

	incomeHeavy := testutil.NewTxnBuilder().
		Daily(model.TransactionTypeIncome, "2024-03-11", "Sales", testutil.Ramp(500, 1, 16)...).
		Daily(model.TransactionTypeExpense, "2024-03-11", "Supplies", 10, 20, 30).
		Build()

	tests := []struct {
		name      string
		txns      []model.Transaction
		backend   *stubBackend
		wantPath  recommend.Path
		wantItems int
		wantFits  int
	}{
		{
			name:     "no transactions",
			backend:  &stubBackend{},
			wantPath: recommend.PathNone,
		},
		{
			name:      "fewer than fourteen transactions",
			txns:      sparse,
			backend:   &stubBackend{},
			wantPath:  recommend.PathHistorical,
			wantItems: 1,
		},
		{
			name:      "too few expenses",
			txns:      incomeHeavy,
			backend:   &stubBackend{},
			wantPath:  recommend.PathHistorical,
			wantItems: 3,
		},
		{
			name:      "runtime unavailable",
			txns:      twentyDays(),
			backend:   &stubBackend{probeErr: errors.New("no tensors")},
			wantPath:  recommend.PathHistorical,
			wantItems: 3,
		},
		{
			name:      "forecast driven",
			txns:      twentyDays(),
			backend:   &stubBackend{},
			wantPath:  recommend.PathForecast,
			wantItems: 3,
			wantFits:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t, tt.txns)
			e := newTestEngine(t, db.Storage, tt.backend)

			got := e.RecommendPurchaseDays(ctx, testutil.TestUserID, 7)
			assert.Equal(t, tt.wantPath, got.Path)
			assert.NotNil(t, got.Items)
			assert.Len(t, got.Items, tt.wantItems)
			assert.Equal(t, tt.wantFits, tt.backend.fits)
			for _, item := range got.Items {
				assert.True(t, item.Date.After(today), "recommended %s", item.Date)
				assert.Greater(t, item.CashFlow, 0.0)
			}
		})
	}
}

func TestRecommendForecastReasons(t *testing.T) {
	db := testutil.SetupTestDB(t, twentyDays())
	e := newTestEngine(t, db.Storage, &stubBackend{})

	got := e.RecommendPurchaseDays(context.Background(), testutil.TestUserID, 0)
	require.Equal(t, recommend.PathForecast, got.Path)
	require.NotEmpty(t, got.Items)
	for _, item := range got.Items {
		assert.Contains(t, item.Reason, "Projected high positive cash flow")
		assert.InDelta(t, 400, item.CashFlow, 0.01)
	}
}

func TestRecommendSourceError(t *testing.T) {
	failing := New(failingSource{}, nil, newTestForecaster(nil, &stubBackend{}))

	got := failing.RecommendPurchaseDays(context.Background(), "u", 7)
	assert.Equal(t, recommend.PathNone, got.Path)
	assert.Empty(t, got.Items)
}

func TestWeeklySummary(t *testing.T) {
	ctx := context.Background()

	t.Run("empty weeks", func(t *testing.T) {
		db := testutil.SetupTestDB(t, nil)
		e := newTestEngine(t, db.Storage, &stubBackend{})
		assert.Nil(t, e.WeeklySummary(ctx, testutil.TestUserID))
	})

	t.Run("current and previous week", func(t *testing.T) {
		txns := testutil.NewTxnBuilder().
			Income("2024-03-31", 1200, "Sales").
			Expense("2024-03-31", 200, "Supplies").
			Income("2024-03-25", 800, "Sales").
			Expense("2024-03-26", 300, "Supplies").
			Expense("2024-03-10", 999, "Rent").
			Build()
		db := testutil.SetupTestDBWithOptions(t, testutil.TestDBOptions{
			Transactions: txns,
			Categories: []model.Category{
				{Name: "Sales", Type: model.TransactionTypeIncome, Icon: "💰"},
			},
		})
		e := newTestEngine(t, db.Storage, &stubBackend{})

		got := e.WeeklySummary(ctx, testutil.TestUserID)
		require.NotNil(t, got)
		assert.Equal(t, "2024-03-31", got.Period.Start.String())
		assert.Equal(t, "2024-04-06", got.Period.End.String())
		assert.Equal(t, "2024-03-24", got.PreviousPeriod.Start.String())
		assert.Equal(t, "2024-03-30", got.PreviousPeriod.End.String())
		assert.Equal(t, 1200.0, got.Summary.Income)
		assert.Equal(t, 200.0, got.Summary.Expense)
		assert.Equal(t, 800.0, got.PreviousSummary.Income)
		assert.Equal(t, 300.0, got.PreviousSummary.Expense)
		require.NotEmpty(t, got.TopIncomeCategories)
		assert.Equal(t, "💰", got.TopIncomeCategories[0].Icon)
		assert.NotEmpty(t, got.Insights)
	})

	t.Run("source error", func(t *testing.T) {
		failing := New(failingSource{}, failingSource{}, newTestForecaster(nil, &stubBackend{}), WithClock(func() civil.Date { return today }))
		assert.Nil(t, failing.WeeklySummary(ctx, "u"))
	})
}
