package predict

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-cash-must-flow/internal/aggregate"
	"github.com/Veraticus/the-cash-must-flow/internal/model"
	"github.com/Veraticus/the-cash-must-flow/internal/testutil"
)

var today = civil.Date{Year: 2024, Month: 3, Day: 31}

type memFlagStore struct {
	flags map[string]bool
	mu    sync.Mutex
}

func newMemFlagStore() *memFlagStore {
	return &memFlagStore{flags: map[string]bool{}}
}

func (m *memFlagStore) GetFlag(_ context.Context, key string) (bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.flags[key]
	return v, ok, nil
}

func (m *memFlagStore) SetFlag(_ context.Context, key string, value bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[key] = value
	return nil
}

func (m *memFlagStore) DeleteFlag(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.flags, key)
	return nil
}

// persistenceRegressor predicts the last value of the window.
type persistenceRegressor struct{}

func (persistenceRegressor) Next(window []float64) (float64, error) {
	return window[len(window)-1], nil
}

type fakeBackend struct {
	probeErr   error
	fitErr     error
	fits       int
	panicOnFit bool
	mu         sync.Mutex
}

func (f *fakeBackend) Probe() error { return f.probeErr }

func (f *fakeBackend) Fit(_ context.Context, windows [][]float64, targets []float64, _ TrainOptions) (Regressor, error) {
	f.mu.Lock()
	f.fits++
	f.mu.Unlock()
	if f.panicOnFit {
		panic("index out of range")
	}
	if f.fitErr != nil {
		return nil, f.fitErr
	}
	if len(windows) != len(targets) {
		return nil, errors.New("windows and targets differ")
	}
	return persistenceRegressor{}, nil
}

type fakeNative struct {
	logged    []string
	supported bool
}

func (n *fakeNative) Supported() bool      { return n.supported }
func (n *fakeNative) LogError(msg string) { n.logged = append(n.logged, msg) }

func rampSeries(n int, start, step float64) model.DailySeries {
	txns := testutil.NewTxnBuilder().
		Daily(model.TransactionTypeExpense, "2024-03-01", "Supplies", testutil.Ramp(start, step, n)...).
		Build()
	return aggregate.Daily(txns, model.TransactionTypeExpense)
}

func alwaysRoll(v float64) GuardOption {
	return WithRoll(func() float64 { return v })
}

func TestNormalize(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		values := []float64{12.5, 80, 3, 44.25, 19}
		norm, err := Normalize(values)
		require.NoError(t, err)
		for i, v := range values {
			assert.InDelta(t, v, norm.Denormalize(norm.Values[i]), 1e-9)
		}
	})

	t.Run("constant series", func(t *testing.T) {
		norm, err := Normalize([]float64{7, 7, 7, 7})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, norm.Std, 1e-12)
		for _, z := range norm.Values {
			assert.InDelta(t, 0, z, 1e-12)
			assert.InDelta(t, 7, norm.Denormalize(z), 1e-12)
		}
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Normalize(nil)
		require.Error(t, err)
	})
}

func TestWindowSize(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{n: 14, want: 7},
		{n: 28, want: 7},
		{n: 32, want: 8},
		{n: 60, want: 15},
		{n: 84, want: 21},
		{n: 3650, want: 21},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WindowSize(tt.n), "n=%d", tt.n)
	}
}

func TestBuildWindows(t *testing.T) {
	windows, targets := BuildWindows([]float64{1, 2, 3, 4, 5}, 3)
	assert.Equal(t, [][]float64{{1, 2, 3}, {2, 3, 4}}, windows)
	assert.Equal(t, []float64{4, 5}, targets)

	windows, targets = BuildWindows([]float64{1, 2, 3}, 3)
	assert.Empty(t, windows)
	assert.Empty(t, targets)
}

func TestForecastRecursive(t *testing.T) {
	out, err := forecastRecursive(regressorFunc(func(w []float64) (float64, error) {
		return w[0] + w[len(w)-1], nil
	}), []float64{1, 2}, 3)
	require.NoError(t, err)
	// [1,2] -> 3, [2,3] -> 5, [3,5] -> 8
	assert.Equal(t, []float64{3, 5, 8}, out)
}

type regressorFunc func([]float64) (float64, error)

func (f regressorFunc) Next(w []float64) (float64, error) { return f(w) }

func TestFallback(t *testing.T) {
	t.Run("fewer than three points yields nothing", func(t *testing.T) {
		for n := 0; n < 3; n++ {
			assert.Empty(t, Fallback(rampSeries(n, 100, 2), 7, model.TransactionTypeExpense, today), "n=%d", n)
		}
	})

	t.Run("rising trend is non-decreasing", func(t *testing.T) {
		points := Fallback(rampSeries(10, 50, 5), 10, model.TransactionTypeExpense, today)
		require.Len(t, points, 10)
		for i := 1; i < len(points); i++ {
			assert.GreaterOrEqual(t, points[i].Amount, points[i-1].Amount)
		}
	})

	t.Run("falling trend is non-increasing and clamped", func(t *testing.T) {
		points := Fallback(rampSeries(7, 60, -10), 30, model.TransactionTypeExpense, today)
		require.Len(t, points, 30)
		for i := 1; i < len(points); i++ {
			assert.LessOrEqual(t, points[i].Amount, points[i-1].Amount)
			assert.GreaterOrEqual(t, points[i].Amount, 0.0)
		}
		assert.Zero(t, points[len(points)-1].Amount)
	})

	t.Run("dates start tomorrow", func(t *testing.T) {
		points := Fallback(rampSeries(5, 10, 1), 3, model.TransactionTypeIncome, today)
		require.Len(t, points, 3)
		assert.Equal(t, "2024-04-01", points[0].Date.String())
		assert.Equal(t, "2024-04-03", points[2].Date.String())
		for _, p := range points {
			assert.True(t, p.IsSimpleEstimate)
			assert.Equal(t, model.TransactionTypeIncome, p.Type)
		}
	})

	t.Run("uses trend over last seven points", func(t *testing.T) {
		// last 7 of 100..138: 126..138, avg 132, halves 128 and 135, slope 7/3
		points := Fallback(rampSeries(20, 100, 2), 2, model.TransactionTypeExpense, today)
		require.Len(t, points, 2)
		assert.InDelta(t, 134.33, points[0].Amount, 1e-9)
		assert.InDelta(t, 136.67, points[1].Amount, 1e-9)
	})
}

func TestPredictorContext(t *testing.T) {
	ctx := context.Background()

	t.Run("disable persists and enable clears", func(t *testing.T) {
		store := newMemFlagStore()
		pctx := NewPredictorContext(store, nil)
		assert.True(t, pctx.IsEnabled(ctx))

		pctx.Disable(ctx, "boom")
		assert.False(t, pctx.IsEnabled(ctx))
		assert.Equal(t, "boom", pctx.Reason())
		v, ok, _ := store.GetFlag(ctx, FlagFeatureEnabled)
		assert.True(t, ok)
		assert.False(t, v)

		require.NoError(t, pctx.Enable(ctx))
		assert.True(t, pctx.IsEnabled(ctx))
		_, ok, _ = store.GetFlag(ctx, FlagFeatureEnabled)
		assert.False(t, ok)
	})

	t.Run("stored false disables new sessions", func(t *testing.T) {
		store := newMemFlagStore()
		require.NoError(t, store.SetFlag(ctx, FlagFeatureEnabled, false))
		assert.False(t, NewPredictorContext(store, nil).IsEnabled(ctx))
	})

	t.Run("stored true keeps it enabled", func(t *testing.T) {
		store := newMemFlagStore()
		require.NoError(t, store.SetFlag(ctx, FlagFeatureEnabled, true))
		assert.True(t, NewPredictorContext(store, nil).IsEnabled(ctx))
	})

	t.Run("concurrent disable", func(t *testing.T) {
		pctx := NewPredictorContext(nil, nil)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				pctx.Disable(ctx, "race")
				_ = pctx.IsEnabled(ctx)
			}()
		}
		wg.Wait()
		assert.False(t, pctx.IsEnabled(ctx))
	})
}

func TestEnvironment(t *testing.T) {
	assert.False(t, Environment{Hostname: "localhost"}.IsProduction())
	assert.False(t, Environment{Hostname: "localhost:3000"}.IsProduction())
	assert.False(t, Environment{}.IsProduction())
	assert.True(t, Environment{Hostname: "cash.example.com"}.IsProduction())

	assert.True(t, Environment{UserAgent: "Mozilla/5.0 (Linux; Android 14)"}.IsLowPower())
	assert.True(t, Environment{UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0)"}.IsLowPower())
	assert.False(t, Environment{UserAgent: "Mozilla/5.0 (X11; Linux x86_64)"}.IsLowPower())
	assert.True(t, Environment{LowPower: true}.IsLowPower())
}

func TestGuardCheck(t *testing.T) {
	ctx := context.Background()
	prod := Environment{Hostname: "cash.example.com"}
	dev := Environment{Hostname: "localhost"}

	tests := []struct {
		backend       *fakeBackend
		env           Environment
		name          string
		roll          float64
		wantAvailable bool
		wantDemoted   bool
		wantDisabled  bool
	}{
		{name: "dev healthy", backend: &fakeBackend{}, env: dev, roll: 0, wantAvailable: true},
		{name: "prod roll below probability demotes", backend: &fakeBackend{}, env: prod, roll: 0.1, wantAvailable: true, wantDemoted: true},
		{name: "prod roll above probability", backend: &fakeBackend{}, env: prod, roll: 0.5, wantAvailable: true},
		{name: "probe failure disables", backend: &fakeBackend{probeErr: errors.New("shape mismatch")}, env: dev, roll: 0.9, wantDisabled: true},
		{name: "low power in dev demotes only", backend: &fakeBackend{}, env: Environment{Hostname: "localhost", LowPower: true}, roll: 0.9, wantAvailable: true, wantDemoted: true},
		{name: "mobile in prod disables", backend: &fakeBackend{}, env: Environment{Hostname: "cash.example.com", UserAgent: "iPad"}, roll: 0.9, wantAvailable: true, wantDemoted: true, wantDisabled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pctx := NewPredictorContext(newMemFlagStore(), nil)
			g := NewGuard(pctx, tt.backend, tt.env, alwaysRoll(tt.roll))

			a := g.Check(ctx)
			assert.Equal(t, tt.wantAvailable, a.Available)
			assert.Equal(t, tt.wantDemoted, a.Demoted)
			assert.Equal(t, tt.wantDisabled, !pctx.IsEnabled(ctx))
		})
	}

	t.Run("demotion probability is injectable", func(t *testing.T) {
		pctx := NewPredictorContext(nil, nil)
		g := NewGuard(pctx, &fakeBackend{}, prod, alwaysRoll(0.5), WithDemotionProbability(0.6))
		assert.True(t, g.Check(ctx).Demoted)

		g = NewGuard(pctx, &fakeBackend{}, prod, alwaysRoll(0.5), WithDemotionProbability(0))
		assert.False(t, g.Check(ctx).Demoted)
	})

	t.Run("disabled context is never re-probed", func(t *testing.T) {
		pctx := NewPredictorContext(nil, nil)
		pctx.Disable(ctx, "earlier failure")
		backend := &panicProbe{}
		g := NewGuard(pctx, backend, dev)
		assert.False(t, g.Check(ctx).Available)
		assert.Zero(t, backend.calls)
	})

	t.Run("panicking probe is swallowed", func(t *testing.T) {
		pctx := NewPredictorContext(nil, nil)
		g := NewGuard(pctx, &panicProbe{}, dev)
		assert.False(t, g.Probe(ctx))
		assert.False(t, pctx.IsEnabled(ctx))
	})

	t.Run("unsupported native bridge", func(t *testing.T) {
		pctx := NewPredictorContext(nil, nil)
		g := NewGuard(pctx, &fakeBackend{}, Environment{Hostname: "localhost", Native: &fakeNative{}})
		assert.False(t, g.Check(ctx).Available)
		assert.True(t, pctx.IsEnabled(ctx), "an unsupported host does not persist a verdict")
	})
}

type panicProbe struct {
	fakeBackend
	calls int
}

func (p *panicProbe) Probe() error {
	p.calls++
	panic("tensor3d failed")
}

func newTestForecaster(backend Backend, env Environment, roll float64) (*Forecaster, *PredictorContext) {
	pctx := NewPredictorContext(newMemFlagStore(), nil)
	guard := NewGuard(pctx, backend, env, alwaysRoll(roll))
	return NewForecaster(guard, NewSequencePredictor(backend, TrainOptions{Epochs: 2}, nil), nil), pctx
}

func TestGuardCheckConcurrentDefaultRoll(t *testing.T) {
	ctx := context.Background()
	pctx := NewPredictorContext(newMemFlagStore(), nil)
	g := NewGuard(pctx, &fakeBackend{}, Environment{Hostname: "app.example.com"})

	const workers, calls = 16, 200
	var demoted, unavailable atomic.Int64
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range calls {
				a := g.Check(ctx)
				if !a.Available {
					unavailable.Add(1)
				}
				if a.Demoted {
					demoted.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, unavailable.Load())
	assert.Positive(t, demoted.Load())
	assert.Less(t, demoted.Load(), int64(workers*calls))
	assert.True(t, pctx.IsEnabled(ctx))
}

func TestForecaster(t *testing.T) {
	ctx := context.Background()
	dev := Environment{Hostname: "localhost"}

	t.Run("fewer than three points", func(t *testing.T) {
		f, _ := newTestForecaster(&fakeBackend{}, dev, 0.9)
		got := f.Forecast(ctx, rampSeries(2, 10, 1), 7, model.TransactionTypeExpense, today)
		assert.Equal(t, StatusInsufficientData, got.Status)
		assert.Equal(t, PathNone, got.Path)
		assert.Empty(t, got.Points)
	})

	t.Run("sequence model never attempted below fourteen points", func(t *testing.T) {
		for n := 3; n < 14; n++ {
			backend := &fakeBackend{}
			f, _ := newTestForecaster(backend, dev, 0.9)
			got := f.Forecast(ctx, rampSeries(n, 10, 1), 7, model.TransactionTypeExpense, today)
			assert.Equal(t, PathFallback, got.Path, "n=%d", n)
			assert.Equal(t, ReasonShortHistory, got.Reason)
			assert.Len(t, got.Points, 7)
			assert.Zero(t, backend.fits, "n=%d", n)
		}
	})

	t.Run("sequence model path", func(t *testing.T) {
		backend := &fakeBackend{}
		f, _ := newTestForecaster(backend, dev, 0.9)
		got := f.Forecast(ctx, rampSeries(20, 100, 2), 5, model.TransactionTypeExpense, today)
		require.Equal(t, StatusSuccess, got.Status)
		assert.Equal(t, PathSequenceModel, got.Path)
		assert.Equal(t, 1, backend.fits)
		require.Len(t, got.Points, 5)
		for _, p := range got.Points {
			assert.False(t, p.IsSimpleEstimate)
			assert.InDelta(t, 138, p.Amount, 1e-9)
		}
		assert.Equal(t, "2024-04-01", got.Points[0].Date.String())
	})

	t.Run("computation error falls back without disabling in dev", func(t *testing.T) {
		f, pctx := newTestForecaster(&fakeBackend{fitErr: errors.New("oom")}, dev, 0.9)
		got := f.Forecast(ctx, rampSeries(20, 100, 2), 5, model.TransactionTypeExpense, today)
		assert.Equal(t, StatusDegraded, got.Status)
		assert.Equal(t, PathFallback, got.Path)
		assert.Equal(t, ReasonComputationError, got.Reason)
		require.Error(t, got.Err)
		assert.Len(t, got.Points, 5)
		assert.True(t, pctx.IsEnabled(ctx))
	})

	t.Run("computation error in production disables", func(t *testing.T) {
		f, pctx := newTestForecaster(&fakeBackend{fitErr: errors.New("oom")}, Environment{Hostname: "cash.example.com"}, 0.9)
		got := f.Forecast(ctx, rampSeries(20, 100, 2), 5, model.TransactionTypeExpense, today)
		assert.Equal(t, PathFallback, got.Path)
		assert.False(t, pctx.IsEnabled(ctx))
	})

	t.Run("panic during training is recovered", func(t *testing.T) {
		native := &fakeNative{supported: true}
		f, _ := newTestForecaster(&fakeBackend{panicOnFit: true}, Environment{Hostname: "localhost", Native: native}, 0.9)
		got := f.Forecast(ctx, rampSeries(20, 100, 2), 3, model.TransactionTypeExpense, today)
		assert.Equal(t, PathFallback, got.Path)
		assert.Equal(t, ReasonComputationError, got.Reason)
		assert.Len(t, native.logged, 1)
	})

	t.Run("demoted call", func(t *testing.T) {
		backend := &fakeBackend{}
		f, _ := newTestForecaster(backend, Environment{Hostname: "cash.example.com"}, 0.0)
		got := f.Forecast(ctx, rampSeries(20, 100, 2), 3, model.TransactionTypeExpense, today)
		assert.Equal(t, ReasonDemoted, got.Reason)
		assert.Zero(t, backend.fits)
	})
}

func TestForcedFallbackRampScenario(t *testing.T) {
	ctx := context.Background()
	pctx := NewPredictorContext(nil, nil)
	pctx.Disable(ctx, "forced for test")
	backend := &fakeBackend{}
	guard := NewGuard(pctx, backend, Environment{Hostname: "localhost"})
	f := NewForecaster(guard, NewSequencePredictor(backend, TrainOptions{}, nil), nil)

	got := f.Forecast(ctx, rampSeries(20, 100, 2), 7, model.TransactionTypeExpense, today)

	require.Len(t, got.Points, 7)
	assert.Equal(t, PathFallback, got.Path)
	assert.Equal(t, ReasonRuntimeUnavailable, got.Reason)
	assert.Zero(t, backend.fits)
	for i, p := range got.Points {
		assert.True(t, p.IsSimpleEstimate)
		if i > 0 {
			assert.Greater(t, p.Amount, got.Points[i-1].Amount)
		}
	}
}

func TestSequencePredictorWithNeuralBackend(t *testing.T) {
	series := rampSeries(30, 100, 3)
	sp := NewSequencePredictor(NewNeuralBackend(), TrainOptions{Epochs: 3, BatchSize: 8, Seed: 1}, nil)

	points, err := sp.Predict(context.Background(), series, 4, model.TransactionTypeExpense, today)
	require.NoError(t, err)
	require.Len(t, points, 4)
	for _, p := range points {
		assert.GreaterOrEqual(t, p.Amount, 0.0)
		assert.False(t, p.IsSimpleEstimate)
	}

	_, err = sp.Predict(context.Background(), rampSeries(10, 1, 1), 4, model.TransactionTypeExpense, today)
	require.Error(t, err)

	require.NoError(t, NewNeuralBackend().Probe())
}
