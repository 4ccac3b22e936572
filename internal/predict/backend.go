package predict

import (
	"context"
	"fmt"

	"github.com/Veraticus/the-cash-must-flow/internal/common"
	"github.com/Veraticus/the-cash-must-flow/internal/neural"
)

// TrainOptions are passed through to the numeric backend.
type TrainOptions struct {
	OnEpoch      func(neural.EpochStats)
	Epochs       int
	BatchSize    int
	Seed         int64
	LearningRate float64
}

// Regressor predicts the value following a window.
type Regressor interface {
	Next(window []float64) (float64, error)
}

// Backend is the only place runtime-specific array types appear.
type Backend interface {
	// Probe runs the heaviest array construction used by Fit.
	Probe() error
	Fit(ctx context.Context, windows [][]float64, targets []float64, opts TrainOptions) (Regressor, error)
}

// NeuralBackend trains the stacked LSTM from package neural.
type NeuralBackend struct{}

// NewNeuralBackend returns the default backend.
func NewNeuralBackend() *NeuralBackend {
	return &NeuralBackend{}
}

// Probe builds a small rank-3 tensor the same way training does.
func (NeuralBackend) Probe() error {
	t, err := neural.NewTensor3D([][][]float64{{{1}, {2}}, {{3}, {4}}})
	if err != nil {
		return err
	}
	if _, err := neural.FromFlat(t.Data, t.Shape); err != nil {
		return err
	}
	return nil
}

// Fit trains a fresh network on single-feature windows.
func (NeuralBackend) Fit(ctx context.Context, windows [][]float64, targets []float64, opts TrainOptions) (Regressor, error) {
	x, err := neural.NewTensor3D(toSteps(windows))
	if err != nil {
		return nil, fmt.Errorf("building training tensor: %w", err)
	}

	cfg := neural.DefaultConfig()
	if opts.Epochs > 0 {
		cfg.Epochs = opts.Epochs
	}
	if opts.BatchSize > 0 {
		cfg.BatchSize = opts.BatchSize
	}
	if opts.LearningRate > 0 {
		cfg.LearningRate = opts.LearningRate
	}
	if opts.Seed != 0 {
		cfg.Seed = opts.Seed
	}
	cfg.OnEpoch = opts.OnEpoch

	net := neural.New(cfg)
	if _, err := net.Fit(ctx, x, targets); err != nil {
		return nil, fmt.Errorf("training sequence model: %w", err)
	}
	return &neuralRegressor{net: net, steps: x.Steps()}, nil
}

type neuralRegressor struct {
	net   *neural.Network
	steps int
}

func (r *neuralRegressor) Next(window []float64) (float64, error) {
	if len(window) != r.steps {
		return 0, fmt.Errorf("%w: window has %d values, model expects %d", common.ErrInvalidTensor, len(window), r.steps)
	}
	x, err := neural.FromFlat(window, [3]int{1, len(window), 1})
	if err != nil {
		return 0, err
	}
	out, err := r.net.Predict(x)
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

func toSteps(windows [][]float64) [][][]float64 {
	out := make([][][]float64, len(windows))
	for i, w := range windows {
		steps := make([][]float64, len(w))
		for j, v := range w {
			steps[j] = []float64{v}
		}
		out[i] = steps
	}
	return out
}
