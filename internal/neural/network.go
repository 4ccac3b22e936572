package neural

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/Veraticus/the-cash-must-flow/internal/common"
)

// ErrDiverged is returned when training produces a non-finite loss.
var ErrDiverged = errors.New("training diverged")

// Config sizes and trains a Network.
type Config struct {
	OnEpoch         func(EpochStats)
	Features        int
	Units1          int
	Units2          int
	Epochs          int
	BatchSize       int
	Seed            int64
	Dropout         float64
	LearningRate    float64
	ValidationSplit float64
}

// DefaultConfig returns the stock forecasting architecture:
// LSTM(32, sequences) -> Dropout(0.2) -> LSTM(16) -> Dense(1).
func DefaultConfig() Config {
	return Config{
		Features:        1,
		Units1:          32,
		Units2:          16,
		Dropout:         0.2,
		LearningRate:    0.01,
		Epochs:          150,
		BatchSize:       16,
		ValidationSplit: 0.2,
		Seed:            42,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Features <= 0 {
		c.Features = d.Features
	}
	if c.Units1 <= 0 {
		c.Units1 = d.Units1
	}
	if c.Units2 <= 0 {
		c.Units2 = d.Units2
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		c.Dropout = d.Dropout
	}
	if c.LearningRate <= 0 {
		c.LearningRate = d.LearningRate
	}
	if c.Epochs <= 0 {
		c.Epochs = d.Epochs
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.ValidationSplit < 0 || c.ValidationSplit >= 1 {
		c.ValidationSplit = d.ValidationSplit
	}
	return c
}

// EpochStats reports mean absolute error after one training pass.
type EpochStats struct {
	Epoch         int
	Epochs        int
	Loss          float64
	ValLoss       float64
	HasValidation bool
}

// History collects the per-epoch statistics of a Fit call.
type History struct {
	Epochs []EpochStats
}

// Final returns the last recorded epoch, or the zero value.
func (h History) Final() EpochStats {
	if len(h.Epochs) == 0 {
		return EpochStats{}
	}
	return h.Epochs[len(h.Epochs)-1]
}

// Network is a two-layer LSTM regressor with a scalar output.
// A Network is not safe for concurrent use.
type Network struct {
	rng   *rand.Rand
	l1    *lstmLayer
	l2    *lstmLayer
	dense *denseLayer
	opt   *adam
	cfg   Config
}

// New builds a freshly initialized network.
func New(cfg Config) *Network {
	cfg = cfg.withDefaults()
	rng := rand.New(rand.NewSource(cfg.Seed))
	return &Network{
		cfg:   cfg,
		rng:   rng,
		l1:    newLSTMLayer(rng, cfg.Features, cfg.Units1),
		l2:    newLSTMLayer(rng, cfg.Units1, cfg.Units2),
		dense: newDenseLayer(rng, cfg.Units2),
		opt:   &adam{lr: cfg.LearningRate, beta1: 0.9, beta2: 0.999, eps: 1e-7},
	}
}

// Config returns the effective configuration.
func (n *Network) Config() Config {
	return n.cfg
}

func (n *Network) params() []*param {
	ps := make([]*param, 0, 8)
	ps = append(ps, n.l1.params()...)
	ps = append(ps, n.l2.params()...)
	ps = append(ps, n.dense.params()...)
	return ps
}

// Fit trains on x (one sample per target) with mean absolute error.
// The trailing ValidationSplit share of samples is held out and only
// evaluated. Training runs for exactly Config.Epochs passes unless ctx ends.
func (n *Network) Fit(ctx context.Context, x *Tensor3D, y []float64) (History, error) {
	if x == nil {
		return History{}, fmt.Errorf("%w: nil input", common.ErrInvalidTensor)
	}
	if x.Batch() != len(y) {
		return History{}, fmt.Errorf("%w: %d samples but %d targets", common.ErrInvalidTensor, x.Batch(), len(y))
	}
	if x.Features() != n.cfg.Features {
		return History{}, fmt.Errorf("%w: got %d features, network expects %d", common.ErrInvalidTensor, x.Features(), n.cfg.Features)
	}

	total := x.Batch()
	trainN := int(math.Floor(float64(total) * (1 - n.cfg.ValidationSplit)))
	if trainN <= 0 {
		trainN = total
	}

	order := make([]int, trainN)
	for i := range order {
		order[i] = i
	}

	var hist History
	for epoch := 1; epoch <= n.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return hist, err
		}

		n.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var lossSum float64
		for start := 0; start < trainN; start += n.cfg.BatchSize {
			end := min(start+n.cfg.BatchSize, trainN)
			batch := order[start:end]
			scale := 1 / float64(len(batch))
			for _, idx := range batch {
				lossSum += n.trainSample(x.Sample(idx), y[idx], scale)
			}
			n.opt.step(n.params())
		}

		stats := EpochStats{Epoch: epoch, Epochs: n.cfg.Epochs, Loss: lossSum / float64(trainN)}
		if trainN < total {
			var valSum float64
			for idx := trainN; idx < total; idx++ {
				valSum += math.Abs(n.predictSample(x.Sample(idx)) - y[idx])
			}
			stats.ValLoss = valSum / float64(total-trainN)
			stats.HasValidation = true
		}
		if math.IsNaN(stats.Loss) || math.IsInf(stats.Loss, 0) {
			return hist, fmt.Errorf("%w at epoch %d", ErrDiverged, epoch)
		}

		hist.Epochs = append(hist.Epochs, stats)
		if n.cfg.OnEpoch != nil {
			n.cfg.OnEpoch(stats)
		}
	}

	return hist, nil
}

// trainSample runs forward and backward for one sample, accumulating
// gradients scaled by scale, and returns the absolute error.
func (n *Network) trainSample(xs [][]float64, target, scale float64) float64 {
	h1, steps1 := n.l1.forward(xs, true)

	var mask [][]float64
	if n.cfg.Dropout > 0 {
		keep := 1 - n.cfg.Dropout
		mask = make([][]float64, len(h1))
		dropped := make([][]float64, len(h1))
		for t, h := range h1 {
			mask[t] = make([]float64, len(h))
			for j := range h {
				if n.rng.Float64() < keep {
					mask[t][j] = 1 / keep
				}
			}
			dropped[t] = floats.MulTo(make([]float64, len(h)), h, mask[t])
		}
		h1 = dropped
	}

	h2, steps2 := n.l2.forward(h1, true)
	last := h2[len(h2)-1]
	pred := n.dense.forward(last)

	diff := pred - target
	dy := 0.0
	switch {
	case diff > 0:
		dy = scale
	case diff < 0:
		dy = -scale
	}

	dLast := n.dense.backward(last, dy)
	dh2 := make([][]float64, len(h2))
	dh2[len(dh2)-1] = dLast
	dh1 := n.l2.backward(steps2, dh2)

	if mask != nil {
		for t := range dh1 {
			floats.Mul(dh1[t], mask[t])
		}
	}
	n.l1.backward(steps1, dh1)

	return math.Abs(diff)
}

func (n *Network) predictSample(xs [][]float64) float64 {
	h1, _ := n.l1.forward(xs, false)
	h2, _ := n.l2.forward(h1, false)
	return n.dense.forward(h2[len(h2)-1])
}

// Predict returns one output per sample in x. Dropout is disabled.
func (n *Network) Predict(x *Tensor3D) ([]float64, error) {
	if x == nil {
		return nil, fmt.Errorf("%w: nil input", common.ErrInvalidTensor)
	}
	if x.Features() != n.cfg.Features {
		return nil, fmt.Errorf("%w: got %d features, network expects %d", common.ErrInvalidTensor, x.Features(), n.cfg.Features)
	}
	out := make([]float64, x.Batch())
	for b := range out {
		v := n.predictSample(x.Sample(b))
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite prediction", ErrDiverged)
		}
		out[b] = v
	}
	return out, nil
}
