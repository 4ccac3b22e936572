package predict

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/Veraticus/the-cash-must-flow/internal/common"
)

// Window sizing bounds for the sequence model.
const (
	MinWindowSize = 7
	MaxWindowSize = 21
)

// Normalized is a z-scored series with the parameters needed to invert it.
type Normalized struct {
	Values []float64
	Mean   float64
	Std    float64
}

// Normalize z-scores values with the population standard deviation.
// A constant series uses a standard deviation of 1.
func Normalize(values []float64) (Normalized, error) {
	if len(values) == 0 {
		return Normalized{}, fmt.Errorf("%w: nothing to normalize", common.ErrInsufficientData)
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Normalized{}, fmt.Errorf("%w: non-finite value at index %d", common.ErrInvalidTensor, i)
		}
	}

	mean, std := stat.PopMeanStdDev(values, nil)
	if std == 0 || math.IsNaN(std) {
		std = 1
	}

	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return Normalized{Values: out, Mean: mean, Std: std}, nil
}

// Denormalize maps a z-score back to the original scale.
func (n Normalized) Denormalize(v float64) float64 {
	return v*n.Std + n.Mean
}

// WindowSize picks the sliding window for a series of length n.
func WindowSize(n int) int {
	return min(max(MinWindowSize, n/4), MaxWindowSize)
}

// BuildWindows turns values into (window, next value) training pairs.
func BuildWindows(values []float64, size int) ([][]float64, []float64) {
	if size <= 0 || len(values) <= size {
		return nil, nil
	}
	count := len(values) - size
	windows := make([][]float64, count)
	targets := make([]float64, count)
	for i := 0; i < count; i++ {
		w := make([]float64, size)
		copy(w, values[i:i+size])
		windows[i] = w
		targets[i] = values[i+size]
	}
	return windows, targets
}

// forecastRecursive predicts horizon steps one at a time, feeding each
// prediction back into a rolling window seeded with seed.
func forecastRecursive(r Regressor, seed []float64, horizon int) ([]float64, error) {
	window := make([]float64, len(seed))
	copy(window, seed)

	out := make([]float64, 0, horizon)
	for i := 0; i < horizon; i++ {
		next, err := r.Next(window)
		if err != nil {
			return nil, fmt.Errorf("forecast step %d: %w", i+1, err)
		}
		out = append(out, next)
		window = append(window[1:], next)
	}
	return out, nil
}

// roundAmount rounds to cents.
func roundAmount(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
