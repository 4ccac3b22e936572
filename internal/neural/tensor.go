// Package neural is a small numeric runtime for sequence regression:
// validated rank-3 tensors and a stacked LSTM trained with Adam.
package neural

import (
	"fmt"
	"math"

	"github.com/Veraticus/the-cash-must-flow/internal/common"
)

// Tensor3D is a dense [batch, steps, features] array stored row-major.
type Tensor3D struct {
	Data  []float64
	Shape [3]int
}

// NewTensor3D copies a nested slice into a tensor. Every sample must have the
// same number of steps and every step the same number of features.
func NewTensor3D(values [][][]float64) (*Tensor3D, error) {
	if len(values) == 0 || len(values[0]) == 0 || len(values[0][0]) == 0 {
		return nil, fmt.Errorf("%w: empty input", common.ErrInvalidTensor)
	}
	shape := [3]int{len(values), len(values[0]), len(values[0][0])}
	data := make([]float64, 0, shape[0]*shape[1]*shape[2])

	for b, sample := range values {
		if len(sample) != shape[1] {
			return nil, fmt.Errorf("%w: sample %d has %d steps, want %d", common.ErrInvalidTensor, b, len(sample), shape[1])
		}
		for s, step := range sample {
			if len(step) != shape[2] {
				return nil, fmt.Errorf("%w: sample %d step %d has %d features, want %d",
					common.ErrInvalidTensor, b, s, len(step), shape[2])
			}
			for _, v := range step {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return nil, fmt.Errorf("%w: non-finite value at sample %d step %d", common.ErrInvalidTensor, b, s)
				}
				data = append(data, v)
			}
		}
	}

	return &Tensor3D{Data: data, Shape: shape}, nil
}

// FromFlat wraps data with the given shape, checking the element count.
func FromFlat(data []float64, shape [3]int) (*Tensor3D, error) {
	for _, d := range shape {
		if d <= 0 {
			return nil, fmt.Errorf("%w: non-positive dimension in shape %v", common.ErrInvalidTensor, shape)
		}
	}
	want := shape[0] * shape[1] * shape[2]
	if len(data) != want {
		return nil, fmt.Errorf("%w: shape mismatch: expected %d elements, got %d", common.ErrInvalidTensor, want, len(data))
	}
	out := make([]float64, len(data))
	copy(out, data)
	return &Tensor3D{Data: out, Shape: shape}, nil
}

// Batch returns the number of samples.
func (t *Tensor3D) Batch() int { return t.Shape[0] }

// Steps returns the sequence length.
func (t *Tensor3D) Steps() int { return t.Shape[1] }

// Features returns the width of each step.
func (t *Tensor3D) Features() int { return t.Shape[2] }

// Sample returns sample b as a slice of per-step feature vectors.
// The vectors alias the tensor's storage.
func (t *Tensor3D) Sample(b int) [][]float64 {
	steps, feats := t.Shape[1], t.Shape[2]
	base := b * steps * feats
	out := make([][]float64, steps)
	for s := range out {
		off := base + s*feats
		out[s] = t.Data[off : off+feats : off+feats]
	}
	return out
}
