package predict

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"

	"cloud.google.com/go/civil"

	"github.com/Veraticus/the-cash-must-flow/internal/common"
	"github.com/Veraticus/the-cash-must-flow/internal/model"
	"github.com/Veraticus/the-cash-must-flow/internal/neural"
)

// Sequence model bounds.
const (
	SequenceMinPoints = 14
	MinWindows        = 5
)

// SequencePredictor trains a model per call and forecasts recursively.
type SequencePredictor struct {
	backend Backend
	logger  *slog.Logger
	opts    TrainOptions
}

// NewSequencePredictor creates a predictor over backend.
func NewSequencePredictor(backend Backend, opts TrainOptions, logger *slog.Logger) *SequencePredictor {
	return &SequencePredictor{
		backend: backend,
		opts:    opts,
		logger:  common.LoggerOrDefault(logger),
	}
}

// Predict returns horizon points after today. Panics from the backend are
// recovered and reported as errors.
func (s *SequencePredictor) Predict(ctx context.Context, series model.DailySeries, horizon int, typ model.TransactionType, today civil.Date) (points []model.PredictionPoint, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Debug("sequence model panic", "panic", r, "stack", string(debug.Stack()))
			points, err = nil, fmt.Errorf("sequence model panicked: %v", r)
		}
	}()

	if len(series) < SequenceMinPoints {
		return nil, fmt.Errorf("%w: %d points, need %d", common.ErrInsufficientData, len(series), SequenceMinPoints)
	}

	norm, err := Normalize(series.Values())
	if err != nil {
		return nil, err
	}

	size := WindowSize(len(norm.Values))
	windows, targets := BuildWindows(norm.Values, size)
	if len(windows) < MinWindows {
		return nil, fmt.Errorf("%w: %d windows of size %d, need %d", common.ErrTooFewWindows, len(windows), size, MinWindows)
	}

	s.logger.Debug("training sequence model",
		"type", typ,
		"points", len(series),
		"window", size,
		"windows", len(windows))

	opts := s.opts
	onEpoch := opts.OnEpoch
	opts.OnEpoch = func(st neural.EpochStats) {
		s.logger.Debug("training epoch",
			"type", typ,
			"epoch", st.Epoch,
			"epochs", st.Epochs,
			"loss", st.Loss,
			"val_loss", st.ValLoss)
		if onEpoch != nil {
			onEpoch(st)
		}
	}

	reg, err := s.backend.Fit(ctx, windows, targets, opts)
	if err != nil {
		return nil, err
	}

	seed := norm.Values[len(norm.Values)-size:]
	raw, err := forecastRecursive(reg, seed, horizon)
	if err != nil {
		return nil, err
	}

	points = make([]model.PredictionPoint, len(raw))
	for i, v := range raw {
		points[i] = model.PredictionPoint{
			Date:   today.AddDays(i + 1),
			Type:   typ,
			Amount: roundAmount(math.Max(0, norm.Denormalize(v))),
		}
	}
	return points, nil
}
