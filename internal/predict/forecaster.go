package predict

import (
	"context"
	"errors"
	"log/slog"

	"cloud.google.com/go/civil"

	"github.com/Veraticus/the-cash-must-flow/internal/common"
	"github.com/Veraticus/the-cash-must-flow/internal/model"
)

// Status summarizes how a forecast was produced.
type Status string

// Forecast statuses.
const (
	StatusSuccess          Status = "success"
	StatusInsufficientData Status = "insufficient-data"
	StatusDegraded         Status = "degraded"
	StatusFailed           Status = "failed"
)

// Path names the predictor that produced the points.
type Path string

// Forecast paths.
const (
	PathSequenceModel Path = "sequence-model"
	PathFallback      Path = "fallback"
	PathNone          Path = "none"
)

// Reason explains a degraded or insufficient forecast.
type Reason string

// Degradation reasons.
const (
	ReasonNone               Reason = ""
	ReasonShortHistory       Reason = "short-history"
	ReasonRuntimeUnavailable Reason = "runtime-unavailable"
	ReasonDemoted            Reason = "demoted"
	ReasonTooFewWindows      Reason = "too-few-windows"
	ReasonComputationError   Reason = "computation-error"
)

// Forecast is the typed result of one forecast call.
type Forecast struct {
	Err    error                   `json:"-"`
	Type   model.TransactionType   `json:"type"`
	Status Status                  `json:"status"`
	Path   Path                    `json:"path"`
	Reason Reason                  `json:"reason,omitempty"`
	Points []model.PredictionPoint `json:"points"`
}

// IsSimpleEstimate reports whether the points came from the fallback predictor.
func (f Forecast) IsSimpleEstimate() bool {
	return f.Path == PathFallback
}

// Empty reports whether the forecast has no points.
func (f Forecast) Empty() bool {
	return len(f.Points) == 0
}

// Forecaster routes each call to the sequence model or the fallback.
type Forecaster struct {
	guard    *Guard
	sequence *SequencePredictor
	logger   *slog.Logger
}

// NewForecaster creates a Forecaster.
func NewForecaster(guard *Guard, sequence *SequencePredictor, logger *slog.Logger) *Forecaster {
	return &Forecaster{
		guard:    guard,
		sequence: sequence,
		logger:   common.LoggerOrDefault(logger),
	}
}

// Guard returns the availability guard.
func (f *Forecaster) Guard() *Guard {
	return f.guard
}

// Forecast predicts horizon days after today from series.
func (f *Forecaster) Forecast(ctx context.Context, series model.DailySeries, horizon int, typ model.TransactionType, today civil.Date) Forecast {
	if len(series) < FallbackMinPoints {
		return Forecast{
			Type:   typ,
			Status: StatusInsufficientData,
			Path:   PathNone,
			Reason: ReasonShortHistory,
			Points: []model.PredictionPoint{},
		}
	}

	if len(series) < SequenceMinPoints {
		return f.fallback(series, horizon, typ, today, StatusSuccess, ReasonShortHistory, nil)
	}

	avail := f.guard.Check(ctx)
	if !avail.Available {
		return f.fallback(series, horizon, typ, today, StatusDegraded, ReasonRuntimeUnavailable, nil)
	}
	if avail.Demoted {
		return f.fallback(series, horizon, typ, today, StatusDegraded, ReasonDemoted, nil)
	}

	points, err := f.sequence.Predict(ctx, series, horizon, typ, today)
	if err == nil {
		return Forecast{Type: typ, Status: StatusSuccess, Path: PathSequenceModel, Points: points}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return Forecast{Type: typ, Status: StatusFailed, Path: PathNone, Reason: ReasonComputationError, Err: err, Points: []model.PredictionPoint{}}
	}

	reason := ReasonComputationError
	if errors.Is(err, common.ErrTooFewWindows) {
		reason = ReasonTooFewWindows
	} else {
		f.guard.env.logNative(err.Error())
		if avail.Production {
			f.guard.pctx.Disable(ctx, "sequence model error in production: "+err.Error())
		}
	}
	f.logger.Warn("sequence model failed, using fallback", "type", typ, "error", err)

	return f.fallback(series, horizon, typ, today, StatusDegraded, reason, err)
}

func (f *Forecaster) fallback(series model.DailySeries, horizon int, typ model.TransactionType, today civil.Date, status Status, reason Reason, err error) Forecast {
	return Forecast{
		Type:   typ,
		Status: status,
		Path:   PathFallback,
		Reason: reason,
		Err:    err,
		Points: Fallback(series, horizon, typ, today),
	}
}
