package predict

import (
	"math"

	"cloud.google.com/go/civil"
	"gonum.org/v1/gonum/stat"

	"github.com/Veraticus/the-cash-must-flow/internal/model"
)

// Fallback predictor bounds.
const (
	FallbackMinPoints = 3
	fallbackWindow    = 7
)

// Fallback forecasts horizon days after today from a trend-adjusted average
// of the last week of points. Fewer than FallbackMinPoints yields nothing.
func Fallback(series model.DailySeries, horizon int, typ model.TransactionType, today civil.Date) []model.PredictionPoint {
	if len(series) < FallbackMinPoints || horizon <= 0 {
		return []model.PredictionPoint{}
	}

	values := series.Values()
	recent := values[len(values)-min(fallbackWindow, len(values)):]

	avg := stat.Mean(recent, nil)
	mid := len(recent) / 2
	firstAvg := stat.Mean(recent[:mid], nil)
	secondAvg := stat.Mean(recent[mid:], nil)
	trend := (secondAvg - firstAvg) / float64(mid)

	points := make([]model.PredictionPoint, horizon)
	for i := range points {
		amount := math.Max(0, avg+trend*float64(i+1))
		points[i] = model.PredictionPoint{
			Date:             today.AddDays(i + 1),
			Type:             typ,
			Amount:           roundAmount(amount),
			IsSimpleEstimate: true,
		}
	}
	return points
}
