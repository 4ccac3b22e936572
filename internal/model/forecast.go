package model

import "cloud.google.com/go/civil"

// SeriesPoint is the summed amount for one calendar day.
type SeriesPoint struct {
	Date   civil.Date `json:"date"`
	Amount float64    `json:"amount"`
}

// DailySeries holds one point per day that had at least one transaction,
// strictly increasing by date. Days without activity are absent, not zero.
type DailySeries []SeriesPoint

// Values returns the amounts of the series in order.
func (s DailySeries) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Amount
	}
	return out
}

// PredictionPoint is one forecast day.
type PredictionPoint struct {
	Date             civil.Date      `json:"date"`
	Type             TransactionType `json:"type"`
	Amount           float64         `json:"amount"`
	IsSimpleEstimate bool            `json:"is_simple_estimate"`
}

// Anomaly is a transaction that sits far from its category baseline.
type Anomaly struct {
	Transaction
	ExpectedAmount   float64 `json:"expected_amount"`
	DeviationPercent float64 `json:"deviation_percent"`
}

// Recommendation is a suggested purchase day.
type Recommendation struct {
	Date     civil.Date `json:"date"`
	Reason   string     `json:"reason"`
	CashFlow float64    `json:"cash_flow"`
}
