// Package anomaly flags transactions that sit far from their category baseline.
package anomaly

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/Veraticus/the-cash-must-flow/internal/model"
)

// Detection thresholds.
const (
	DefaultSensitivity = 2.0
	MinTransactions    = 10
	MinPartitionSize   = 5
)

type partitionKey struct {
	category string
	typ      model.TransactionType
}

// Detect returns transactions whose amount deviates from their
// (category, type) mean by more than sensitivity standard deviations,
// largest relative deviation first. A non-positive sensitivity uses
// DefaultSensitivity.
func Detect(txns []model.Transaction, sensitivity float64) []model.Anomaly {
	if len(txns) < MinTransactions {
		return []model.Anomaly{}
	}
	if sensitivity <= 0 {
		sensitivity = DefaultSensitivity
	}

	partitions := make(map[partitionKey][]model.Transaction)
	var keys []partitionKey
	for _, t := range txns {
		k := partitionKey{category: t.Category, typ: t.Type}
		if _, ok := partitions[k]; !ok {
			keys = append(keys, k)
		}
		partitions[k] = append(partitions[k], t)
	}

	anomalies := []model.Anomaly{}
	for _, k := range keys {
		group := partitions[k]
		if len(group) < MinPartitionSize {
			continue
		}

		amounts := make([]float64, len(group))
		for i, t := range group {
			amounts[i] = t.Amount
		}
		mean, std := stat.PopMeanStdDev(amounts, nil)
		if mean == 0 {
			continue
		}

		for _, t := range group {
			if math.Abs(t.Amount-mean) > sensitivity*std {
				anomalies = append(anomalies, model.Anomaly{
					Transaction:      t,
					ExpectedAmount:   mean,
					DeviationPercent: (t.Amount - mean) / mean * 100,
				})
			}
		}
	}

	sort.SliceStable(anomalies, func(i, j int) bool {
		return math.Abs(anomalies[i].DeviationPercent) > math.Abs(anomalies[j].DeviationPercent)
	})

	return anomalies
}
