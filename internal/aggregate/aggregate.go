// Package aggregate groups raw transactions into daily series and category totals.
package aggregate

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"

	"github.com/Veraticus/the-cash-must-flow/internal/model"
)

// Daily sums same-day amounts of the given type into an ascending series.
// Days with no matching transaction are left out.
func Daily(txns []model.Transaction, typ model.TransactionType) model.DailySeries {
	dayMap := make(map[civil.Date]float64)

	for _, t := range txns {
		if t.Type != typ || t.Date.IsZero() {
			continue
		}
		dayMap[t.Date] += t.Amount
	}

	series := make(model.DailySeries, 0, len(dayMap))
	for d, amount := range dayMap {
		series = append(series, model.SeriesPoint{Date: d, Amount: amount})
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Date.Before(series[j].Date)
	})

	return series
}

// ByCategory sums amounts per category for one type, largest first.
// Ties are broken by category name so the order is stable across calls.
func ByCategory(txns []model.Transaction, typ model.TransactionType) []model.CategoryTotal {
	catMap := make(map[string]*model.CategoryTotal)

	for _, t := range txns {
		if t.Type != typ {
			continue
		}
		ct, ok := catMap[t.Category]
		if !ok {
			ct = &model.CategoryTotal{Name: t.Category, Type: typ}
			catMap[t.Category] = ct
		}
		ct.Amount += t.Amount
		ct.Count++
	}

	totals := make([]model.CategoryTotal, 0, len(catMap))
	for _, ct := range catMap {
		totals = append(totals, *ct)
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Amount != totals[j].Amount {
			return totals[i].Amount > totals[j].Amount
		}
		return totals[i].Name < totals[j].Name
	})

	return totals
}

// TopCategories returns at most n categories of the given type by summed amount.
func TopCategories(txns []model.Transaction, typ model.TransactionType, n int) []model.CategoryTotal {
	totals := ByCategory(txns, typ)
	if n >= 0 && len(totals) > n {
		totals = totals[:n]
	}
	return totals
}

// Sum totals the amounts of the given type.
func Sum(txns []model.Transaction, typ model.TransactionType) float64 {
	var total float64
	for _, t := range txns {
		if t.Type == typ {
			total += t.Amount
		}
	}
	return total
}

// ByWeekday sums income and expense per weekday (Sunday = 0).
func ByWeekday(txns []model.Transaction) (income, expense [7]float64) {
	for _, t := range txns {
		wd := t.Date.In(time.UTC).Weekday()
		switch t.Type {
		case model.TransactionTypeIncome:
			income[wd] += t.Amount
		case model.TransactionTypeExpense:
			expense[wd] += t.Amount
		}
	}
	return income, expense
}
