// Package report builds the week-over-week summary and its insight lines.
package report

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"

	"github.com/Veraticus/the-cash-must-flow/internal/aggregate"
	"github.com/Veraticus/the-cash-must-flow/internal/model"
)

// Summary tuning.
const (
	TopCategoryLimit = 3
	NotableThreshold = 0.2
	NotableLimit     = 5
)

// WeekOf returns the Sunday-to-Saturday week containing d.
func WeekOf(d civil.Date) model.Period {
	start := d.AddDays(-int(d.In(time.UTC).Weekday()))
	return model.Period{Start: start, End: start.AddDays(6)}
}

// CurrentWeek is the week containing today.
func CurrentWeek(today civil.Date) model.Period {
	return WeekOf(today)
}

// PreviousWeek is the week containing the day seven days before today.
func PreviousWeek(today civil.Date) model.Period {
	return WeekOf(today.AddDays(-7))
}

// PercentChange compares current with previous. With no previous value the
// change is 100 for any positive current value and 0 otherwise.
func PercentChange(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return (current - previous) / previous * 100
}

// Summarize totals one week of transactions.
func Summarize(txns []model.Transaction) model.Totals {
	income := aggregate.Sum(txns, model.TransactionTypeIncome)
	expense := aggregate.Sum(txns, model.TransactionTypeExpense)
	return model.Totals{
		Income:           income,
		Expense:          expense,
		Profit:           income - expense,
		TransactionCount: len(txns),
	}
}

// CompareTotals computes per-metric trends. Lower spending counts as "up".
func CompareTotals(current, previous model.Totals) model.Trends {
	up := func(ok bool) model.Direction {
		if ok {
			return model.DirectionUp
		}
		return model.DirectionDown
	}
	return model.Trends{
		Income: model.Trend{
			Amount:        current.Income,
			PercentChange: PercentChange(current.Income, previous.Income),
			Direction:     up(current.Income >= previous.Income),
		},
		Expense: model.Trend{
			Amount:        current.Expense,
			PercentChange: PercentChange(current.Expense, previous.Expense),
			Direction:     up(current.Expense <= previous.Expense),
		},
		Profit: model.Trend{
			Amount:        current.Profit,
			PercentChange: PercentChange(current.Profit, previous.Profit),
			Direction:     up(current.Profit >= previous.Profit),
		},
	}
}

// NotableTransactions returns transactions exceeding (1+threshold) times
// their type's average, largest first, capped at NotableLimit.
func NotableTransactions(txns []model.Transaction, threshold float64) []model.Transaction {
	notable := []model.Transaction{}
	for _, typ := range []model.TransactionType{model.TransactionTypeIncome, model.TransactionTypeExpense} {
		ofType := model.FilterByType(txns, typ)
		if len(ofType) == 0 {
			continue
		}
		avg := aggregate.Sum(ofType, typ) / float64(len(ofType))
		for _, t := range ofType {
			if t.Amount > avg*(1+threshold) {
				notable = append(notable, t)
			}
		}
	}

	sort.SliceStable(notable, func(i, j int) bool {
		return notable[i].Amount > notable[j].Amount
	})
	if len(notable) > NotableLimit {
		notable = notable[:NotableLimit]
	}
	return notable
}

// Generator builds weekly summaries.
type Generator struct {
	Symbol string
}

// NewGenerator creates a Generator formatting amounts with symbol.
func NewGenerator(symbol string) *Generator {
	return &Generator{Symbol: symbol}
}

// Weekly compares the current week with the previous one. It returns nil
// when neither week has any transaction.
func (g *Generator) Weekly(current, previous []model.Transaction, categories []model.Category, period, previousPeriod model.Period) *model.WeeklySummary {
	if len(current) == 0 && len(previous) == 0 {
		return nil
	}

	summary := Summarize(current)
	prevSummary := Summarize(previous)

	topIncome := withIcons(aggregate.TopCategories(current, model.TransactionTypeIncome, TopCategoryLimit), categories)
	topExpense := withIcons(aggregate.TopCategories(current, model.TransactionTypeExpense, TopCategoryLimit), categories)
	notable := NotableTransactions(current, NotableThreshold)

	return &model.WeeklySummary{
		Period:               period,
		PreviousPeriod:       previousPeriod,
		Summary:              summary,
		PreviousSummary:      prevSummary,
		Trends:               CompareTotals(summary, prevSummary),
		TopIncomeCategories:  topIncome,
		TopExpenseCategories: topExpense,
		NotableTransactions:  notable,
		Insights:             g.Insights(summary, prevSummary, topIncome, topExpense, notable),
	}
}

func withIcons(totals []model.CategoryTotal, categories []model.Category) []model.CategoryTotal {
	for i := range totals {
		totals[i].Icon = model.IconFor(categories, totals[i].Name, totals[i].Type)
	}
	return totals
}
