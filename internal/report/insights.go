package report

import (
	"fmt"
	"math"

	"github.com/Veraticus/the-cash-must-flow/internal/currency"
	"github.com/Veraticus/the-cash-must-flow/internal/model"
)

// Insight thresholds, in percent.
const (
	incomeRiseThreshold   = 15
	incomeFallThreshold   = -15
	expenseFallThreshold  = -10
	expenseRiseThreshold  = 20
	profitChangeThreshold = 20
)

// NoActivityInsight is the only line emitted for an empty current week.
const NoActivityInsight = "No transactions found for this week. Add transactions to see insights."

// Insights renders the templated lines in a fixed order: income, expense,
// profit, top income category, top expense category, notable transaction.
func (g *Generator) Insights(current, previous model.Totals, topIncome, topExpense []model.CategoryTotal, notable []model.Transaction) []model.Insight {
	if current.TransactionCount == 0 {
		return []model.Insight{{Type: model.InsightInformative, Text: NoActivityInsight}}
	}

	insights := []model.Insight{}
	add := func(typ model.InsightType, format string, args ...any) {
		insights = append(insights, model.Insight{Type: typ, Text: fmt.Sprintf(format, args...)})
	}

	if current.Income > 0 && previous.Income > 0 {
		change := PercentChange(current.Income, previous.Income)
		switch {
		case change > incomeRiseThreshold:
			add(model.InsightPositive, "Great job! Your income increased by %.1f%% compared to last week.", change)
		case change < incomeFallThreshold:
			add(model.InsightNegative, "Your income decreased by %.1f%% compared to last week.", math.Abs(change))
		}
	}

	if current.Expense > 0 && previous.Expense > 0 {
		change := PercentChange(current.Expense, previous.Expense)
		switch {
		case change < expenseFallThreshold:
			add(model.InsightPositive, "Your expenses decreased by %.1f%% compared to last week.", math.Abs(change))
		case change > expenseRiseThreshold:
			add(model.InsightWarning, "Your expenses increased by %.1f%% compared to last week.", change)
		}
	}

	switch {
	case current.Profit > 0 && previous.Profit > 0:
		change := PercentChange(current.Profit, previous.Profit)
		switch {
		case change > profitChangeThreshold:
			add(model.InsightPositive, "Your profit increased significantly by %.1f%% compared to last week.", change)
		case change < -profitChangeThreshold:
			add(model.InsightNegative, "Your profit decreased by %.1f%% compared to last week.", math.Abs(change))
		}
	case current.Profit < 0:
		add(model.InsightWarning, "You're operating at a loss this week. Your expenses (%s) exceed your income (%s).",
			g.money(current.Expense), g.money(current.Income))
	}

	if len(topIncome) > 0 {
		add(model.InsightInformative, "Your top income source this week was %s (%s).", topIncome[0].Name, g.money(topIncome[0].Amount))
	}
	if len(topExpense) > 0 {
		add(model.InsightInformative, "Your largest expense category this week was %s (%s).", topExpense[0].Name, g.money(topExpense[0].Amount))
	}

	if len(notable) > 0 {
		n := notable[0]
		typ := model.InsightInformative
		if n.Type == model.TransactionTypeIncome {
			typ = model.InsightPositive
		}
		add(typ, "Notable %s: %s on %s (%s).", n.Type, g.money(n.Amount), n.Date.String(), n.Category)
	}

	return insights
}

func (g *Generator) money(v float64) string {
	symbol := g.Symbol
	if symbol == "" {
		symbol = currency.DefaultSymbol
	}
	return currency.Format(symbol, v)
}
