package model

import "cloud.google.com/go/civil"

// Direction describes whether a metric moved favorably.
type Direction string

// Trend directions.
const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// InsightType tags an insight line for presentation.
type InsightType string

// Insight tags.
const (
	InsightPositive    InsightType = "positive"
	InsightNegative    InsightType = "negative"
	InsightWarning     InsightType = "warning"
	InsightInformative InsightType = "informative"
)

// Insight is one generated natural-language line.
type Insight struct {
	Type InsightType `json:"type"`
	Text string      `json:"text"`
}

// Period is an inclusive calendar-day range.
type Period struct {
	Start civil.Date `json:"start"`
	End   civil.Date `json:"end"`
}

// Contains reports whether d falls inside the period.
func (p Period) Contains(d civil.Date) bool {
	return !d.Before(p.Start) && !d.After(p.End)
}

// Totals aggregates one week of activity.
type Totals struct {
	Income           float64 `json:"income"`
	Expense          float64 `json:"expense"`
	Profit           float64 `json:"profit"`
	TransactionCount int     `json:"transaction_count"`
}

// Trend is the week-over-week movement of a single metric.
type Trend struct {
	Direction     Direction `json:"direction"`
	Amount        float64   `json:"amount"`
	PercentChange float64   `json:"percent_change"`
}

// Trends groups the per-metric movements.
type Trends struct {
	Income  Trend `json:"income"`
	Expense Trend `json:"expense"`
	Profit  Trend `json:"profit"`
}

// CategoryTotal is a category with its summed amount.
type CategoryTotal struct {
	Name   string          `json:"name"`
	Type   TransactionType `json:"type"`
	Icon   string          `json:"icon,omitempty"`
	Amount float64         `json:"amount"`
	Count  int             `json:"count"`
}

// WeeklySummary compares the current week with the previous one.
type WeeklySummary struct {
	Period               Period          `json:"period"`
	PreviousPeriod       Period          `json:"previous_period"`
	TopIncomeCategories  []CategoryTotal `json:"top_income_categories"`
	TopExpenseCategories []CategoryTotal `json:"top_expense_categories"`
	NotableTransactions  []Transaction   `json:"notable_transactions"`
	Insights             []Insight       `json:"insights"`
	Trends               Trends          `json:"trends"`
	Summary              Totals          `json:"summary"`
	PreviousSummary      Totals          `json:"previous_summary"`
}
