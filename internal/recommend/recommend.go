// Package recommend suggests favorable purchase days from projected or
// historical cash flow.
package recommend

import (
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"

	"github.com/Veraticus/the-cash-must-flow/internal/aggregate"
	"github.com/Veraticus/the-cash-must-flow/internal/currency"
	"github.com/Veraticus/the-cash-must-flow/internal/model"
	"github.com/Veraticus/the-cash-must-flow/internal/predict"
)

// Limits and defaults.
const (
	MaxRecommendations   = 3
	DefaultLookaheadDays = 14
)

// Reason strings.
const (
	ReasonEstimate   = "Projected positive cash flow based on historical patterns (estimate)"
	ReasonHistorical = "Historically good day for cash flow based on past transactions (simple recommendation)"
)

// Path names which recommender produced a Result.
type Path string

// Recommendation paths.
const (
	PathForecast   Path = "forecast"
	PathHistorical Path = "historical"
	PathNone       Path = "none"
)

// Result is the outcome of a recommendation call.
type Result struct {
	Path  Path                   `json:"path"`
	Items []model.Recommendation `json:"items"`
}

type dayFlow struct {
	date    civil.Date
	income  float64
	expense float64
	simple  bool
}

func (d dayFlow) cashFlow() float64 {
	return d.income - d.expense
}

// FromForecasts combines income and expense forecasts into at most
// MaxRecommendations days with positive projected cash flow.
func FromForecasts(income, expense predict.Forecast, symbol string) []model.Recommendation {
	days := make(map[civil.Date]*dayFlow)
	var order []civil.Date
	get := func(d civil.Date) *dayFlow {
		df, ok := days[d]
		if !ok {
			df = &dayFlow{date: d}
			days[d] = df
			order = append(order, d)
		}
		return df
	}

	for _, p := range income.Points {
		df := get(p.Date)
		df.income += p.Amount
		df.simple = df.simple || p.IsSimpleEstimate
	}
	for _, p := range expense.Points {
		df := get(p.Date)
		df.expense += p.Amount
		df.simple = df.simple || p.IsSimpleEstimate
	}

	flows := make([]dayFlow, 0, len(order))
	for _, d := range order {
		flows = append(flows, *days[d])
	}
	sort.SliceStable(flows, func(i, j int) bool {
		return flows[i].cashFlow() > flows[j].cashFlow()
	})

	out := []model.Recommendation{}
	for _, f := range flows {
		if len(out) == MaxRecommendations {
			break
		}
		cf := currency.Round(f.cashFlow())
		if cf <= 0 {
			break
		}
		reason := ReasonEstimate
		if !f.simple {
			reason = fmt.Sprintf("Projected high positive cash flow: Income %s%s - Expenses %s%s",
				symbol, currency.Fixed(f.income), symbol, currency.Fixed(f.expense))
		}
		out = append(out, model.Recommendation{Date: f.date, CashFlow: cf, Reason: reason})
	}
	return out
}

// Historical ranks weekdays by historical net cash flow and maps the best
// ones to their next occurrence strictly after today.
func Historical(txns []model.Transaction, today civil.Date) []model.Recommendation {
	income, expense := aggregate.ByWeekday(txns)

	type weekdayNet struct {
		day time.Weekday
		net float64
	}
	var nets []weekdayNet
	for d := time.Sunday; d <= time.Saturday; d++ {
		if net := income[d] - expense[d]; net > 0 {
			nets = append(nets, weekdayNet{day: d, net: net})
		}
	}
	sort.SliceStable(nets, func(i, j int) bool {
		return nets[i].net > nets[j].net
	})
	if len(nets) > MaxRecommendations {
		nets = nets[:MaxRecommendations]
	}

	out := make([]model.Recommendation, 0, len(nets))
	for _, n := range nets {
		out = append(out, model.Recommendation{
			Date:     NextWeekday(today, n.day),
			CashFlow: currency.Round(n.net),
			Reason:   ReasonHistorical,
		})
	}
	return out
}

// NextWeekday returns the first date after today falling on wd.
// If today is wd the result is one week later.
func NextWeekday(today civil.Date, wd time.Weekday) civil.Date {
	current := today.In(time.UTC).Weekday()
	days := int(wd) - int(current)
	if days <= 0 {
		days += 7
	}
	return today.AddDays(days)
}
