// Package currency formats and rounds monetary amounts.
package currency

import (
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// DefaultSymbol is used when no symbol is configured.
const DefaultSymbol = "₹"

// Round rounds v to two decimal places.
func Round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Fixed renders v with exactly two decimals and no grouping, e.g. "1234.50".
func Fixed(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// Format renders v with the symbol, grouped thousands and two decimals,
// e.g. "₹1,234.50". Negative amounts render as "-₹1,234.50".
func Format(symbol string, v float64) string {
	if v < 0 {
		return "-" + symbol + humanize.FormatFloat("#,###.##", -v)
	}
	return symbol + humanize.FormatFloat("#,###.##", v)
}
