package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Veraticus/the-cash-must-flow/internal/currency"
	"github.com/Veraticus/the-cash-must-flow/internal/model"
	"github.com/Veraticus/the-cash-must-flow/internal/predict"
	"github.com/Veraticus/the-cash-must-flow/internal/recommend"
	"github.com/Veraticus/the-cash-must-flow/internal/storage"
)

// Format selects how report commands print results.
type Format string

// Output formats.
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatJSON:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table or json)", s)
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// Renderer prints reports as styled tables.
type Renderer struct {
	w      io.Writer
	symbol string
}

// NewRenderer creates a Renderer formatting amounts with symbol.
func NewRenderer(w io.Writer, symbol string) *Renderer {
	if symbol == "" {
		symbol = currency.DefaultSymbol
	}
	return &Renderer{w: w, symbol: symbol}
}

func (r *Renderer) money(v float64) string {
	return currency.Format(r.symbol, v)
}

func (r *Renderer) println(s string) error {
	_, err := fmt.Fprintln(r.w, s)
	return err
}

func (r *Renderer) table(header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)

	styled := make([]string, len(header))
	rules := make([]string, len(header))
	for i, h := range header {
		styled[i] = TableHeaderStyle.Render(h)
		rules[i] = strings.Repeat("-", max(len(h), 4))
	}
	fmt.Fprintln(tw, strings.Join(styled, "\t"))
	fmt.Fprintln(tw, strings.Join(rules, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// Forecast prints a forecast and how it was produced.
func (r *Renderer) Forecast(f predict.Forecast) error {
	title := ChartIcon + " Forecast"
	if t := string(f.Type); t != "" {
		title = fmt.Sprintf("%s %s%s forecast", ChartIcon, strings.ToUpper(t[:1]), t[1:])
	}
	if err := r.println(TitleStyle.Render(title)); err != nil {
		return err
	}

	status := fmt.Sprintf("Status: %s  Path: %s", f.Status, f.Path)
	if f.Reason != predict.ReasonNone {
		status += fmt.Sprintf("  Reason: %s", f.Reason)
	}
	if err := r.println(SubtitleStyle.Render(status)); err != nil {
		return err
	}

	if f.Empty() {
		return r.println(FormatWarning("Not enough history to forecast. Add more transactions."))
	}

	rows := make([][]string, 0, len(f.Points))
	var total float64
	for _, p := range f.Points {
		total += p.Amount
		estimate := ""
		if p.IsSimpleEstimate {
			estimate = SubtleStyle.Render("estimate")
		}
		rows = append(rows, []string{p.Date.String(), TypeStyle(p.Type).Render(r.money(p.Amount)), estimate})
	}
	if err := r.table([]string{"Date", "Amount", "Note"}, rows); err != nil {
		return err
	}
	return r.println(BoldStyle.Render(fmt.Sprintf("Total over %d days: %s", len(f.Points), r.money(currency.Round(total)))))
}

// Anomalies prints flagged transactions.
func (r *Renderer) Anomalies(anomalies []model.Anomaly) error {
	if err := r.println(TitleStyle.Render(WarningIcon + " Unusual transactions")); err != nil {
		return err
	}
	if len(anomalies) == 0 {
		return r.println(FormatSuccess("No unusual transactions found."))
	}

	rows := make([][]string, 0, len(anomalies))
	for _, a := range anomalies {
		rows = append(rows, []string{
			a.Date.String(),
			string(a.Type),
			a.Category,
			TypeStyle(a.Type).Render(r.money(a.Amount)),
			r.money(a.ExpectedAmount),
			fmt.Sprintf("%+.0f%%", a.DeviationPercent),
			a.Description,
		})
	}
	return r.table([]string{"Date", "Type", "Category", "Amount", "Expected", "Deviation", "Description"}, rows)
}

// Recommendations prints suggested purchase days.
func (r *Renderer) Recommendations(res recommend.Result) error {
	if err := r.println(TitleStyle.Render(CalendarIcon + " Recommended purchase days")); err != nil {
		return err
	}
	if len(res.Items) == 0 {
		return r.println(FormatInfo("No favorable days found. Add more transactions for better recommendations."))
	}
	if res.Path == recommend.PathHistorical {
		if err := r.println(SubtitleStyle.Render("Based on weekday history")); err != nil {
			return err
		}
	}

	rows := make([][]string, 0, len(res.Items))
	for _, item := range res.Items {
		rows = append(rows, []string{
			item.Date.String(),
			item.Date.In(time.UTC).Weekday().String(),
			IncomeStyle.Render(r.money(item.CashFlow)),
			item.Reason,
		})
	}
	return r.table([]string{"Date", "Day", "Cash flow", "Reason"}, rows)
}

// WeeklySummary prints the week-over-week report. A nil summary prints a
// hint instead.
func (r *Renderer) WeeklySummary(s *model.WeeklySummary) error {
	if s == nil {
		return r.println(FormatInfo("No transactions in the last two weeks."))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s to %s\n\n", s.Period.Start, s.Period.End)
	fmt.Fprintf(&b, "Income   %s  %s\n", IncomeStyle.Render(r.money(s.Summary.Income)), r.trend(s.Trends.Income))
	fmt.Fprintf(&b, "Expenses %s  %s\n", ExpenseStyle.Render(r.money(s.Summary.Expense)), r.trend(s.Trends.Expense))
	fmt.Fprintf(&b, "Profit   %s  %s\n", BoldStyle.Render(r.money(s.Summary.Profit)), r.trend(s.Trends.Profit))
	fmt.Fprintf(&b, "Transactions: %d", s.Summary.TransactionCount)

	r.categoryLines(&b, "Top income", s.TopIncomeCategories)
	r.categoryLines(&b, "Top expenses", s.TopExpenseCategories)

	if len(s.NotableTransactions) > 0 {
		b.WriteString("\n\nNotable")
		for _, t := range s.NotableTransactions {
			fmt.Fprintf(&b, "\n  %s  %s  %s", t.Date, TypeStyle(t.Type).Render(r.money(t.Amount)), t.Category)
			if t.Description != "" {
				b.WriteString("  " + SubtleStyle.Render(t.Description))
			}
		}
	}

	if len(s.Insights) > 0 {
		b.WriteString("\n\nInsights")
		for _, in := range s.Insights {
			b.WriteString("\n  " + InsightStyle(in.Type).Render("• "+in.Text))
		}
	}

	return r.println(RenderBox(CashIcon+" Weekly summary", b.String()))
}

func (r *Renderer) categoryLines(b *strings.Builder, title string, totals []model.CategoryTotal) {
	if len(totals) == 0 {
		return
	}
	fmt.Fprintf(b, "\n\n%s", title)
	for _, c := range totals {
		name := c.Name
		if c.Icon != "" {
			name = c.Icon + " " + name
		}
		fmt.Fprintf(b, "\n  %s  %s (%d)", name, r.money(c.Amount), c.Count)
	}
}

func (r *Renderer) trend(t model.Trend) string {
	arrow := "▲"
	if t.Direction == model.DirectionDown {
		arrow = "▼"
	}
	return SubtleStyle.Render(fmt.Sprintf("%s %.1f%% (%s)", arrow, t.PercentChange, r.money(t.Amount)))
}

// Categories prints the category list.
func (r *Renderer) Categories(categories []model.Category) error {
	if len(categories) == 0 {
		return r.println(FormatInfo("No categories found. Use 'cash categories add' to create one."))
	}
	rows := make([][]string, 0, len(categories))
	for _, c := range categories {
		rows = append(rows, []string{fmt.Sprint(c.ID), c.Icon, c.Name, TypeStyle(c.Type).Render(string(c.Type))})
	}
	return r.table([]string{"ID", "Icon", "Name", "Type"}, rows)
}

// Backups prints backup metadata, newest first as given.
func (r *Renderer) Backups(backups []storage.BackupInfo) error {
	if len(backups) == 0 {
		return r.println(SubtitleStyle.Render("No backups found."))
	}
	rows := make([][]string, 0, len(backups))
	for _, b := range backups {
		kind := "manual"
		if b.IsAuto {
			kind = SubtleStyle.Render("auto")
		}
		rows = append(rows, []string{
			InfoStyle.Render(b.ID),
			humanize.Time(b.CreatedAt),
			humanize.Bytes(uint64(max(b.FileSize, 0))),
			fmt.Sprint(b.Transactions),
			kind,
			b.Description,
		})
	}
	return r.table([]string{"ID", "Created", "Size", "Txns", "Kind", "Description"}, rows)
}
