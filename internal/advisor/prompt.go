package advisor

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/Veraticus/the-cash-must-flow/internal/aggregate"
	"github.com/Veraticus/the-cash-must-flow/internal/currency"
	"github.com/Veraticus/the-cash-must-flow/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Prompt context limits.
const (
	TopExpenseLimit = 5
	RecentLimit     = 10
	HistoryLimit    = 3
)

// PromptBuilder renders prompts from the embedded templates.
type PromptBuilder struct {
	templates map[string]*template.Template
	symbol    string
}

// NewPromptBuilder loads the templates, formatting amounts with symbol.
func NewPromptBuilder(symbol string) (*PromptBuilder, error) {
	if symbol == "" {
		symbol = currency.DefaultSymbol
	}
	pb := &PromptBuilder{
		templates: make(map[string]*template.Template),
		symbol:    symbol,
	}

	funcMap := template.FuncMap{
		"money":    pb.money,
		"percent":  formatPercent,
		"sign":     sign,
		"describe": describe,
		"join":     strings.Join,
	}

	for _, name := range []string{"context_prompt", "narrative_prompt"} {
		filename := fmt.Sprintf("templates/%s.tmpl", name)
		tmpl, err := template.New(name + ".tmpl").Funcs(funcMap).ParseFS(templateFS, filename)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pb.templates[name] = tmpl
	}

	return pb, nil
}

// ContextData is everything the financial-context prompt shows.
type ContextData struct {
	Query            string
	QueryType        QueryType
	CategoryNames    []string
	TopExpenses      []model.CategoryTotal
	Recent           []model.Transaction
	History          []Exchange
	TotalIncome      float64
	TotalExpenses    float64
	Net              float64
	TransactionCount int
	RecentLimit      int
}

// NewContextData summarizes txns for a prompt. history is trimmed to the
// last HistoryLimit exchanges.
func NewContextData(txns []model.Transaction, categories []model.Category, history []Exchange, query string, typ QueryType) ContextData {
	income := aggregate.Sum(txns, model.TransactionTypeIncome)
	expense := aggregate.Sum(txns, model.TransactionTypeExpense)

	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}

	if len(history) > HistoryLimit {
		history = history[len(history)-HistoryLimit:]
	}

	return ContextData{
		Query:            query,
		QueryType:        typ,
		CategoryNames:    names,
		TopExpenses:      aggregate.TopCategories(withCategory(txns), model.TransactionTypeExpense, TopExpenseLimit),
		Recent:           RecentTransactions(txns, RecentLimit),
		History:          history,
		TotalIncome:      income,
		TotalExpenses:    expense,
		Net:              income - expense,
		TransactionCount: len(txns),
		RecentLimit:      RecentLimit,
	}
}

// BuildContextPrompt renders the financial-context prompt.
func (pb *PromptBuilder) BuildContextPrompt(data ContextData) (string, error) {
	return pb.execute("context_prompt", data)
}

// BuildNarrativePrompt renders the weekly narrative prompt.
func (pb *PromptBuilder) BuildNarrativePrompt(summary *model.WeeklySummary) (string, error) {
	if summary == nil {
		return "", fmt.Errorf("no weekly summary to narrate")
	}
	return pb.execute("narrative_prompt", summary)
}

func (pb *PromptBuilder) execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := pb.templates[name].ExecuteTemplate(&buf, name+".tmpl", data); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", name, err)
	}
	return buf.String(), nil
}

// RecentTransactions returns up to limit transactions, newest first.
func RecentTransactions(txns []model.Transaction, limit int) []model.Transaction {
	out := make([]model.Transaction, len(txns))
	copy(out, txns)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func withCategory(txns []model.Transaction) []model.Transaction {
	out := make([]model.Transaction, len(txns))
	for i, t := range txns {
		if strings.TrimSpace(t.Category) == "" {
			t.Category = "Uncategorized"
		}
		out[i] = t
	}
	return out
}

func (pb *PromptBuilder) money(v float64) string {
	return currency.Format(pb.symbol, v)
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

func sign(typ model.TransactionType) string {
	if typ == model.TransactionTypeIncome {
		return "+"
	}
	return "-"
}

func describe(s string) string {
	if strings.TrimSpace(s) == "" {
		return "No description"
	}
	return s
}
