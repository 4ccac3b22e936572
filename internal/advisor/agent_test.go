package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-cash-must-flow/internal/model"
	"github.com/Veraticus/the-cash-must-flow/internal/testutil"
)

type recordingModel struct {
	err     error
	reply   string
	prompts []string
}

func (m *recordingModel) Complete(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if m.reply != "" {
		return m.reply, nil
	}
	return fmt.Sprintf("answer %d", len(m.prompts)), nil
}

func (m *recordingModel) lastPrompt() string {
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

func sampleTransactions() []model.Transaction {
	b := testutil.NewTxnBuilder().
		Income("2024-03-01", 5000, "Sales").Described("Invoice 1042").
		Expense("2024-03-02", 1200, "Rent").
		Expense("2024-03-03", 300, "Supplies").Described("Printer paper").
		Expense("2024-03-04", 80, "Utilities")
	for i := 0; i < 10; i++ {
		b.Expense(fmt.Sprintf("2024-03-%02d", 10+i), float64(10+i), "Snacks")
	}
	return b.Build()
}

func newTestAgent(t *testing.T, tm *recordingModel, txns []model.Transaction) *Agent {
	t.Helper()
	db := testutil.SetupTestDBWithOptions(t, testutil.TestDBOptions{
		Transactions: txns,
		Categories: []model.Category{
			{Name: "Sales", Type: model.TransactionTypeIncome},
			{Name: "Rent", Type: model.TransactionTypeExpense},
		},
	})
	pb, err := NewPromptBuilder("₹")
	require.NoError(t, err)

	clock := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	agent := New(db.Storage, db.Storage, tm, pb, WithClock(func() time.Time { return clock }))
	require.NoError(t, agent.Initialize(context.Background(), testutil.TestUserID))
	return agent
}

func TestAskBeforeInitialize(t *testing.T) {
	pb, err := NewPromptBuilder("")
	require.NoError(t, err)
	tm := &recordingModel{}
	agent := New(nil, nil, tm, pb)

	assert.False(t, agent.Initialized())
	assert.Equal(t, NotInitializedReply, agent.Ask(context.Background(), "How am I doing?", QueryGeneral))
	assert.Empty(t, tm.prompts)
	assert.Empty(t, agent.History())
}

func TestContextPrompt(t *testing.T) {
	tm := &recordingModel{}
	agent := newTestAgent(t, tm, sampleTransactions())

	reply := agent.Ask(context.Background(), "Where does my money go?", "")
	assert.Equal(t, "answer 1", reply)

	prompt := tm.lastPrompt()
	assert.Contains(t, prompt, "- Total Income: ₹5,000")
	assert.Contains(t, prompt, "- Net Balance: ₹3,275")
	assert.Contains(t, prompt, "- Number of Transactions: 14")
	assert.Contains(t, prompt, "- Available Categories: Rent, Sales")
	assert.Contains(t, prompt, "QUERY TYPE: general")
	assert.Contains(t, prompt, "USER QUERY: Where does my money go?")

	top := prompt[strings.Index(prompt, "TOP EXPENSE CATEGORIES:"):strings.Index(prompt, "RECENT TRANSACTIONS")]
	assert.Equal(t, 4, strings.Count(top, "\n- "))
	assert.Less(t, strings.Index(top, "Rent"), strings.Index(top, "Supplies"))

	recent := prompt[strings.Index(prompt, "RECENT TRANSACTIONS"):strings.Index(prompt, "CONVERSATION HISTORY")]
	assert.Equal(t, RecentLimit, strings.Count(recent, "\n- "))
	assert.Contains(t, recent, "- 2024-03-19: -₹19.00 (Snacks) - No description")
	assert.NotContains(t, recent, "Invoice 1042")
}

func TestConversationHistory(t *testing.T) {
	ctx := context.Background()
	tm := &recordingModel{}
	agent := newTestAgent(t, tm, sampleTransactions())

	for i := 1; i <= 5; i++ {
		agent.Ask(ctx, fmt.Sprintf("question %d", i), QueryGeneral)
	}

	history := agent.History()
	require.Len(t, history, 5)
	assert.Equal(t, "question 5", history[4].Query)
	assert.Equal(t, "answer 5", history[4].Response)
	assert.Equal(t, QueryGeneral, history[4].Type)

	// The fifth prompt saw only the three exchanges before it.
	prompt := tm.prompts[4]
	assert.NotContains(t, prompt, "Q: question 1\n")
	assert.Contains(t, prompt, "Q: question 2\nA: answer 2")
	assert.Contains(t, prompt, "Q: question 4\nA: answer 4")

	agent.ClearHistory()
	assert.Empty(t, agent.History())
}

func TestAskFailures(t *testing.T) {
	tests := []struct {
		name  string
		model *recordingModel
	}{
		{name: "model error", model: &recordingModel{err: errors.New("503 from provider")}},
		{name: "blank reply", model: &recordingModel{reply: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := newTestAgent(t, tt.model, sampleTransactions())
			assert.Equal(t, ErrorReply, agent.Ask(context.Background(), "Anything?", QueryGeneral))
			assert.Empty(t, agent.History())
		})
	}

	t.Run("no model", func(t *testing.T) {
		db := testutil.SetupTestDB(t, sampleTransactions())
		pb, err := NewPromptBuilder("₹")
		require.NoError(t, err)
		agent := New(db.Storage, db.Storage, nil, pb)
		require.NoError(t, agent.Initialize(context.Background(), testutil.TestUserID))
		assert.Equal(t, ErrorReply, agent.Ask(context.Background(), "Anything?", QueryGeneral))
	})
}

func TestCannedQueries(t *testing.T) {
	ctx := context.Background()
	tm := &recordingModel{}
	agent := newTestAgent(t, tm, sampleTransactions())

	tests := []struct {
		name     string
		ask      func() string
		wantType QueryType
		wantText string
	}{
		{
			name:     "anomalies",
			ask:      func() string { return agent.ReviewAnomalies(ctx) },
			wantType: QueryAnomalies,
			wantText: "unusual spending patterns",
		},
		{
			name:     "insights",
			ask:      func() string { return agent.Insights(ctx) },
			wantType: QueryInsights,
			wantText: "5 key financial insights",
		},
		{
			name:     "forecast default period",
			ask:      func() string { return agent.ForecastExpenses(ctx, "") },
			wantType: QueryForecasting,
			wantText: "forecast my expenses for the next_month",
		},
		{
			name:     "summary",
			ask:      func() string { return agent.Summary(ctx, "last quarter") },
			wantType: QuerySummary,
			wantText: "financial summary for last quarter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := tt.ask()
			assert.NotEqual(t, ErrorReply, reply)
			assert.Contains(t, tm.lastPrompt(), "QUERY TYPE: "+string(tt.wantType))
			assert.Contains(t, tm.lastPrompt(), tt.wantText)

			history := agent.History()
			assert.Equal(t, tt.wantType, history[len(history)-1].Type)
		})
	}
}

func TestInitializeError(t *testing.T) {
	db := testutil.SetupTestDB(t, nil)
	require.NoError(t, db.Storage.Close())

	pb, err := NewPromptBuilder("₹")
	require.NoError(t, err)
	agent := New(db.Storage, db.Storage, &recordingModel{}, pb)

	require.Error(t, agent.Initialize(context.Background(), testutil.TestUserID))
	assert.False(t, agent.Initialized())
}

func TestNarrative(t *testing.T) {
	ctx := context.Background()
	summary := &model.WeeklySummary{
		Period: model.Period{Start: testutil.Date("2024-03-31"), End: testutil.Date("2024-04-06")},
		Summary: model.Totals{
			Income:           1200,
			Expense:          200,
			Profit:           1000,
			TransactionCount: 2,
		},
		TopExpenseCategories: []model.CategoryTotal{{Name: "Supplies", Type: model.TransactionTypeExpense, Amount: 200, Count: 1}},
		Insights: []model.Insight{
			{Type: model.InsightPositive, Text: "Income is up this week."},
			{Type: model.InsightInformative, Text: "Top expense category: Supplies."},
		},
	}

	t.Run("text model narrative", func(t *testing.T) {
		tm := &recordingModel{reply: "A strong week."}
		agent := newTestAgent(t, tm, nil)

		assert.Equal(t, "A strong week.", agent.Narrative(ctx, summary))
		prompt := tm.lastPrompt()
		assert.Contains(t, prompt, "WEEK: 2024-03-31 to 2024-04-06")
		assert.Contains(t, prompt, "- Income: ₹1,200")
		assert.Contains(t, prompt, "- Supplies: ₹200")
		assert.Contains(t, prompt, "- Income is up this week.")
		assert.Empty(t, agent.History())
	})

	t.Run("falls back to template insights", func(t *testing.T) {
		agent := newTestAgent(t, &recordingModel{err: errors.New("timeout")}, nil)
		assert.Equal(t, "Income is up this week.\nTop expense category: Supplies.", agent.Narrative(ctx, summary))
	})

	t.Run("nil summary", func(t *testing.T) {
		agent := newTestAgent(t, &recordingModel{}, nil)
		assert.Empty(t, agent.Narrative(ctx, nil))
	})
}

func TestRecentTransactions(t *testing.T) {
	txns := testutil.NewTxnBuilder().
		Expense("2024-03-02", 1, "A").
		Expense("2024-03-05", 2, "B").
		Expense("2024-03-01", 3, "C").
		Build()

	got := RecentTransactions(txns, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].Category)
	assert.Equal(t, "A", got[1].Category)
	assert.Equal(t, "B", txns[1].Category, "input must not be reordered")
}
