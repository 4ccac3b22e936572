package anomaly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-cash-must-flow/internal/testutil"
)

func TestDetect(t *testing.T) {
	t.Run("flags the outlier only", func(t *testing.T) {
		b := testutil.NewTxnBuilder()
		for _, d := range []string{"2024-03-01", "2024-03-02", "2024-03-03", "2024-03-04", "2024-03-05"} {
			b.Expense(d, 100, "Supplies")
		}
		b.Expense("2024-03-06", 1000, "Supplies")
		// Padding in partitions too small to baseline.
		b.Expense("2024-03-01", 20, "Fuel").
			Expense("2024-03-02", 5000, "Fuel").
			Income("2024-03-01", 300, "Sales").
			Income("2024-03-02", 9000, "Sales")
		txns := b.Build()
		require.Len(t, txns, 10)

		got := Detect(txns, 2)
		require.Len(t, got, 1)
		assert.InDelta(t, 1000, got[0].Amount, 1e-9)
		assert.Equal(t, "Supplies", got[0].Category)
		assert.InDelta(t, 250, got[0].ExpectedAmount, 1e-9)
		assert.InDelta(t, 300, got[0].DeviationPercent, 1e-9)
	})

	t.Run("fewer than ten transactions", func(t *testing.T) {
		b := testutil.NewTxnBuilder()
		for i := 0; i < 8; i++ {
			b.Expense("2024-03-01", 100, "Supplies")
		}
		b.Expense("2024-03-02", 10000, "Supplies")
		assert.Empty(t, Detect(b.Build(), 2))
	})

	t.Run("partitions are by category and type", func(t *testing.T) {
		b := testutil.NewTxnBuilder()
		for i := 0; i < 5; i++ {
			b.Income("2024-03-01", 1000, "Misc")
			b.Expense("2024-03-01", 10, "Misc")
		}
		assert.Empty(t, Detect(b.Build(), 2), "uniform partitions have no outliers")
	})

	t.Run("sorted by absolute deviation", func(t *testing.T) {
		b := testutil.NewTxnBuilder()
		for i := 0; i < 9; i++ {
			b.Expense("2024-03-01", 100, "Supplies")
			b.Income("2024-03-01", 100, "Sales")
		}
		b.Expense("2024-03-02", 400, "Supplies")
		b.Income("2024-03-02", 1500, "Sales")

		got := Detect(b.Build(), 2)
		require.Len(t, got, 2)
		assert.Equal(t, "Sales", got[0].Category)
		assert.Equal(t, "Supplies", got[1].Category)
		assert.Greater(t, got[0].DeviationPercent, got[1].DeviationPercent)
	})

	t.Run("higher sensitivity flags less", func(t *testing.T) {
		b := testutil.NewTxnBuilder()
		for i := 0; i < 9; i++ {
			b.Expense("2024-03-01", 100, "Supplies")
		}
		b.Expense("2024-03-02", 400, "Supplies")
		txns := b.Build()
		assert.Len(t, Detect(txns, 2), 1)
		assert.Empty(t, Detect(txns, 5))
	})
}
