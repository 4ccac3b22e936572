package model

import (
	"crypto/sha256"
	"fmt"

	"cloud.google.com/go/civil"
)

// TransactionType separates money coming in from money going out.
type TransactionType string

const (
	// TransactionTypeIncome marks money received.
	TransactionTypeIncome TransactionType = "income"
	// TransactionTypeExpense marks money spent.
	TransactionTypeExpense TransactionType = "expense"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

// ParseTransactionType converts user input into a TransactionType.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown transaction type %q (want income or expense)", s)
	}
	return t, nil
}

// Transaction is a single income or expense record.
// Amounts are always positive; the Type carries the direction.
type Transaction struct {
	Date        civil.Date      `json:"date"`
	ID          string          `json:"id"`
	Type        TransactionType `json:"type"`
	Category    string          `json:"category"`
	Description string          `json:"description,omitempty"`
	Amount      float64         `json:"amount"`
}

// GenerateHash creates a stable hash for duplicate detection on import.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%.2f:%s:%s",
		t.Date.String(),
		t.Type,
		t.Amount,
		t.Category,
		t.Description)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// FilterByType returns the transactions of the given type, preserving order.
func FilterByType(txns []Transaction, typ TransactionType) []Transaction {
	out := make([]Transaction, 0, len(txns))
	for _, t := range txns {
		if t.Type == typ {
			out = append(out, t)
		}
	}
	return out
}
