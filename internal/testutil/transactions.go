// Package testutil provides shared fixtures for transaction-driven tests.
package testutil

import (
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/Veraticus/the-cash-must-flow/internal/model"
)

// Date parses a YYYY-MM-DD literal and panics on malformed input.
func Date(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(fmt.Sprintf("testutil: bad date %q: %v", s, err))
	}
	return d
}

// TxnBuilder assembles transaction fixtures with sequential IDs.
//
// Example:
//
//	txns := testutil.NewTxnBuilder().
//		Expense("2024-03-04", 100, "Supplies").
//		Income("2024-03-05", 900, "Sales").
//		Build()
type TxnBuilder struct {
	txns []model.Transaction
}

// NewTxnBuilder creates an empty builder.
func NewTxnBuilder() *TxnBuilder {
	return &TxnBuilder{}
}

// Add appends a transaction of any type.
func (b *TxnBuilder) Add(typ model.TransactionType, date string, amount float64, category string) *TxnBuilder {
	b.txns = append(b.txns, model.Transaction{
		ID:       fmt.Sprintf("txn-%03d", len(b.txns)+1),
		Type:     typ,
		Amount:   amount,
		Category: category,
		Date:     Date(date),
	})
	return b
}

// Income appends an income transaction.
func (b *TxnBuilder) Income(date string, amount float64, category string) *TxnBuilder {
	return b.Add(model.TransactionTypeIncome, date, amount, category)
}

// Expense appends an expense transaction.
func (b *TxnBuilder) Expense(date string, amount float64, category string) *TxnBuilder {
	return b.Add(model.TransactionTypeExpense, date, amount, category)
}

// Daily appends one transaction per consecutive day starting at start,
// with amounts given in order.
func (b *TxnBuilder) Daily(typ model.TransactionType, start string, category string, amounts ...float64) *TxnBuilder {
	d := Date(start)
	for _, a := range amounts {
		b.Add(typ, d.String(), a, category)
		d = d.AddDays(1)
	}
	return b
}

// Described sets the description on the last added transaction.
func (b *TxnBuilder) Described(desc string) *TxnBuilder {
	if n := len(b.txns); n > 0 {
		b.txns[n-1].Description = desc
	}
	return b
}

// Build returns a copy of the assembled transactions.
func (b *TxnBuilder) Build() []model.Transaction {
	out := make([]model.Transaction, len(b.txns))
	copy(out, b.txns)
	return out
}

// Ramp returns n values starting at start and increasing by step.
func Ramp(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}
