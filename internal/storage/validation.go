// Package storage provides the data persistence layer for the cash application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Veraticus/the-cash-must-flow/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidDateRange   = errors.New("start date must be before end date")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidCategory    = errors.New("invalid category")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i := range transactions {
		if err := validateTransaction(&transactions[i]); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if !txn.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, txn.Type)
	}
	if txn.Date.IsZero() || !txn.Date.IsValid() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if math.IsNaN(txn.Amount) || math.IsInf(txn.Amount, 0) || txn.Amount < 0 {
		return fmt.Errorf("%w: amount must be a non-negative number", ErrInvalidTransaction)
	}
	if strings.TrimSpace(txn.Category) == "" {
		return fmt.Errorf("%w: missing category", ErrInvalidTransaction)
	}
	return nil
}

// validateCategory validates category fields before insert.
func validateCategory(name string, typ model.TransactionType) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidCategory)
	}
	if !typ.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidCategory, typ)
	}
	return nil
}
