// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"cloud.google.com/go/civil"

	"github.com/Veraticus/the-cash-must-flow/internal/model"
)

// TransactionSource is the read side of the persistence collaborator.
type TransactionSource interface {
	GetTransactionsInRange(ctx context.Context, userID string, start, end civil.Date) ([]model.Transaction, error)
	GetAllTransactions(ctx context.Context, userID string) ([]model.Transaction, error)
}

// CategorySource supplies category metadata for summaries and prompts.
type CategorySource interface {
	GetCategories(ctx context.Context, userID string) ([]model.Category, error)
}

// FlagStore persists small boolean settings between runs.
// GetFlag reports ok=false when the key has never been written.
type FlagStore interface {
	GetFlag(ctx context.Context, key string) (value bool, ok bool, err error)
	SetFlag(ctx context.Context, key string, value bool) error
	DeleteFlag(ctx context.Context, key string) error
}

// TextModel is the external text-generation collaborator.
type TextModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	TransactionSource
	CategorySource
	FlagStore

	SaveTransactions(ctx context.Context, userID string, transactions []model.Transaction) (int, error)
	GetTransactionByID(ctx context.Context, userID, id string) (*model.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id string) error

	GetCategoryByName(ctx context.Context, userID, name string, typ model.TransactionType) (*model.Category, error)
	CreateCategory(ctx context.Context, userID, name string, typ model.TransactionType, icon string) (*model.Category, error)
	DeleteCategory(ctx context.Context, userID string, id int) error

	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	SaveTransactions(ctx context.Context, userID string, transactions []model.Transaction) (int, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
