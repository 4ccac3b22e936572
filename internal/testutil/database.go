package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/the-cash-must-flow/internal/model"
	"github.com/Veraticus/the-cash-must-flow/internal/service"
	"github.com/Veraticus/the-cash-must-flow/internal/storage"
)

// TestUserID is the user every seeded fixture belongs to.
const TestUserID = "test-user"

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup    func(context.Context, service.Storage) error
	Categories     []model.Category
	Transactions   []model.Transaction
	SkipMigrations bool
}

// SetupTestDB creates a migrated in-memory database seeded with txns.
func SetupTestDB(t *testing.T, txns []model.Transaction) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{Transactions: txns})
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	ctx := context.Background()

	if !opts.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
	}

	for _, cat := range opts.Categories {
		if _, err := store.CreateCategory(ctx, TestUserID, cat.Name, cat.Type, cat.Icon); err != nil {
			t.Fatalf("failed to seed category %q: %v", cat.Name, err)
		}
	}

	if len(opts.Transactions) > 0 {
		if _, err := store.SaveTransactions(ctx, TestUserID, opts.Transactions); err != nil {
			t.Fatalf("failed to seed transactions: %v", err)
		}
	}

	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	t.Cleanup(func() {
		store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
	}
}
