package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/Veraticus/the-cash-must-flow/internal/common"
	"github.com/Veraticus/the-cash-must-flow/internal/model"
)

const transactionColumns = `id, type, amount, category, date, description`

// SaveTransactions inserts transactions for a user, skipping duplicates.
// Transactions without an ID get a generated one. It returns how many rows
// were actually inserted.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, userID string, transactions []model.Transaction) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return 0, err
	}
	if err := validateTransactions(transactions); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted, err := s.saveTransactionsTx(ctx, tx, userID, transactions)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transactions: %w", err)
	}
	return inserted, nil
}

func (s *SQLiteStorage) saveTransactionsTx(ctx context.Context, tx *sql.Tx, userID string, transactions []model.Transaction) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO transactions (
			id, user_id, hash, type, amount, category, date, description
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for i := range transactions {
		txn := transactions[i]
		if txn.ID == "" {
			txn.ID = uuid.NewString()
		}

		res, err := stmt.ExecContext(ctx,
			txn.ID,
			userID,
			txn.GenerateHash(),
			string(txn.Type),
			txn.Amount,
			txn.Category,
			txn.Date.String(),
			txn.Description,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	slog.Debug("saved transactions", "user", userID, "submitted", len(transactions), "inserted", inserted)
	return inserted, nil
}

// GetTransactionsInRange returns a user's transactions dated within
// [start, end], oldest first.
func (s *SQLiteStorage) GetTransactionsInRange(ctx context.Context, userID string, start, end civil.Date) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidDateRange, end, start)
	}

	return s.queryTransactions(ctx, s.db, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = ? AND date >= ? AND date <= ?
		ORDER BY date, rowid`,
		userID, start.String(), end.String())
}

// GetAllTransactions returns every transaction of a user, oldest first.
func (s *SQLiteStorage) GetAllTransactions(ctx context.Context, userID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	return s.queryTransactions(ctx, s.db, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = ?
		ORDER BY date, rowid`,
		userID)
}

// GetTransactionByID retrieves a single transaction.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, userID, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	txns, err := s.queryTransactions(ctx, s.db, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = ? AND id = ?`,
		userID, id)
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	return &txns[0], nil
}

// DeleteTransaction removes a single transaction.
func (s *SQLiteStorage) DeleteTransaction(ctx context.Context, userID, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// GetTransactionCount returns the number of transactions a user has.
func (s *SQLiteStorage) GetTransactionCount(ctx context.Context, userID string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func (s *SQLiteStorage) queryTransactions(ctx context.Context, q queryable, query string, args ...any) ([]model.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	transactions := []model.Transaction{}
	for rows.Next() {
		var (
			txn     model.Transaction
			typ     string
			dateStr string
		)
		if err := rows.Scan(&txn.ID, &typ, &txn.Amount, &txn.Category, &dateStr, &txn.Description); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		date, err := civil.ParseDate(dateStr)
		if err != nil {
			return nil, errors.Join(common.ErrDatabaseCorrupted, fmt.Errorf("transaction %s has bad date %q: %w", txn.ID, dateStr, err))
		}
		txn.Date = date
		txn.Type = model.TransactionType(typ)
		transactions = append(transactions, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}
