package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/the-cash-must-flow/internal/common"
	"github.com/Veraticus/the-cash-must-flow/internal/model"
)

// GetCategories returns a user's categories ordered by type and name.
func (s *SQLiteStorage) GetCategories(ctx context.Context, userID string) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	query := `
		SELECT id, name, type, icon, created_at
		FROM categories
		WHERE user_id = ?
		ORDER BY type, name`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	categories := []model.Category{}
	for rows.Next() {
		var (
			cat model.Category
			typ string
		)
		if err := rows.Scan(&cat.ID, &cat.Name, &typ, &cat.Icon, &cat.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cat.Type = model.TransactionType(typ)
		categories = append(categories, cat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	slog.Debug("retrieved categories", "count", len(categories))
	return categories, nil
}

// GetCategoryByName returns the named category of the given type.
func (s *SQLiteStorage) GetCategoryByName(ctx context.Context, userID, name string, typ model.TransactionType) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateCategory(name, typ); err != nil {
		return nil, err
	}

	query := `
		SELECT id, name, type, icon, created_at
		FROM categories
		WHERE user_id = ? AND name = ? AND type = ?`

	var (
		cat    model.Category
		catTyp string
	)
	err := s.db.QueryRowContext(ctx, query, userID, strings.TrimSpace(name), string(typ)).Scan(
		&cat.ID, &cat.Name, &catTyp, &cat.Icon, &cat.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %q: %w", name, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}
	cat.Type = model.TransactionType(catTyp)

	return &cat, nil
}

// CreateCategory creates a new category for a user.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, userID, name string, typ model.TransactionType, icon string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateCategory(name, typ); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, type, icon) VALUES (?, ?, ?, ?)`,
		userID, name, string(typ), icon,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("category %q: %w", name, common.ErrDuplicateEntry)
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get category ID: %w", err)
	}

	return s.GetCategoryByID(ctx, userID, int(id))
}

// GetCategoryByID returns a category by its ID.
func (s *SQLiteStorage) GetCategoryByID(ctx context.Context, userID string, id int) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		cat model.Category
		typ string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, type, icon, created_at
		FROM categories
		WHERE user_id = ? AND id = ?`, userID, id).Scan(
		&cat.ID, &cat.Name, &typ, &cat.Icon, &cat.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}
	cat.Type = model.TransactionType(typ)
	return &cat, nil
}

// DeleteCategory removes a category. Transactions keep their category name.
func (s *SQLiteStorage) DeleteCategory(ctx context.Context, userID string, id int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("category %d: %w", id, common.ErrNotFound)
	}
	return nil
}
