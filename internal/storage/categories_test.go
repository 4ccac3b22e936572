package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-cash-must-flow/internal/common"
	"github.com/Veraticus/the-cash-must-flow/internal/model"
)

func TestSQLiteStorage_CreateCategory(t *testing.T) {
	tests := []struct {
		name    string
		catName string
		typ     model.TransactionType
		icon    string
		wantErr error
	}{
		{name: "expense category", catName: "Rent", typ: model.TransactionTypeExpense, icon: "🏠"},
		{name: "income category", catName: "Sales", typ: model.TransactionTypeIncome, icon: "💰"},
		{name: "name is trimmed", catName: "  Travel  ", typ: model.TransactionTypeExpense},
		{name: "empty name", catName: " ", typ: model.TransactionTypeExpense, wantErr: ErrInvalidCategory},
		{name: "bad type", catName: "Misc", typ: "transfer", wantErr: ErrInvalidCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, cleanup := createTestStorage(t)
			defer cleanup()
			ctx := context.Background()

			cat, err := store.CreateCategory(ctx, testUser, tt.catName, tt.typ, tt.icon)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, cat.ID)
			assert.Equal(t, tt.typ, cat.Type)
			assert.Equal(t, tt.icon, cat.Icon)
			assert.NotContains(t, cat.Name, " ")
		})
	}
}

func TestSQLiteStorage_CategoryLifecycle(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	rent, err := store.CreateCategory(ctx, testUser, "Rent", model.TransactionTypeExpense, "🏠")
	require.NoError(t, err)
	_, err = store.CreateCategory(ctx, testUser, "Consulting", model.TransactionTypeIncome, "")
	require.NoError(t, err)
	// Same name with a different type is a separate category.
	_, err = store.CreateCategory(ctx, testUser, "Rent", model.TransactionTypeIncome, "")
	require.NoError(t, err)

	_, err = store.CreateCategory(ctx, testUser, "Rent", model.TransactionTypeExpense, "")
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)

	cats, err := store.GetCategories(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, cats, 3)
	assert.Equal(t, model.TransactionTypeExpense, cats[0].Type)
	assert.Equal(t, "Consulting", cats[1].Name)
	assert.Equal(t, "Rent", cats[2].Name)

	got, err := store.GetCategoryByName(ctx, testUser, "Rent", model.TransactionTypeExpense)
	require.NoError(t, err)
	assert.Equal(t, rent.ID, got.ID)
	assert.Equal(t, "🏠", got.Icon)

	require.NoError(t, store.DeleteCategory(ctx, testUser, rent.ID))
	_, err = store.GetCategoryByName(ctx, testUser, "Rent", model.TransactionTypeExpense)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, store.DeleteCategory(ctx, testUser, rent.ID), common.ErrNotFound)

	others, err := store.GetCategories(ctx, "other-user")
	require.NoError(t, err)
	assert.Empty(t, others)
}
