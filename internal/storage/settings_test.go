package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorage_Flags(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, ok, err := store.GetFlag(ctx, "ai_feature_enabled")
	require.NoError(t, err)
	assert.False(t, ok, "unset flag should report ok=false")

	require.NoError(t, store.SetFlag(ctx, "ai_feature_enabled", false))
	value, ok, err := store.GetFlag(ctx, "ai_feature_enabled")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, value)

	require.NoError(t, store.SetFlag(ctx, "ai_feature_enabled", true))
	value, ok, err = store.GetFlag(ctx, "ai_feature_enabled")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, value)

	require.NoError(t, store.DeleteFlag(ctx, "ai_feature_enabled"))
	require.NoError(t, store.DeleteFlag(ctx, "ai_feature_enabled"))
	_, ok, err = store.GetFlag(ctx, "ai_feature_enabled")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStorage_FlagRejectsGarbage(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	_, err := store.db.Exec(`INSERT INTO settings (key, value) VALUES ('broken', 'maybe')`)
	require.NoError(t, err)

	_, _, err = store.GetFlag(context.Background(), "broken")
	assert.Error(t, err)

	_, _, err = store.GetFlag(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyString)
}
