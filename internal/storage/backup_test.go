package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupManager_CreateListRestore(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.SaveTransactions(ctx, testUser, createTestTransactions(t, 4))
	require.NoError(t, err)

	bm, err := store.Backups()
	require.NoError(t, err)

	info, err := bm.Create(ctx, "before-cleanup", "four transactions")
	require.NoError(t, err)
	assert.Equal(t, 4, info.Transactions)
	assert.Equal(t, ExpectedSchemaVersion, info.SchemaVersion)
	assert.Positive(t, info.FileSize)
	assert.False(t, info.IsAuto)

	_, err = bm.Create(ctx, "before-cleanup", "again")
	assert.ErrorIs(t, err, ErrBackupExists)

	list, err := bm.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "before-cleanup", list[0].ID)

	require.NoError(t, store.DeleteTransaction(ctx, testUser, "txn-1"))

	require.NoError(t, bm.Restore(ctx, "before-cleanup"))

	reopened, err := NewSQLiteStorage(store.Path())
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	count, err := reopened.GetTransactionCount(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestBackupManager_AutoBackupPrunes(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	bm, err := store.Backups()
	require.NoError(t, err)

	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < MaxAutoBackups+2; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		bm.now = func() time.Time { return at }
		_, err := bm.AutoBackup(ctx, "import")
		require.NoError(t, err)
	}

	list, err := bm.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, MaxAutoBackups)
	assert.True(t, list[0].CreatedAt.After(list[len(list)-1].CreatedAt))
	for _, b := range list {
		assert.True(t, b.IsAuto)
	}
}

func TestBackupManager_InvalidTags(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	bm, err := store.Backups()
	require.NoError(t, err)

	for _, tag := range []string{"../escape", "a/b", "it's"} {
		_, err := bm.Create(ctx, tag, "")
		assert.ErrorIs(t, err, ErrInvalidBackupTag, tag)
	}
	assert.ErrorIs(t, bm.Restore(ctx, "missing"), ErrBackupNotFound)
	assert.ErrorIs(t, bm.Delete(ctx, "missing"), ErrBackupNotFound)
}

func TestBackups_InMemory(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, err = store.Backups()
	assert.ErrorIs(t, err, ErrInMemoryNoBackups)
}
