package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupStoreTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&Record{}))
	return db
}

func TestStoreCreateAndGetRecord(t *testing.T) {
	db := setupStoreTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	rec := &Record{
		Email:     "alice@example.com",
		SlotStart: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		Status:    StatusConfirmed,
	}
	require.NoError(t, store.CreateRecord(ctx, rec))
	assert.NotEqual(t, uuid.Nil, rec.ID, "an ID must be assigned on create")

	got, err := store.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, StatusConfirmed, got.Status)
}

func TestStoreListRecords(t *testing.T) {
	db := setupStoreTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	for i, status := range []RecordStatus{StatusConfirmed, StatusConfirmed, StatusFailed} {
		require.NoError(t, store.CreateRecord(ctx, &Record{
			Email:     "user@example.com",
			SlotStart: time.Date(2026, 9, 1, 10+i, 0, 0, 0, time.UTC),
			Status:    status,
		}))
	}

	all, err := store.ListRecords(ctx, nil, 0, 50)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	confirmed := StatusConfirmed
	got, err := store.ListRecords(ctx, &confirmed, 0, 50)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	limited, err := store.ListRecords(ctx, nil, 0, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestStoreDeleteOlderThan(t *testing.T) {
	db := setupStoreTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	old := &Record{Email: "old@example.com", Status: StatusConfirmed}
	require.NoError(t, store.CreateRecord(ctx, old))
	require.NoError(t, db.Model(old).Update("created_at", time.Now().Add(-48*time.Hour)).Error)

	fresh := &Record{Email: "fresh@example.com", Status: StatusConfirmed}
	require.NoError(t, store.CreateRecord(ctx, fresh))

	deleted, err := store.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := store.ListRecords(ctx, nil, 0, 50)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "fresh@example.com", remaining[0].Email)
}
