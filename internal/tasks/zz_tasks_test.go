package tasks

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBookingRecordTask(t *testing.T) {
	payload := BookingRecordPayload{
		RecordID:  uuid.New(),
		Email:     "alice@example.com",
		SlotStart: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		Status:    "confirmed",
	}

	task, err := NewBookingRecordTask(payload)
	require.NoError(t, err)
	assert.Equal(t, TypeBookingRecord, task.Type())

	var got BookingRecordPayload
	require.NoError(t, got.Unmarshal(task.Payload()))
	assert.Equal(t, payload.RecordID, got.RecordID)
	assert.Equal(t, payload.Email, got.Email)
}

func TestNewCleanupRecordsTask(t *testing.T) {
	task, err := NewCleanupRecordsTask(CleanupRecordsPayload{MaxAgeHours: 720})
	require.NoError(t, err)
	assert.Equal(t, TypeCleanupRecords, task.Type())

	var got CleanupRecordsPayload
	require.NoError(t, got.Unmarshal(task.Payload()))
	assert.Equal(t, 720, got.MaxAgeHours)
}
