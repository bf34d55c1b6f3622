package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeBookingRecord  = "booking:record"
	TypeCleanupRecords = "cleanup:records"
)

// BookingRecordPayload carries the outcome of a booking attempt to the
// worker for persistence, keeping DB writes off the browser path.
type BookingRecordPayload struct {
	RecordID  uuid.UUID `json:"record_id"`
	Email     string    `json:"email"`
	SlotStart time.Time `json:"slot_start"`
	Status    string    `json:"status"` // "confirmed", "failed"
	Detail    string    `json:"detail"`
}

func (p *BookingRecordPayload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

func (p *BookingRecordPayload) Unmarshal(data []byte) error {
	return json.Unmarshal(data, p)
}

// NewBookingRecordTask creates a booking record persistence task
func NewBookingRecordTask(payload BookingRecordPayload) (*asynq.Task, error) {
	data, err := payload.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeBookingRecord, data), nil
}

// CleanupRecordsPayload is the payload for record retention tasks
type CleanupRecordsPayload struct {
	MaxAgeHours int `json:"max_age_hours"`
}

func (p *CleanupRecordsPayload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

func (p *CleanupRecordsPayload) Unmarshal(data []byte) error {
	return json.Unmarshal(data, p)
}

// NewCleanupRecordsTask creates a record retention task
func NewCleanupRecordsTask(payload CleanupRecordsPayload) (*asynq.Task, error) {
	data, err := payload.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeCleanupRecords, data), nil
}
