package booking

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type RecordStatus string

const (
	StatusConfirmed RecordStatus = "confirmed"
	StatusFailed    RecordStatus = "failed"
)

// Record is the persisted audit trail of one booking attempt. Pool and
// registry state is never persisted; only outcomes are.
type Record struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Email     string         `json:"email" gorm:"index"`
	SlotStart time.Time      `json:"slot_start"`
	Status    RecordStatus   `json:"status" gorm:"index"`
	Details   datatypes.JSON `json:"details,omitempty" gorm:"type:jsonb"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (Record) TableName() string { return "booking_records" }

// Slot is one open appointment offered by the scheduling widget.
type Slot struct {
	Start time.Time `json:"start"`
	Label string    `json:"label"`
}

// AvailabilityRequest asks for open slots around a date. Email keys the
// session so a follow-up booking reuses the navigated browser.
type AvailabilityRequest struct {
	Email string `json:"email"`
	Date  string `json:"date"` // YYYY-MM-DD, empty means widget default view
}

// AvailabilityResult returns the discovered slots plus the session key the
// caller should present when booking.
type AvailabilityResult struct {
	SessionKey string `json:"session_key"`
	Slots      []Slot `json:"slots"`
}

// BookRequest books a specific slot, reusing the availability session when
// one is still alive for the key.
type BookRequest struct {
	Email     string    `json:"email" binding:"required"`
	Name      string    `json:"name"`
	SlotStart time.Time `json:"slot_start" binding:"required"`
}

// Confirmation is the widget's acknowledgement of a completed booking.
type Confirmation struct {
	Reference string    `json:"reference"`
	SlotStart time.Time `json:"slot_start"`
}
