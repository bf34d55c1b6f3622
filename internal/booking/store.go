package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Store struct{ db *gorm.DB }

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

func (s *Store) CreateRecord(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *Store) GetRecord(ctx context.Context, id uuid.UUID) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) ListRecords(ctx context.Context, status *RecordStatus, offset, limit int) ([]Record, error) {
	query := s.db.WithContext(ctx).Model(&Record{})

	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var records []Record
	err := query.Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error

	return records, err
}

// DeleteOlderThan removes records created before cutoff, returning how
// many were deleted.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&Record{})
	return result.RowsAffected, result.Error
}
