package dao

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// AttendanceRecord rows are append-only; there is deliberately no update
// or delete method on this DAO.
type AttendanceRecord struct {
	ID          uint   `gorm:"primaryKey"`
	SubjectKind string `gorm:"not null"`
	SubjectID   uint   `gorm:"not null;index"`
	EventID     uint   `gorm:"not null;index"`
	Method      string `gorm:"not null"`
	Outcome     string `gorm:"not null"`
	Actor       string `gorm:"not null"`
	Detail      string
	CreatedAt   time.Time `gorm:"not null"`
}

type AttendanceDAO struct {
	db *gorm.DB
}

func NewAttendanceDAO(db *gorm.DB) *AttendanceDAO {
	return &AttendanceDAO{
		db: db,
	}
}

func (d *AttendanceDAO) Insert(ctx context.Context, record AttendanceRecord) (AttendanceRecord, error) {
	result := d.db.WithContext(ctx).Create(&record)
	if result.Error != nil {
		return AttendanceRecord{}, result.Error
	}

	return record, nil
}

func (d *AttendanceDAO) FindByEventID(ctx context.Context, eventID uint, limit, offset int) ([]AttendanceRecord, error) {
	var records []AttendanceRecord

	result := d.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}

	return records, nil
}

func (d *AttendanceDAO) FindBySubject(ctx context.Context, kind string, subjectID uint) ([]AttendanceRecord, error) {
	var records []AttendanceRecord

	result := d.db.WithContext(ctx).
		Where("subject_kind = ? AND subject_id = ?", kind, subjectID).
		Order("created_at ASC").
		Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}

	return records, nil
}
