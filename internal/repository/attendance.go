package repository

import (
	"context"
	"fmt"

	"github.com/attendly/attendly/internal/domain"
	"github.com/attendly/attendly/internal/repository/dao"
)

type AttendanceDAO interface {
	Insert(ctx context.Context, record dao.AttendanceRecord) (dao.AttendanceRecord, error)
	FindByEventID(ctx context.Context, eventID uint, limit, offset int) ([]dao.AttendanceRecord, error)
	FindBySubject(ctx context.Context, kind string, subjectID uint) ([]dao.AttendanceRecord, error)
}

type AttendanceRepository struct {
	dao AttendanceDAO
}

func NewAttendanceRepository(dao AttendanceDAO) *AttendanceRepository {
	return &AttendanceRepository{
		dao: dao,
	}
}

func (r *AttendanceRepository) Append(ctx context.Context, record domain.AttendanceRecord) (domain.AttendanceRecord, error) {
	created, err := r.dao.Insert(ctx, dao.AttendanceRecord{
		SubjectKind: string(record.SubjectKind),
		SubjectID:   record.SubjectID,
		EventID:     record.EventID,
		Method:      string(record.Method),
		Outcome:     string(record.Outcome),
		Actor:       record.Actor,
		Detail:      record.Detail,
		CreatedAt:   record.CreatedAt,
	})
	if err != nil {
		return domain.AttendanceRecord{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return attendanceDaoToDomain(created), nil
}

func (r *AttendanceRepository) FindByEventID(ctx context.Context, eventID uint, limit, offset int) ([]domain.AttendanceRecord, error) {
	found, err := r.dao.FindByEventID(ctx, eventID, limit, offset)
	if err != nil {
		return nil, err
	}

	records := make([]domain.AttendanceRecord, len(found))
	for i, rec := range found {
		records[i] = attendanceDaoToDomain(rec)
	}

	return records, nil
}

func (r *AttendanceRepository) FindBySubject(ctx context.Context, kind domain.SubjectKind, subjectID uint) ([]domain.AttendanceRecord, error) {
	found, err := r.dao.FindBySubject(ctx, string(kind), subjectID)
	if err != nil {
		return nil, err
	}

	records := make([]domain.AttendanceRecord, len(found))
	for i, rec := range found {
		records[i] = attendanceDaoToDomain(rec)
	}

	return records, nil
}

func attendanceDaoToDomain(rec dao.AttendanceRecord) domain.AttendanceRecord {
	return domain.AttendanceRecord{
		ID:          rec.ID,
		SubjectKind: domain.SubjectKind(rec.SubjectKind),
		SubjectID:   rec.SubjectID,
		EventID:     rec.EventID,
		Method:      domain.ValidationMethod(rec.Method),
		Outcome:     domain.ValidationOutcome(rec.Outcome),
		Actor:       rec.Actor,
		Detail:      rec.Detail,
		CreatedAt:   rec.CreatedAt,
	}
}
