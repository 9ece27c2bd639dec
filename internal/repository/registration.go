package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/attendly/attendly/internal/domain"
	"github.com/attendly/attendly/internal/repository/dao"
)

var (
	ErrRegistrationNotFound = dao.ErrRegistrationNotFound
	ErrCodeTaken            = dao.ErrCodeTaken
	ErrStateConflict        = dao.ErrStateConflict
)

type RegistrationDAO interface {
	Insert(ctx context.Context, registration dao.Registration) (dao.Registration, error)
	FindByID(ctx context.Context, id uint) (dao.Registration, error)
	FindByEventAndShortCode(ctx context.Context, eventID uint, code string) (dao.Registration, error)
	FindByEventAndVerificationCode(ctx context.Context, eventID uint, code string) (dao.Registration, error)
	FindByEventID(ctx context.Context, eventID uint) ([]dao.Registration, error)
	FindWithPhotos(ctx context.Context, eventID uint) ([]dao.Registration, error)
	FindMissingCode(ctx context.Context, eventID uint) ([]dao.Registration, error)
	SetVerificationCode(ctx context.Context, id uint, code string) error
	SetToken(ctx context.Context, id uint, sealedToken string) error
	MarkAttended(ctx context.Context, id uint, method string, at time.Time) error
	MarkCancelled(ctx context.Context, id uint) error
}

type RegistrationRepository struct {
	dao RegistrationDAO
}

func NewRegistrationRepository(dao RegistrationDAO) *RegistrationRepository {
	return &RegistrationRepository{
		dao: dao,
	}
}

func (r *RegistrationRepository) Create(ctx context.Context, registration domain.Registration) (domain.Registration, error) {
	created, err := r.dao.Insert(ctx, registrationDomainToDao(registration))
	if err != nil {
		return domain.Registration{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return registrationDaoToDomain(created), nil
}

func (r *RegistrationRepository) FindByID(ctx context.Context, id uint) (domain.Registration, error) {
	found, err := r.dao.FindByID(ctx, id)
	if err != nil {
		return domain.Registration{}, err
	}

	return registrationDaoToDomain(found), nil
}

func (r *RegistrationRepository) FindByShortCode(ctx context.Context, eventID uint, code string) (domain.Registration, error) {
	found, err := r.dao.FindByEventAndShortCode(ctx, eventID, code)
	if err != nil {
		return domain.Registration{}, err
	}

	return registrationDaoToDomain(found), nil
}

func (r *RegistrationRepository) FindByVerificationCode(ctx context.Context, eventID uint, code string) (domain.Registration, error) {
	found, err := r.dao.FindByEventAndVerificationCode(ctx, eventID, code)
	if err != nil {
		return domain.Registration{}, err
	}

	return registrationDaoToDomain(found), nil
}

func (r *RegistrationRepository) FindByEventID(ctx context.Context, eventID uint) ([]domain.Registration, error) {
	found, err := r.dao.FindByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	return registrationsDaoToDomain(found), nil
}

func (r *RegistrationRepository) FindWithPhotos(ctx context.Context, eventID uint) ([]domain.Registration, error) {
	found, err := r.dao.FindWithPhotos(ctx, eventID)
	if err != nil {
		return nil, err
	}

	return registrationsDaoToDomain(found), nil
}

func (r *RegistrationRepository) FindMissingCode(ctx context.Context, eventID uint) ([]domain.Registration, error) {
	found, err := r.dao.FindMissingCode(ctx, eventID)
	if err != nil {
		return nil, err
	}

	return registrationsDaoToDomain(found), nil
}

func (r *RegistrationRepository) SetVerificationCode(ctx context.Context, id uint, code string) error {
	return r.dao.SetVerificationCode(ctx, id, code)
}

func (r *RegistrationRepository) SetToken(ctx context.Context, id uint, sealedToken string) error {
	return r.dao.SetToken(ctx, id, sealedToken)
}

func (r *RegistrationRepository) MarkAttended(ctx context.Context, id uint, method domain.ValidationMethod, at time.Time) error {
	return r.dao.MarkAttended(ctx, id, string(method), at)
}

func (r *RegistrationRepository) Cancel(ctx context.Context, id uint) error {
	return r.dao.MarkCancelled(ctx, id)
}

func registrationDomainToDao(reg domain.Registration) dao.Registration {
	var method *string
	if reg.ValidationMethod != nil {
		m := string(*reg.ValidationMethod)
		method = &m
	}

	return dao.Registration{
		ID:               reg.ID,
		EventID:          reg.EventID,
		ParticipantID:    reg.ParticipantID,
		Type:             string(reg.Type),
		FirstName:        reg.FirstName,
		LastName:         reg.LastName,
		Email:            reg.Email,
		PhotoRef:         reg.PhotoRef,
		Status:           string(reg.Status),
		ShortCode:        reg.ShortCode,
		VerificationCode: reg.VerificationCode,
		Token:            reg.Token,
		CreatedAt:        reg.CreatedAt,
		ValidatedAt:      reg.ValidatedAt,
		ValidationMethod: method,
	}
}

func registrationDaoToDomain(reg dao.Registration) domain.Registration {
	var method *domain.ValidationMethod
	if reg.ValidationMethod != nil {
		m := domain.ValidationMethod(*reg.ValidationMethod)
		method = &m
	}

	return domain.Registration{
		ID:               reg.ID,
		EventID:          reg.EventID,
		ParticipantID:    reg.ParticipantID,
		Type:             domain.ParticipantType(reg.Type),
		FirstName:        reg.FirstName,
		LastName:         reg.LastName,
		Email:            reg.Email,
		PhotoRef:         reg.PhotoRef,
		Status:           domain.RegistrationStatus(reg.Status),
		ShortCode:        reg.ShortCode,
		VerificationCode: reg.VerificationCode,
		Token:            reg.Token,
		CreatedAt:        reg.CreatedAt,
		ValidatedAt:      reg.ValidatedAt,
		ValidationMethod: method,
	}
}

func registrationsDaoToDomain(regs []dao.Registration) []domain.Registration {
	registrations := make([]domain.Registration, len(regs))
	for i, reg := range regs {
		registrations[i] = registrationDaoToDomain(reg)
	}
	return registrations
}
