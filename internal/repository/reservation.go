package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/attendly/attendly/internal/domain"
	"github.com/attendly/attendly/internal/repository/dao"
)

var (
	ErrReservationNotFound = dao.ErrReservationNotFound
	ErrReservationExpired  = dao.ErrReservationExpired
	ErrCapacityExceeded    = dao.ErrCapacityExceeded
)

type ReservationDAO interface {
	Insert(ctx context.Context, reservation dao.Reservation) (dao.Reservation, error)
	FindByID(ctx context.Context, id string) (dao.Reservation, error)
	FindByPaymentRef(ctx context.Context, paymentRef string) (dao.Reservation, error)
	SetPaymentRef(ctx context.Context, id, paymentRef string) error
	MarkCommitted(ctx context.Context, id string) error
	MarkReleased(ctx context.Context, id string) error
	FindDue(ctx context.Context, now time.Time) ([]dao.Reservation, error)
	MarkExpired(ctx context.Context, id string) error
}

type ReservationRepository struct {
	dao ReservationDAO
}

func NewReservationRepository(dao ReservationDAO) *ReservationRepository {
	return &ReservationRepository{
		dao: dao,
	}
}

func (r *ReservationRepository) Create(ctx context.Context, reservation domain.Reservation) (domain.Reservation, error) {
	created, err := r.dao.Insert(ctx, reservationDomainToDao(reservation))
	if err != nil {
		if errors.Is(err, dao.ErrCapacityExceeded) {
			return domain.Reservation{}, err
		}

		return domain.Reservation{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return reservationDaoToDomain(created), nil
}

func (r *ReservationRepository) FindByID(ctx context.Context, id string) (domain.Reservation, error) {
	found, err := r.dao.FindByID(ctx, id)
	if err != nil {
		return domain.Reservation{}, err
	}

	return reservationDaoToDomain(found), nil
}

func (r *ReservationRepository) FindByPaymentRef(ctx context.Context, paymentRef string) (domain.Reservation, error) {
	found, err := r.dao.FindByPaymentRef(ctx, paymentRef)
	if err != nil {
		return domain.Reservation{}, err
	}

	return reservationDaoToDomain(found), nil
}

func (r *ReservationRepository) SetPaymentRef(ctx context.Context, id, paymentRef string) error {
	return r.dao.SetPaymentRef(ctx, id, paymentRef)
}

func (r *ReservationRepository) Commit(ctx context.Context, id string) error {
	return r.dao.MarkCommitted(ctx, id)
}

func (r *ReservationRepository) Release(ctx context.Context, id string) error {
	return r.dao.MarkReleased(ctx, id)
}

func (r *ReservationRepository) FindDue(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	found, err := r.dao.FindDue(ctx, now)
	if err != nil {
		return nil, err
	}

	reservations := make([]domain.Reservation, len(found))
	for i, res := range found {
		reservations[i] = reservationDaoToDomain(res)
	}

	return reservations, nil
}

func (r *ReservationRepository) Expire(ctx context.Context, id string) error {
	return r.dao.MarkExpired(ctx, id)
}

func reservationDomainToDao(res domain.Reservation) dao.Reservation {
	return dao.Reservation{
		ID:         res.ID,
		EventID:    res.EventID,
		CategoryID: res.CategoryID,
		Quantity:   res.Quantity,
		Status:     string(res.Status),
		PaymentRef: res.PaymentRef,
		ExpiresAt:  res.ExpiresAt,
		CreatedAt:  res.CreatedAt,
	}
}

func reservationDaoToDomain(res dao.Reservation) domain.Reservation {
	return domain.Reservation{
		ID:         res.ID,
		EventID:    res.EventID,
		CategoryID: res.CategoryID,
		Quantity:   res.Quantity,
		Status:     domain.ReservationStatus(res.Status),
		PaymentRef: res.PaymentRef,
		ExpiresAt:  res.ExpiresAt,
		CreatedAt:  res.CreatedAt,
	}
}
