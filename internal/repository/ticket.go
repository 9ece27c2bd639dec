package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/attendly/attendly/internal/domain"
	"github.com/attendly/attendly/internal/repository/dao"
)

var ErrTicketNotFound = dao.ErrTicketNotFound

type TicketDAO interface {
	InsertBatch(ctx context.Context, tickets []dao.Ticket) ([]dao.Ticket, error)
	FindByID(ctx context.Context, id uint) (dao.Ticket, error)
	FindByEventAndSerial(ctx context.Context, eventID uint, serial string) (dao.Ticket, error)
	FindByEventAndVerificationCode(ctx context.Context, eventID uint, code string) (dao.Ticket, error)
	FindByReservationID(ctx context.Context, reservationID string) ([]dao.Ticket, error)
	FindMissingCode(ctx context.Context, eventID uint) ([]dao.Ticket, error)
	SetVerificationCode(ctx context.Context, id uint, code string) error
	Activate(ctx context.Context, id uint, paymentRef, sealedToken, verificationCode string) error
	MarkUsed(ctx context.Context, id uint, method string, at time.Time) error
	MarkExpiredByReservation(ctx context.Context, reservationID string) error
}

type TicketRepository struct {
	dao TicketDAO
}

func NewTicketRepository(dao TicketDAO) *TicketRepository {
	return &TicketRepository{
		dao: dao,
	}
}

func (r *TicketRepository) CreateBatch(ctx context.Context, tickets []domain.Ticket) ([]domain.Ticket, error) {
	daoTickets := make([]dao.Ticket, len(tickets))
	for i, t := range tickets {
		daoTickets[i] = ticketDomainToDao(t)
	}

	created, err := r.dao.InsertBatch(ctx, daoTickets)
	if err != nil {
		return nil, fmt.Errorf("r.dao.InsertBatch -> %w", err)
	}

	return ticketsDaoToDomain(created), nil
}

func (r *TicketRepository) FindByID(ctx context.Context, id uint) (domain.Ticket, error) {
	found, err := r.dao.FindByID(ctx, id)
	if err != nil {
		return domain.Ticket{}, err
	}

	return ticketDaoToDomain(found), nil
}

func (r *TicketRepository) FindBySerial(ctx context.Context, eventID uint, serial string) (domain.Ticket, error) {
	found, err := r.dao.FindByEventAndSerial(ctx, eventID, serial)
	if err != nil {
		return domain.Ticket{}, err
	}

	return ticketDaoToDomain(found), nil
}

func (r *TicketRepository) FindByVerificationCode(ctx context.Context, eventID uint, code string) (domain.Ticket, error) {
	found, err := r.dao.FindByEventAndVerificationCode(ctx, eventID, code)
	if err != nil {
		return domain.Ticket{}, err
	}

	return ticketDaoToDomain(found), nil
}

func (r *TicketRepository) FindByReservationID(ctx context.Context, reservationID string) ([]domain.Ticket, error) {
	found, err := r.dao.FindByReservationID(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	return ticketsDaoToDomain(found), nil
}

func (r *TicketRepository) FindMissingCode(ctx context.Context, eventID uint) ([]domain.Ticket, error) {
	found, err := r.dao.FindMissingCode(ctx, eventID)
	if err != nil {
		return nil, err
	}

	return ticketsDaoToDomain(found), nil
}

func (r *TicketRepository) SetVerificationCode(ctx context.Context, id uint, code string) error {
	return r.dao.SetVerificationCode(ctx, id, code)
}

func (r *TicketRepository) Activate(ctx context.Context, id uint, paymentRef, sealedToken, verificationCode string) error {
	return r.dao.Activate(ctx, id, paymentRef, sealedToken, verificationCode)
}

func (r *TicketRepository) MarkUsed(ctx context.Context, id uint, method domain.ValidationMethod, at time.Time) error {
	return r.dao.MarkUsed(ctx, id, string(method), at)
}

func (r *TicketRepository) ExpireByReservation(ctx context.Context, reservationID string) error {
	return r.dao.MarkExpiredByReservation(ctx, reservationID)
}

func ticketDomainToDao(t domain.Ticket) dao.Ticket {
	var method *string
	if t.ValidationMethod != nil {
		m := string(*t.ValidationMethod)
		method = &m
	}

	return dao.Ticket{
		ID:               t.ID,
		Serial:           t.Serial,
		EventID:          t.EventID,
		CategoryID:       t.CategoryID,
		ParticipantID:    t.ParticipantID,
		OwnerName:        t.OwnerName,
		OwnerEmail:       t.OwnerEmail,
		Status:           string(t.Status),
		PriceCents:       t.PriceCents,
		Currency:         t.Currency,
		PaymentRef:       t.PaymentRef,
		ReservationID:    t.ReservationID,
		VerificationCode: t.VerificationCode,
		Token:            t.Token,
		CreatedAt:        t.CreatedAt,
		ValidatedAt:      t.ValidatedAt,
		ValidationMethod: method,
	}
}

func ticketDaoToDomain(t dao.Ticket) domain.Ticket {
	var method *domain.ValidationMethod
	if t.ValidationMethod != nil {
		m := domain.ValidationMethod(*t.ValidationMethod)
		method = &m
	}

	return domain.Ticket{
		ID:               t.ID,
		Serial:           t.Serial,
		EventID:          t.EventID,
		CategoryID:       t.CategoryID,
		ParticipantID:    t.ParticipantID,
		OwnerName:        t.OwnerName,
		OwnerEmail:       t.OwnerEmail,
		Status:           domain.TicketStatus(t.Status),
		PriceCents:       t.PriceCents,
		Currency:         t.Currency,
		PaymentRef:       t.PaymentRef,
		ReservationID:    t.ReservationID,
		VerificationCode: t.VerificationCode,
		Token:            t.Token,
		CreatedAt:        t.CreatedAt,
		ValidatedAt:      t.ValidatedAt,
		ValidationMethod: method,
	}
}

func ticketsDaoToDomain(ts []dao.Ticket) []domain.Ticket {
	tickets := make([]domain.Ticket, len(ts))
	for i, t := range ts {
		tickets[i] = ticketDaoToDomain(t)
	}
	return tickets
}
