package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/attendly/attendly/internal/domain"
	"github.com/attendly/attendly/internal/pkg/token"
	"github.com/attendly/attendly/internal/repository"
)

var ErrTicketNotFound = repository.ErrTicketNotFound

type TicketRepository interface {
	CreateBatch(ctx context.Context, tickets []domain.Ticket) ([]domain.Ticket, error)
	FindByID(ctx context.Context, id uint) (domain.Ticket, error)
	FindByReservationID(ctx context.Context, reservationID string) ([]domain.Ticket, error)
	FindMissingCode(ctx context.Context, eventID uint) ([]domain.Ticket, error)
	SetVerificationCode(ctx context.Context, id uint, code string) error
	Activate(ctx context.Context, id uint, paymentRef, sealedToken, verificationCode string) error
}

type TicketingEventRepository interface {
	FindByID(ctx context.Context, id uint) (domain.Event, error)
	FindCategory(ctx context.Context, eventID, categoryID uint) (domain.TicketCategory, error)
}

// TicketingService runs the purchase flow: reserve inventory, record
// reserved tickets, and on payment confirmation commit the reservation
// and activate the tickets with their credentials.
type TicketingService struct {
	tickets    TicketRepository
	eventsRepo TicketingEventRepository
	capacity   *CapacityService
	codec      *token.Codec
	allocator  *CodeAllocator
	now        func() time.Time
}

func NewTicketingService(tickets TicketRepository, eventsRepo TicketingEventRepository, capacity *CapacityService, codec *token.Codec, allocator *CodeAllocator) *TicketingService {
	return &TicketingService{
		tickets:    tickets,
		eventsRepo: eventsRepo,
		capacity:   capacity,
		codec:      codec,
		allocator:  allocator,
		now:        time.Now,
	}
}

type PurchaseResult struct {
	Reservation domain.Reservation `json:"reservation"`
	Tickets     []domain.Ticket    `json:"tickets"`
	PaymentRef  string             `json:"payment_ref"`
}

// Purchase reserves quantity seats of a category and records the matching
// reserved tickets. The returned payment reference ties the eventual
// payment callback back to the reservation.
func (s *TicketingService) Purchase(ctx context.Context, eventID, categoryID uint, quantity int, ownerName, ownerEmail string) (PurchaseResult, error) {
	event, err := s.eventsRepo.FindByID(ctx, eventID)
	if err != nil {
		return PurchaseResult{}, err
	}
	if event.Mode != domain.EventModeTicketed {
		return PurchaseResult{}, ErrWrongEventMode
	}

	if err = domain.CheckIntake(event, domain.ParticipantGuest, s.now()); err != nil {
		return PurchaseResult{}, err
	}

	category, err := s.eventsRepo.FindCategory(ctx, eventID, categoryID)
	if err != nil {
		return PurchaseResult{}, err
	}

	reservation, err := s.capacity.Reserve(ctx, eventID, categoryID, quantity)
	if err != nil {
		return PurchaseResult{}, err
	}

	tickets := make([]domain.Ticket, quantity)
	for i := range tickets {
		tickets[i] = domain.Ticket{
			Serial:        uuid.NewString(),
			EventID:       eventID,
			CategoryID:    categoryID,
			OwnerName:     ownerName,
			OwnerEmail:    ownerEmail,
			Status:        domain.TicketStatusReserved,
			PriceCents:    category.PriceCents,
			Currency:      category.Currency,
			ReservationID: reservation.ID,
			CreatedAt:     s.now(),
		}
	}

	created, err := s.tickets.CreateBatch(ctx, tickets)
	if err != nil {
		// Give the seats back; the reservation is useless without rows.
		if releaseErr := s.capacity.Release(ctx, reservation.ID); releaseErr != nil {
			zap.L().Error("failed to release reservation after ticket insert failure",
				zap.String("reservation_id", reservation.ID),
				zap.Error(releaseErr),
			)
		}
		return PurchaseResult{}, fmt.Errorf("s.tickets.CreateBatch -> %w", err)
	}

	paymentRef := uuid.NewString()
	if err = s.capacity.AttachPaymentRef(ctx, reservation.ID, paymentRef); err != nil {
		return PurchaseResult{}, fmt.Errorf("s.capacity.AttachPaymentRef -> %w", err)
	}
	reservation.PaymentRef = paymentRef

	return PurchaseResult{
		Reservation: reservation,
		Tickets:     created,
		PaymentRef:  paymentRef,
	}, nil
}

// ConfirmPayment handles the payment collaborator's callback. It commits
// the reservation (idempotently, callbacks arrive at-least-once) and
// activates each still-reserved ticket with a sealed token and a numeric
// verification code.
func (s *TicketingService) ConfirmPayment(ctx context.Context, paymentRef string) ([]domain.Ticket, error) {
	reservation, err := s.capacity.FindByPaymentRef(ctx, paymentRef)
	if err != nil {
		return nil, err
	}

	if err = s.capacity.Commit(ctx, reservation.ID); err != nil {
		return nil, err
	}

	tickets, err := s.tickets.FindByReservationID(ctx, reservation.ID)
	if err != nil {
		return nil, fmt.Errorf("s.tickets.FindByReservationID -> %w", err)
	}

	for i, t := range tickets {
		if t.Status != domain.TicketStatusReserved {
			continue
		}

		sealed, mintErr := s.codec.Mint(token.Claims{
			SubjectID:     t.ID,
			EventID:       t.EventID,
			ParticipantID: t.ParticipantID,
			Kind:          string(domain.SubjectTicket),
		})
		if mintErr != nil {
			return nil, fmt.Errorf("s.codec.Mint -> %w", mintErr)
		}

		ticketID := t.ID
		code, allocErr := s.allocator.Allocate(ctx, domain.EventModeTicketed, func(code string) error {
			return s.tickets.Activate(ctx, ticketID, paymentRef, sealed, code)
		})
		if errors.Is(allocErr, repository.ErrStateConflict) {
			// A concurrent callback already activated this ticket.
			continue
		}
		if allocErr != nil {
			return nil, fmt.Errorf("s.allocator.Allocate -> %w", allocErr)
		}

		tickets[i].Status = domain.TicketStatusActive
		tickets[i].PaymentRef = paymentRef
		tickets[i].Token = sealed
		tickets[i].VerificationCode = code
	}

	return tickets, nil
}

func (s *TicketingService) GetTicket(ctx context.Context, id uint) (domain.Ticket, error) {
	return s.tickets.FindByID(ctx, id)
}

// BackfillCodes mirrors RegistrationService.BackfillCodes for tickets.
func (s *TicketingService) BackfillCodes(ctx context.Context, eventID uint) (int, error) {
	missing, err := s.tickets.FindMissingCode(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("s.tickets.FindMissingCode -> %w", err)
	}

	filled := 0
	for _, t := range missing {
		id := t.ID
		_, err = s.allocator.Allocate(ctx, domain.EventModeTicketed, func(code string) error {
			return s.tickets.SetVerificationCode(ctx, id, code)
		})
		if errors.Is(err, repository.ErrStateConflict) {
			continue
		}
		if err != nil {
			return filled, fmt.Errorf("s.allocator.Allocate -> %w", err)
		}
		filled++
	}

	return filled, nil
}
