package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/attendly/attendly/internal/domain"
	"github.com/attendly/attendly/internal/notifier"
	"github.com/attendly/attendly/internal/repository"
)

var (
	ErrCapacityExceeded    = repository.ErrCapacityExceeded
	ErrReservationNotFound = repository.ErrReservationNotFound
	ErrReservationExpired  = repository.ErrReservationExpired
	ErrInvalidQuantity     = errors.New("quantity must be positive")
)

// DefaultReservationTTL bounds how long an uncommitted reservation may
// hold inventory before the sweep returns it to the pool.
const DefaultReservationTTL = 15 * time.Minute

type CapacityReservationRepository interface {
	Create(ctx context.Context, reservation domain.Reservation) (domain.Reservation, error)
	FindByID(ctx context.Context, id string) (domain.Reservation, error)
	FindByPaymentRef(ctx context.Context, paymentRef string) (domain.Reservation, error)
	SetPaymentRef(ctx context.Context, id, paymentRef string) error
	Commit(ctx context.Context, id string) error
	Release(ctx context.Context, id string) error
	FindDue(ctx context.Context, now time.Time) ([]domain.Reservation, error)
	Expire(ctx context.Context, id string) error
}

// ReservedTicketExpirer voids the reserved tickets of an abandoned
// reservation when the sweep reclaims it.
type ReservedTicketExpirer interface {
	ExpireByReservation(ctx context.Context, reservationID string) error
}

// CapacityService hands out and reclaims claims on limited ticket
// inventory. All counter movement happens through conditional updates in
// storage, so instances can be scaled horizontally without in-process
// locks.
type CapacityService struct {
	reservations CapacityReservationRepository
	tickets      ReservedTicketExpirer
	events       EventPublisher
	ttl          time.Duration
	now          func() time.Time
}

func NewCapacityService(reservations CapacityReservationRepository, tickets ReservedTicketExpirer, events EventPublisher, ttl time.Duration) *CapacityService {
	if ttl <= 0 {
		ttl = DefaultReservationTTL
	}

	return &CapacityService{
		reservations: reservations,
		tickets:      tickets,
		events:       events,
		ttl:          ttl,
		now:          time.Now,
	}
}

// Reserve claims quantity units of a category. The check-and-decrement is
// linearizable per category key: of M racing reservations against N
// remaining seats, exactly N succeed.
func (s *CapacityService) Reserve(ctx context.Context, eventID, categoryID uint, quantity int) (domain.Reservation, error) {
	if quantity <= 0 {
		return domain.Reservation{}, ErrInvalidQuantity
	}

	now := s.now()
	reservation, err := s.reservations.Create(ctx, domain.Reservation{
		ID:         uuid.NewString(),
		EventID:    eventID,
		CategoryID: categoryID,
		Quantity:   quantity,
		Status:     domain.ReservationStatusPending,
		ExpiresAt:  now.Add(s.ttl),
		CreatedAt:  now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrCapacityExceeded) {
			s.publish(ctx, notifier.KeyCapacityExhausted, map[string]interface{}{
				"event_id":    eventID,
				"category_id": categoryID,
				"quantity":    quantity,
			})
			return domain.Reservation{}, ErrCapacityExceeded
		}

		return domain.Reservation{}, fmt.Errorf("s.reservations.Create -> %w", err)
	}

	return reservation, nil
}

// Commit finalizes a reservation. It is idempotent so at-least-once
// payment callbacks are harmless.
func (s *CapacityService) Commit(ctx context.Context, reservationID string) error {
	return s.reservations.Commit(ctx, reservationID)
}

// Release returns an uncommitted reservation's quantity to the pool.
func (s *CapacityService) Release(ctx context.Context, reservationID string) error {
	return s.reservations.Release(ctx, reservationID)
}

func (s *CapacityService) AttachPaymentRef(ctx context.Context, reservationID, paymentRef string) error {
	return s.reservations.SetPaymentRef(ctx, reservationID, paymentRef)
}

func (s *CapacityService) FindByPaymentRef(ctx context.Context, paymentRef string) (domain.Reservation, error) {
	return s.reservations.FindByPaymentRef(ctx, paymentRef)
}

// SweepExpired reclaims due pending reservations: each flip to expired
// returns its quantity and voids its reserved tickets. A reservation that
// a payment callback commits concurrently is skipped; the conditional
// update in storage decides the winner.
func (s *CapacityService) SweepExpired(ctx context.Context) (int, error) {
	due, err := s.reservations.FindDue(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("s.reservations.FindDue -> %w", err)
	}

	reclaimed := 0
	for _, reservation := range due {
		err = s.reservations.Expire(ctx, reservation.ID)
		if errors.Is(err, repository.ErrStateConflict) {
			continue
		}
		if err != nil {
			return reclaimed, fmt.Errorf("s.reservations.Expire -> %w", err)
		}

		if s.tickets != nil {
			if err = s.tickets.ExpireByReservation(ctx, reservation.ID); err != nil {
				zap.L().Error("failed to void tickets of expired reservation",
					zap.String("reservation_id", reservation.ID),
					zap.Error(err),
				)
			}
		}
		reclaimed++
	}

	return reclaimed, nil
}

func (s *CapacityService) publish(ctx context.Context, key string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, key, payload); err != nil {
		zap.L().Warn("failed to publish notification", zap.String("key", key), zap.Error(err))
	}
}
