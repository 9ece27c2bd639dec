package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendly/attendly/internal/domain"
	"github.com/attendly/attendly/internal/repository"
)

type ticketRepoFake struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]*domain.Ticket

	failBatch error
}

func newTicketRepoFake() *ticketRepoFake {
	return &ticketRepoFake{
		nextID: 1,
		byID:   make(map[uint]*domain.Ticket),
	}
}

func (f *ticketRepoFake) CreateBatch(ctx context.Context, tickets []domain.Ticket) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failBatch != nil {
		return nil, f.failBatch
	}

	out := make([]domain.Ticket, len(tickets))
	for i, t := range tickets {
		t.ID = f.nextID
		f.nextID++

		stored := t
		f.byID[t.ID] = &stored
		out[i] = t
	}
	return out, nil
}

func (f *ticketRepoFake) FindByID(ctx context.Context, id uint) (domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.byID[id]
	if !ok {
		return domain.Ticket{}, repository.ErrTicketNotFound
	}
	return *t, nil
}

func (f *ticketRepoFake) FindByReservationID(ctx context.Context, reservationID string) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.Ticket
	for _, t := range f.byID {
		if t.ReservationID == reservationID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *ticketRepoFake) FindMissingCode(ctx context.Context, eventID uint) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.Ticket
	for _, t := range f.byID {
		if t.EventID == eventID && t.VerificationCode == "" && t.Status == domain.TicketStatusActive {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *ticketRepoFake) SetVerificationCode(ctx context.Context, id uint, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.byID[id]
	if !ok {
		return repository.ErrTicketNotFound
	}
	if t.VerificationCode != "" {
		return repository.ErrStateConflict
	}
	t.VerificationCode = code
	return nil
}

func (f *ticketRepoFake) Activate(ctx context.Context, id uint, paymentRef, sealedToken, verificationCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.byID[id]
	if !ok {
		return repository.ErrTicketNotFound
	}
	if t.Status != domain.TicketStatusReserved {
		return repository.ErrStateConflict
	}

	t.Status = domain.TicketStatusActive
	t.PaymentRef = paymentRef
	t.Token = sealedToken
	t.VerificationCode = verificationCode
	return nil
}

func (f *ticketRepoFake) ExpireByReservation(ctx context.Context, reservationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, t := range f.byID {
		if t.ReservationID == reservationID && t.Status == domain.TicketStatusReserved {
			t.Status = domain.TicketStatusExpired
		}
	}
	return nil
}

type ticketingEventRepoFake struct {
	events     map[uint]domain.Event
	categories map[uint]domain.TicketCategory
}

func (f *ticketingEventRepoFake) FindByID(ctx context.Context, id uint) (domain.Event, error) {
	ev, ok := f.events[id]
	if !ok {
		return domain.Event{}, repository.ErrEventNotFound
	}
	return ev, nil
}

func (f *ticketingEventRepoFake) FindCategory(ctx context.Context, eventID, categoryID uint) (domain.TicketCategory, error) {
	c, ok := f.categories[categoryID]
	if !ok || c.EventID != eventID {
		return domain.TicketCategory{}, repository.ErrCategoryNotFound
	}
	return c, nil
}

func newTicketingFixture(t *testing.T, available int) (*TicketingService, *ticketRepoFake, *reservationRepoFake) {
	t.Helper()

	tickets := newTicketRepoFake()
	reservations := newReservationRepoFake(available)
	ticketedEvent := signupEvent(domain.EventModeTicketed)
	ticketedEvent.ID = 2

	events := &ticketingEventRepoFake{
		events: map[uint]domain.Event{
			2: ticketedEvent,
		},
		categories: map[uint]domain.TicketCategory{
			5: {ID: 5, EventID: 2, Name: "standard", Capacity: available, Available: available, PriceCents: 2500, Currency: "EUR"},
		},
	}

	capacity := NewCapacityService(reservations, tickets, nil, time.Minute)
	svc := NewTicketingService(tickets, events, capacity, testCodec(t), NewCodeAllocator(nil))
	svc.now = func() time.Time { return time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC) }

	return svc, tickets, reservations
}

func TestTicketingService_Purchase(t *testing.T) {
	svc, tickets, reservations := newTicketingFixture(t, 10)

	result, err := svc.Purchase(context.Background(), 2, 5, 3, "Bo Chen", "bo@example.com")
	require.NoError(t, err)

	assert.Len(t, result.Tickets, 3)
	assert.NotEmpty(t, result.PaymentRef)
	assert.Equal(t, 7, reservations.available)

	for _, tk := range result.Tickets {
		assert.Equal(t, domain.TicketStatusReserved, tk.Status)
		assert.Equal(t, 2500, tk.PriceCents)
		assert.NotEmpty(t, tk.Serial)
		assert.Empty(t, tk.Token, "credentials are issued on payment, not purchase")
	}

	stored, err := tickets.FindByReservationID(context.Background(), result.Reservation.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestTicketingService_Purchase_CapacityExceeded(t *testing.T) {
	svc, _, _ := newTicketingFixture(t, 2)

	_, err := svc.Purchase(context.Background(), 2, 5, 3, "Bo Chen", "bo@example.com")
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestTicketingService_Purchase_ReleasesOnInsertFailure(t *testing.T) {
	svc, tickets, reservations := newTicketingFixture(t, 5)
	tickets.failBatch = errors.New("insert failed")

	_, err := svc.Purchase(context.Background(), 2, 5, 2, "Bo Chen", "bo@example.com")
	require.Error(t, err)

	// The failed purchase must not leak inventory.
	assert.Equal(t, 5, reservations.available)
}

func TestTicketingService_ConfirmPayment(t *testing.T) {
	svc, tickets, _ := newTicketingFixture(t, 10)

	result, err := svc.Purchase(context.Background(), 2, 5, 2, "Bo Chen", "bo@example.com")
	require.NoError(t, err)

	confirmed, err := svc.ConfirmPayment(context.Background(), result.PaymentRef)
	require.NoError(t, err)
	require.Len(t, confirmed, 2)

	codes := make(map[string]bool)
	for _, tk := range confirmed {
		stored, findErr := tickets.FindByID(context.Background(), tk.ID)
		require.NoError(t, findErr)

		assert.Equal(t, domain.TicketStatusActive, stored.Status)
		assert.Equal(t, result.PaymentRef, stored.PaymentRef)
		assert.NotEmpty(t, stored.Token)
		assert.Len(t, stored.VerificationCode, 8)
		codes[stored.VerificationCode] = true
	}
	assert.Len(t, codes, 2, "verification codes are unique per ticket")
}

// Payment callbacks are delivered at least once; replays must neither
// fail nor re-issue credentials.
func TestTicketingService_ConfirmPayment_Idempotent(t *testing.T) {
	svc, tickets, _ := newTicketingFixture(t, 10)

	result, err := svc.Purchase(context.Background(), 2, 5, 1, "Bo Chen", "bo@example.com")
	require.NoError(t, err)

	first, err := svc.ConfirmPayment(context.Background(), result.PaymentRef)
	require.NoError(t, err)
	require.Len(t, first, 1)

	firstStored, err := tickets.FindByID(context.Background(), first[0].ID)
	require.NoError(t, err)

	_, err = svc.ConfirmPayment(context.Background(), result.PaymentRef)
	require.NoError(t, err)

	replayed, err := tickets.FindByID(context.Background(), first[0].ID)
	require.NoError(t, err)
	assert.Equal(t, firstStored.Token, replayed.Token)
	assert.Equal(t, firstStored.VerificationCode, replayed.VerificationCode)
}

func TestTicketingService_ConfirmPayment_UnknownRef(t *testing.T) {
	svc, _, _ := newTicketingFixture(t, 10)

	_, err := svc.ConfirmPayment(context.Background(), "no-such-ref")
	assert.ErrorIs(t, err, ErrReservationNotFound)
}
