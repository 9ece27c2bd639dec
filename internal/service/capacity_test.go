package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendly/attendly/internal/domain"
	"github.com/attendly/attendly/internal/repository"
)

// reservationRepoFake mirrors the storage contract: the decrement and
// every state flip are conditional, guarded here by a mutex the way the
// database guards them with row-level atomicity.
type reservationRepoFake struct {
	mu           sync.Mutex
	available    int
	reservations map[string]*domain.Reservation
}

func newReservationRepoFake(available int) *reservationRepoFake {
	return &reservationRepoFake{
		available:    available,
		reservations: make(map[string]*domain.Reservation),
	}
}

func (f *reservationRepoFake) Create(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.available < r.Quantity {
		return domain.Reservation{}, repository.ErrCapacityExceeded
	}
	f.available -= r.Quantity

	stored := r
	f.reservations[r.ID] = &stored
	return r, nil
}

func (f *reservationRepoFake) FindByID(ctx context.Context, id string) (domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.reservations[id]
	if !ok {
		return domain.Reservation{}, repository.ErrReservationNotFound
	}
	return *r, nil
}

func (f *reservationRepoFake) FindByPaymentRef(ctx context.Context, paymentRef string) (domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, r := range f.reservations {
		if r.PaymentRef == paymentRef {
			return *r, nil
		}
	}
	return domain.Reservation{}, repository.ErrReservationNotFound
}

func (f *reservationRepoFake) SetPaymentRef(ctx context.Context, id, paymentRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.reservations[id]
	if !ok {
		return repository.ErrReservationNotFound
	}
	r.PaymentRef = paymentRef
	return nil
}

func (f *reservationRepoFake) Commit(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.reservations[id]
	if !ok {
		return repository.ErrReservationNotFound
	}
	switch r.Status {
	case domain.ReservationStatusPending:
		r.Status = domain.ReservationStatusCommitted
		return nil
	case domain.ReservationStatusCommitted:
		return nil
	default:
		return repository.ErrReservationExpired
	}
}

func (f *reservationRepoFake) Release(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.reservations[id]
	if !ok {
		return repository.ErrReservationNotFound
	}
	if r.Status == domain.ReservationStatusPending {
		r.Status = domain.ReservationStatusReleased
		f.available += r.Quantity
	}
	return nil
}

func (f *reservationRepoFake) FindDue(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var due []domain.Reservation
	for _, r := range f.reservations {
		if r.Status == domain.ReservationStatusPending && r.ExpiresAt.Before(now) {
			due = append(due, *r)
		}
	}
	return due, nil
}

func (f *reservationRepoFake) Expire(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.reservations[id]
	if !ok {
		return repository.ErrReservationNotFound
	}
	if r.Status != domain.ReservationStatusPending {
		return repository.ErrStateConflict
	}
	r.Status = domain.ReservationStatusExpired
	f.available += r.Quantity
	return nil
}

type ticketExpirerFake struct {
	mu      sync.Mutex
	expired []string
}

func (f *ticketExpirerFake) ExpireByReservation(ctx context.Context, reservationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = append(f.expired, reservationID)
	return nil
}

func TestCapacityService_Reserve_RejectsNonPositiveQuantity(t *testing.T) {
	svc := NewCapacityService(newReservationRepoFake(10), nil, nil, 0)

	_, err := svc.Reserve(context.Background(), 1, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Reserve(context.Background(), 1, 1, -3)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

// Of M racing reservations against N remaining seats, exactly N succeed
// and the rest see ErrCapacityExceeded. Inventory never goes negative.
func TestCapacityService_Reserve_NeverOversells(t *testing.T) {
	const seats = 5
	const contenders = 40

	repo := newReservationRepoFake(seats)
	svc := NewCapacityService(repo, nil, nil, 0)

	var wg sync.WaitGroup
	results := make(chan error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Reserve(context.Background(), 1, 1, 1)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, exceeded := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(t, err, ErrCapacityExceeded):
			exceeded++
		}
	}

	assert.Equal(t, seats, succeeded)
	assert.Equal(t, contenders-seats, exceeded)
	assert.Equal(t, 0, repo.available)
}

func TestCapacityService_Reserve_PartialFit(t *testing.T) {
	repo := newReservationRepoFake(2)
	svc := NewCapacityService(repo, nil, nil, 0)

	_, err := svc.Reserve(context.Background(), 1, 1, 2)
	require.NoError(t, err)

	// Pool is empty now; a single seat must be refused too.
	_, err = svc.Reserve(context.Background(), 1, 1, 1)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestCapacityService_CommitIsIdempotent(t *testing.T) {
	repo := newReservationRepoFake(5)
	svc := NewCapacityService(repo, nil, nil, 0)

	reservation, err := svc.Reserve(context.Background(), 1, 1, 2)
	require.NoError(t, err)

	require.NoError(t, svc.Commit(context.Background(), reservation.ID))
	require.NoError(t, svc.Commit(context.Background(), reservation.ID))

	// Committed inventory is spoken for; nothing is returned to the pool.
	assert.Equal(t, 3, repo.available)
}

func TestCapacityService_Release_ReturnsQuantity(t *testing.T) {
	repo := newReservationRepoFake(5)
	svc := NewCapacityService(repo, nil, nil, 0)

	reservation, err := svc.Reserve(context.Background(), 1, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.available)

	require.NoError(t, svc.Release(context.Background(), reservation.ID))
	assert.Equal(t, 5, repo.available)
}

func TestCapacityService_SweepExpired(t *testing.T) {
	repo := newReservationRepoFake(10)
	tickets := &ticketExpirerFake{}
	svc := NewCapacityService(repo, tickets, nil, time.Minute)

	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	overdue, err := svc.Reserve(context.Background(), 1, 1, 2)
	require.NoError(t, err)
	committed, err := svc.Reserve(context.Background(), 1, 1, 3)
	require.NoError(t, err)
	require.NoError(t, svc.Commit(context.Background(), committed.ID))

	svc.now = func() time.Time { return base.Add(2 * time.Minute) }

	reclaimed, err := svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed)

	// Only the abandoned reservation's seats come back.
	assert.Equal(t, 10-3, repo.available)
	assert.Equal(t, []string{overdue.ID}, tickets.expired)

	// Expired payments must not resurrect the reservation.
	err = svc.Commit(context.Background(), overdue.ID)
	assert.ErrorIs(t, err, repository.ErrReservationExpired)
}
