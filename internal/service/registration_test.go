package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendly/attendly/internal/domain"
	"github.com/attendly/attendly/internal/pkg/token"
	"github.com/attendly/attendly/internal/repository"
)

type registrationRepoFake struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]*domain.Registration

	failCreates int
}

func newRegistrationRepoFake() *registrationRepoFake {
	return &registrationRepoFake{
		nextID: 1,
		byID:   make(map[uint]*domain.Registration),
	}
}

func (f *registrationRepoFake) Create(ctx context.Context, registration domain.Registration) (domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failCreates > 0 {
		f.failCreates--
		return domain.Registration{}, repository.ErrCodeTaken
	}

	registration.ID = f.nextID
	f.nextID++

	stored := registration
	f.byID[registration.ID] = &stored
	return registration, nil
}

func (f *registrationRepoFake) FindByID(ctx context.Context, id uint) (domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.byID[id]
	if !ok {
		return domain.Registration{}, repository.ErrRegistrationNotFound
	}
	return *r, nil
}

func (f *registrationRepoFake) FindByEventID(ctx context.Context, eventID uint) ([]domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.Registration
	for _, r := range f.byID {
		if r.EventID == eventID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *registrationRepoFake) FindMissingCode(ctx context.Context, eventID uint) ([]domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.Registration
	for _, r := range f.byID {
		if r.EventID == eventID && r.VerificationCode == "" {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *registrationRepoFake) SetVerificationCode(ctx context.Context, id uint, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.byID[id]
	if !ok {
		return repository.ErrRegistrationNotFound
	}
	if r.VerificationCode != "" {
		return repository.ErrStateConflict
	}
	r.VerificationCode = code
	return nil
}

func (f *registrationRepoFake) SetToken(ctx context.Context, id uint, sealedToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.byID[id]
	if !ok {
		return repository.ErrRegistrationNotFound
	}
	r.Token = sealedToken
	return nil
}

func (f *registrationRepoFake) Cancel(ctx context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.byID[id]
	if !ok {
		return repository.ErrRegistrationNotFound
	}
	if r.Status != domain.RegistrationStatusRegistered {
		return repository.ErrStateConflict
	}
	r.Status = domain.RegistrationStatusCancelled
	return nil
}

func testCodec(t *testing.T) *token.Codec {
	t.Helper()

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	codec, err := token.NewCodec(key)
	require.NoError(t, err)
	return codec
}

func signupEvent(mode domain.EventMode) domain.Event {
	return domain.Event{
		ID:                1,
		Mode:              mode,
		RegistrationStart: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		RegistrationEnd:   time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC),
		EventStart:        time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
		EventEnd:          time.Date(2026, 6, 1, 22, 0, 0, 0, time.UTC),
	}
}

func TestRegistrationService_Register(t *testing.T) {
	repo := newRegistrationRepoFake()
	events := &checkinEventRepoFake{events: map[uint]domain.Event{
		1: signupEvent(domain.EventModeRegistration),
	}}
	codec := testCodec(t)

	svc := NewRegistrationService(repo, events, codec, NewCodeAllocator(nil))
	svc.now = func() time.Time { return time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC) }

	created, err := svc.Register(context.Background(), 1, domain.Registration{
		ParticipantID: 7,
		Type:          domain.ParticipantMember,
		FirstName:     "Ana",
		LastName:      "Ruiz",
		Email:         "ana@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RegistrationStatusRegistered, created.Status)
	assert.Len(t, created.ShortCode, 10)
	assert.Len(t, created.VerificationCode, 6)
	require.NotEmpty(t, created.Token)

	// The sealed token points back at the stored registration.
	claims, err := codec.Open(created.Token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.SubjectID)
	assert.Equal(t, uint(1), claims.EventID)
	assert.Equal(t, string(domain.SubjectRegistration), claims.Kind)

	stored, err := repo.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Token, stored.Token)
}

func TestRegistrationService_Register_RetriesCodeCollision(t *testing.T) {
	repo := newRegistrationRepoFake()
	repo.failCreates = 2
	events := &checkinEventRepoFake{events: map[uint]domain.Event{
		1: signupEvent(domain.EventModeRegistration),
	}}

	svc := NewRegistrationService(repo, events, testCodec(t), NewCodeAllocator(nil))
	svc.now = func() time.Time { return time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC) }

	created, err := svc.Register(context.Background(), 1, domain.Registration{
		ParticipantID: 7, Type: domain.ParticipantMember,
		FirstName: "Ana", LastName: "Ruiz", Email: "ana@example.com",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.VerificationCode)
}

func TestRegistrationService_Register_Gates(t *testing.T) {
	repo := newRegistrationRepoFake()
	events := &checkinEventRepoFake{events: map[uint]domain.Event{
		1: signupEvent(domain.EventModeRegistration),
		2: signupEvent(domain.EventModeTicketed),
	}}

	svc := NewRegistrationService(repo, events, testCodec(t), NewCodeAllocator(nil))
	svc.now = func() time.Time { return time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC) }

	reg := domain.Registration{ParticipantID: 7, Type: domain.ParticipantMember}

	_, err := svc.Register(context.Background(), 2, reg)
	assert.ErrorIs(t, err, ErrWrongEventMode)

	_, err = svc.Register(context.Background(), 99, reg)
	assert.ErrorIs(t, err, ErrEventNotFound)

	// Sign-up window closed.
	var elig *domain.EligibilityError
	_, err = svc.Register(context.Background(), 1, reg)
	require.ErrorAs(t, err, &elig)
	assert.Equal(t, domain.ReasonOutsideWindow, elig.Reason)
}

func TestRegistrationService_BackfillCodes(t *testing.T) {
	repo := newRegistrationRepoFake()
	events := &checkinEventRepoFake{events: map[uint]domain.Event{
		1: signupEvent(domain.EventModeRegistration),
	}}

	// Two legacy rows without codes, one that already has one.
	for i, code := range []string{"", "", "LEGACY"} {
		repo.byID[uint(i+1)] = &domain.Registration{
			ID: uint(i + 1), EventID: 1,
			Status: domain.RegistrationStatusRegistered, VerificationCode: code,
		}
		repo.nextID++
	}

	svc := NewRegistrationService(repo, events, testCodec(t), NewCodeAllocator(nil))

	filled, err := svc.BackfillCodes(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, filled)

	for id := uint(1); id <= 2; id++ {
		assert.Len(t, repo.byID[id].VerificationCode, 6)
	}
	assert.Equal(t, "LEGACY", repo.byID[3].VerificationCode, "existing codes stay put")

	// A second pass finds nothing left to fill.
	filled, err = svc.BackfillCodes(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, filled)
}
