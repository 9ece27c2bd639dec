package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/attendly/attendly/internal/domain"
	"github.com/attendly/attendly/internal/pkg/token"
	"github.com/attendly/attendly/internal/repository"
)

var (
	ErrEventNotFound        = repository.ErrEventNotFound
	ErrRegistrationNotFound = repository.ErrRegistrationNotFound
	ErrStateConflict        = repository.ErrStateConflict
	ErrWrongEventMode       = errors.New("operation not supported for this event mode")
)

type RegistrationRepository interface {
	Create(ctx context.Context, registration domain.Registration) (domain.Registration, error)
	FindByID(ctx context.Context, id uint) (domain.Registration, error)
	FindByEventID(ctx context.Context, eventID uint) ([]domain.Registration, error)
	FindMissingCode(ctx context.Context, eventID uint) ([]domain.Registration, error)
	SetVerificationCode(ctx context.Context, id uint, code string) error
	SetToken(ctx context.Context, id uint, sealedToken string) error
	Cancel(ctx context.Context, id uint) error
}

type RegistrationEventRepository interface {
	FindByID(ctx context.Context, id uint) (domain.Event, error)
}

type RegistrationService struct {
	registrations RegistrationRepository
	eventsRepo    RegistrationEventRepository
	codec         *token.Codec
	allocator     *CodeAllocator
	now           func() time.Time
}

func NewRegistrationService(registrations RegistrationRepository, eventsRepo RegistrationEventRepository, codec *token.Codec, allocator *CodeAllocator) *RegistrationService {
	return &RegistrationService{
		registrations: registrations,
		eventsRepo:    eventsRepo,
		codec:         codec,
		allocator:     allocator,
		now:           time.Now,
	}
}

// Register admits a person into a registration-mode event: eligibility
// gate, event-unique short code, verification code, sealed token. The
// returned registration carries everything the confirmation needs.
func (s *RegistrationService) Register(ctx context.Context, eventID uint, registration domain.Registration) (domain.Registration, error) {
	event, err := s.eventsRepo.FindByID(ctx, eventID)
	if err != nil {
		return domain.Registration{}, err
	}
	if event.Mode != domain.EventModeRegistration {
		return domain.Registration{}, ErrWrongEventMode
	}

	if err = domain.CheckIntake(event, registration.Type, s.now()); err != nil {
		return domain.Registration{}, err
	}

	registration.EventID = eventID
	registration.Status = domain.RegistrationStatusRegistered
	registration.CreatedAt = s.now()

	var created domain.Registration
	_, err = s.allocator.Allocate(ctx, domain.EventModeRegistration, func(code string) error {
		shortCode, genErr := GenerateShortCode()
		if genErr != nil {
			return genErr
		}
		registration.ShortCode = shortCode
		registration.VerificationCode = code

		created, genErr = s.registrations.Create(ctx, registration)
		return genErr
	})
	if err != nil {
		return domain.Registration{}, fmt.Errorf("s.allocator.Allocate -> %w", err)
	}

	sealed, err := s.codec.Mint(token.Claims{
		SubjectID:     created.ID,
		EventID:       created.EventID,
		ParticipantID: created.ParticipantID,
		Kind:          string(domain.SubjectRegistration),
	})
	if err != nil {
		return domain.Registration{}, fmt.Errorf("s.codec.Mint -> %w", err)
	}

	if err = s.registrations.SetToken(ctx, created.ID, sealed); err != nil {
		return domain.Registration{}, fmt.Errorf("s.registrations.SetToken -> %w", err)
	}
	created.Token = sealed

	return created, nil
}

func (s *RegistrationService) GetRegistration(ctx context.Context, id uint) (domain.Registration, error) {
	return s.registrations.FindByID(ctx, id)
}

func (s *RegistrationService) ListByEvent(ctx context.Context, eventID uint) ([]domain.Registration, error) {
	return s.registrations.FindByEventID(ctx, eventID)
}

func (s *RegistrationService) Cancel(ctx context.Context, id uint) error {
	return s.registrations.Cancel(ctx, id)
}

// BackfillCodes tops up verification codes for registrations that predate
// code allocation, without disturbing codes already in place.
func (s *RegistrationService) BackfillCodes(ctx context.Context, eventID uint) (int, error) {
	missing, err := s.registrations.FindMissingCode(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("s.registrations.FindMissingCode -> %w", err)
	}

	filled := 0
	for _, registration := range missing {
		id := registration.ID
		_, err = s.allocator.Allocate(ctx, domain.EventModeRegistration, func(code string) error {
			return s.registrations.SetVerificationCode(ctx, id, code)
		})
		if errors.Is(err, repository.ErrStateConflict) {
			// Someone else filled this one in the meantime.
			continue
		}
		if err != nil {
			return filled, fmt.Errorf("s.allocator.Allocate -> %w", err)
		}
		filled++
	}

	return filled, nil
}
