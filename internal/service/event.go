package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/attendly/attendly/internal/domain"
	"github.com/attendly/attendly/internal/repository"
)

var (
	ErrInvalidEventWindow = errors.New("event windows are inconsistent")
	ErrInvalidCapacity    = errors.New("category capacity must not be negative")
	ErrUnknownEventMode   = errors.New("unknown event mode")
)

type EventRepository interface {
	Create(ctx context.Context, event domain.Event) (domain.Event, error)
	FindByID(ctx context.Context, id uint) (domain.Event, error)
	FindAll(ctx context.Context) ([]domain.Event, error)
	Cancel(ctx context.Context, id uint) error
}

type EventService struct {
	repo EventRepository
	now  func() time.Time
}

func NewEventService(repo EventRepository) *EventService {
	return &EventService{
		repo: repo,
		now:  time.Now,
	}
}

// CreateEvent stores a new event. Every ticket category starts with its
// full capacity available; reservations are the only thing that draws it
// down afterwards.
func (s *EventService) CreateEvent(ctx context.Context, event domain.Event) (domain.Event, error) {
	switch event.Mode {
	case domain.EventModeRegistration, domain.EventModeTicketed:
	default:
		return domain.Event{}, ErrUnknownEventMode
	}

	if !event.RegistrationStart.Before(event.RegistrationEnd) ||
		!event.EventStart.Before(event.EventEnd) {
		return domain.Event{}, ErrInvalidEventWindow
	}

	for i := range event.Categories {
		if event.Categories[i].Capacity < 0 {
			return domain.Event{}, ErrInvalidCapacity
		}
		event.Categories[i].Available = event.Categories[i].Capacity
	}

	event.CreatedAt = s.now()
	event.UpdatedAt = event.CreatedAt

	created, err := s.repo.Create(ctx, event)
	if err != nil {
		return domain.Event{}, fmt.Errorf("s.repo.Create -> %w", err)
	}

	return created, nil
}

func (s *EventService) GetEvent(ctx context.Context, id uint) (domain.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return domain.Event{}, ErrEventNotFound
		}

		return domain.Event{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	return event, nil
}

func (s *EventService) ListEvents(ctx context.Context) ([]domain.Event, error) {
	events, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindAll -> %w", err)
	}

	return events, nil
}

// CancelEvent marks the event cancelled. Subjects keep their state;
// admission is refused by the eligibility gate from then on.
func (s *EventService) CancelEvent(ctx context.Context, id uint) error {
	if err := s.repo.Cancel(ctx, id); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return ErrEventNotFound
		}

		return fmt.Errorf("s.repo.Cancel -> %w", err)
	}

	return nil
}
