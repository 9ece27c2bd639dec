package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/attendly/attendly/internal/domain"
	"github.com/attendly/attendly/internal/repository/dao"
)

var (
	ErrEventNotFound    = dao.ErrEventNotFound
	ErrCategoryNotFound = dao.ErrCategoryNotFound
)

type EventDAO interface {
	Insert(ctx context.Context, event dao.Event) (dao.Event, error)
	FindByID(ctx context.Context, id uint) (dao.Event, error)
	FindAll(ctx context.Context) ([]dao.Event, error)
	FindCategory(ctx context.Context, eventID, categoryID uint) (dao.TicketCategory, error)
	MarkCancelled(ctx context.Context, id uint) error
}

type EventRepository struct {
	dao EventDAO
}

func NewEventRepository(dao EventDAO) *EventRepository {
	return &EventRepository{
		dao: dao,
	}
}

func (r *EventRepository) Create(ctx context.Context, event domain.Event) (domain.Event, error) {
	created, err := r.dao.Insert(ctx, r.domainToDao(event))
	if err != nil {
		return domain.Event{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return r.daoToDomain(created), nil
}

func (r *EventRepository) FindByID(ctx context.Context, id uint) (domain.Event, error) {
	found, err := r.dao.FindByID(ctx, id)
	if err != nil {
		return domain.Event{}, err
	}

	return r.daoToDomain(found), nil
}

func (r *EventRepository) FindAll(ctx context.Context) ([]domain.Event, error) {
	found, err := r.dao.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	events := make([]domain.Event, len(found))
	for i, e := range found {
		events[i] = r.daoToDomain(e)
	}

	return events, nil
}

func (r *EventRepository) FindCategory(ctx context.Context, eventID, categoryID uint) (domain.TicketCategory, error) {
	found, err := r.dao.FindCategory(ctx, eventID, categoryID)
	if err != nil {
		return domain.TicketCategory{}, err
	}

	return categoryDaoToDomain(found), nil
}

func (r *EventRepository) Cancel(ctx context.Context, id uint) error {
	return r.dao.MarkCancelled(ctx, id)
}

func (r *EventRepository) domainToDao(e domain.Event) dao.Event {
	categories := make([]dao.TicketCategory, len(e.Categories))
	for i, c := range e.Categories {
		categories[i] = dao.TicketCategory{
			ID:         c.ID,
			EventID:    c.EventID,
			Name:       c.Name,
			Capacity:   c.Capacity,
			Available:  c.Available,
			PriceCents: c.PriceCents,
			Currency:   c.Currency,
		}
	}

	types := make([]string, len(e.AllowedTypes))
	for i, t := range e.AllowedTypes {
		types[i] = string(t)
	}

	return dao.Event{
		ID:                e.ID,
		Name:              e.Name,
		Location:          e.Location,
		Description:       e.Description,
		Mode:              string(e.Mode),
		Cancelled:         e.Cancelled,
		AllowedTypes:      strings.Join(types, ","),
		RegistrationStart: e.RegistrationStart,
		RegistrationEnd:   e.RegistrationEnd,
		EventStart:        e.EventStart,
		EventEnd:          e.EventEnd,
		Categories:        categories,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}

func (r *EventRepository) daoToDomain(e dao.Event) domain.Event {
	categories := make([]domain.TicketCategory, len(e.Categories))
	for i, c := range e.Categories {
		categories[i] = categoryDaoToDomain(c)
	}

	var types []domain.ParticipantType
	if e.AllowedTypes != "" {
		for _, t := range strings.Split(e.AllowedTypes, ",") {
			types = append(types, domain.ParticipantType(t))
		}
	}

	return domain.Event{
		ID:                e.ID,
		Name:              e.Name,
		Location:          e.Location,
		Description:       e.Description,
		Mode:              domain.EventMode(e.Mode),
		Cancelled:         e.Cancelled,
		AllowedTypes:      types,
		RegistrationStart: e.RegistrationStart,
		RegistrationEnd:   e.RegistrationEnd,
		EventStart:        e.EventStart,
		EventEnd:          e.EventEnd,
		Categories:        categories,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}

func categoryDaoToDomain(c dao.TicketCategory) domain.TicketCategory {
	return domain.TicketCategory{
		ID:         c.ID,
		EventID:    c.EventID,
		Name:       c.Name,
		Capacity:   c.Capacity,
		Available:  c.Available,
		PriceCents: c.PriceCents,
		Currency:   c.Currency,
	}
}
