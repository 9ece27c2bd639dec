package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrEventNotFound    = errors.New("event not found")
	ErrCategoryNotFound = errors.New("ticket category not found")
)

type Event struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Location    string
	Description string
	Mode        string `gorm:"not null"` // "registration" or "ticketed"
	Cancelled   bool   `gorm:"not null;default:false"`

	// AllowedTypes is a comma-joined list; empty means unrestricted.
	AllowedTypes string

	RegistrationStart time.Time `gorm:"not null"`
	RegistrationEnd   time.Time `gorm:"not null"`
	EventStart        time.Time `gorm:"not null"`
	EventEnd          time.Time `gorm:"not null"`

	Categories []TicketCategory `gorm:"foreignKey:EventID"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type TicketCategory struct {
	ID         uint   `gorm:"primaryKey"`
	EventID    uint   `gorm:"not null;index"`
	Name       string `gorm:"not null"`
	Capacity   int    `gorm:"not null"`
	Available  int    `gorm:"not null"`
	PriceCents int    `gorm:"not null"`
	Currency   string `gorm:"not null;default:EUR"`
}

type EventDAO struct {
	db *gorm.DB
}

func NewEventDAO(db *gorm.DB) *EventDAO {
	return &EventDAO{
		db: db,
	}
}

func (d *EventDAO) Insert(ctx context.Context, event Event) (Event, error) {
	result := d.db.WithContext(ctx).Create(&event)
	if result.Error != nil {
		return Event{}, result.Error
	}

	return event, nil
}

func (d *EventDAO) FindByID(ctx context.Context, id uint) (Event, error) {
	var event Event

	result := d.db.WithContext(ctx).Preload("Categories").First(&event, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Event{}, ErrEventNotFound
		}

		return Event{}, result.Error
	}

	return event, nil
}

func (d *EventDAO) FindAll(ctx context.Context) ([]Event, error) {
	var events []Event

	result := d.db.WithContext(ctx).Preload("Categories").Find(&events)
	if result.Error != nil {
		return nil, result.Error
	}

	return events, nil
}

func (d *EventDAO) FindCategory(ctx context.Context, eventID, categoryID uint) (TicketCategory, error) {
	var category TicketCategory

	result := d.db.WithContext(ctx).
		Where("id = ? AND event_id = ?", categoryID, eventID).
		First(&category)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return TicketCategory{}, ErrCategoryNotFound
		}

		return TicketCategory{}, result.Error
	}

	return category, nil
}

func (d *EventDAO) MarkCancelled(ctx context.Context, id uint) error {
	result := d.db.WithContext(ctx).Model(&Event{}).
		Where("id = ?", id).
		Update("cancelled", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEventNotFound
	}

	return nil
}
