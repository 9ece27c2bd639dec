package dao

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var ErrTicketNotFound = errors.New("ticket not found")

type Ticket struct {
	ID            uint   `gorm:"primaryKey"`
	Serial        string `gorm:"uniqueIndex:uni_tickets_serial;not null"`
	EventID       uint   `gorm:"not null;index"`
	CategoryID    uint   `gorm:"not null"`
	ParticipantID uint
	OwnerName     string `gorm:"not null"`
	OwnerEmail    string `gorm:"not null"`
	Status        string `gorm:"not null;default:reserved"`
	PriceCents    int    `gorm:"not null"`
	Currency      string `gorm:"not null;default:EUR"`
	PaymentRef    string
	ReservationID string `gorm:"index"`

	VerificationCode string `gorm:"uniqueIndex:uni_tickets_verification_code"`
	Token            string

	CreatedAt        time.Time `gorm:"not null"`
	ValidatedAt      *time.Time
	ValidationMethod *string
}

type TicketDAO struct {
	db *gorm.DB
}

func NewTicketDAO(db *gorm.DB) *TicketDAO {
	return &TicketDAO{
		db: db,
	}
}

func (d *TicketDAO) InsertBatch(ctx context.Context, tickets []Ticket) ([]Ticket, error) {
	if len(tickets) == 0 {
		return tickets, nil
	}

	result := d.db.WithContext(ctx).Create(&tickets)
	if result.Error != nil {
		var pgErr *pgconn.PgError
		if errors.As(result.Error, &pgErr) &&
			pgErr.Code == pgerrcode.UniqueViolation &&
			strings.Contains(pgErr.Message, "uni_tickets") {
			return nil, ErrCodeTaken
		}

		return nil, result.Error
	}

	return tickets, nil
}

func (d *TicketDAO) FindByID(ctx context.Context, id uint) (Ticket, error) {
	var ticket Ticket

	result := d.db.WithContext(ctx).First(&ticket, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Ticket{}, ErrTicketNotFound
		}

		return Ticket{}, result.Error
	}

	return ticket, nil
}

func (d *TicketDAO) FindByEventAndSerial(ctx context.Context, eventID uint, serial string) (Ticket, error) {
	return d.findOne(ctx, "event_id = ? AND serial = ?", eventID, serial)
}

func (d *TicketDAO) FindByEventAndVerificationCode(ctx context.Context, eventID uint, code string) (Ticket, error) {
	return d.findOne(ctx, "event_id = ? AND verification_code = ?", eventID, code)
}

func (d *TicketDAO) findOne(ctx context.Context, query string, args ...interface{}) (Ticket, error) {
	var ticket Ticket

	result := d.db.WithContext(ctx).Where(query, args...).First(&ticket)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Ticket{}, ErrTicketNotFound
		}

		return Ticket{}, result.Error
	}

	return ticket, nil
}

func (d *TicketDAO) FindByReservationID(ctx context.Context, reservationID string) ([]Ticket, error) {
	var tickets []Ticket

	result := d.db.WithContext(ctx).Where("reservation_id = ?", reservationID).Find(&tickets)
	if result.Error != nil {
		return nil, result.Error
	}

	return tickets, nil
}

func (d *TicketDAO) FindMissingCode(ctx context.Context, eventID uint) ([]Ticket, error) {
	var tickets []Ticket

	result := d.db.WithContext(ctx).
		Where("event_id = ? AND (verification_code IS NULL OR verification_code = '')", eventID).
		Find(&tickets)
	if result.Error != nil {
		return nil, result.Error
	}

	return tickets, nil
}

func (d *TicketDAO) SetVerificationCode(ctx context.Context, id uint, code string) error {
	result := d.db.WithContext(ctx).Model(&Ticket{}).
		Where("id = ? AND (verification_code IS NULL OR verification_code = '')", id).
		Update("verification_code", code)
	if result.Error != nil {
		var pgErr *pgconn.PgError
		if errors.As(result.Error, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrCodeTaken
		}

		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStateConflict
	}

	return nil
}

// Activate flips one reserved ticket to active once its payment is
// confirmed, attaching the payment reference and the minted credentials.
func (d *TicketDAO) Activate(ctx context.Context, id uint, paymentRef, sealedToken, verificationCode string) error {
	result := d.db.WithContext(ctx).Model(&Ticket{}).
		Where("id = ? AND status = ?", id, "reserved").
		Updates(map[string]interface{}{
			"status":            "active",
			"payment_ref":       paymentRef,
			"token":             sealedToken,
			"verification_code": verificationCode,
		})
	if result.Error != nil {
		var pgErr *pgconn.PgError
		if errors.As(result.Error, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrCodeTaken
		}

		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStateConflict
	}

	return nil
}

// MarkUsed commits the active -> used transition; see
// RegistrationDAO.MarkAttended for the racing semantics.
func (d *TicketDAO) MarkUsed(ctx context.Context, id uint, method string, at time.Time) error {
	result := d.db.WithContext(ctx).Model(&Ticket{}).
		Where("id = ? AND status = ?", id, "active").
		Updates(map[string]interface{}{
			"status":            "used",
			"validated_at":      at,
			"validation_method": method,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStateConflict
	}

	return nil
}

// MarkExpiredByReservation voids the reserved tickets of a reservation
// whose checkout was abandoned.
func (d *TicketDAO) MarkExpiredByReservation(ctx context.Context, reservationID string) error {
	result := d.db.WithContext(ctx).Model(&Ticket{}).
		Where("reservation_id = ? AND status = ?", reservationID, "reserved").
		Update("status", "expired")

	return result.Error
}
