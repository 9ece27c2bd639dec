package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrReservationNotFound = errors.New("reservation not found")
	ErrReservationExpired  = errors.New("reservation expired")
	ErrCapacityExceeded    = errors.New("category capacity exceeded")
)

type Reservation struct {
	ID         string `gorm:"primaryKey"`
	EventID    uint   `gorm:"not null;index"`
	CategoryID uint   `gorm:"not null"`
	Quantity   int    `gorm:"not null"`
	Status     string `gorm:"not null;default:pending;index"`
	PaymentRef string
	ExpiresAt  time.Time `gorm:"not null;index"`
	CreatedAt  time.Time `gorm:"not null"`
}

type ReservationDAO struct {
	db *gorm.DB
}

func NewReservationDAO(db *gorm.DB) *ReservationDAO {
	return &ReservationDAO{
		db: db,
	}
}

// Insert claims inventory and records the pending reservation in one
// transaction. The check-and-decrement is a single conditional UPDATE,
// never a read followed by a write, so two racing purchases for the last
// seat cannot both succeed.
func (d *ReservationDAO) Insert(ctx context.Context, reservation Reservation) (Reservation, error) {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&TicketCategory{}).
			Where("id = ? AND event_id = ? AND available >= ?",
				reservation.CategoryID, reservation.EventID, reservation.Quantity).
			Update("available", gorm.Expr("available - ?", reservation.Quantity))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrCapacityExceeded
		}

		return tx.Create(&reservation).Error
	})
	if err != nil {
		return Reservation{}, err
	}

	return reservation, nil
}

func (d *ReservationDAO) FindByID(ctx context.Context, id string) (Reservation, error) {
	var reservation Reservation

	result := d.db.WithContext(ctx).First(&reservation, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Reservation{}, ErrReservationNotFound
		}

		return Reservation{}, result.Error
	}

	return reservation, nil
}

func (d *ReservationDAO) FindByPaymentRef(ctx context.Context, paymentRef string) (Reservation, error) {
	var reservation Reservation

	result := d.db.WithContext(ctx).First(&reservation, "payment_ref = ?", paymentRef)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Reservation{}, ErrReservationNotFound
		}

		return Reservation{}, result.Error
	}

	return reservation, nil
}

func (d *ReservationDAO) SetPaymentRef(ctx context.Context, id, paymentRef string) error {
	result := d.db.WithContext(ctx).Model(&Reservation{}).
		Where("id = ?", id).
		Update("payment_ref", paymentRef)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrReservationNotFound
	}

	return nil
}

// MarkCommitted flips pending -> committed. Committing an already
// committed reservation is a no-op so at-least-once payment callbacks are
// harmless; committing an expired one is an error.
func (d *ReservationDAO) MarkCommitted(ctx context.Context, id string) error {
	result := d.db.WithContext(ctx).Model(&Reservation{}).
		Where("id = ? AND status = ?", id, "pending").
		Update("status", "committed")
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}

	reservation, err := d.FindByID(ctx, id)
	if err != nil {
		return err
	}

	switch reservation.Status {
	case "committed":
		return nil
	case "expired", "released":
		return ErrReservationExpired
	default:
		return ErrStateConflict
	}
}

// MarkReleased returns a pending reservation's quantity to the pool.
// Releasing an already released reservation is a no-op.
func (d *ReservationDAO) MarkReleased(ctx context.Context, id string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Reservation{}).
			Where("id = ? AND status = ?", id, "pending").
			Update("status", "released")
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			reservation, err := d.FindByID(ctx, id)
			if err != nil {
				return err
			}
			if reservation.Status == "released" || reservation.Status == "expired" {
				return nil
			}
			return ErrStateConflict
		}

		reservation, err := d.FindByID(ctx, id)
		if err != nil {
			return err
		}

		return tx.Model(&TicketCategory{}).
			Where("id = ?", reservation.CategoryID).
			Update("available", gorm.Expr("available + ?", reservation.Quantity)).Error
	})
}

func (d *ReservationDAO) FindDue(ctx context.Context, now time.Time) ([]Reservation, error) {
	var reservations []Reservation

	result := d.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", "pending", now).
		Find(&reservations)
	if result.Error != nil {
		return nil, result.Error
	}

	return reservations, nil
}

// MarkExpired flips one due pending reservation to expired and returns its
// quantity to the pool. The conditional update keeps the sweep safe
// against a payment callback landing at the same moment: only one of the
// two writers wins the pending row.
func (d *ReservationDAO) MarkExpired(ctx context.Context, id string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reservation Reservation
		if err := tx.First(&reservation, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReservationNotFound
			}
			return err
		}

		result := tx.Model(&Reservation{}).
			Where("id = ? AND status = ?", id, "pending").
			Update("status", "expired")
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStateConflict
		}

		return tx.Model(&TicketCategory{}).
			Where("id = ?", reservation.CategoryID).
			Update("available", gorm.Expr("available + ?", reservation.Quantity)).Error
	})
}
