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

var (
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrCodeTaken            = errors.New("code already allocated")
	// ErrStateConflict is the Conflict half of the conditional-update
	// primitive: the row was not in the expected state, so nothing was
	// written.
	ErrStateConflict = errors.New("subject not in expected state")
)

type Registration struct {
	ID            uint   `gorm:"primaryKey"`
	EventID       uint   `gorm:"not null;index"`
	ParticipantID uint   `gorm:"not null"`
	Type          string `gorm:"not null"` // "member", "guest" or "invitee"
	FirstName     string `gorm:"not null"`
	LastName      string `gorm:"not null"`
	Email         string `gorm:"not null"`
	PhotoRef      string
	Status        string `gorm:"not null;default:registered"`

	ShortCode        string `gorm:"uniqueIndex:uni_registrations_short_code;not null"`
	VerificationCode string `gorm:"uniqueIndex:uni_registrations_verification_code"`
	Token            string `gorm:"not null"`

	CreatedAt        time.Time `gorm:"not null"`
	ValidatedAt      *time.Time
	ValidationMethod *string
}

type RegistrationDAO struct {
	db *gorm.DB
}

func NewRegistrationDAO(db *gorm.DB) *RegistrationDAO {
	return &RegistrationDAO{
		db: db,
	}
}

func (d *RegistrationDAO) Insert(ctx context.Context, registration Registration) (Registration, error) {
	result := d.db.WithContext(ctx).Create(&registration)
	if result.Error != nil {
		var pgErr *pgconn.PgError
		if errors.As(result.Error, &pgErr) &&
			pgErr.Code == pgerrcode.UniqueViolation &&
			strings.Contains(pgErr.Message, "uni_registrations") {
			return Registration{}, ErrCodeTaken
		}

		return Registration{}, result.Error
	}

	return registration, nil
}

func (d *RegistrationDAO) FindByID(ctx context.Context, id uint) (Registration, error) {
	var registration Registration

	result := d.db.WithContext(ctx).First(&registration, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Registration{}, ErrRegistrationNotFound
		}

		return Registration{}, result.Error
	}

	return registration, nil
}

func (d *RegistrationDAO) FindByEventAndShortCode(ctx context.Context, eventID uint, code string) (Registration, error) {
	return d.findOne(ctx, "event_id = ? AND short_code = ?", eventID, code)
}

func (d *RegistrationDAO) FindByEventAndVerificationCode(ctx context.Context, eventID uint, code string) (Registration, error) {
	return d.findOne(ctx, "event_id = ? AND verification_code = ?", eventID, code)
}

func (d *RegistrationDAO) findOne(ctx context.Context, query string, args ...interface{}) (Registration, error) {
	var registration Registration

	result := d.db.WithContext(ctx).Where(query, args...).First(&registration)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Registration{}, ErrRegistrationNotFound
		}

		return Registration{}, result.Error
	}

	return registration, nil
}

func (d *RegistrationDAO) FindByEventID(ctx context.Context, eventID uint) ([]Registration, error) {
	var registrations []Registration

	result := d.db.WithContext(ctx).Where("event_id = ?", eventID).Find(&registrations)
	if result.Error != nil {
		return nil, result.Error
	}

	return registrations, nil
}

// FindWithPhotos returns the active registrations of an event that carry a
// photo reference. They form the candidate pool for the face channel.
func (d *RegistrationDAO) FindWithPhotos(ctx context.Context, eventID uint) ([]Registration, error) {
	var registrations []Registration

	result := d.db.WithContext(ctx).
		Where("event_id = ? AND photo_ref <> '' AND status = ?", eventID, "registered").
		Find(&registrations)
	if result.Error != nil {
		return nil, result.Error
	}

	return registrations, nil
}

// FindMissingCode returns registrations whose verification code was never
// populated, for the allocator's backfill pass.
func (d *RegistrationDAO) FindMissingCode(ctx context.Context, eventID uint) ([]Registration, error) {
	var registrations []Registration

	result := d.db.WithContext(ctx).
		Where("event_id = ? AND (verification_code IS NULL OR verification_code = '')", eventID).
		Find(&registrations)
	if result.Error != nil {
		return nil, result.Error
	}

	return registrations, nil
}

// SetVerificationCode fills the code only when it is still missing.
// Uniqueness is enforced by the database index.
func (d *RegistrationDAO) SetVerificationCode(ctx context.Context, id uint, code string) error {
	result := d.db.WithContext(ctx).Model(&Registration{}).
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

// SetToken stores the sealed attendance token minted for a registration.
func (d *RegistrationDAO) SetToken(ctx context.Context, id uint, sealedToken string) error {
	result := d.db.WithContext(ctx).Model(&Registration{}).
		Where("id = ?", id).
		Update("token", sealedToken)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRegistrationNotFound
	}

	return nil
}

// MarkAttended commits the registered -> attended transition. The WHERE
// clause carries the expected state, so of two racing validations exactly
// one gets RowsAffected == 1 and the other ErrStateConflict.
func (d *RegistrationDAO) MarkAttended(ctx context.Context, id uint, method string, at time.Time) error {
	result := d.db.WithContext(ctx).Model(&Registration{}).
		Where("id = ? AND status = ?", id, "registered").
		Updates(map[string]interface{}{
			"status":            "attended",
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

// MarkCancelled flips registered -> cancelled; terminal states are left
// untouched.
func (d *RegistrationDAO) MarkCancelled(ctx context.Context, id uint) error {
	result := d.db.WithContext(ctx).Model(&Registration{}).
		Where("id = ? AND status = ?", id, "registered").
		Update("status", "cancelled")
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStateConflict
	}

	return nil
}
