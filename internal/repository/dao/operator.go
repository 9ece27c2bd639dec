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
	ErrOperatorEmailExists = errors.New("operator already exists")
	ErrOperatorNotFound    = errors.New("operator not found")
)

type Operator struct {
	ID uint `gorm:"primaryKey"`

	Email    string `gorm:"unique;not null"`
	Password string `gorm:"not null"`
	Name     string `gorm:"not null"`
	Role     string `gorm:"not null"` // "organizer" or "validator"

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type OperatorDAO struct {
	db *gorm.DB
}

func NewOperatorDAO(db *gorm.DB) *OperatorDAO {
	return &OperatorDAO{
		db: db,
	}
}

func (d *OperatorDAO) Insert(ctx context.Context, operator Operator) (Operator, error) {
	result := d.db.WithContext(ctx).Create(&operator)
	if result.Error != nil {
		var pgErr *pgconn.PgError
		if errors.As(result.Error, &pgErr) &&
			pgErr.Code == pgerrcode.UniqueViolation &&
			strings.Contains(pgErr.Message, `unique constraint "uni_operators_email"`) {
			return Operator{}, ErrOperatorEmailExists
		}

		return Operator{}, result.Error
	}

	return operator, nil
}

func (d *OperatorDAO) FindByID(ctx context.Context, id uint) (Operator, error) {
	var operator Operator

	result := d.db.WithContext(ctx).First(&operator, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Operator{}, ErrOperatorNotFound
		}

		return Operator{}, result.Error
	}

	return operator, nil
}

func (d *OperatorDAO) FindByEmail(ctx context.Context, email string) (Operator, error) {
	var operator Operator

	result := d.db.WithContext(ctx).Where("email = ?", email).First(&operator)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Operator{}, ErrOperatorNotFound
		}

		return Operator{}, result.Error
	}

	return operator, nil
}
