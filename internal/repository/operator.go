package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/attendly/attendly/internal/domain"
	"github.com/attendly/attendly/internal/repository/dao"
)

var (
	ErrOperatorEmailExists = dao.ErrOperatorEmailExists
	ErrOperatorNotFound    = dao.ErrOperatorNotFound
)

type OperatorDAO interface {
	Insert(ctx context.Context, operator dao.Operator) (dao.Operator, error)
	FindByID(ctx context.Context, id uint) (dao.Operator, error)
	FindByEmail(ctx context.Context, email string) (dao.Operator, error)
}

type OperatorRepository struct {
	dao OperatorDAO
}

func NewOperatorRepository(dao OperatorDAO) *OperatorRepository {
	return &OperatorRepository{
		dao: dao,
	}
}

func (r *OperatorRepository) Create(ctx context.Context, operator domain.Operator) (domain.Operator, error) {
	created, err := r.dao.Insert(ctx, operatorDomainToDao(operator))
	if err != nil {
		if errors.Is(err, dao.ErrOperatorEmailExists) {
			return domain.Operator{}, err
		}

		return domain.Operator{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return operatorDaoToDomain(created), nil
}

func (r *OperatorRepository) FindByID(ctx context.Context, id uint) (domain.Operator, error) {
	found, err := r.dao.FindByID(ctx, id)
	if err != nil {
		return domain.Operator{}, err
	}

	return operatorDaoToDomain(found), nil
}

func (r *OperatorRepository) FindByEmail(ctx context.Context, email string) (domain.Operator, error) {
	found, err := r.dao.FindByEmail(ctx, email)
	if err != nil {
		return domain.Operator{}, err
	}

	return operatorDaoToDomain(found), nil
}

func operatorDomainToDao(o domain.Operator) dao.Operator {
	return dao.Operator{
		ID:        o.ID,
		Email:     o.Email,
		Password:  o.Password,
		Name:      o.Name,
		Role:      o.Role,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func operatorDaoToDomain(o dao.Operator) domain.Operator {
	return domain.Operator{
		ID:        o.ID,
		Email:     o.Email,
		Password:  o.Password,
		Name:      o.Name,
		Role:      o.Role,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}
