package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/repository/common"
)

var ErrServiceNotFound = errors.New("service not found")

// ServiceRepository читает выставленные на продажу услуги.
type ServiceRepository struct {
	db *sqlx.DB
}

func NewServiceRepository(db *sqlx.DB) *ServiceRepository {
	return &ServiceRepository{db: db}
}

func (r *ServiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceListing, error) {
	return common.GetByID[models.ServiceListing](ctx, r.db, "services", id, ErrServiceNotFound)
}
