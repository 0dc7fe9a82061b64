package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order описывает заказ клиента на услугу фрилансера.
type Order struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	OrderNumber string          `db:"order_number" json:"order_number"`
	ClientID    uuid.UUID       `db:"client_id" json:"client_id"`
	FreelanceID uuid.UUID       `db:"freelance_id" json:"freelance_id"`
	ServiceID   uuid.UUID       `db:"service_id" json:"service_id"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Currency    string          `db:"currency" json:"currency"`
	Status      string          `db:"status" json:"status"`
	DeliveredAt *time.Time      `db:"delivered_at" json:"delivered_at,omitempty"`
	CompletedAt *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt *time.Time      `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// ServiceListing услуга, которую фрилансер выставил на продажу.
type ServiceListing struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	FreelanceID uuid.UUID       `db:"freelance_id" json:"freelance_id"`
	Title       string          `db:"title" json:"title"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Currency    string          `db:"currency" json:"currency"`
	IsActive    bool            `db:"is_active" json:"is_active"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
