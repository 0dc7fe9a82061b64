package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Статусы платёжного намерения (нормализованные для всех провайдеров).
const (
	IntentStatusCreated    = "created"
	IntentStatusApproved   = "approved"
	IntentStatusProcessing = "processing"
	IntentStatusCompleted  = "completed"
	IntentStatusCaptured   = "captured"
	IntentStatusFailed     = "failed"
)

// PaymentIntent локальная запись о платеже у внешнего провайдера.
type PaymentIntent struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	Provider         string          `db:"provider" json:"provider"`
	ProviderID       *string         `db:"provider_id" json:"provider_id,omitempty"`
	PayerID          uuid.UUID       `db:"payer_id" json:"payer_id"`
	ServiceID        uuid.UUID       `db:"service_id" json:"service_id"`
	FreelanceID      uuid.UUID       `db:"freelance_id" json:"freelance_id"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	Currency         string          `db:"currency" json:"currency"`
	ProviderAmount   decimal.Decimal `db:"provider_amount" json:"provider_amount"`
	ProviderCurrency string          `db:"provider_currency" json:"provider_currency"`
	Status           string          `db:"status" json:"status"`
	ClientSecret     *string         `db:"client_secret" json:"-"`
	PayerEmail       *string         `db:"payer_email" json:"payer_email,omitempty"`
	Metadata         json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	IdempotencyKey   *string         `db:"idempotency_key" json:"-"`
	CaptureID        *string         `db:"capture_id" json:"capture_id,omitempty"`
	OrderID          *uuid.UUID      `db:"order_id" json:"order_id,omitempty"`
	TransactionID    *uuid.UUID      `db:"transaction_id" json:"transaction_id,omitempty"`
	FailureReason    *string         `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// IsCaptured сообщает, что платёж уже проведён по книге.
func (p *PaymentIntent) IsCaptured() bool {
	return p.Status == IntentStatusCaptured
}
