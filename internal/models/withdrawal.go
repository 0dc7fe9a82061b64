package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusCompleted = "completed"
	WithdrawalStatusFailed    = "failed"
)

// WithdrawalRequest заявка на вывод средств с кошелька.
type WithdrawalRequest struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	UserID        uuid.UUID       `db:"user_id" json:"user_id"`
	WalletID      uuid.UUID       `db:"wallet_id" json:"wallet_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	FeeAmount     decimal.Decimal `db:"fee_amount" json:"fee_amount"`
	NetAmount     decimal.Decimal `db:"net_amount" json:"net_amount"`
	PaymentMethod string          `db:"payment_method" json:"payment_method"`
	Status        string          `db:"status" json:"status"`
	Note          *string         `db:"note" json:"note,omitempty"`
	TransactionID *uuid.UUID      `db:"transaction_id" json:"transaction_id,omitempty"`
	ProcessedBy   *uuid.UUID      `db:"processed_by" json:"processed_by,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt   *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}
