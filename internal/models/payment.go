package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Типы транзакций
const (
	TransactionTypeDeposit    = "deposit"
	TransactionTypeWithdrawal = "withdrawal"
	TransactionTypePayment    = "payment"
	TransactionTypeEarning    = "earning"
)

// Статусы транзакций
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// Wallet представляет кошелёк пользователя.
// balance доступен для вывода, pending_balance удерживается до завершения заказа или вывода.
type Wallet struct {
	ID                      uuid.UUID       `db:"id" json:"id"`
	UserID                  uuid.UUID       `db:"user_id" json:"user_id"`
	Balance                 decimal.Decimal `db:"balance" json:"balance"`
	PendingBalance          decimal.Decimal `db:"pending_balance" json:"pending_balance"`
	TotalEarnings           decimal.Decimal `db:"total_earnings" json:"total_earnings"`
	TotalWithdrawals        decimal.Decimal `db:"total_withdrawals" json:"total_withdrawals"`
	MinWithdrawalAmount     decimal.Decimal `db:"min_withdrawal_amount" json:"min_withdrawal_amount"`
	WithdrawalFeePercentage decimal.Decimal `db:"withdrawal_fee_percentage" json:"withdrawal_fee_percentage"`
	Currency                string          `db:"currency" json:"currency"`
	CreatedAt               time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time       `db:"updated_at" json:"updated_at"`
}

// Transaction представляет финансовую транзакцию кошелька.
type Transaction struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	WalletID    uuid.UUID       `db:"wallet_id" json:"wallet_id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Type        string          `db:"type" json:"type"`
	Status      string          `db:"status" json:"status"`
	OrderID     *uuid.UUID      `db:"order_id" json:"order_id,omitempty"`
	ServiceID   *uuid.UUID      `db:"service_id" json:"service_id,omitempty"`
	ClientID    *uuid.UUID      `db:"client_id" json:"client_id,omitempty"`
	FreelanceID *uuid.UUID      `db:"freelance_id" json:"freelance_id,omitempty"`
	ReferenceID *string         `db:"reference_id" json:"reference_id,omitempty"`
	Description *string         `db:"description" json:"description,omitempty"`
	HeldAt      *time.Time      `db:"held_at" json:"held_at,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	CompletedAt *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}

// WalletOverview кошелёк вместе с последними транзакциями.
type WalletOverview struct {
	Wallet       *Wallet       `json:"wallet"`
	Transactions []Transaction `json:"transactions"`
}
