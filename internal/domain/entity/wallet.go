package entity

import (
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/freelance-payments/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
)

// Wallet денежные правила кошелька. Все методы меняют только структуру в памяти,
// сохранение выполняет репозиторий под блокировкой строки.
type Wallet struct {
	*models.Wallet
}

func NewWallet(m *models.Wallet) *Wallet {
	return &Wallet{Wallet: m}
}

// WithdrawalQuote результат проверки заявки на вывод.
type WithdrawalQuote struct {
	Amount decimal.Decimal
	Fee    decimal.Decimal
	Net    decimal.Decimal
}

// QuoteWithdrawal проверяет лимиты и считает комиссию, не меняя кошелёк.
func (w *Wallet) QuoteWithdrawal(amount decimal.Decimal) (WithdrawalQuote, error) {
	if !amount.IsPositive() {
		return WithdrawalQuote{}, apperror.ErrInvalidAmount
	}
	if !valueobject.FitsScale(amount, valueobject.LedgerScale) {
		return WithdrawalQuote{}, apperror.ErrAmountPrecision
	}
	if amount.GreaterThan(w.Balance) {
		return WithdrawalQuote{}, apperror.ErrInsufficientBalance
	}
	if amount.LessThan(w.MinWithdrawalAmount) {
		return WithdrawalQuote{}, apperror.ErrBelowMinimum
	}
	fee, net := valueobject.WithdrawalQuote(amount, w.WithdrawalFeePercentage)
	return WithdrawalQuote{Amount: amount, Fee: fee, Net: net}, nil
}

// ReserveWithdrawal переносит сумму из balance в pending_balance.
func (w *Wallet) ReserveWithdrawal(amount decimal.Decimal) (WithdrawalQuote, error) {
	quote, err := w.QuoteWithdrawal(amount)
	if err != nil {
		return WithdrawalQuote{}, err
	}
	w.Balance = w.Balance.Sub(amount)
	w.PendingBalance = w.PendingBalance.Add(amount)
	return quote, nil
}

// CompleteWithdrawal списывает зарезервированную сумму после выплаты.
func (w *Wallet) CompleteWithdrawal(amount decimal.Decimal) {
	w.PendingBalance = subFloorZero(w.PendingBalance, amount)
	w.TotalWithdrawals = w.TotalWithdrawals.Add(amount)
}

// FailWithdrawal возвращает зарезервированную сумму на баланс.
func (w *Wallet) FailWithdrawal(amount decimal.Decimal) {
	w.PendingBalance = subFloorZero(w.PendingBalance, amount)
	w.Balance = w.Balance.Add(amount)
}

// HoldEarning удерживает заработок до завершения заказа.
func (w *Wallet) HoldEarning(amount decimal.Decimal) {
	w.PendingBalance = w.PendingBalance.Add(amount)
}

// SettleEarning переносит заработок из pending_balance в balance.
func (w *Wallet) SettleEarning(amount decimal.Decimal) {
	w.PendingBalance = subFloorZero(w.PendingBalance, amount)
	w.Balance = w.Balance.Add(amount)
	w.TotalEarnings = w.TotalEarnings.Add(amount)
}

// ReleaseHold снимает удержание при отмене заказа.
func (w *Wallet) ReleaseHold(amount decimal.Decimal) {
	w.PendingBalance = subFloorZero(w.PendingBalance, amount)
}

// Credit зачисление на доступный баланс (возврат клиенту).
func (w *Wallet) Credit(amount decimal.Decimal) {
	w.Balance = w.Balance.Add(amount)
}

func subFloorZero(value, amount decimal.Decimal) decimal.Decimal {
	result := value.Sub(amount)
	if result.IsNegative() {
		return decimal.Zero
	}
	return result
}
