package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/outbox"
	"github.com/ignatzorin/freelance-payments/internal/repository/common"
)

var (
	ErrWithdrawalNotFound   = errors.New("withdrawal not found")
	ErrWithdrawalNotPending = errors.New("withdrawal already processed")
	ErrFeeMismatch          = errors.New("withdrawal fee does not match")
)

// LedgerRepository денежные записи: чекаут, заработки, выводы.
// Каждая операция выполняется одной транзакцией вместе с событием outbox.
type LedgerRepository struct {
	db       *sqlx.DB
	defaults WalletDefaults
	events   EventEmitter
}

func NewLedgerRepository(db *sqlx.DB, defaults WalletDefaults, events EventEmitter) *LedgerRepository {
	return &LedgerRepository{db: db, defaults: defaults, events: events}
}

// CheckoutRecord данные подтверждённого провайдером платежа.
type CheckoutRecord struct {
	IntentID      uuid.UUID
	CaptureID     string
	EarningAmount decimal.Decimal
	Now           time.Time
}

type CheckoutResult struct {
	Intent          *models.PaymentIntent
	Order           *models.Order
	Payment         *models.Transaction
	Earning         *models.Transaction
	AlreadyCaptured bool
}

// EarningRecord параметры earning-транзакции фрилансера.
type EarningRecord struct {
	WalletID    uuid.UUID
	Amount      decimal.Decimal
	OrderID     uuid.UUID
	ServiceID   uuid.UUID
	ClientID    uuid.UUID
	FreelanceID uuid.UUID
}

// RecordCheckout создаёт заказ, платёж клиента и заработок фрилансера по захваченному платежу.
// Повторный вызов для уже проведённого intent возвращает сохранённый результат.
func (r *LedgerRepository) RecordCheckout(ctx context.Context, rec CheckoutRecord) (*CheckoutResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ledger repository: begin checkout %w", err)
	}
	defer tx.Rollback()

	intent, err := common.LockByID[models.PaymentIntent](ctx, tx, "payment_intents", rec.IntentID, ErrPaymentIntentNotFound)
	if err != nil {
		return nil, err
	}
	if intent.IsCaptured() {
		return &CheckoutResult{Intent: intent, AlreadyCaptured: true}, nil
	}

	now := rec.Now.UTC()
	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: NewOrderNumber(now),
		ClientID:    intent.PayerID,
		FreelanceID: intent.FreelanceID,
		ServiceID:   intent.ServiceID,
		Price:       intent.Amount,
		Currency:    intent.Currency,
		Status:      models.OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, client_id, freelance_id, service_id, price, currency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, order.ID, order.OrderNumber, order.ClientID, order.FreelanceID, order.ServiceID, order.Price, order.Currency,
		order.Status, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("ledger repository: create order %w", err)
	}
	if err := appendHistory(ctx, tx, order.ID, &order.ClientID, models.OrderActionCreated, nil, map[string]string{
		"status":       order.Status,
		"order_number": order.OrderNumber,
	}); err != nil {
		return nil, err
	}

	clientWallet, err := lockWalletForUser(ctx, tx, intent.PayerID, r.defaults)
	if err != nil {
		return nil, err
	}
	payment := &models.Transaction{
		WalletID:    clientWallet.ID,
		Amount:      intent.Amount,
		Type:        models.TransactionTypePayment,
		Status:      models.TransactionStatusCompleted,
		OrderID:     &order.ID,
		ServiceID:   &intent.ServiceID,
		ClientID:    &intent.PayerID,
		FreelanceID: &intent.FreelanceID,
		ReferenceID: &rec.CaptureID,
		Description: ptr("Оплата заказа " + order.OrderNumber),
		CompletedAt: &now,
	}
	if err := insertTransaction(ctx, tx, payment); err != nil {
		return nil, err
	}

	freelanceWallet, err := lockWalletForUser(ctx, tx, intent.FreelanceID, r.defaults)
	if err != nil {
		return nil, err
	}
	earning, err := recordEarningTx(ctx, tx, EarningRecord{
		WalletID:    freelanceWallet.ID,
		Amount:      rec.EarningAmount,
		OrderID:     order.ID,
		ServiceID:   intent.ServiceID,
		ClientID:    intent.PayerID,
		FreelanceID: intent.FreelanceID,
	})
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE payment_intents
		SET status = $2, capture_id = $3, order_id = $4, transaction_id = $5, updated_at = $6
		WHERE id = $1
	`, intent.ID, models.IntentStatusCaptured, rec.CaptureID, order.ID, payment.ID, now)
	if err != nil {
		return nil, fmt.Errorf("ledger repository: mark intent captured %w", err)
	}
	intent.Status = models.IntentStatusCaptured
	intent.CaptureID = &rec.CaptureID
	intent.OrderID = &order.ID
	intent.TransactionID = &payment.ID
	intent.UpdatedAt = now

	err = r.events.Emit(ctx, tx, outbox.Event{
		Type:          models.EventPaymentSuccess,
		AggregateType: models.AggregatePaymentIntent,
		AggregateID:   intent.ID,
		ActorID:       &intent.PayerID,
		Recipients:    []uuid.UUID{intent.PayerID, intent.FreelanceID},
		Data: map[string]interface{}{
			"provider":       intent.Provider,
			"order_id":       order.ID,
			"order_number":   order.OrderNumber,
			"transaction_id": payment.ID,
			"amount":         intent.Amount,
			"currency":       intent.Currency,
		},
	})
	if err != nil {
		return nil, err
	}

	return &CheckoutResult{Intent: intent, Order: order, Payment: payment, Earning: earning}, tx.Commit()
}

// RecordEarning записывает pending earning-транзакцию. Баланс кошелька здесь не меняется.
func (r *LedgerRepository) RecordEarning(ctx context.Context, rec EarningRecord) (*models.Transaction, error) {
	var earning *models.Transaction
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var err error
		earning, err = recordEarningTx(ctx, tx, rec)
		return err
	})
	return earning, err
}

func recordEarningTx(ctx context.Context, tx *sqlx.Tx, rec EarningRecord) (*models.Transaction, error) {
	earning := &models.Transaction{
		WalletID:    rec.WalletID,
		Amount:      rec.Amount,
		Type:        models.TransactionTypeEarning,
		Status:      models.TransactionStatusPending,
		OrderID:     &rec.OrderID,
		ServiceID:   &rec.ServiceID,
		ClientID:    &rec.ClientID,
		FreelanceID: &rec.FreelanceID,
		Description: ptr("Заработок по заказу"),
	}
	if err := insertTransaction(ctx, tx, earning); err != nil {
		return nil, err
	}
	return earning, nil
}

// HoldOrderEarnings удерживает заработки заказа в pending_balance (после сдачи работы).
func (r *LedgerRepository) HoldOrderEarnings(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	held := decimal.Zero
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var err error
		held, err = holdOrderEarningsTx(ctx, tx, orderID, time.Now().UTC())
		return err
	})
	return held, err
}

// WithdrawalInput заявка пользователя на вывод.
type WithdrawalInput struct {
	UserID        uuid.UUID
	Amount        decimal.Decimal
	PaymentMethod string
	ClientFee     *decimal.Decimal
	ClientNet     *decimal.Decimal
	Now           time.Time
}

// CreateWithdrawal создаёт заявку, резервирует сумму и пишет pending withdrawal-транзакцию одной транзакцией БД.
// Отказы по балансу и минимуму возвращаются до любых изменений.
func (r *LedgerRepository) CreateWithdrawal(ctx context.Context, in WithdrawalInput) (*models.WithdrawalRequest, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ledger repository: begin withdrawal %w", err)
	}
	defer tx.Rollback()

	wallet, err := lockWalletForUser(ctx, tx, in.UserID, r.defaults)
	if err != nil {
		return nil, err
	}

	quote, err := wallet.QuoteWithdrawal(in.Amount)
	if err != nil {
		return nil, err
	}
	if in.ClientFee != nil && !in.ClientFee.Equal(quote.Fee) {
		return nil, ErrFeeMismatch
	}
	if in.ClientNet != nil && !in.ClientNet.Equal(quote.Net) {
		return nil, ErrFeeMismatch
	}
	if _, err := wallet.ReserveWithdrawal(in.Amount); err != nil {
		return nil, err
	}

	now := in.Now.UTC()
	txn := &models.Transaction{
		WalletID:    wallet.ID,
		Amount:      in.Amount,
		Type:        models.TransactionTypeWithdrawal,
		Status:      models.TransactionStatusPending,
		Description: ptr("Вывод средств: " + in.PaymentMethod),
	}
	if err := insertTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}

	request := &models.WithdrawalRequest{
		ID:            uuid.New(),
		UserID:        in.UserID,
		WalletID:      wallet.ID,
		Amount:        in.Amount,
		FeeAmount:     quote.Fee,
		NetAmount:     quote.Net,
		PaymentMethod: in.PaymentMethod,
		Status:        models.WithdrawalStatusPending,
		TransactionID: &txn.ID,
		CreatedAt:     now,
	}
	if err := insertWithdrawal(ctx, tx, request); err != nil {
		return nil, err
	}

	if err := saveWallet(ctx, tx, wallet, now); err != nil {
		return nil, err
	}

	err = r.events.Emit(ctx, tx, outbox.Event{
		Type:          models.EventWithdrawalRequested,
		AggregateType: models.AggregateWithdrawal,
		AggregateID:   request.ID,
		ActorID:       &in.UserID,
		Recipients:    []uuid.UUID{in.UserID},
		Data: map[string]interface{}{
			"withdrawal_id":  request.ID,
			"amount":         request.Amount,
			"fee_amount":     request.FeeAmount,
			"net_amount":     request.NetAmount,
			"payment_method": request.PaymentMethod,
		},
	})
	if err != nil {
		return nil, err
	}

	return request, tx.Commit()
}

// FailedWithdrawal заявка, резерв по которой не удалось сохранить.
type FailedWithdrawal struct {
	UserID        uuid.UUID
	Amount        decimal.Decimal
	FeeAmount     decimal.Decimal
	NetAmount     decimal.Decimal
	PaymentMethod string
	Note          string
}

// RecordFailedWithdrawal сохраняет заявку со статусом failed и примечанием, без изменения кошелька.
func (r *LedgerRepository) RecordFailedWithdrawal(ctx context.Context, in FailedWithdrawal) (*models.WithdrawalRequest, error) {
	var request *models.WithdrawalRequest
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		wallet, err := lockWalletForUser(ctx, tx, in.UserID, r.defaults)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		request = &models.WithdrawalRequest{
			ID:            uuid.New(),
			UserID:        in.UserID,
			WalletID:      wallet.ID,
			Amount:        in.Amount,
			FeeAmount:     in.FeeAmount,
			NetAmount:     in.NetAmount,
			PaymentMethod: in.PaymentMethod,
			Status:        models.WithdrawalStatusFailed,
			Note:          &in.Note,
			CreatedAt:     now,
			ProcessedAt:   &now,
		}
		return insertWithdrawal(ctx, tx, request)
	})
	return request, err
}

// WithdrawalDecision решение администратора по заявке.
type WithdrawalDecision struct {
	ID      uuid.UUID
	AdminID uuid.UUID
	Outcome string
	Note    *string
	Now     time.Time
}

// ProcessWithdrawal завершает или отклоняет pending-заявку.
func (r *LedgerRepository) ProcessWithdrawal(ctx context.Context, d WithdrawalDecision) (*models.WithdrawalRequest, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ledger repository: begin process withdrawal %w", err)
	}
	defer tx.Rollback()

	request, err := common.LockByID[models.WithdrawalRequest](ctx, tx, "withdrawal_requests", d.ID, ErrWithdrawalNotFound)
	if err != nil {
		return nil, err
	}
	if request.Status != models.WithdrawalStatusPending {
		return nil, ErrWithdrawalNotPending
	}

	wallet, err := lockWallet(ctx, tx, request.WalletID)
	if err != nil {
		return nil, err
	}

	now := d.Now.UTC()
	txStatus := models.TransactionStatusCompleted
	switch d.Outcome {
	case models.WithdrawalStatusCompleted:
		wallet.CompleteWithdrawal(request.Amount)
	case models.WithdrawalStatusFailed:
		wallet.FailWithdrawal(request.Amount)
		txStatus = models.TransactionStatusFailed
	default:
		return nil, fmt.Errorf("ledger repository: unknown withdrawal outcome %q", d.Outcome)
	}
	if err := saveWallet(ctx, tx, wallet, now); err != nil {
		return nil, err
	}

	if request.TransactionID != nil {
		_, err = tx.ExecContext(ctx, `UPDATE transactions SET status = $2, completed_at = $3 WHERE id = $1`,
			*request.TransactionID, txStatus, now)
		if err != nil {
			return nil, fmt.Errorf("ledger repository: update withdrawal transaction %w", err)
		}
	}

	request.Status = d.Outcome
	request.Note = d.Note
	request.ProcessedBy = &d.AdminID
	request.ProcessedAt = &now
	_, err = tx.ExecContext(ctx, `
		UPDATE withdrawal_requests SET status = $2, note = $3, processed_by = $4, processed_at = $5 WHERE id = $1
	`, request.ID, request.Status, request.Note, request.ProcessedBy, request.ProcessedAt)
	if err != nil {
		return nil, fmt.Errorf("ledger repository: update withdrawal %w", err)
	}

	err = r.events.Emit(ctx, tx, outbox.Event{
		Type:          models.EventWithdrawalProcessed,
		AggregateType: models.AggregateWithdrawal,
		AggregateID:   request.ID,
		ActorID:       &d.AdminID,
		Recipients:    []uuid.UUID{request.UserID},
		Data: map[string]interface{}{
			"withdrawal_id": request.ID,
			"status":        request.Status,
			"amount":        request.Amount,
		},
	})
	if err != nil {
		return nil, err
	}

	return request, tx.Commit()
}

func insertWithdrawal(ctx context.Context, tx *sqlx.Tx, w *models.WithdrawalRequest) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO withdrawal_requests (id, user_id, wallet_id, amount, fee_amount, net_amount, payment_method,
			status, note, transaction_id, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, w.ID, w.UserID, w.WalletID, w.Amount, w.FeeAmount, w.NetAmount, w.PaymentMethod,
		w.Status, w.Note, w.TransactionID, w.CreatedAt, w.ProcessedAt)
	if err != nil {
		return fmt.Errorf("ledger repository: insert withdrawal %w", err)
	}
	return nil
}
