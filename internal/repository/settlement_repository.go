package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/freelance-payments/internal/domain/entity"
	"github.com/ignatzorin/freelance-payments/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/outbox"
)

// SettlementResult итог расчёта по заказу.
type SettlementResult struct {
	Order            *models.Order
	SettledAmount    decimal.Decimal
	Transactions     []uuid.UUID
	AlreadyCompleted bool
}

// SettlementRepository перевод заработков из pending_balance в balance при завершении заказа.
type SettlementRepository struct {
	db     *sqlx.DB
	events EventEmitter
}

func NewSettlementRepository(db *sqlx.DB, events EventEmitter) *SettlementRepository {
	return &SettlementRepository{db: db, events: events}
}

// SettleOrder завершает заказ по подтверждению клиента. Все изменения атомарны:
// ошибка по любой транзакции откатывает весь расчёт.
func (r *SettlementRepository) SettleOrder(ctx context.Context, orderID, clientID uuid.UUID, now time.Time) (*SettlementResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("settlement repository: begin %w", err)
	}
	defer tx.Rollback()

	order, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	alreadyCompleted, err := order.CheckCompletion(clientID)
	if err != nil {
		return nil, err
	}
	if alreadyCompleted {
		return &SettlementResult{Order: order.Order, SettledAmount: decimal.Zero, AlreadyCompleted: true}, nil
	}

	result, err := settleLockedTx(ctx, tx, r.events, order, clientID, now.UTC())
	if err != nil {
		return nil, err
	}

	return result, tx.Commit()
}

// SettleDisputed завершает спорный заказ в пользу исполнителя по решению администратора.
func (r *SettlementRepository) SettleDisputed(ctx context.Context, orderID, adminID uuid.UUID, resolution string, now time.Time) (*SettlementResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("settlement repository: begin disputed %w", err)
	}
	defer tx.Rollback()

	order, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CurrentStatus() != valueobject.OrderStatusInDispute {
		return nil, ErrOrderNotInDispute
	}

	now = now.UTC()
	result, err := settleLockedTx(ctx, tx, r.events, order, adminID, now)
	if err != nil {
		return nil, err
	}
	if err := resolveDisputeTx(ctx, tx, r.events, order, adminID, models.DisputeStatusResolvedCompleted, resolution, now); err != nil {
		return nil, err
	}

	return result, tx.Commit()
}

// settleLockedTx проводит все pending-заработки заказа и переводит заказ в completed.
// Заказ должен быть заблокирован вызывающим.
func settleLockedTx(ctx context.Context, tx *sqlx.Tx, events EventEmitter, order *entity.Order, actorID uuid.UUID, now time.Time) (*SettlementResult, error) {
	earnings, err := pendingEarnings(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}

	result := &SettlementResult{SettledAmount: decimal.Zero}
	for _, earning := range earnings {
		if _, err := tx.ExecContext(ctx, `
			UPDATE transactions SET status = $2, completed_at = $3 WHERE id = $1
		`, earning.ID, models.TransactionStatusCompleted, now); err != nil {
			return nil, fmt.Errorf("settlement repository: complete earning %w", err)
		}

		wallet, err := lockWallet(ctx, tx, earning.WalletID)
		if err != nil {
			return nil, err
		}
		if earning.HeldAt == nil {
			wallet.HoldEarning(earning.Amount)
		}
		wallet.SettleEarning(earning.Amount)
		if err := saveWallet(ctx, tx, wallet, now); err != nil {
			return nil, err
		}

		result.SettledAmount = result.SettledAmount.Add(earning.Amount)
		result.Transactions = append(result.Transactions, earning.ID)
	}

	from := order.Status
	if err := order.Complete(now); err != nil {
		return nil, err
	}
	if err := saveOrder(ctx, tx, order); err != nil {
		return nil, err
	}

	oldValue, newValue := statusChange(from, order.Status)
	newValue["settled_amount"] = result.SettledAmount.String()
	if err := appendHistory(ctx, tx, order.ID, &actorID, models.OrderActionSettled, oldValue, newValue); err != nil {
		return nil, err
	}

	err = events.Emit(ctx, tx, outbox.Event{
		Type:          models.EventPaymentSuccess,
		AggregateType: models.AggregateOrder,
		AggregateID:   order.ID,
		ActorID:       &actorID,
		Recipients:    []uuid.UUID{order.FreelanceID},
		Data: map[string]interface{}{
			"order_id":       order.ID,
			"order_number":   order.OrderNumber,
			"settled_amount": result.SettledAmount,
			"transactions":   result.Transactions,
		},
	})
	if err != nil {
		return nil, err
	}

	result.Order = order.Order
	return result, nil
}
