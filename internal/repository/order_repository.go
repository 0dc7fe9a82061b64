package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/freelance-payments/internal/domain/entity"
	"github.com/ignatzorin/freelance-payments/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/outbox"
	"github.com/ignatzorin/freelance-payments/internal/repository/common"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderNotInDispute = errors.New("order is not in dispute")
)

type OrderRepository struct {
	db       *sqlx.DB
	defaults WalletDefaults
	events   EventEmitter
}

func NewOrderRepository(db *sqlx.DB, defaults WalletDefaults, events EventEmitter) *OrderRepository {
	return &OrderRepository{db: db, defaults: defaults, events: events}
}

func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return common.GetByID[models.Order](ctx, r.db, "orders", id, ErrOrderNotFound)
}

// History возвращает историю изменений заказа в хронологическом порядке.
func (r *OrderRepository) History(ctx context.Context, orderID uuid.UUID) ([]models.OrderHistory, error) {
	history := []models.OrderHistory{}
	err := r.db.SelectContext(ctx, &history, `
		SELECT * FROM order_history WHERE order_id = $1 ORDER BY created_at ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("order repository: history %w", err)
	}
	return history, nil
}

// Deliver исполнитель сдаёт работу, заработки заказа удерживаются в pending_balance.
func (r *OrderRepository) Deliver(ctx context.Context, orderID, freelanceID uuid.UUID, now time.Time) (*models.Order, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("order repository: begin deliver %w", err)
	}
	defer tx.Rollback()

	order, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	now = now.UTC()
	from := order.Status
	if err := order.Deliver(freelanceID, now); err != nil {
		return nil, err
	}
	if err := saveOrder(ctx, tx, order); err != nil {
		return nil, err
	}

	held, err := holdOrderEarningsTx(ctx, tx, order.ID, now)
	if err != nil {
		return nil, err
	}

	if err := r.recordTransition(ctx, tx, order, freelanceID, from, models.EventOrderDelivered, order.ClientID, map[string]interface{}{
		"held_amount": held,
	}); err != nil {
		return nil, err
	}

	return order.Order, tx.Commit()
}

// RequestRevision клиент возвращает работу на доработку.
func (r *OrderRepository) RequestRevision(ctx context.Context, orderID, clientID uuid.UUID, now time.Time) (*models.Order, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("order repository: begin revision %w", err)
	}
	defer tx.Rollback()

	order, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	from := order.Status
	if err := order.RequestRevision(clientID, now.UTC()); err != nil {
		return nil, err
	}
	if err := saveOrder(ctx, tx, order); err != nil {
		return nil, err
	}

	if err := r.recordTransition(ctx, tx, order, clientID, from, models.EventRevisionRequested, order.FreelanceID, nil); err != nil {
		return nil, err
	}

	return order.Order, tx.Commit()
}

// Cancel отмена заказа участником с возвратом оплаты клиенту.
func (r *OrderRepository) Cancel(ctx context.Context, orderID, actorID uuid.UUID, now time.Time) (*models.Order, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("order repository: begin cancel %w", err)
	}
	defer tx.Rollback()

	order, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	now = now.UTC()
	from := order.Status
	if err := order.Cancel(actorID, now); err != nil {
		return nil, err
	}
	if err := cancelLockedTx(ctx, tx, r.events, r.defaults, order, actorID, from, now); err != nil {
		return nil, err
	}

	return order.Order, tx.Commit()
}

// ResolveDisputeCancel отменяет спорный заказ по решению администратора.
func (r *OrderRepository) ResolveDisputeCancel(ctx context.Context, orderID, adminID uuid.UUID, resolution string, now time.Time) (*models.Order, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("order repository: begin dispute cancel %w", err)
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
	from := order.Status
	if err := order.ResolveCancel(now); err != nil {
		return nil, err
	}
	if err := cancelLockedTx(ctx, tx, r.events, r.defaults, order, adminID, from, now); err != nil {
		return nil, err
	}
	if err := resolveDisputeTx(ctx, tx, r.events, order, adminID, models.DisputeStatusResolvedCancelled, resolution, now); err != nil {
		return nil, err
	}

	return order.Order, tx.Commit()
}

func (r *OrderRepository) recordTransition(ctx context.Context, tx *sqlx.Tx, order *entity.Order, actorID uuid.UUID, from, eventType string, recipient uuid.UUID, extra map[string]interface{}) error {
	oldValue, newValue := statusChange(from, order.Status)
	if err := appendHistory(ctx, tx, order.ID, &actorID, models.OrderActionStatus, oldValue, newValue); err != nil {
		return err
	}

	data := map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"status":       order.Status,
	}
	for k, v := range extra {
		data[k] = v
	}
	return r.events.Emit(ctx, tx, outbox.Event{
		Type:          eventType,
		AggregateType: models.AggregateOrder,
		AggregateID:   order.ID,
		ActorID:       &actorID,
		Recipients:    []uuid.UUID{recipient},
		Data:          data,
	})
}

// cancelLockedTx сохраняет отменённый заказ, снимает удержания и возвращает оплату клиенту.
// Статус заказа уже изменён вызывающим.
func cancelLockedTx(ctx context.Context, tx *sqlx.Tx, events EventEmitter, defaults WalletDefaults, order *entity.Order, actorID uuid.UUID, from string, now time.Time) error {
	if err := saveOrder(ctx, tx, order); err != nil {
		return err
	}

	earnings, err := pendingEarnings(ctx, tx, order.ID)
	if err != nil {
		return err
	}
	for _, earning := range earnings {
		if _, err := tx.ExecContext(ctx, `
			UPDATE transactions SET status = $2, completed_at = $3 WHERE id = $1
		`, earning.ID, models.TransactionStatusFailed, now); err != nil {
			return fmt.Errorf("order repository: fail earning %w", err)
		}
		if earning.HeldAt == nil {
			continue
		}
		wallet, err := lockWallet(ctx, tx, earning.WalletID)
		if err != nil {
			return err
		}
		wallet.ReleaseHold(earning.Amount)
		if err := saveWallet(ctx, tx, wallet, now); err != nil {
			return err
		}
	}

	var paid decimal.Decimal
	err = tx.GetContext(ctx, &paid, `
		SELECT COALESCE(SUM(amount), 0) FROM transactions
		WHERE order_id = $1 AND type = $2 AND status = $3
	`, order.ID, models.TransactionTypePayment, models.TransactionStatusCompleted)
	if err != nil {
		return fmt.Errorf("order repository: sum payments %w", err)
	}

	refunded := decimal.Zero
	if paid.IsPositive() {
		clientWallet, err := lockWalletForUser(ctx, tx, order.ClientID, defaults)
		if err != nil {
			return err
		}
		clientWallet.Credit(paid)
		if err := saveWallet(ctx, tx, clientWallet, now); err != nil {
			return err
		}
		refund := &models.Transaction{
			WalletID:    clientWallet.ID,
			Amount:      paid,
			Type:        models.TransactionTypeDeposit,
			Status:      models.TransactionStatusCompleted,
			OrderID:     &order.ID,
			ServiceID:   &order.ServiceID,
			ClientID:    &order.ClientID,
			FreelanceID: &order.FreelanceID,
			ReferenceID: ptr("refund:" + order.OrderNumber),
			Description: ptr("Возврат оплаты по отменённому заказу " + order.OrderNumber),
			CompletedAt: &now,
		}
		if err := insertTransaction(ctx, tx, refund); err != nil {
			return err
		}
		refunded = paid
	}

	oldValue, newValue := statusChange(from, order.Status)
	newValue["refunded_amount"] = refunded.String()
	if err := appendHistory(ctx, tx, order.ID, &actorID, models.OrderActionRefunded, oldValue, newValue); err != nil {
		return err
	}

	return events.Emit(ctx, tx, outbox.Event{
		Type:          models.EventOrderCancelled,
		AggregateType: models.AggregateOrder,
		AggregateID:   order.ID,
		ActorID:       &actorID,
		Recipients:    []uuid.UUID{order.ClientID, order.FreelanceID},
		Data: map[string]interface{}{
			"order_id":        order.ID,
			"order_number":    order.OrderNumber,
			"refunded_amount": refunded,
		},
	})
}
