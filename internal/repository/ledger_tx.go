package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/freelance-payments/internal/domain/entity"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/outbox"
	"github.com/ignatzorin/freelance-payments/internal/repository/common"
)

// EventEmitter пишет доменные события в outbox в рамках переданной транзакции.
type EventEmitter interface {
	Emit(ctx context.Context, ext sqlx.ExtContext, evt outbox.Event) error
}

// WalletDefaults параметры, с которыми создаются новые кошельки.
type WalletDefaults struct {
	MinWithdrawalAmount     decimal.Decimal
	WithdrawalFeePercentage decimal.Decimal
	Currency                string
}

const walletColumns = `id, user_id, balance, pending_balance, total_earnings, total_withdrawals,
	min_withdrawal_amount, withdrawal_fee_percentage, currency, created_at, updated_at`

// lockWalletForUser создаёт кошелёк при отсутствии и блокирует его строку.
func lockWalletForUser(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, defaults WalletDefaults) (*entity.Wallet, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id, min_withdrawal_amount, withdrawal_fee_percentage, currency)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, defaults.MinWithdrawalAmount, defaults.WithdrawalFeePercentage, defaults.Currency)
	if err != nil {
		return nil, fmt.Errorf("wallet repository: ensure wallet %w", err)
	}

	var wallet models.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &wallet, query, userID); err != nil {
		return nil, fmt.Errorf("wallet repository: lock wallet %w", err)
	}
	return entity.NewWallet(&wallet), nil
}

func lockWallet(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID) (*entity.Wallet, error) {
	wallet, err := common.LockByID[models.Wallet](ctx, tx, "wallets", walletID, ErrWalletNotFound)
	if err != nil {
		return nil, err
	}
	return entity.NewWallet(wallet), nil
}

func saveWallet(ctx context.Context, tx *sqlx.Tx, w *entity.Wallet, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = $2, pending_balance = $3, total_earnings = $4, total_withdrawals = $5, updated_at = $6
		WHERE id = $1
	`, w.ID, w.Balance, w.PendingBalance, w.TotalEarnings, w.TotalWithdrawals, now)
	if err != nil {
		return fmt.Errorf("wallet repository: save wallet %w", err)
	}
	w.UpdatedAt = now
	return nil
}

func lockOrder(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID) (*entity.Order, error) {
	order, err := common.LockByID[models.Order](ctx, tx, "orders", orderID, ErrOrderNotFound)
	if err != nil {
		return nil, err
	}
	return entity.NewOrder(order), nil
}

func saveOrder(ctx context.Context, tx *sqlx.Tx, o *entity.Order) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, delivered_at = $3, completed_at = $4, cancelled_at = $5, updated_at = $6
		WHERE id = $1
	`, o.ID, o.Status, o.DeliveredAt, o.CompletedAt, o.CancelledAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("order repository: save order %w", err)
	}
	return nil
}

func insertTransaction(ctx context.Context, tx *sqlx.Tx, t *models.Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	query := `
		INSERT INTO transactions (id, wallet_id, amount, type, status, order_id, service_id, client_id, freelance_id,
			reference_id, description, held_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at
	`
	err := tx.QueryRowxContext(ctx, query,
		t.ID, t.WalletID, t.Amount, t.Type, t.Status, t.OrderID, t.ServiceID, t.ClientID, t.FreelanceID,
		t.ReferenceID, t.Description, t.HeldAt, t.CompletedAt,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("ledger repository: insert transaction %w", err)
	}
	return nil
}

// pendingEarnings возвращает незавершённые earning-транзакции заказа под блокировкой.
func pendingEarnings(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID) ([]models.Transaction, error) {
	var earnings []models.Transaction
	err := tx.SelectContext(ctx, &earnings, `
		SELECT * FROM transactions
		WHERE order_id = $1 AND type = $2 AND status = $3
		ORDER BY created_at
		FOR UPDATE
	`, orderID, models.TransactionTypeEarning, models.TransactionStatusPending)
	if err != nil {
		return nil, fmt.Errorf("ledger repository: pending earnings %w", err)
	}
	return earnings, nil
}

// holdOrderEarningsTx переносит ещё не удержанные заработки заказа в pending_balance.
func holdOrderEarningsTx(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID, now time.Time) (decimal.Decimal, error) {
	earnings, err := pendingEarnings(ctx, tx, orderID)
	if err != nil {
		return decimal.Zero, err
	}

	held := decimal.Zero
	for _, earning := range earnings {
		if earning.HeldAt != nil {
			continue
		}
		wallet, err := lockWallet(ctx, tx, earning.WalletID)
		if err != nil {
			return decimal.Zero, err
		}
		wallet.HoldEarning(earning.Amount)
		if err := saveWallet(ctx, tx, wallet, now); err != nil {
			return decimal.Zero, err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE transactions SET held_at = $2 WHERE id = $1`, earning.ID, now); err != nil {
			return decimal.Zero, fmt.Errorf("ledger repository: mark held %w", err)
		}
		held = held.Add(earning.Amount)
	}
	return held, nil
}

func appendHistory(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID, userID *uuid.UUID, action string, oldValue, newValue interface{}) error {
	oldJSON, err := json.Marshal(oldValue)
	if err != nil {
		return fmt.Errorf("order history: marshal old value %w", err)
	}
	newJSON, err := json.Marshal(newValue)
	if err != nil {
		return fmt.Errorf("order history: marshal new value %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_history (order_id, user_id, action, old_value, new_value, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, orderID, userID, action, string(oldJSON), string(newJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("order history: insert %w", err)
	}
	return nil
}

func statusChange(from, to string) (map[string]string, map[string]string) {
	return map[string]string{"status": from}, map[string]string{"status": to}
}

// NewOrderNumber формирует номер вида ORD-20240131-1A2B3C4D.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func ptr[T any](v T) *T {
	return &v
}
