package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/freelance-payments/internal/models"
)

var ErrWalletNotFound = errors.New("wallet not found")

// WalletRepository чтение кошельков и их истории.
type WalletRepository struct {
	db       *sqlx.DB
	defaults WalletDefaults
}

func NewWalletRepository(db *sqlx.DB, defaults WalletDefaults) *WalletRepository {
	return &WalletRepository{db: db, defaults: defaults}
}

// GetOrCreate возвращает кошелёк пользователя, создаёт его при первом обращении.
func (r *WalletRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	query := `
		INSERT INTO wallets (user_id, min_withdrawal_amount, withdrawal_fee_percentage, currency)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING ` + walletColumns
	err := r.db.GetContext(ctx, &wallet, query,
		userID, r.defaults.MinWithdrawalAmount, r.defaults.WithdrawalFeePercentage, r.defaults.Currency,
	)
	if err != nil {
		return nil, fmt.Errorf("wallet repository: get or create %w", err)
	}
	return &wallet, nil
}

// ListTransactions возвращает транзакции кошелька, новые первыми.
func (r *WalletRepository) ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	transactions := []models.Transaction{}
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT * FROM transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, walletID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("wallet repository: list transactions %w", err)
	}
	return transactions, nil
}

// ListWithdrawals возвращает заявки на вывод пользователя.
func (r *WalletRepository) ListWithdrawals(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WithdrawalRequest, error) {
	withdrawals := []models.WithdrawalRequest{}
	err := r.db.SelectContext(ctx, &withdrawals, `
		SELECT * FROM withdrawal_requests
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("wallet repository: list withdrawals %w", err)
	}
	return withdrawals, nil
}

// GetWithdrawal возвращает заявку на вывод по ID.
func (r *WalletRepository) GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	var w models.WithdrawalRequest
	if err := r.db.GetContext(ctx, &w, `SELECT * FROM withdrawal_requests WHERE id = $1`, id); err != nil {
		if isNoRows(err) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("wallet repository: get withdrawal %w", err)
	}
	return &w, nil
}
