package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/repository/common"
)

var ErrPaymentIntentNotFound = errors.New("payment intent not found")

type PaymentIntentRepository struct {
	db *sqlx.DB
}

func NewPaymentIntentRepository(db *sqlx.DB) *PaymentIntentRepository {
	return &PaymentIntentRepository{db: db}
}

func (r *PaymentIntentRepository) Create(ctx context.Context, p *models.PaymentIntent) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if len(p.Metadata) == 0 {
		p.Metadata = []byte("{}")
	}
	query := `
		INSERT INTO payment_intents (id, provider, payer_id, service_id, freelance_id, amount, currency,
			provider_amount, provider_currency, status, payer_email, metadata, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		p.ID, p.Provider, p.PayerID, p.ServiceID, p.FreelanceID, p.Amount, p.Currency,
		p.ProviderAmount, p.ProviderCurrency, p.Status, p.PayerEmail, string(p.Metadata), p.IdempotencyKey,
	).Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("payment intent repository: create %w", err)
	}
	return nil
}

func (r *PaymentIntentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	return common.GetByID[models.PaymentIntent](ctx, r.db, "payment_intents", id, ErrPaymentIntentNotFound)
}

// GetByProviderID ищет intent по идентификатору у провайдера (PaymentIntent / PayPal Order).
func (r *PaymentIntentRepository) GetByProviderID(ctx context.Context, provider, providerID string) (*models.PaymentIntent, error) {
	var p models.PaymentIntent
	err := r.db.GetContext(ctx, &p, `SELECT * FROM payment_intents WHERE provider = $1 AND provider_id = $2`, provider, providerID)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrPaymentIntentNotFound
		}
		return nil, fmt.Errorf("payment intent repository: get by provider id %w", err)
	}
	return &p, nil
}

// SetProviderRef сохраняет ответ провайдера после создания платежа.
func (r *PaymentIntentRepository) SetProviderRef(ctx context.Context, id uuid.UUID, providerID string, clientSecret *string, status string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payment_intents SET provider_id = $2, client_secret = $3, status = $4, updated_at = $5 WHERE id = $1
	`, id, providerID, clientSecret, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("payment intent repository: set provider ref %w", err)
	}
	return nil
}

// UpdateStatus меняет статус, не трогая проведённые (captured) платежи.
func (r *PaymentIntentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payment_intents SET status = $2, updated_at = $3 WHERE id = $1 AND status <> $4
	`, id, status, time.Now().UTC(), models.IntentStatusCaptured)
	if err != nil {
		return fmt.Errorf("payment intent repository: update status %w", err)
	}
	return nil
}

// MarkFailed помечает платёж неуспешным вместе с событием в outbox.
func (r *PaymentIntentRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, emit func(tx *sqlx.Tx) error) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE payment_intents SET status = $2, failure_reason = $3, updated_at = $4 WHERE id = $1 AND status <> $5
		`, id, models.IntentStatusFailed, reason, time.Now().UTC(), models.IntentStatusCaptured)
		if err != nil {
			return fmt.Errorf("payment intent repository: mark failed %w", err)
		}
		if emit == nil {
			return nil
		}
		return emit(tx)
	})
}
