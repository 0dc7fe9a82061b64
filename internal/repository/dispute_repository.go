package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/freelance-payments/internal/domain/entity"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/outbox"
	"github.com/ignatzorin/freelance-payments/internal/repository/common"
)

var (
	ErrDisputeNotFound = errors.New("dispute not found")
	ErrDisputeExists   = errors.New("dispute already exists for order")
	ErrDisputeClosed   = errors.New("dispute already resolved")
)

type DisputeRepository struct {
	db     *sqlx.DB
	events EventEmitter
}

func NewDisputeRepository(db *sqlx.DB, events EventEmitter) *DisputeRepository {
	return &DisputeRepository{db: db, events: events}
}

// Open переводит заказ в in_dispute и создаёт спор.
func (r *DisputeRepository) Open(ctx context.Context, orderID, actorID uuid.UUID, reason string, now time.Time) (*models.Dispute, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: begin open %w", err)
	}
	defer tx.Rollback()

	order, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	now = now.UTC()
	from := order.Status
	if err := order.OpenDispute(actorID, now); err != nil {
		return nil, err
	}
	if err := saveOrder(ctx, tx, order); err != nil {
		return nil, err
	}

	dispute := &models.Dispute{
		ID:          uuid.New(),
		OrderID:     order.ID,
		ClientID:    order.ClientID,
		FreelanceID: order.FreelanceID,
		OpenedBy:    actorID,
		Reason:      reason,
		Status:      models.DisputeStatusOpen,
		CreatedAt:   now,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO disputes (id, order_id, client_id, freelance_id, opened_by, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, dispute.ID, dispute.OrderID, dispute.ClientID, dispute.FreelanceID, dispute.OpenedBy, dispute.Reason,
		dispute.Status, dispute.CreatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return nil, ErrDisputeExists
		}
		return nil, fmt.Errorf("dispute repository: insert %w", err)
	}

	oldValue, newValue := statusChange(from, order.Status)
	if err := appendHistory(ctx, tx, order.ID, &actorID, models.OrderActionDisputed, oldValue, newValue); err != nil {
		return nil, err
	}

	err = r.events.Emit(ctx, tx, outbox.Event{
		Type:          models.EventDisputeOpened,
		AggregateType: models.AggregateDispute,
		AggregateID:   dispute.ID,
		ActorID:       &actorID,
		Recipients:    []uuid.UUID{counterparty(order, actorID)},
		Data: map[string]interface{}{
			"dispute_id": dispute.ID,
			"order_id":   order.ID,
			"reason":     reason,
		},
	})
	if err != nil {
		return nil, err
	}

	return dispute, tx.Commit()
}

func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	return common.GetByID[models.Dispute](ctx, r.db, "disputes", id, ErrDisputeNotFound)
}

func (r *DisputeRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	if err := r.db.GetContext(ctx, &d, `SELECT * FROM disputes WHERE order_id = $1`, orderID); err != nil {
		if isNoRows(err) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: get by order %w", err)
	}
	return &d, nil
}

// AddMessage добавляет сообщение в переписку. Сообщения не редактируются.
func (r *DisputeRepository) AddMessage(ctx context.Context, msg *models.DisputeMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	query := `
		INSERT INTO dispute_messages (id, dispute_id, sender_id, body, attachment_path, attachment_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		msg.ID, msg.DisputeID, msg.SenderID, msg.Body, msg.AttachmentPath, msg.AttachmentType,
	).Scan(&msg.CreatedAt); err != nil {
		return fmt.Errorf("dispute repository: add message %w", err)
	}
	return nil
}

// ListMessages возвращает переписку по спору в порядке создания.
func (r *DisputeRepository) ListMessages(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeMessage, error) {
	messages := []models.DisputeMessage{}
	err := r.db.SelectContext(ctx, &messages, `
		SELECT * FROM dispute_messages WHERE dispute_id = $1 ORDER BY created_at ASC, id ASC
	`, disputeID)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list messages %w", err)
	}
	return messages, nil
}

// resolveDisputeTx закрывает открытый спор заказа в рамках транзакции расчёта или отмены.
func resolveDisputeTx(ctx context.Context, tx *sqlx.Tx, events EventEmitter, order *entity.Order, adminID uuid.UUID, status, resolution string, now time.Time) error {
	var disputeID uuid.UUID
	err := tx.GetContext(ctx, &disputeID, `
		UPDATE disputes SET status = $2, resolution = $3, resolved_by = $4, resolved_at = $5
		WHERE order_id = $1 AND status = $6
		RETURNING id
	`, order.ID, status, resolution, adminID, now, models.DisputeStatusOpen)
	if err != nil {
		if isNoRows(err) {
			return ErrDisputeClosed
		}
		return fmt.Errorf("dispute repository: resolve %w", err)
	}

	return events.Emit(ctx, tx, outbox.Event{
		Type:          models.EventDisputeResolved,
		AggregateType: models.AggregateDispute,
		AggregateID:   disputeID,
		ActorID:       &adminID,
		Recipients:    []uuid.UUID{order.ClientID, order.FreelanceID},
		Data: map[string]interface{}{
			"dispute_id": disputeID,
			"order_id":   order.ID,
			"status":     status,
			"resolution": resolution,
		},
	})
}

func counterparty(order *entity.Order, actorID uuid.UUID) uuid.UUID {
	if order.ClientID == actorID {
		return order.FreelanceID
	}
	return order.ClientID
}
