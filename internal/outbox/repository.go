package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/freelance-payments/internal/models"
)

// MaxAttempts после стольких неудачных попыток событие считается мёртвым.
const MaxAttempts = 10

// Store хранилище outbox.
type Store interface {
	Insert(ctx context.Context, ext sqlx.ExtContext, evt *models.AuditEvent) error
	ProcessBatch(ctx context.Context, limit int, fn func(context.Context, models.AuditEvent) error) (int, error)
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Insert записывает событие. ext = nil означает запись вне транзакции.
func (r *Repository) Insert(ctx context.Context, ext sqlx.ExtContext, evt *models.AuditEvent) error {
	if ext == nil {
		ext = r.db
	}
	query := `
		INSERT INTO audit_events (id, event_type, aggregate_type, aggregate_id, actor_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := ext.ExecContext(ctx, query,
		evt.ID, evt.EventType, evt.AggregateType, evt.AggregateID, evt.ActorID, string(evt.Payload), evt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("outbox repository: insert %w", err)
	}
	return nil
}

// ProcessBatch забирает пачку неопубликованных событий под SKIP LOCKED и передаёт их в fn.
// Успешные помечаются опубликованными, для остальных растёт attempts.
func (r *Repository) ProcessBatch(ctx context.Context, limit int, fn func(context.Context, models.AuditEvent) error) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("outbox repository: begin tx %w", err)
	}
	defer tx.Rollback()

	var events []models.AuditEvent
	query := `
		SELECT id, event_type, aggregate_type, aggregate_id, actor_id, payload, attempts, last_error, created_at, published_at
		FROM audit_events
		WHERE published_at IS NULL AND attempts < $1
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`
	if err := tx.SelectContext(ctx, &events, query, MaxAttempts, limit); err != nil {
		return 0, fmt.Errorf("outbox repository: claim batch %w", err)
	}

	for _, evt := range events {
		if handleErr := fn(ctx, evt); handleErr != nil {
			_, err = tx.ExecContext(ctx,
				`UPDATE audit_events SET attempts = attempts + 1, last_error = $2 WHERE id = $1`,
				evt.ID, handleErr.Error(),
			)
		} else {
			_, err = tx.ExecContext(ctx,
				`UPDATE audit_events SET attempts = attempts + 1, published_at = $2, last_error = NULL WHERE id = $1`,
				evt.ID, time.Now().UTC(),
			)
		}
		if err != nil {
			return 0, fmt.Errorf("outbox repository: mark event %w", err)
		}
	}

	return len(events), tx.Commit()
}
