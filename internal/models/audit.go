package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Типы событий аудита и доменных событий.
const (
	EventPaymentAttempt      = "payment_attempt"
	EventPaymentSuccess      = "payment_success"
	EventPaymentFailure      = "payment_failure"
	EventOrderDelivered      = "order_delivered"
	EventRevisionRequested   = "order_revision_requested"
	EventOrderCancelled      = "order_cancelled"
	EventWithdrawalRequested = "withdrawal_requested"
	EventWithdrawalProcessed = "withdrawal_processed"
	EventDisputeOpened       = "dispute_opened"
	EventDisputeResolved     = "dispute_resolved"
)

// Типы агрегатов, к которым относятся события.
const (
	AggregatePaymentIntent = "payment_intent"
	AggregateOrder         = "order"
	AggregateWithdrawal    = "withdrawal"
	AggregateDispute       = "dispute"
)

// AuditEvent строка outbox-таблицы audit_events.
type AuditEvent struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	EventType     string          `db:"event_type" json:"event_type"`
	AggregateType string          `db:"aggregate_type" json:"aggregate_type"`
	AggregateID   uuid.UUID       `db:"aggregate_id" json:"aggregate_id"`
	ActorID       *uuid.UUID      `db:"actor_id" json:"actor_id,omitempty"`
	Payload       json.RawMessage `db:"payload" json:"payload"`
	Attempts      int             `db:"attempts" json:"attempts"`
	LastError     *string         `db:"last_error" json:"last_error,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	PublishedAt   *time.Time      `db:"published_at" json:"published_at,omitempty"`
}
