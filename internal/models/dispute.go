package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	DisputeStatusOpen              = "open"
	DisputeStatusResolvedCompleted = "resolved_completed"
	DisputeStatusResolvedCancelled = "resolved_cancelled"
)

// Варианты решения спора администратором.
const (
	DisputeOutcomeComplete = "complete"
	DisputeOutcomeCancel   = "cancel"
)

type Dispute struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	OrderID     uuid.UUID  `db:"order_id" json:"order_id"`
	ClientID    uuid.UUID  `db:"client_id" json:"client_id"`
	FreelanceID uuid.UUID  `db:"freelance_id" json:"freelance_id"`
	OpenedBy    uuid.UUID  `db:"opened_by" json:"opened_by"`
	Reason      string     `db:"reason" json:"reason"`
	Status      string     `db:"status" json:"status"`
	Resolution  *string    `db:"resolution" json:"resolution,omitempty"`
	ResolvedBy  *uuid.UUID `db:"resolved_by" json:"resolved_by,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt  *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// DisputeMessage сообщение в переписке по спору (только добавление).
type DisputeMessage struct {
	ID             uuid.UUID `db:"id" json:"id"`
	DisputeID      uuid.UUID `db:"dispute_id" json:"dispute_id"`
	SenderID       uuid.UUID `db:"sender_id" json:"sender_id"`
	Body           string    `db:"body" json:"body"`
	AttachmentPath *string   `db:"attachment_path" json:"attachment_path,omitempty"`
	AttachmentType *string   `db:"attachment_type" json:"attachment_type,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// IsParticipant проверяет, участвует ли пользователь в споре.
func (d *Dispute) IsParticipant(userID uuid.UUID) bool {
	return d.ClientID == userID || d.FreelanceID == userID
}
