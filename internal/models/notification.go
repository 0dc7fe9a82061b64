package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Notification запись во входящих пользователя. Одно событие outbox даёт не больше одной записи на получателя.
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	EventID   uuid.UUID       `db:"event_id" json:"event_id"`
	EventType string          `db:"event_type" json:"type"`
	Data      json.RawMessage `db:"data" json:"data"`
	ReadAt    *time.Time      `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// NotificationFilter параметры выборки входящих.
type NotificationFilter struct {
	UserID     uuid.UUID
	UnreadOnly bool
	Limit      int
	Offset     int
}
