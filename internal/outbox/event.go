package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion версия формата payload в audit_events.
const EnvelopeVersion = 1

// Event доменное событие до записи в outbox.
type Event struct {
	Type          string
	AggregateType string
	AggregateID   uuid.UUID
	ActorID       *uuid.UUID
	// Recipients пользователи, которым уходит уведомление.
	Recipients []uuid.UUID
	Data       interface{}
}

// Envelope формат payload в таблице audit_events.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    uuid.UUID       `json:"event_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	ActorID    *uuid.UUID      `json:"actor_id,omitempty"`
	Recipients []uuid.UUID     `json:"recipients,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope разбирает payload события.
func DecodeEnvelope(payload []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(payload, &env)
	return env, err
}
