package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/freelance-payments/internal/models"
)

// Emitter пишет события в outbox.
type Emitter struct {
	store Store
	now   func() time.Time
}

func NewEmitter(store Store) *Emitter {
	return &Emitter{store: store, now: time.Now}
}

// Emit сохраняет событие в той же транзакции, что и изменение состояния (ext), либо отдельно при ext == nil.
func (e *Emitter) Emit(ctx context.Context, ext sqlx.ExtContext, evt Event) error {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		return fmt.Errorf("outbox: marshal data: %w", err)
	}

	occurredAt := e.now().UTC()
	env := Envelope{
		Version:    EnvelopeVersion,
		EventID:    uuid.New(),
		OccurredAt: occurredAt,
		ActorID:    evt.ActorID,
		Recipients: evt.Recipients,
		Data:       data,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("outbox: marshal envelope: %w", err)
	}

	return e.store.Insert(ctx, ext, &models.AuditEvent{
		ID:            env.EventID,
		EventType:     evt.Type,
		AggregateType: evt.AggregateType,
		AggregateID:   evt.AggregateID,
		ActorID:       evt.ActorID,
		Payload:       payload,
		CreatedAt:     occurredAt,
	})
}
