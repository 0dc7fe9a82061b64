package outbox

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/ignatzorin/freelance-payments/internal/logger"
	"github.com/ignatzorin/freelance-payments/internal/models"
)

// LogHandler пишет строку аудита для каждого события.
func LogHandler() Handler {
	return HandlerFunc(func(_ context.Context, evt models.AuditEvent, env Envelope) error {
		fields := logrus.Fields{
			"event_id":       evt.ID,
			"event_type":     evt.EventType,
			"aggregate_type": evt.AggregateType,
			"aggregate_id":   evt.AggregateID,
			"occurred_at":    env.OccurredAt,
		}
		if env.ActorID != nil {
			fields["actor_id"] = *env.ActorID
		}
		logger.Log.WithFields(fields).Info("audit: event")
		return nil
	})
}

// Notifier доставляет уведомление пользователю (сохранение и push).
// Реализация должна быть идемпотентной по eventID: событие может прийти повторно.
type Notifier interface {
	Notify(ctx context.Context, eventID, userID uuid.UUID, eventType string, data json.RawMessage) error
}

// NotifyHandler рассылает событие всем получателям из envelope.
func NotifyHandler(n Notifier) Handler {
	return HandlerFunc(func(ctx context.Context, evt models.AuditEvent, env Envelope) error {
		var errs error
		for _, userID := range env.Recipients {
			errs = multierr.Append(errs, n.Notify(ctx, evt.ID, userID, evt.EventType, env.Data))
		}
		return errs
	})
}
