package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/ignatzorin/freelance-payments/internal/logger"
	"github.com/ignatzorin/freelance-payments/internal/metrics"
	"github.com/ignatzorin/freelance-payments/internal/models"
)

// Handler обработчик опубликованного события.
type Handler interface {
	Handle(ctx context.Context, evt models.AuditEvent, env Envelope) error
}

// HandlerFunc адаптер функции к Handler.
type HandlerFunc func(ctx context.Context, evt models.AuditEvent, env Envelope) error

func (f HandlerFunc) Handle(ctx context.Context, evt models.AuditEvent, env Envelope) error {
	return f(ctx, evt, env)
}

// Dispatcher периодически разбирает outbox и раздаёт события обработчикам.
type Dispatcher struct {
	store     Store
	handlers  []Handler
	interval  time.Duration
	batchSize int
	metrics   *metrics.Collector
}

func NewDispatcher(store Store, interval time.Duration, batchSize int, collector *metrics.Collector, handlers ...Handler) *Dispatcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Dispatcher{
		store:     store,
		handlers:  handlers,
		interval:  interval,
		batchSize: batchSize,
		metrics:   collector,
	}
}

// Run работает до отмены контекста.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	logger.Log.WithField("interval", d.interval.String()).Info("outbox: dispatcher started")

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("outbox: dispatcher stopped")
			return nil
		case <-ticker.C:
			if _, err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
				logger.Log.WithError(err).Error("outbox: dispatch batch failed")
			}
		}
	}
}

// DispatchOnce обрабатывает одну пачку и возвращает число забранных событий.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := d.store.ProcessBatch(ctx, d.batchSize, d.dispatch)
	d.metrics.ObserveOutboxDispatch(time.Since(start))
	return n, err
}

func (d *Dispatcher) dispatch(ctx context.Context, evt models.AuditEvent) error {
	env, err := DecodeEnvelope(evt.Payload)
	if err != nil {
		d.metrics.IncOutboxEvent(evt.EventType, "failed")
		return fmt.Errorf("outbox: decode envelope: %w", err)
	}

	var errs error
	for _, h := range d.handlers {
		errs = multierr.Append(errs, h.Handle(ctx, evt, env))
	}

	if errs != nil {
		outcome := "failed"
		if evt.Attempts+1 >= MaxAttempts {
			outcome = "dead"
		}
		d.metrics.IncOutboxEvent(evt.EventType, outcome)
		logger.Log.WithFields(logrus.Fields{
			"event_id":   evt.ID,
			"event_type": evt.EventType,
			"attempt":    evt.Attempts + 1,
		}).WithError(errs).Warn("outbox: handlers failed")
		return errs
	}

	d.metrics.IncOutboxEvent(evt.EventType, "published")
	return nil
}
