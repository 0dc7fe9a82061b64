package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-payments/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-payments/internal/logger"
	"github.com/ignatzorin/freelance-payments/internal/metrics"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/outbox"
	"github.com/ignatzorin/freelance-payments/internal/payment"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-payments/internal/repository"
)

const stripeWebhookConsumer = "stripe_webhook"

// Типы событий Stripe, которые обрабатывает шлюз.
const (
	StripeEventIntentSucceeded = "payment_intent.succeeded"
	StripeEventIntentFailed    = "payment_intent.payment_failed"
)

// PayPal не принимает XOF, суммы переводятся в евро.
const paypalCurrency = "EUR"

var (
	errFreelanceMismatch = apperror.New(apperror.ErrCodeInvalidInput, "исполнитель не совпадает с владельцем услуги")
	errUnknownProvider   = apperror.New(apperror.ErrCodeInvalidInput, "неизвестный платёжный провайдер")
)

type PaymentIntentRepository interface {
	Create(ctx context.Context, p *models.PaymentIntent) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error)
	GetByProviderID(ctx context.Context, provider, providerID string) (*models.PaymentIntent, error)
	SetProviderRef(ctx context.Context, id uuid.UUID, providerID string, clientSecret *string, status string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, emit func(tx *sqlx.Tx) error) error
}

type ServiceListingRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceListing, error)
}

type EventEmitter interface {
	Emit(ctx context.Context, ext sqlx.ExtContext, evt outbox.Event) error
}

type CurrencyConverter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// CheckoutRecorder проводит захваченный платёж по книге.
type CheckoutRecorder interface {
	RecordCheckout(ctx context.Context, intent *models.PaymentIntent, capture *payment.ProviderCapture) (*repository.CheckoutResult, error)
}

// EventDeduper отмечает обработанные вебхуки.
type EventDeduper interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Forget(ctx context.Context, consumer, eventID string) error
}

// GatewaySettings параметры шлюза из конфигурации.
type GatewaySettings struct {
	DefaultCurrency string
	DevBypassAuth   bool
	DevUserID       uuid.UUID
}

type CreateIntentInput struct {
	PayerID        uuid.UUID
	Provider       string
	Amount         decimal.Decimal
	ServiceID      uuid.UUID
	FreelanceID    *uuid.UUID
	Email          *string
	Metadata       map[string]string
	IdempotencyKey *string
}

type CreateIntentResult struct {
	IntentID     uuid.UUID `json:"intent_id"`
	ProviderID   string    `json:"provider_id"`
	ClientSecret *string   `json:"client_secret,omitempty"`
	Status       string    `json:"status"`
}

type CaptureInput struct {
	PayerID         uuid.UUID
	Provider        string
	ProviderOrderID string
	ServiceID       *uuid.UUID
}

type CaptureResult struct {
	Success       bool       `json:"success"`
	TransactionID *uuid.UUID `json:"transaction_id,omitempty"`
	OrderID       *uuid.UUID `json:"order_id,omitempty"`
	Status        string     `json:"status"`
}

// WebhookEvent событие провайдера после проверки подписи.
type WebhookEvent struct {
	ID            string
	Type          string
	ProviderID    string
	CaptureID     string
	FailureReason string
}

// PaymentGateway создание и проведение платежей у внешних провайдеров.
type PaymentGateway struct {
	providers map[string]payment.Provider
	intents   PaymentIntentRepository
	services  ServiceListingRepository
	events    EventEmitter
	currency  CurrencyConverter
	ledger    CheckoutRecorder
	dedup     EventDeduper
	metrics   *metrics.Collector
	settings  GatewaySettings
}

func NewPaymentGateway(
	intents PaymentIntentRepository,
	services ServiceListingRepository,
	events EventEmitter,
	currency CurrencyConverter,
	ledger CheckoutRecorder,
	dedup EventDeduper,
	collector *metrics.Collector,
	settings GatewaySettings,
	providers ...payment.Provider,
) *PaymentGateway {
	g := &PaymentGateway{
		providers: make(map[string]payment.Provider, len(providers)),
		intents:   intents,
		services:  services,
		events:    events,
		currency:  currency,
		ledger:    ledger,
		dedup:     dedup,
		metrics:   collector,
		settings:  settings,
	}
	for _, p := range providers {
		if p != nil {
			g.providers[p.Name()] = p
		}
	}
	return g
}

func (g *PaymentGateway) provider(name string) (payment.Provider, error) {
	if p, ok := g.providers[name]; ok {
		return p, nil
	}
	if name == models.ProviderStripe || name == models.ProviderPayPal {
		return nil, apperror.Wrap(payment.ErrDisabled, apperror.ErrCodeProvider, "платёжный провайдер не настроен").
			WithStatus(http.StatusServiceUnavailable)
	}
	return nil, errUnknownProvider
}

// resolvePayer возвращает плательщика; без сессии допускается только dev-режим.
func (g *PaymentGateway) resolvePayer(payerID uuid.UUID) (uuid.UUID, error) {
	if payerID != uuid.Nil {
		return payerID, nil
	}
	if g.settings.DevBypassAuth && g.settings.DevUserID != uuid.Nil {
		logger.Log.WithField("dev_user_id", g.settings.DevUserID).Warn("payment: оплата от имени dev-пользователя")
		return g.settings.DevUserID, nil
	}
	return uuid.Nil, apperror.ErrAuthenticationRequired
}

// CreatePaymentIntent создаёт платёж у провайдера и локальную запись о нём.
func (g *PaymentGateway) CreatePaymentIntent(ctx context.Context, in CreateIntentInput) (*CreateIntentResult, error) {
	provider, err := g.provider(in.Provider)
	if err != nil {
		return nil, err
	}
	payerID, err := g.resolvePayer(in.PayerID)
	if err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount
	}
	if !valueobject.FitsScale(in.Amount, valueobject.LedgerScale) {
		return nil, apperror.ErrAmountPrecision
	}

	listing, err := g.services.GetByID(ctx, in.ServiceID)
	if err != nil {
		return nil, translate(err)
	}
	if !listing.IsActive {
		return nil, apperror.ErrServiceNotFound
	}
	if in.FreelanceID != nil && *in.FreelanceID != listing.FreelanceID {
		return nil, errFreelanceMismatch
	}

	currency := strings.ToUpper(listing.Currency)
	if currency == "" {
		currency = g.settings.DefaultCurrency
	}
	if !valueobject.FitsScale(in.Amount, valueobject.CurrencyScale(currency)) {
		return nil, apperror.ErrAmountPrecision
	}
	charge, err := g.providerMoney(ctx, provider.Name(), in.Amount, currency)
	if err != nil {
		return nil, err
	}

	intent := &models.PaymentIntent{
		ID:               uuid.New(),
		Provider:         provider.Name(),
		PayerID:          payerID,
		ServiceID:        listing.ID,
		FreelanceID:      listing.FreelanceID,
		Amount:           in.Amount,
		Currency:         currency,
		ProviderAmount:   charge.Amount,
		ProviderCurrency: charge.Currency,
		Status:           models.IntentStatusCreated,
		PayerEmail:       in.Email,
	}
	providerKey := "intent:" + intent.ID.String()
	intent.IdempotencyKey = &providerKey
	if in.IdempotencyKey != nil && *in.IdempotencyKey != "" {
		intent.IdempotencyKey = in.IdempotencyKey
	}
	if len(in.Metadata) > 0 {
		if intent.Metadata, err = marshalMetadata(in.Metadata); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeInvalidInput, "некорректные метаданные")
		}
	}
	if err := g.intents.Create(ctx, intent); err != nil {
		return nil, translate(err)
	}
	g.emit(ctx, intent, models.EventPaymentAttempt, map[string]interface{}{
		"amount":   intent.Amount.String(),
		"currency": intent.Currency,
		"provider": intent.Provider,
	})

	created, err := provider.CreateIntent(ctx, payment.IntentRequest{
		IntentID:       intent.ID,
		Amount:         charge,
		Description:    listing.Title,
		Email:          in.Email,
		Metadata:       checkoutMetadata(intent, in.Metadata),
		IdempotencyKey: providerKey,
	})
	if err != nil {
		g.markFailed(ctx, intent, err.Error())
		g.metrics.IncPayment(provider.Name(), "failed")
		logger.Log.WithFields(logrus.Fields{
			"intent_id": intent.ID,
			"provider":  provider.Name(),
			"error":     err,
		}).Error("payment: провайдер отклонил создание платежа")
		return nil, apperror.Wrap(err, apperror.ErrCodeProvider, "не удалось создать платёж у провайдера")
	}

	if err := g.intents.SetProviderRef(ctx, intent.ID, created.ProviderID, created.ClientSecret, created.Status); err != nil {
		return nil, translate(err)
	}
	g.metrics.IncPayment(provider.Name(), "created")
	logger.Log.WithFields(logrus.Fields{
		"intent_id":   intent.ID,
		"provider":    provider.Name(),
		"provider_id": created.ProviderID,
		"amount":      charge.String(),
	}).Info("payment: платёж создан")

	return &CreateIntentResult{
		IntentID:     intent.ID,
		ProviderID:   created.ProviderID,
		ClientSecret: created.ClientSecret,
		Status:       created.Status,
	}, nil
}

func (g *PaymentGateway) providerMoney(ctx context.Context, provider string, amount decimal.Decimal, currency string) (valueobject.Money, error) {
	if provider == models.ProviderPayPal && currency != paypalCurrency {
		converted, err := g.currency.Convert(ctx, amount, currency, paypalCurrency)
		if err != nil {
			return valueobject.Money{}, err
		}
		return valueobject.NewMoney(converted, paypalCurrency)
	}
	return valueobject.NewMoney(amount, currency)
}

// CapturePayment проводит платёж после подтверждения плательщиком.
// Повторный вызов для проведённого платежа возвращает сохранённый результат.
func (g *PaymentGateway) CapturePayment(ctx context.Context, in CaptureInput) (*CaptureResult, error) {
	provider, err := g.provider(in.Provider)
	if err != nil {
		return nil, err
	}
	payerID, err := g.resolvePayer(in.PayerID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.ProviderOrderID) == "" {
		return nil, apperror.New(apperror.ErrCodeInvalidInput, "не указан идентификатор платежа")
	}

	intent, err := g.intents.GetByProviderID(ctx, provider.Name(), in.ProviderOrderID)
	if err != nil {
		return nil, translate(err)
	}
	if intent.PayerID != payerID || (in.ServiceID != nil && *in.ServiceID != intent.ServiceID) {
		return nil, apperror.ErrPaymentNotFound
	}
	if intent.IsCaptured() {
		g.metrics.IncPayment(provider.Name(), "duplicate")
		return storedCapture(intent), nil
	}

	current, err := provider.GetIntent(ctx, in.ProviderOrderID)
	if err != nil {
		g.metrics.IncPayment(provider.Name(), "error")
		return nil, apperror.Wrap(err, apperror.ErrCodeProvider, "не удалось получить статус платежа")
	}
	switch {
	case current.Status == payment.StatusFailed:
		g.markFailed(ctx, intent, "provider status "+current.RawStatus)
		g.metrics.IncPayment(provider.Name(), "failed")
		return nil, apperror.ErrCaptureFailed.WithDetails(map[string]string{"status": current.RawStatus})
	case current.Status != payment.StatusCompleted && !payment.IsCapturable(current.Status):
		if err := g.intents.UpdateStatus(ctx, intent.ID, current.Status); err != nil {
			logger.Log.WithField("intent_id", intent.ID).WithError(err).Warn("payment: не удалось обновить статус")
		}
		return nil, apperror.ErrCaptureFailed.WithDetails(map[string]string{"status": current.RawStatus})
	}

	if current.ProviderID == "" {
		current.ProviderID = in.ProviderOrderID
	}
	captured, err := provider.Capture(ctx, current, "capture:"+intent.ID.String())
	if err != nil {
		g.metrics.IncPayment(provider.Name(), "error")
		if errors.Is(err, payment.ErrNotCapturable) {
			return nil, apperror.ErrCaptureFailed.WithDetails(err.Error())
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeProvider, "провайдер не провёл платёж")
	}
	if captured.Status != payment.StatusCompleted {
		if captured.Status == payment.StatusFailed {
			g.markFailed(ctx, intent, "capture status "+captured.RawStatus)
		}
		g.metrics.IncPayment(provider.Name(), "failed")
		return nil, apperror.ErrCaptureFailed.WithDetails(map[string]string{"status": captured.RawStatus})
	}

	return g.bookCapture(ctx, intent, captured)
}

func (g *PaymentGateway) bookCapture(ctx context.Context, intent *models.PaymentIntent, captured *payment.ProviderCapture) (*CaptureResult, error) {
	result, err := g.ledger.RecordCheckout(ctx, intent, captured)
	if err != nil {
		g.metrics.IncPayment(intent.Provider, "error")
		return nil, err
	}
	if result.AlreadyCaptured {
		g.metrics.IncPayment(intent.Provider, "duplicate")
		return storedCapture(result.Intent), nil
	}

	g.metrics.IncPayment(intent.Provider, "captured")
	logger.Log.WithFields(logrus.Fields{
		"intent_id":  intent.ID,
		"provider":   intent.Provider,
		"capture_id": captured.CaptureID,
		"order_id":   result.Order.ID,
	}).Info("payment: платёж проведён")
	return &CaptureResult{
		Success:       true,
		TransactionID: &result.Payment.ID,
		OrderID:       &result.Order.ID,
		Status:        models.IntentStatusCaptured,
	}, nil
}

// HandleStripeEvent обрабатывает проверенный вебхук Stripe. Повторные доставки пропускаются.
func (g *PaymentGateway) HandleStripeEvent(ctx context.Context, evt WebhookEvent) error {
	if evt.Type != StripeEventIntentSucceeded && evt.Type != StripeEventIntentFailed {
		logger.Log.WithField("type", evt.Type).Debug("payment: событие stripe пропущено")
		return nil
	}

	done, err := g.dedup.CheckAndMarkProcessed(ctx, stripeWebhookConsumer, evt.ID)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось проверить повтор события")
	}
	if done {
		g.metrics.IncPayment(models.ProviderStripe, "duplicate")
		return nil
	}

	if err := g.applyStripeEvent(ctx, evt); err != nil {
		if forgetErr := g.dedup.Forget(ctx, stripeWebhookConsumer, evt.ID); forgetErr != nil {
			logger.Log.WithField("event_id", evt.ID).WithError(forgetErr).Warn("payment: не удалось снять отметку события")
		}
		return err
	}
	return nil
}

func (g *PaymentGateway) applyStripeEvent(ctx context.Context, evt WebhookEvent) error {
	intent, err := g.intents.GetByProviderID(ctx, models.ProviderStripe, evt.ProviderID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentIntentNotFound) {
			logger.Log.WithFields(logrus.Fields{
				"event_id":    evt.ID,
				"provider_id": evt.ProviderID,
			}).Warn("payment: вебхук для неизвестного платежа")
			return nil
		}
		return translate(err)
	}
	if intent.IsCaptured() {
		return nil
	}

	switch evt.Type {
	case StripeEventIntentSucceeded:
		captureID := evt.CaptureID
		if captureID == "" {
			captureID = evt.ProviderID
		}
		_, err := g.bookCapture(ctx, intent, &payment.ProviderCapture{
			CaptureID: captureID,
			Status:    payment.StatusCompleted,
			RawStatus: "succeeded",
		})
		return err
	default:
		reason := evt.FailureReason
		if reason == "" {
			reason = "payment_failed"
		}
		g.markFailed(ctx, intent, reason)
		g.metrics.IncPayment(models.ProviderStripe, "failed")
		return nil
	}
}

func (g *PaymentGateway) markFailed(ctx context.Context, intent *models.PaymentIntent, reason string) {
	err := g.intents.MarkFailed(ctx, intent.ID, reason, func(tx *sqlx.Tx) error {
		return g.events.Emit(ctx, tx, paymentEvent(intent, models.EventPaymentFailure, map[string]interface{}{
			"provider": intent.Provider,
			"reason":   reason,
		}))
	})
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"intent_id": intent.ID,
			"error":     err,
		}).Error("payment: не удалось пометить платёж неуспешным")
	}
}

// emit пишет событие вне транзакции; ошибка только логируется.
func (g *PaymentGateway) emit(ctx context.Context, intent *models.PaymentIntent, eventType string, data map[string]interface{}) {
	if err := g.events.Emit(ctx, nil, paymentEvent(intent, eventType, data)); err != nil {
		logger.Log.WithFields(logrus.Fields{
			"intent_id": intent.ID,
			"event":     eventType,
			"error":     err,
		}).Warn("payment: не удалось записать событие")
	}
}

func paymentEvent(intent *models.PaymentIntent, eventType string, data map[string]interface{}) outbox.Event {
	data["intent_id"] = intent.ID
	return outbox.Event{
		Type:          eventType,
		AggregateType: models.AggregatePaymentIntent,
		AggregateID:   intent.ID,
		ActorID:       &intent.PayerID,
		Recipients:    []uuid.UUID{intent.PayerID},
		Data:          data,
	}
}

func storedCapture(intent *models.PaymentIntent) *CaptureResult {
	return &CaptureResult{
		Success:       true,
		TransactionID: intent.TransactionID,
		OrderID:       intent.OrderID,
		Status:        intent.Status,
	}
}

func checkoutMetadata(intent *models.PaymentIntent, extra map[string]string) map[string]string {
	out := make(map[string]string, len(extra)+2)
	for k, v := range extra {
		out[k] = v
	}
	out["service_id"] = intent.ServiceID.String()
	out["freelance_id"] = intent.FreelanceID.String()
	return out
}

func marshalMetadata(m map[string]string) (json.RawMessage, error) {
	data, err := json.Marshal(m)
	return data, err
}
