package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/ignatzorin/freelance-payments/internal/http/handlers/common"
	"github.com/ignatzorin/freelance-payments/internal/logger"
	"github.com/ignatzorin/freelance-payments/internal/service"
)

const maxWebhookBody = 64 << 10

// StripeEventProcessor обработчик проверенных событий Stripe.
type StripeEventProcessor interface {
	HandleStripeEvent(ctx context.Context, evt service.WebhookEvent) error
}

type StripeWebhookHandler struct {
	processor     StripeEventProcessor
	signingSecret string
}

func NewStripeWebhookHandler(processor StripeEventProcessor, signingSecret string) *StripeWebhookHandler {
	return &StripeWebhookHandler{processor: processor, signingSecret: signingSecret}
}

// Handle POST /stripe/webhook. Ошибка обработки отдаёт 500, чтобы Stripe повторил доставку.
func (h *StripeWebhookHandler) Handle(c *gin.Context) {
	if h.signingSecret == "" {
		common.RespondError(c, http.StatusServiceUnavailable, "вебхуки stripe не настроены")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		common.RespondBadRequest(c, "не удалось прочитать тело запроса")
		return
	}
	sigHeader := c.GetHeader("Stripe-Signature")
	if sigHeader == "" {
		common.RespondBadRequest(c, "отсутствует подпись stripe")
		return
	}

	event, err := webhook.ConstructEvent(payload, sigHeader, h.signingSecret)
	if err != nil {
		logger.Log.WithError(err).Warn("stripe webhook: подпись не прошла проверку")
		common.RespondBadRequest(c, "подпись stripe невалидна")
		return
	}

	evt := service.WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data != nil && len(event.Data.Raw) > 0 {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err == nil {
			evt.ProviderID = pi.ID
			if pi.LatestCharge != nil {
				evt.CaptureID = pi.LatestCharge.ID
			}
			if pi.LastPaymentError != nil {
				evt.FailureReason = pi.LastPaymentError.Msg
			}
		}
	}

	if err := h.processor.HandleStripeEvent(c.Request.Context(), evt); err != nil {
		common.RespondAppError(c, err)
		return
	}

	logger.Log.WithFields(logrus.Fields{
		"event_id": event.ID,
		"type":     event.Type,
	}).Info("stripe webhook: событие обработано")
	c.JSON(http.StatusOK, gin.H{"received": true})
}
