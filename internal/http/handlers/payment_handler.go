package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-payments/internal/dto"
	"github.com/ignatzorin/freelance-payments/internal/http/handlers/common"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/service"
)

// CheckoutGateway операции шлюза, которые нужны хэндлеру оплаты.
type CheckoutGateway interface {
	CreatePaymentIntent(ctx context.Context, in service.CreateIntentInput) (*service.CreateIntentResult, error)
	CapturePayment(ctx context.Context, in service.CaptureInput) (*service.CaptureResult, error)
}

type PaymentHandler struct {
	gateway CheckoutGateway
}

func NewPaymentHandler(gateway CheckoutGateway) *PaymentHandler {
	return &PaymentHandler{gateway: gateway}
}

// CreatePayPalOrder POST /paypal/create-order
func (h *PaymentHandler) CreatePayPalOrder(c *gin.Context) {
	var req dto.CreateCheckoutRequest
	if !common.BindJSON(c, &req) {
		return
	}

	result, err := h.gateway.CreatePaymentIntent(c.Request.Context(), checkoutInput(c, models.ProviderPayPal, req))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.PayPalOrderResponse{OrderID: result.ProviderID, Status: result.Status})
}

// CapturePayPalPayment POST /paypal/capture-payment
func (h *PaymentHandler) CapturePayPalPayment(c *gin.Context) {
	var req dto.CapturePayPalRequest
	if !common.BindJSON(c, &req) {
		return
	}
	h.capture(c, models.ProviderPayPal, req.OrderID, req.ServiceID)
}

// CreateStripeIntent POST /stripe/create-payment-intent
func (h *PaymentHandler) CreateStripeIntent(c *gin.Context) {
	var req dto.CreateCheckoutRequest
	if !common.BindJSON(c, &req) {
		return
	}

	result, err := h.gateway.CreatePaymentIntent(c.Request.Context(), checkoutInput(c, models.ProviderStripe, req))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.StripeIntentResponse{
		ClientSecret:    result.ClientSecret,
		PaymentIntentID: result.ProviderID,
		Status:          result.Status,
	})
}

// ConfirmStripePayment POST /stripe/confirm-payment
func (h *PaymentHandler) ConfirmStripePayment(c *gin.Context) {
	var req dto.ConfirmStripeRequest
	if !common.BindJSON(c, &req) {
		return
	}
	h.capture(c, models.ProviderStripe, req.PaymentIntentID, req.ServiceID)
}

func (h *PaymentHandler) capture(c *gin.Context, provider, providerOrderID, rawServiceID string) {
	in := service.CaptureInput{
		PayerID:         common.OptionalUserID(c),
		Provider:        provider,
		ProviderOrderID: providerOrderID,
	}
	if rawServiceID != "" {
		serviceID := uuid.MustParse(rawServiceID)
		in.ServiceID = &serviceID
	}

	result, err := h.gateway.CapturePayment(c.Request.Context(), in)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CaptureResponse{
		Success:       result.Success,
		TransactionID: result.TransactionID,
		OrderID:       result.OrderID,
		Status:        result.Status,
	})
}

// checkoutInput поля уже проверены биндингом (uuid), поэтому MustParse безопасен.
func checkoutInput(c *gin.Context, provider string, req dto.CreateCheckoutRequest) service.CreateIntentInput {
	in := service.CreateIntentInput{
		PayerID:   common.OptionalUserID(c),
		Provider:  provider,
		Amount:    req.Amount,
		ServiceID: uuid.MustParse(req.ServiceID),
		Email:     req.Email,
		Metadata:  req.Metadata,
	}
	if req.FreelanceID != nil {
		freelanceID := uuid.MustParse(*req.FreelanceID)
		in.FreelanceID = &freelanceID
	}
	if key := c.GetHeader("Idempotency-Key"); key != "" {
		in.IdempotencyKey = &key
	}
	return in
}
