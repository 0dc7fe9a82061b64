package dto

import (
	"github.com/shopspring/decimal"
)

// CreateCheckoutRequest тело POST /paypal/create-order и /stripe/create-payment-intent.
type CreateCheckoutRequest struct {
	Amount      decimal.Decimal   `json:"amount" binding:"required,gt=0"`
	ServiceID   string            `json:"serviceId" binding:"required,uuid"`
	FreelanceID *string           `json:"freelanceId" binding:"omitempty,uuid"`
	Email       *string           `json:"email" binding:"omitempty,email"`
	Metadata    map[string]string `json:"metadata"`
}

// CapturePayPalRequest тело POST /paypal/capture-payment.
type CapturePayPalRequest struct {
	OrderID   string `json:"orderId" binding:"required"`
	ServiceID string `json:"serviceId" binding:"omitempty,uuid"`
}

// ConfirmStripeRequest тело POST /stripe/confirm-payment.
type ConfirmStripeRequest struct {
	PaymentIntentID string `json:"paymentIntentId" binding:"required"`
	ServiceID       string `json:"serviceId" binding:"omitempty,uuid"`
}

type CompleteOrderRequest struct {
	OrderID string `json:"orderId" binding:"required,uuid"`
}

// WithdrawRequest fee_amount и net_amount необязательны; если переданы, сверяются с расчётом сервера.
type WithdrawRequest struct {
	Amount        decimal.Decimal  `json:"amount" binding:"required,gt=0"`
	PaymentMethod string           `json:"payment_method" binding:"required,payment_method"`
	FeeAmount     *decimal.Decimal `json:"fee_amount"`
	NetAmount     *decimal.Decimal `json:"net_amount"`
}

type ProcessWithdrawalRequest struct {
	Note *string `json:"note" binding:"omitempty,max=1000"`
}

type OpenDisputeRequest struct {
	Reason string `json:"reason" binding:"required,max=5000"`
}

type DisputeMessageRequest struct {
	Body string `json:"body" binding:"required,max=5000"`
}

type ResolveDisputeRequest struct {
	Outcome    string `json:"outcome" binding:"required,oneof=complete cancel"`
	Resolution string `json:"resolution" binding:"max=5000"`
}
