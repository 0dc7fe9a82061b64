package dto

import (
	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-payments/internal/models"
)

// ErrorResponse тело ответа с ошибкой.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

type PayPalOrderResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

type StripeIntentResponse struct {
	ClientSecret    *string `json:"clientSecret,omitempty"`
	PaymentIntentID string  `json:"paymentIntentId"`
	Status          string  `json:"status"`
}

type CaptureResponse struct {
	Success       bool       `json:"success"`
	TransactionID *uuid.UUID `json:"transactionId,omitempty"`
	OrderID       *uuid.UUID `json:"orderId,omitempty"`
	Status        string     `json:"status"`
}

type WithdrawResponse struct {
	WithdrawalID uuid.UUID `json:"withdrawal_id"`
	Status       string    `json:"status"`
}

type UnreadCountResponse struct {
	Count int `json:"count"`
}

// NotificationPage страница входящих.
type NotificationPage struct {
	Notifications []models.Notification `json:"notifications"`
	Limit         int                   `json:"limit"`
	Offset        int                   `json:"offset"`
}
