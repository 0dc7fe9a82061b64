package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-payments/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-payments/internal/models"
)

// Нормализованные статусы провайдеров.
const (
	StatusCreated    = models.IntentStatusCreated
	StatusApproved   = models.IntentStatusApproved
	StatusProcessing = models.IntentStatusProcessing
	StatusCompleted  = models.IntentStatusCompleted
	StatusFailed     = models.IntentStatusFailed
)

var (
	// ErrNotCapturable провайдер сообщил статус, из которого нельзя провести платёж.
	ErrNotCapturable = errors.New("payment: intent is not capturable")
	// ErrDisabled провайдер не сконфигурирован.
	ErrDisabled = errors.New("payment: provider disabled")
)

// IntentRequest параметры создания платежа у провайдера.
type IntentRequest struct {
	IntentID       uuid.UUID
	Amount         valueobject.Money
	Description    string
	Email          *string
	Metadata       map[string]string
	IdempotencyKey string
}

// ProviderIntent ответ провайдера на создание или запрос платежа.
type ProviderIntent struct {
	ProviderID   string
	ClientSecret *string
	Status       string
	RawStatus    string
}

// ProviderCapture результат проведения платежа.
type ProviderCapture struct {
	CaptureID string
	Status    string
	RawStatus string
}

// Provider внешний платёжный провайдер (Stripe, PayPal).
type Provider interface {
	Name() string
	CreateIntent(ctx context.Context, req IntentRequest) (*ProviderIntent, error)
	GetIntent(ctx context.Context, providerID string) (*ProviderIntent, error)
	// Capture проводит платёж по уже запрошенному состоянию current, без повторного запроса к провайдеру.
	Capture(ctx context.Context, current *ProviderIntent, idempotencyKey string) (*ProviderCapture, error)
}

// IsCapturable сообщает, можно ли проводить платёж из нормализованного статуса.
func IsCapturable(status string) bool {
	return status == StatusCreated || status == StatusApproved
}

// IsTerminal сообщает, что статус больше не изменится.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}
