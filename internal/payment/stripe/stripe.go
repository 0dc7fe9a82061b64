// Package stripe реализует payment.Provider поверх Stripe PaymentIntents.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/payment"
)

var errSecretKeyRequired = errors.New("stripe: secret key is required")

// intentAPI подмножество Stripe API, нужное провайдеру.
type intentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Capture(id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error)
}

type packageAPI struct{}

func (packageAPI) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return paymentintent.New(params)
}

func (packageAPI) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return paymentintent.Get(id, params)
}

func (packageAPI) Capture(id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error) {
	return paymentintent.Capture(id, params)
}

type Provider struct {
	api intentAPI
}

// New инициализирует Stripe с секретным ключом. Деньги списываются с ручным захватом.
func New(secretKey string) (*Provider, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil, errSecretKeyRequired
	}
	stripe.Key = secretKey
	return &Provider{api: packageAPI{}}, nil
}

func newWithAPI(api intentAPI) *Provider {
	return &Provider{api: api}
}

func (p *Provider) Name() string {
	return models.ProviderStripe
}

func (p *Provider) CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.ProviderIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount.MinorUnits()),
		Currency:      stripe.String(strings.ToLower(req.Amount.Currency)),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.Email != nil {
		params.ReceiptEmail = req.Email
	}
	params.Context = ctx
	params.AddMetadata("intent_id", req.IntentID.String())
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := p.api.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create payment intent %w", err)
	}
	return toProviderIntent(pi), nil
}

func (p *Provider) GetIntent(ctx context.Context, providerID string) (*payment.ProviderIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := p.api.Get(providerID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: get payment intent %w", err)
	}
	return toProviderIntent(pi), nil
}

// Capture захватывает авторизованный платёж. Уже списанный (succeeded) возвращается как есть.
func (p *Provider) Capture(ctx context.Context, current *payment.ProviderIntent, idempotencyKey string) (*payment.ProviderCapture, error) {
	if current.RawStatus == string(stripe.PaymentIntentStatusSucceeded) {
		return &payment.ProviderCapture{CaptureID: current.ProviderID, Status: payment.StatusCompleted, RawStatus: current.RawStatus}, nil
	}
	if current.RawStatus != string(stripe.PaymentIntentStatusRequiresCapture) {
		return nil, fmt.Errorf("%w: stripe status %s", payment.ErrNotCapturable, current.RawStatus)
	}

	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	pi, err := p.api.Capture(current.ProviderID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: capture payment intent %w", err)
	}
	return &payment.ProviderCapture{
		CaptureID: captureID(pi),
		Status:    NormalizeStatus(pi.Status),
		RawStatus: string(pi.Status),
	}, nil
}

// NormalizeStatus сводит статус PaymentIntent к общему набору.
func NormalizeStatus(status stripe.PaymentIntentStatus) string {
	switch status {
	case stripe.PaymentIntentStatusRequiresPaymentMethod,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresAction:
		return payment.StatusCreated
	case stripe.PaymentIntentStatusRequiresCapture:
		return payment.StatusApproved
	case stripe.PaymentIntentStatusProcessing:
		return payment.StatusProcessing
	case stripe.PaymentIntentStatusSucceeded:
		return payment.StatusCompleted
	default:
		return payment.StatusFailed
	}
}

func toProviderIntent(pi *stripe.PaymentIntent) *payment.ProviderIntent {
	out := &payment.ProviderIntent{
		ProviderID: pi.ID,
		Status:     NormalizeStatus(pi.Status),
		RawStatus:  string(pi.Status),
	}
	if pi.ClientSecret != "" {
		secret := pi.ClientSecret
		out.ClientSecret = &secret
	}
	return out
}

func captureID(pi *stripe.PaymentIntent) string {
	if pi.LatestCharge != nil && pi.LatestCharge.ID != "" {
		return pi.LatestCharge.ID
	}
	return pi.ID
}
