// Package paypal реализует payment.Provider поверх PayPal Orders v2.
package paypal

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/plutov/paypal/v4"

	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/payment"
)

const (
	ModeSandbox = "sandbox"
	ModeLive    = "live"
)

// Статусы заказа PayPal.
const (
	statusCreated             = "CREATED"
	statusSaved               = "SAVED"
	statusApproved            = "APPROVED"
	statusPayerActionRequired = "PAYER_ACTION_REQUIRED"
	statusCompleted           = "COMPLETED"
	statusVoided              = "VOIDED"
)

var errCredentialsRequired = errors.New("paypal: client id and secret are required")

// orderAPI подмножество клиента PayPal, нужное провайдеру.
type orderAPI interface {
	GetAccessToken(ctx context.Context) (*paypal.TokenResponse, error)
	CreateOrder(ctx context.Context, intent string, purchaseUnits []paypal.PurchaseUnitRequest, payer *paypal.CreateOrderPayer, appContext *paypal.ApplicationContext) (*paypal.Order, error)
	GetOrder(ctx context.Context, orderID string) (*paypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string, captureOrderRequest paypal.CaptureOrderRequest) (*paypal.CaptureOrderResponse, error)
}

type Provider struct {
	api orderAPI

	mu        sync.Mutex
	authready bool
}

func New(clientID, clientSecret, mode string) (*Provider, error) {
	if clientID == "" || clientSecret == "" {
		return nil, errCredentialsRequired
	}
	base := paypal.APIBaseSandBox
	if mode == ModeLive {
		base = paypal.APIBaseLive
	}
	client, err := paypal.NewClient(clientID, clientSecret, base)
	if err != nil {
		return nil, fmt.Errorf("paypal: new client %w", err)
	}
	return &Provider{api: client}, nil
}

func newWithAPI(api orderAPI) *Provider {
	return &Provider{api: api}
}

func (p *Provider) Name() string {
	return models.ProviderPayPal
}

// ensureToken получает access token при первом обращении. Дальше клиент обновляет его сам.
func (p *Provider) ensureToken(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.authready {
		return nil
	}
	if _, err := p.api.GetAccessToken(ctx); err != nil {
		return fmt.Errorf("paypal: access token %w", err)
	}
	p.authready = true
	return nil
}

func (p *Provider) CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.ProviderIntent, error) {
	if err := p.ensureToken(ctx); err != nil {
		return nil, err
	}

	unit := paypal.PurchaseUnitRequest{
		ReferenceID: req.IntentID.String(),
		CustomID:    req.IntentID.String(),
		Description: req.Description,
		Amount: &paypal.PurchaseUnitAmount{
			Currency: req.Amount.Currency,
			Value:    req.Amount.ProviderValue(),
		},
	}
	var payer *paypal.CreateOrderPayer
	if req.Email != nil {
		payer = &paypal.CreateOrderPayer{EmailAddress: *req.Email}
	}

	order, err := p.api.CreateOrder(ctx, paypal.OrderIntentCapture, []paypal.PurchaseUnitRequest{unit}, payer, nil)
	if err != nil {
		return nil, fmt.Errorf("paypal: create order %w", err)
	}
	return &payment.ProviderIntent{
		ProviderID: order.ID,
		Status:     NormalizeStatus(order.Status),
		RawStatus:  order.Status,
	}, nil
}

func (p *Provider) GetIntent(ctx context.Context, providerID string) (*payment.ProviderIntent, error) {
	if err := p.ensureToken(ctx); err != nil {
		return nil, err
	}
	order, err := p.api.GetOrder(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("paypal: get order %w", err)
	}
	return &payment.ProviderIntent{
		ProviderID: order.ID,
		Status:     NormalizeStatus(order.Status),
		RawStatus:  order.Status,
	}, nil
}

// Capture проводит заказ в статусе APPROVED или CREATED.
func (p *Provider) Capture(ctx context.Context, current *payment.ProviderIntent, _ string) (*payment.ProviderCapture, error) {
	if current.RawStatus == statusCompleted {
		return &payment.ProviderCapture{CaptureID: current.ProviderID, Status: payment.StatusCompleted, RawStatus: current.RawStatus}, nil
	}
	if current.RawStatus != statusApproved && current.RawStatus != statusCreated {
		return nil, fmt.Errorf("%w: paypal status %s", payment.ErrNotCapturable, current.RawStatus)
	}

	if err := p.ensureToken(ctx); err != nil {
		return nil, err
	}
	resp, err := p.api.CaptureOrder(ctx, current.ProviderID, paypal.CaptureOrderRequest{})
	if err != nil {
		return nil, fmt.Errorf("paypal: capture order %w", err)
	}
	return &payment.ProviderCapture{
		CaptureID: captureID(resp),
		Status:    NormalizeStatus(resp.Status),
		RawStatus: resp.Status,
	}, nil
}

// NormalizeStatus сводит статус заказа PayPal к общему набору.
func NormalizeStatus(status string) string {
	switch status {
	case statusCreated, statusSaved, statusPayerActionRequired:
		return payment.StatusCreated
	case statusApproved:
		return payment.StatusApproved
	case statusCompleted:
		return payment.StatusCompleted
	case statusVoided:
		return payment.StatusFailed
	default:
		return payment.StatusProcessing
	}
}

func captureID(resp *paypal.CaptureOrderResponse) string {
	for _, unit := range resp.PurchaseUnits {
		if unit.Payments == nil {
			continue
		}
		for _, c := range unit.Payments.Captures {
			if c.ID != "" {
				return c.ID
			}
		}
	}
	return resp.ID
}
