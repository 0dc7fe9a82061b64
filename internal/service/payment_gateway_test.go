package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-payments/internal/cache"
	"github.com/ignatzorin/freelance-payments/internal/idempotency"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/outbox"
	"github.com/ignatzorin/freelance-payments/internal/payment"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-payments/internal/repository"
)

type mockIntentRepo struct {
	mock.Mock
}

func (m *mockIntentRepo) Create(ctx context.Context, p *models.PaymentIntent) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockIntentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentIntent), args.Error(1)
}

func (m *mockIntentRepo) GetByProviderID(ctx context.Context, provider, providerID string) (*models.PaymentIntent, error) {
	args := m.Called(ctx, provider, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentIntent), args.Error(1)
}

func (m *mockIntentRepo) SetProviderRef(ctx context.Context, id uuid.UUID, providerID string, clientSecret *string, status string) error {
	return m.Called(ctx, id, providerID, clientSecret, status).Error(0)
}

func (m *mockIntentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *mockIntentRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string, emit func(tx *sqlx.Tx) error) error {
	args := m.Called(ctx, id, reason)
	if emit != nil {
		if err := emit(nil); err != nil {
			return err
		}
	}
	return args.Error(0)
}

type mockListingRepo struct {
	mock.Mock
}

func (m *mockListingRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceListing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ServiceListing), args.Error(1)
}

type recordingEmitter struct {
	events []outbox.Event
}

func (e *recordingEmitter) Emit(_ context.Context, _ sqlx.ExtContext, evt outbox.Event) error {
	e.events = append(e.events, evt)
	return nil
}

func (e *recordingEmitter) types() []string {
	out := make([]string, 0, len(e.events))
	for _, evt := range e.events {
		out = append(out, evt.Type)
	}
	return out
}

type mockProvider struct {
	mock.Mock
	name string
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.ProviderIntent, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.ProviderIntent), args.Error(1)
}

func (m *mockProvider) GetIntent(ctx context.Context, providerID string) (*payment.ProviderIntent, error) {
	args := m.Called(ctx, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.ProviderIntent), args.Error(1)
}

func (m *mockProvider) Capture(ctx context.Context, current *payment.ProviderIntent, idempotencyKey string) (*payment.ProviderCapture, error) {
	args := m.Called(ctx, current, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.ProviderCapture), args.Error(1)
}

type mockCheckout struct {
	mock.Mock
}

func (m *mockCheckout) RecordCheckout(ctx context.Context, intent *models.PaymentIntent, capture *payment.ProviderCapture) (*repository.CheckoutResult, error) {
	args := m.Called(ctx, intent, capture)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.CheckoutResult), args.Error(1)
}

type gatewayFixture struct {
	intents  *mockIntentRepo
	listings *mockListingRepo
	events   *recordingEmitter
	stripe   *mockProvider
	paypal   *mockProvider
	ledger   *mockCheckout
	gateway  *PaymentGateway
}

func newGatewayFixture(t *testing.T, settings GatewaySettings) *gatewayFixture {
	t.Helper()
	ttl := cache.New(time.Minute, nil)
	manager, err := idempotency.NewManager(idempotency.NewMemoryStore(ttl), time.Hour)
	require.NoError(t, err)

	f := &gatewayFixture{
		intents:  new(mockIntentRepo),
		listings: new(mockListingRepo),
		events:   &recordingEmitter{},
		stripe:   &mockProvider{name: models.ProviderStripe},
		paypal:   &mockProvider{name: models.ProviderPayPal},
		ledger:   new(mockCheckout),
	}
	if settings.DefaultCurrency == "" {
		settings.DefaultCurrency = "XOF"
	}
	currency := NewCurrencyService(cache.New(time.Minute, nil), nil, time.Minute)
	f.gateway = NewPaymentGateway(f.intents, f.listings, f.events, currency, f.ledger, manager, nil, settings, f.stripe, f.paypal)
	return f
}

func activeListing() *models.ServiceListing {
	return &models.ServiceListing{
		ID:          uuid.New(),
		FreelanceID: uuid.New(),
		Title:       "Логотип",
		Price:       decimal.NewFromInt(25000),
		Currency:    "XOF",
		IsActive:    true,
	}
}

func TestPaymentGateway_CreateRequiresPayer(t *testing.T) {
	f := newGatewayFixture(t, GatewaySettings{})

	_, err := f.gateway.CreatePaymentIntent(context.Background(), CreateIntentInput{
		Provider:  models.ProviderStripe,
		Amount:    decimal.NewFromInt(100),
		ServiceID: uuid.New(),
	})

	assert.ErrorIs(t, err, apperror.ErrAuthenticationRequired)
}

func TestPaymentGateway_CreateDevBypassUsesDevUser(t *testing.T) {
	devUser := uuid.New()
	f := newGatewayFixture(t, GatewaySettings{DevBypassAuth: true, DevUserID: devUser})
	ctx := context.Background()
	listing := activeListing()
	f.listings.On("GetByID", ctx, listing.ID).Return(listing, nil)
	f.intents.On("Create", ctx, mock.MatchedBy(func(p *models.PaymentIntent) bool {
		return p.PayerID == devUser
	})).Return(nil)
	f.stripe.On("CreateIntent", ctx, mock.Anything).Return(&payment.ProviderIntent{ProviderID: "pi_1", Status: payment.StatusCreated}, nil)
	f.intents.On("SetProviderRef", ctx, mock.Anything, "pi_1", (*string)(nil), payment.StatusCreated).Return(nil)

	_, err := f.gateway.CreatePaymentIntent(ctx, CreateIntentInput{
		Provider:  models.ProviderStripe,
		Amount:    decimal.NewFromInt(25000),
		ServiceID: listing.ID,
	})

	require.NoError(t, err)
	f.intents.AssertExpectations(t)
}

func TestPaymentGateway_CreateValidatesInput(t *testing.T) {
	payer := uuid.New()
	f := newGatewayFixture(t, GatewaySettings{})
	ctx := context.Background()
	listing := activeListing()
	inactive := activeListing()
	inactive.IsActive = false
	f.listings.On("GetByID", ctx, listing.ID).Return(listing, nil)
	f.listings.On("GetByID", ctx, inactive.ID).Return(inactive, nil)
	missing := uuid.New()
	f.listings.On("GetByID", ctx, missing).Return(nil, repository.ErrServiceNotFound)
	stranger := uuid.New()

	tests := []struct {
		name string
		in   CreateIntentInput
		want error
	}{
		{"zero amount", CreateIntentInput{ServiceID: listing.ID, Amount: decimal.Zero}, apperror.ErrInvalidAmount},
		{"below a cent", CreateIntentInput{ServiceID: listing.ID, Amount: decimal.RequireFromString("0.001")}, apperror.ErrAmountPrecision},
		{"fractional XOF", CreateIntentInput{ServiceID: listing.ID, Amount: decimal.RequireFromString("100.5")}, apperror.ErrAmountPrecision},
		{"missing service", CreateIntentInput{ServiceID: missing, Amount: decimal.NewFromInt(1)}, apperror.ErrServiceNotFound},
		{"inactive service", CreateIntentInput{ServiceID: inactive.ID, Amount: decimal.NewFromInt(1)}, apperror.ErrServiceNotFound},
		{"foreign freelance", CreateIntentInput{ServiceID: listing.ID, Amount: decimal.NewFromInt(1), FreelanceID: &stranger}, errFreelanceMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.PayerID = payer
			tt.in.Provider = models.ProviderStripe
			_, err := f.gateway.CreatePaymentIntent(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	f.intents.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPaymentGateway_CreateUnknownProvider(t *testing.T) {
	f := newGatewayFixture(t, GatewaySettings{})

	_, err := f.gateway.CreatePaymentIntent(context.Background(), CreateIntentInput{PayerID: uuid.New(), Provider: "square"})

	assert.ErrorIs(t, err, errUnknownProvider)
}

func TestPaymentGateway_CreatePayPalConvertsToEUR(t *testing.T) {
	payer := uuid.New()
	f := newGatewayFixture(t, GatewaySettings{})
	ctx := context.Background()
	listing := activeListing()
	f.listings.On("GetByID", ctx, listing.ID).Return(listing, nil)
	f.intents.On("Create", ctx, mock.MatchedBy(func(p *models.PaymentIntent) bool {
		return p.Currency == "XOF" && p.ProviderCurrency == "EUR" && p.ProviderAmount.Equal(decimal.RequireFromString("38.11"))
	})).Return(nil)
	f.paypal.On("CreateIntent", ctx, mock.MatchedBy(func(req payment.IntentRequest) bool {
		return req.Amount.Currency == "EUR" && req.Amount.ProviderValue() == "38.11" &&
			req.IdempotencyKey == "intent:"+req.IntentID.String()
	})).Return(&payment.ProviderIntent{ProviderID: "ORDER-1", Status: payment.StatusCreated}, nil)
	f.intents.On("SetProviderRef", ctx, mock.Anything, "ORDER-1", (*string)(nil), payment.StatusCreated).Return(nil)

	res, err := f.gateway.CreatePaymentIntent(ctx, CreateIntentInput{
		PayerID:   payer,
		Provider:  models.ProviderPayPal,
		Amount:    decimal.NewFromInt(25000),
		ServiceID: listing.ID,
	})

	require.NoError(t, err)
	assert.Equal(t, "ORDER-1", res.ProviderID)
	assert.Equal(t, []string{models.EventPaymentAttempt}, f.events.types())
}

func TestPaymentGateway_CreateProviderFailure(t *testing.T) {
	payer := uuid.New()
	f := newGatewayFixture(t, GatewaySettings{})
	ctx := context.Background()
	listing := activeListing()
	f.listings.On("GetByID", ctx, listing.ID).Return(listing, nil)
	f.intents.On("Create", ctx, mock.Anything).Return(nil)
	f.stripe.On("CreateIntent", ctx, mock.Anything).Return(nil, errors.New("card_declined"))
	f.intents.On("MarkFailed", ctx, mock.Anything, "card_declined").Return(nil)

	_, err := f.gateway.CreatePaymentIntent(ctx, CreateIntentInput{
		PayerID:   payer,
		Provider:  models.ProviderStripe,
		Amount:    decimal.NewFromInt(25000),
		ServiceID: listing.ID,
	})

	assert.Equal(t, apperror.ErrCodeProvider, apperror.CodeOf(err))
	assert.Equal(t, []string{models.EventPaymentAttempt, models.EventPaymentFailure}, f.events.types())
	f.intents.AssertNotCalled(t, "SetProviderRef", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func pendingIntent(payer uuid.UUID, provider string) *models.PaymentIntent {
	providerID := "ORDER-1"
	return &models.PaymentIntent{
		ID:          uuid.New(),
		Provider:    provider,
		ProviderID:  &providerID,
		PayerID:     payer,
		ServiceID:   uuid.New(),
		FreelanceID: uuid.New(),
		Amount:      decimal.NewFromInt(25000),
		Currency:    "XOF",
		Status:      models.IntentStatusCreated,
	}
}

func TestPaymentGateway_CaptureForeignPayerNotFound(t *testing.T) {
	f := newGatewayFixture(t, GatewaySettings{})
	ctx := context.Background()
	intent := pendingIntent(uuid.New(), models.ProviderPayPal)
	f.intents.On("GetByProviderID", ctx, models.ProviderPayPal, "ORDER-1").Return(intent, nil)

	_, err := f.gateway.CapturePayment(ctx, CaptureInput{PayerID: uuid.New(), Provider: models.ProviderPayPal, ProviderOrderID: "ORDER-1"})

	assert.ErrorIs(t, err, apperror.ErrPaymentNotFound)
}

func TestPaymentGateway_CaptureAlreadyCapturedReturnsStored(t *testing.T) {
	payer := uuid.New()
	f := newGatewayFixture(t, GatewaySettings{})
	ctx := context.Background()
	intent := pendingIntent(payer, models.ProviderPayPal)
	intent.Status = models.IntentStatusCaptured
	txID, orderID := uuid.New(), uuid.New()
	intent.TransactionID = &txID
	intent.OrderID = &orderID
	f.intents.On("GetByProviderID", ctx, models.ProviderPayPal, "ORDER-1").Return(intent, nil)

	res, err := f.gateway.CapturePayment(ctx, CaptureInput{PayerID: payer, Provider: models.ProviderPayPal, ProviderOrderID: "ORDER-1"})

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, txID, *res.TransactionID)
	f.paypal.AssertNotCalled(t, "GetIntent", mock.Anything, mock.Anything)
}

func TestPaymentGateway_CaptureVoidedFails(t *testing.T) {
	payer := uuid.New()
	f := newGatewayFixture(t, GatewaySettings{})
	ctx := context.Background()
	intent := pendingIntent(payer, models.ProviderPayPal)
	f.intents.On("GetByProviderID", ctx, models.ProviderPayPal, "ORDER-1").Return(intent, nil)
	f.paypal.On("GetIntent", ctx, "ORDER-1").Return(&payment.ProviderIntent{ProviderID: "ORDER-1", Status: payment.StatusFailed, RawStatus: "VOIDED"}, nil)
	f.intents.On("MarkFailed", ctx, intent.ID, "provider status VOIDED").Return(nil)

	_, err := f.gateway.CapturePayment(ctx, CaptureInput{PayerID: payer, Provider: models.ProviderPayPal, ProviderOrderID: "ORDER-1"})

	assert.ErrorIs(t, err, apperror.ErrCaptureFailed)
	assert.Equal(t, []string{models.EventPaymentFailure}, f.events.types())
	f.paypal.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentGateway_CaptureProcessingIsNotCaptured(t *testing.T) {
	payer := uuid.New()
	f := newGatewayFixture(t, GatewaySettings{})
	ctx := context.Background()
	intent := pendingIntent(payer, models.ProviderStripe)
	f.intents.On("GetByProviderID", ctx, models.ProviderStripe, "ORDER-1").Return(intent, nil)
	f.stripe.On("GetIntent", ctx, "ORDER-1").Return(&payment.ProviderIntent{Status: payment.StatusProcessing, RawStatus: "processing"}, nil)
	f.intents.On("UpdateStatus", ctx, intent.ID, payment.StatusProcessing).Return(nil)

	_, err := f.gateway.CapturePayment(ctx, CaptureInput{PayerID: payer, Provider: models.ProviderStripe, ProviderOrderID: "ORDER-1"})

	assert.ErrorIs(t, err, apperror.ErrCaptureFailed)
	assert.Empty(t, f.events.types())
}

func TestPaymentGateway_CaptureBooksLedger(t *testing.T) {
	payer := uuid.New()
	f := newGatewayFixture(t, GatewaySettings{})
	ctx := context.Background()
	intent := pendingIntent(payer, models.ProviderPayPal)
	captured := &payment.ProviderCapture{CaptureID: "CAP-1", Status: payment.StatusCompleted, RawStatus: "COMPLETED"}
	checkout := &repository.CheckoutResult{
		Intent:  intent,
		Order:   &models.Order{ID: uuid.New()},
		Payment: &models.Transaction{ID: uuid.New()},
	}
	f.intents.On("GetByProviderID", ctx, models.ProviderPayPal, "ORDER-1").Return(intent, nil)
	current := &payment.ProviderIntent{ProviderID: "ORDER-1", Status: payment.StatusApproved, RawStatus: "APPROVED"}
	f.paypal.On("GetIntent", ctx, "ORDER-1").Return(current, nil).Once()
	f.paypal.On("Capture", ctx, current, "capture:"+intent.ID.String()).Return(captured, nil)
	f.ledger.On("RecordCheckout", ctx, intent, captured).Return(checkout, nil)

	res, err := f.gateway.CapturePayment(ctx, CaptureInput{PayerID: payer, Provider: models.ProviderPayPal, ProviderOrderID: "ORDER-1"})

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, checkout.Payment.ID, *res.TransactionID)
	assert.Equal(t, models.IntentStatusCaptured, res.Status)
	f.paypal.AssertNumberOfCalls(t, "GetIntent", 1)
}

func TestPaymentGateway_HandleStripeEventDeduplicates(t *testing.T) {
	f := newGatewayFixture(t, GatewaySettings{})
	ctx := context.Background()
	intent := pendingIntent(uuid.New(), models.ProviderStripe)
	evt := WebhookEvent{ID: "evt_1", Type: StripeEventIntentSucceeded, ProviderID: "ORDER-1", CaptureID: "ch_1"}
	f.intents.On("GetByProviderID", ctx, models.ProviderStripe, "ORDER-1").Return(intent, nil).Once()
	f.ledger.On("RecordCheckout", ctx, intent, mock.MatchedBy(func(c *payment.ProviderCapture) bool {
		return c.CaptureID == "ch_1"
	})).Return(&repository.CheckoutResult{
		Intent:  intent,
		Order:   &models.Order{ID: uuid.New()},
		Payment: &models.Transaction{ID: uuid.New()},
	}, nil).Once()

	require.NoError(t, f.gateway.HandleStripeEvent(ctx, evt))
	require.NoError(t, f.gateway.HandleStripeEvent(ctx, evt))

	f.ledger.AssertNumberOfCalls(t, "RecordCheckout", 1)
}

func TestPaymentGateway_HandleStripeEventRetriesAfterError(t *testing.T) {
	f := newGatewayFixture(t, GatewaySettings{})
	ctx := context.Background()
	evt := WebhookEvent{ID: "evt_2", Type: StripeEventIntentFailed, ProviderID: "pi_2"}
	f.intents.On("GetByProviderID", ctx, models.ProviderStripe, "pi_2").Return(nil, errors.New("connection refused")).Once()

	err := f.gateway.HandleStripeEvent(ctx, evt)
	assert.Equal(t, apperror.ErrCodePersistence, apperror.CodeOf(err))

	intent := pendingIntent(uuid.New(), models.ProviderStripe)
	f.intents.On("GetByProviderID", ctx, models.ProviderStripe, "pi_2").Return(intent, nil).Once()
	f.intents.On("MarkFailed", ctx, intent.ID, "payment_failed").Return(nil)

	require.NoError(t, f.gateway.HandleStripeEvent(ctx, evt))
	assert.Equal(t, []string{models.EventPaymentFailure}, f.events.types())
}

func TestPaymentGateway_HandleStripeEventIgnoresOtherTypes(t *testing.T) {
	f := newGatewayFixture(t, GatewaySettings{})

	err := f.gateway.HandleStripeEvent(context.Background(), WebhookEvent{ID: "evt_3", Type: "charge.refunded"})

	require.NoError(t, err)
	f.intents.AssertNotCalled(t, "GetByProviderID", mock.Anything, mock.Anything, mock.Anything)
}
