package stripe

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/ignatzorin/freelance-payments/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-payments/internal/payment"
)

type fakeAPI struct {
	newParams  *stripe.PaymentIntentParams
	intent     *stripe.PaymentIntent
	captured   *stripe.PaymentIntent
	captureErr error
	captures   int
	gets       int
}

func (f *fakeAPI) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.newParams = params
	return f.intent, nil
}

func (f *fakeAPI) Get(id string, _ *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.gets++
	return f.intent, nil
}

func (f *fakeAPI) Capture(id string, _ *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error) {
	f.captures++
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	return f.captured, nil
}

func TestCreateIntent_UsesMinorUnitsAndManualCapture(t *testing.T) {
	api := &fakeAPI{intent: &stripe.PaymentIntent{
		ID:           "pi_1",
		ClientSecret: "pi_1_secret",
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
	}}
	p := newWithAPI(api)

	money, err := valueobject.NewMoney(decimal.NewFromInt(25000), "XOF")
	require.NoError(t, err)
	intentID := uuid.New()

	out, err := p.CreateIntent(context.Background(), payment.IntentRequest{
		IntentID:       intentID,
		Amount:         money,
		IdempotencyKey: "intent:" + intentID.String(),
	})
	require.NoError(t, err)

	assert.Equal(t, "pi_1", out.ProviderID)
	require.NotNil(t, out.ClientSecret)
	assert.Equal(t, "pi_1_secret", *out.ClientSecret)
	assert.Equal(t, payment.StatusCreated, out.Status)

	assert.Equal(t, int64(25000), *api.newParams.Amount)
	assert.Equal(t, "xof", *api.newParams.Currency)
	assert.Equal(t, "manual", *api.newParams.CaptureMethod)
	assert.Equal(t, intentID.String(), api.newParams.Metadata["intent_id"])
	assert.Equal(t, "intent:"+intentID.String(), *api.newParams.IdempotencyKey)
}

func authorized(status stripe.PaymentIntentStatus) *payment.ProviderIntent {
	return &payment.ProviderIntent{ProviderID: "pi_1", Status: NormalizeStatus(status), RawStatus: string(status)}
}

func TestCapture_RequiresCapture(t *testing.T) {
	api := &fakeAPI{
		captured: &stripe.PaymentIntent{
			ID:           "pi_1",
			Status:       stripe.PaymentIntentStatusSucceeded,
			LatestCharge: &stripe.Charge{ID: "ch_1"},
		},
	}
	p := newWithAPI(api)

	capture, err := p.Capture(context.Background(), authorized(stripe.PaymentIntentStatusRequiresCapture), "capture:pi_1")
	require.NoError(t, err)
	assert.Equal(t, "ch_1", capture.CaptureID)
	assert.Equal(t, payment.StatusCompleted, capture.Status)
	assert.Equal(t, 1, api.captures)
	assert.Zero(t, api.gets)
}

func TestCapture_AlreadySucceeded(t *testing.T) {
	api := &fakeAPI{}
	p := newWithAPI(api)

	capture, err := p.Capture(context.Background(), authorized(stripe.PaymentIntentStatusSucceeded), "")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, capture.Status)
	assert.Equal(t, 0, api.captures)
}

func TestCapture_NotCapturable(t *testing.T) {
	api := &fakeAPI{}
	p := newWithAPI(api)

	_, err := p.Capture(context.Background(), authorized(stripe.PaymentIntentStatusCanceled), "")
	assert.True(t, errors.Is(err, payment.ErrNotCapturable))
	assert.Equal(t, 0, api.captures)
}

func TestNormalizeStatus(t *testing.T) {
	cases := map[stripe.PaymentIntentStatus]string{
		stripe.PaymentIntentStatusRequiresPaymentMethod: payment.StatusCreated,
		stripe.PaymentIntentStatusRequiresAction:        payment.StatusCreated,
		stripe.PaymentIntentStatusRequiresCapture:       payment.StatusApproved,
		stripe.PaymentIntentStatusProcessing:            payment.StatusProcessing,
		stripe.PaymentIntentStatusSucceeded:             payment.StatusCompleted,
		stripe.PaymentIntentStatusCanceled:              payment.StatusFailed,
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeStatus(in), string(in))
	}
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New("  ")
	assert.Error(t, err)
}
