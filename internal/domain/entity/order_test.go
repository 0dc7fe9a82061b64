package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
)

func newTestOrder(status string) *Order {
	return NewOrder(&models.Order{
		ID:          uuid.New(),
		ClientID:    uuid.New(),
		FreelanceID: uuid.New(),
		Status:      status,
	})
}

func TestOrder_CheckCompletion(t *testing.T) {
	order := newTestOrder(models.OrderStatusDelivered)

	already, err := order.CheckCompletion(order.ClientID)
	require.NoError(t, err)
	assert.False(t, already)

	_, err = order.CheckCompletion(order.FreelanceID)
	assert.True(t, errors.Is(err, apperror.ErrNotOwner))
}

func TestOrder_CheckCompletion_AlreadyCompleted(t *testing.T) {
	order := newTestOrder(models.OrderStatusCompleted)

	already, err := order.CheckCompletion(order.ClientID)
	require.NoError(t, err)
	assert.True(t, already)
}

func TestOrder_CheckCompletion_NotDeliverable(t *testing.T) {
	for _, status := range []string{models.OrderStatusPending, models.OrderStatusCancelled, models.OrderStatusRevisionRequested} {
		order := newTestOrder(status)

		_, err := order.CheckCompletion(order.ClientID)
		assert.True(t, errors.Is(err, apperror.ErrNotDeliverable), status)
	}
}

func TestOrder_DeliverRevisionCycle(t *testing.T) {
	order := newTestOrder(models.OrderStatusPending)
	now := time.Now()

	assert.True(t, errors.Is(order.Deliver(order.ClientID, now), apperror.ErrNotOwner))

	require.NoError(t, order.Deliver(order.FreelanceID, now))
	assert.Equal(t, models.OrderStatusDelivered, order.Status)
	require.NotNil(t, order.DeliveredAt)

	require.NoError(t, order.RequestRevision(order.ClientID, now))
	assert.Equal(t, models.OrderStatusRevisionRequested, order.Status)

	require.NoError(t, order.Deliver(order.FreelanceID, now))
	require.NoError(t, order.Complete(now))
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	require.NotNil(t, order.CompletedAt)
}

func TestOrder_Cancel(t *testing.T) {
	order := newTestOrder(models.OrderStatusPending)
	require.NoError(t, order.Cancel(order.FreelanceID, time.Now()))
	assert.Equal(t, models.OrderStatusCancelled, order.Status)

	err := order.Cancel(order.ClientID, time.Now())
	assert.True(t, errors.Is(err, apperror.ErrInvalidTransition))

	disputed := newTestOrder(models.OrderStatusInDispute)
	assert.True(t, errors.Is(disputed.Cancel(disputed.ClientID, time.Now()), apperror.ErrInvalidTransition))
	require.NoError(t, disputed.ResolveCancel(time.Now()))
	assert.NotNil(t, disputed.CancelledAt)
}

func TestOrder_OpenDispute(t *testing.T) {
	order := newTestOrder(models.OrderStatusPending)
	assert.True(t, errors.Is(order.OpenDispute(order.ClientID, time.Now()), apperror.ErrInvalidTransition))

	order = newTestOrder(models.OrderStatusDelivered)
	assert.True(t, errors.Is(order.OpenDispute(uuid.New(), time.Now()), apperror.ErrNotOwner))
	require.NoError(t, order.OpenDispute(order.ClientID, time.Now()))
	assert.Equal(t, models.OrderStatusInDispute, order.Status)
}
