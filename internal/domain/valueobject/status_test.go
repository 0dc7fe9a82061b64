package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		allowed  bool
	}{
		{OrderStatusPending, OrderStatusDelivered, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusCompleted, false},
		{OrderStatusDelivered, OrderStatusCompleted, true},
		{OrderStatusDelivered, OrderStatusInDispute, true},
		{OrderStatusDelivered, OrderStatusRevisionRequested, true},
		{OrderStatusDelivered, OrderStatusCancelled, true},
		{OrderStatusRevisionRequested, OrderStatusDelivered, true},
		{OrderStatusRevisionRequested, OrderStatusCompleted, false},
		{OrderStatusInDispute, OrderStatusCompleted, true},
		{OrderStatusInDispute, OrderStatusCancelled, true},
		{OrderStatusInDispute, OrderStatusDelivered, false},
		{OrderStatusCompleted, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestOrderStatus_IsTerminal(t *testing.T) {
	assert.True(t, OrderStatusCompleted.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusInDispute.IsTerminal())
}

func TestNewOrderStatus(t *testing.T) {
	s, err := NewOrderStatus("delivered")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusDelivered, s)

	_, err = NewOrderStatus("draft")
	assert.Error(t, err)
}
