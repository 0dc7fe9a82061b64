package valueobject

import "github.com/ignatzorin/freelance-payments/internal/pkg/apperror"

type OrderStatus string

const (
	OrderStatusPending           OrderStatus = "pending"
	OrderStatusDelivered         OrderStatus = "delivered"
	OrderStatusCompleted         OrderStatus = "completed"
	OrderStatusCancelled         OrderStatus = "cancelled"
	OrderStatusInDispute         OrderStatus = "in_dispute"
	OrderStatusRevisionRequested OrderStatus = "revision_requested"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:           {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:         {OrderStatusCompleted, OrderStatusCancelled, OrderStatusInDispute, OrderStatusRevisionRequested},
	OrderStatusRevisionRequested: {OrderStatusDelivered},
	OrderStatusInDispute:         {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusCompleted:         {},
	OrderStatusCancelled:         {},
}

func (s OrderStatus) IsValid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// IsTerminal true для completed и cancelled.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

func (s OrderStatus) CanTransitionTo(newStatus OrderStatus) bool {
	for _, status := range orderTransitions[s] {
		if status == newStatus {
			return true
		}
	}
	return false
}

func NewOrderStatus(status string) (OrderStatus, error) {
	s := OrderStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeInvalidInput, "некорректный статус заказа")
	}
	return s, nil
}
