package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-payments/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
)

// Order правила жизненного цикла заказа поверх строки таблицы orders.
type Order struct {
	*models.Order
}

func NewOrder(m *models.Order) *Order {
	return &Order{Order: m}
}

func (o *Order) CurrentStatus() valueobject.OrderStatus {
	return valueobject.OrderStatus(o.Status)
}

func (o *Order) IsOwnedBy(clientID uuid.UUID) bool {
	return o.ClientID == clientID
}

func (o *Order) IsParticipant(userID uuid.UUID) bool {
	return o.ClientID == userID || o.FreelanceID == userID
}

// Deliver исполнитель сдаёт работу.
func (o *Order) Deliver(freelanceID uuid.UUID, now time.Time) error {
	if o.FreelanceID != freelanceID {
		return apperror.ErrNotOwner
	}
	if err := o.transition(valueobject.OrderStatusDelivered, now); err != nil {
		return err
	}
	o.DeliveredAt = &now
	return nil
}

// RequestRevision клиент возвращает сданную работу на доработку.
func (o *Order) RequestRevision(clientID uuid.UUID, now time.Time) error {
	if !o.IsOwnedBy(clientID) {
		return apperror.ErrNotOwner
	}
	return o.transition(valueobject.OrderStatusRevisionRequested, now)
}

// CheckCompletion проверяет, может ли клиент подтвердить заказ.
// Для уже завершённого заказа возвращает alreadyCompleted = true без ошибки.
func (o *Order) CheckCompletion(clientID uuid.UUID) (alreadyCompleted bool, err error) {
	if !o.IsOwnedBy(clientID) {
		return false, apperror.ErrNotOwner
	}
	switch o.CurrentStatus() {
	case valueobject.OrderStatusCompleted:
		return true, nil
	case valueobject.OrderStatusDelivered:
		return false, nil
	default:
		return false, apperror.ErrNotDeliverable
	}
}

// Complete переводит заказ в completed из delivered или in_dispute.
func (o *Order) Complete(now time.Time) error {
	if err := o.transition(valueobject.OrderStatusCompleted, now); err != nil {
		return err
	}
	o.CompletedAt = &now
	return nil
}

// Cancel отмена участником заказа. Спорный заказ отменяется только решением спора.
func (o *Order) Cancel(actorID uuid.UUID, now time.Time) error {
	if !o.IsParticipant(actorID) {
		return apperror.ErrNotOwner
	}
	if o.CurrentStatus() == valueobject.OrderStatusInDispute {
		return apperror.ErrInvalidTransition
	}
	return o.forceCancel(now)
}

// ResolveCancel отмена заказа по решению спора.
func (o *Order) ResolveCancel(now time.Time) error {
	if o.CurrentStatus() != valueobject.OrderStatusInDispute {
		return apperror.ErrInvalidTransition
	}
	return o.forceCancel(now)
}

// OpenDispute участник оспаривает сданную работу.
func (o *Order) OpenDispute(actorID uuid.UUID, now time.Time) error {
	if !o.IsParticipant(actorID) {
		return apperror.ErrNotOwner
	}
	return o.transition(valueobject.OrderStatusInDispute, now)
}

func (o *Order) forceCancel(now time.Time) error {
	if err := o.transition(valueobject.OrderStatusCancelled, now); err != nil {
		return err
	}
	o.CancelledAt = &now
	return nil
}

func (o *Order) transition(to valueobject.OrderStatus, now time.Time) error {
	if !o.CurrentStatus().CanTransitionTo(to) {
		return apperror.ErrInvalidTransition
	}
	o.Status = string(to)
	o.UpdatedAt = now
	return nil
}
