package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-payments/internal/logger"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
)

// OrderRepository описывает взаимодействие сервиса с хранилищем заказов.
type OrderRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	History(ctx context.Context, orderID uuid.UUID) ([]models.OrderHistory, error)
	Deliver(ctx context.Context, orderID, freelanceID uuid.UUID, now time.Time) (*models.Order, error)
	RequestRevision(ctx context.Context, orderID, clientID uuid.UUID, now time.Time) (*models.Order, error)
	Cancel(ctx context.Context, orderID, actorID uuid.UUID, now time.Time) (*models.Order, error)
	ResolveDisputeCancel(ctx context.Context, orderID, adminID uuid.UUID, resolution string, now time.Time) (*models.Order, error)
}

// OrderService жизненный цикл заказа после оплаты.
type OrderService struct {
	repo OrderRepository
	now  func() time.Time
}

func NewOrderService(repo OrderRepository) *OrderService {
	return &OrderService{repo: repo, now: time.Now}
}

// Get возвращает заказ участнику или администратору.
func (s *OrderService) Get(ctx context.Context, orderID uuid.UUID, viewer Viewer) (*models.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, translate(err)
	}
	if !viewer.IsAdmin() && order.ClientID != viewer.UserID && order.FreelanceID != viewer.UserID {
		return nil, apperror.ErrNotOwner
	}
	return order, nil
}

// History возвращает историю изменений заказа.
func (s *OrderService) History(ctx context.Context, orderID uuid.UUID, viewer Viewer) ([]models.OrderHistory, error) {
	if _, err := s.Get(ctx, orderID, viewer); err != nil {
		return nil, err
	}
	history, err := s.repo.History(ctx, orderID)
	return history, translate(err)
}

// Deliver исполнитель сдаёт работу: pending|revision_requested → delivered.
func (s *OrderService) Deliver(ctx context.Context, orderID, freelanceID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.Deliver(ctx, orderID, freelanceID, s.now())
	if err != nil {
		return nil, translate(err)
	}
	s.logTransition(order, freelanceID)
	return order, nil
}

// RequestRevision клиент возвращает работу на доработку.
func (s *OrderService) RequestRevision(ctx context.Context, orderID, clientID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.RequestRevision(ctx, orderID, clientID, s.now())
	if err != nil {
		return nil, translate(err)
	}
	s.logTransition(order, clientID)
	return order, nil
}

// Cancel отменяет заказ и возвращает оплату клиенту на баланс.
func (s *OrderService) Cancel(ctx context.Context, orderID, actorID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.Cancel(ctx, orderID, actorID, s.now())
	if err != nil {
		return nil, translate(err)
	}
	s.logTransition(order, actorID)
	return order, nil
}

func (s *OrderService) logTransition(order *models.Order, actorID uuid.UUID) {
	logger.Log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"actor_id": actorID,
		"status":   order.Status,
	}).Info("order: статус изменён")
}
