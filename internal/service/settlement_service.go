package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-payments/internal/logger"
	"github.com/ignatzorin/freelance-payments/internal/metrics"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-payments/internal/repository"
)

type SettlementRepository interface {
	SettleOrder(ctx context.Context, orderID, clientID uuid.UUID, now time.Time) (*repository.SettlementResult, error)
	SettleDisputed(ctx context.Context, orderID, adminID uuid.UUID, resolution string, now time.Time) (*repository.SettlementResult, error)
}

// SettlementService переводит заработки в доступный баланс при завершении заказа.
type SettlementService struct {
	repo    SettlementRepository
	metrics *metrics.Collector
	now     func() time.Time
}

func NewSettlementService(repo SettlementRepository, collector *metrics.Collector) *SettlementService {
	return &SettlementService{repo: repo, metrics: collector, now: time.Now}
}

// CompleteOrder подтверждение клиентом сданной работы.
// Повторный вызов для завершённого заказа возвращает успех без изменения кошельков.
func (s *SettlementService) CompleteOrder(ctx context.Context, orderID, clientID uuid.UUID) (*repository.SettlementResult, error) {
	result, err := s.repo.SettleOrder(ctx, orderID, clientID, s.now())
	if err != nil {
		return nil, s.fail(orderID, err)
	}
	if result.AlreadyCompleted {
		s.metrics.IncSettlement("noop")
		return result, nil
	}

	s.metrics.IncSettlement("completed")
	logger.Log.WithFields(logrus.Fields{
		"order_id":       orderID,
		"settled_amount": result.SettledAmount.String(),
		"transactions":   len(result.Transactions),
	}).Info("settlement: заказ завершён")
	return result, nil
}

// SettleDisputedOrder закрывает спор в пользу исполнителя тем же путём расчёта.
func (s *SettlementService) SettleDisputedOrder(ctx context.Context, orderID, adminID uuid.UUID, resolution string) (*repository.SettlementResult, error) {
	result, err := s.repo.SettleDisputed(ctx, orderID, adminID, resolution, s.now())
	if err != nil {
		return nil, s.fail(orderID, err)
	}
	s.metrics.IncSettlement("disputed")
	logger.Log.WithFields(logrus.Fields{
		"order_id":       orderID,
		"admin_id":       adminID,
		"settled_amount": result.SettledAmount.String(),
	}).Info("settlement: спорный заказ завершён")
	return result, nil
}

func (s *SettlementService) fail(orderID uuid.UUID, err error) error {
	appErr := translate(err)
	switch apperror.CodeOf(appErr) {
	case apperror.ErrCodePersistence, apperror.ErrCodeInternal:
		s.metrics.IncSettlement("failed")
		logger.Log.WithFields(logrus.Fields{
			"order_id": orderID,
			"error":    err,
		}).Error("settlement: расчёт откатан")
	default:
		s.metrics.IncSettlement("rejected")
	}
	return appErr
}
