package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-payments/internal/logger"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-payments/internal/repository"
	"github.com/ignatzorin/freelance-payments/internal/storage"
)

const maxDisputeTextLen = 5000

var (
	errDisputeReasonRequired = apperror.New(apperror.ErrCodeInvalidInput, "укажите причину спора")
	errMessageBodyRequired   = apperror.New(apperror.ErrCodeInvalidInput, "сообщение не может быть пустым")
	errTextTooLong           = apperror.New(apperror.ErrCodeInvalidInput, "текст слишком длинный")
	errUnknownOutcome        = apperror.New(apperror.ErrCodeInvalidInput, "неизвестное решение по спору")
	errEvidenceRejected      = apperror.New(apperror.ErrCodeInvalidInput, "допустимы изображения и PDF в пределах лимита размера")
)

type DisputeRepository interface {
	Open(ctx context.Context, orderID, actorID uuid.UUID, reason string, now time.Time) (*models.Dispute, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error)
	AddMessage(ctx context.Context, msg *models.DisputeMessage) error
	ListMessages(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeMessage, error)
}

// EvidenceStore хранилище вложений к спорам.
type EvidenceStore interface {
	Save(ctx context.Context, disputeID uuid.UUID, r io.Reader) (*storage.StoredFile, error)
	Delete(ctx context.Context, relativePath string) error
}

// DisputeSettler завершает спорный заказ в пользу исполнителя.
type DisputeSettler interface {
	SettleDisputedOrder(ctx context.Context, orderID, adminID uuid.UUID, resolution string) (*repository.SettlementResult, error)
}

// DisputeCanceller отменяет спорный заказ с возвратом клиенту.
type DisputeCanceller interface {
	ResolveDisputeCancel(ctx context.Context, orderID, adminID uuid.UUID, resolution string, now time.Time) (*models.Order, error)
}

type DisputeService struct {
	repo      DisputeRepository
	settler   DisputeSettler
	canceller DisputeCanceller
	evidence  EvidenceStore
	now       func() time.Time
}

func NewDisputeService(repo DisputeRepository, settler DisputeSettler, canceller DisputeCanceller, evidence EvidenceStore) *DisputeService {
	return &DisputeService{
		repo:      repo,
		settler:   settler,
		canceller: canceller,
		evidence:  evidence,
		now:       time.Now,
	}
}

// Open участник открывает спор по сданному заказу.
func (s *DisputeService) Open(ctx context.Context, orderID uuid.UUID, viewer Viewer, reason string) (*models.Dispute, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, errDisputeReasonRequired
	}
	if len(reason) > maxDisputeTextLen {
		return nil, errTextTooLong
	}

	dispute, err := s.repo.Open(ctx, orderID, viewer.UserID, reason, s.now())
	if err != nil {
		return nil, translate(err)
	}
	logger.Log.WithFields(logrus.Fields{
		"order_id":   orderID,
		"dispute_id": dispute.ID,
		"opened_by":  viewer.UserID,
	}).Info("dispute: спор открыт")
	return dispute, nil
}

// GetByOrder возвращает спор по заказу участнику или администратору.
func (s *DisputeService) GetByOrder(ctx context.Context, orderID uuid.UUID, viewer Viewer) (*models.Dispute, error) {
	dispute, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, translate(err)
	}
	if !canAccessDispute(dispute, viewer) {
		return nil, apperror.ErrDisputeNotFound
	}
	return dispute, nil
}

// AddMessage добавляет сообщение в переписку открытого спора.
func (s *DisputeService) AddMessage(ctx context.Context, disputeID uuid.UUID, viewer Viewer, body string) (*models.DisputeMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, errMessageBodyRequired
	}
	if len(body) > maxDisputeTextLen {
		return nil, errTextTooLong
	}
	if _, err := s.openDispute(ctx, disputeID, viewer); err != nil {
		return nil, err
	}

	msg := &models.DisputeMessage{DisputeID: disputeID, SenderID: viewer.UserID, Body: body}
	if err := s.repo.AddMessage(ctx, msg); err != nil {
		return nil, translate(err)
	}
	return msg, nil
}

// ListMessages возвращает переписку по спору в порядке создания.
func (s *DisputeService) ListMessages(ctx context.Context, disputeID uuid.UUID, viewer Viewer) ([]models.DisputeMessage, error) {
	dispute, err := s.repo.GetByID(ctx, disputeID)
	if err != nil {
		return nil, translate(err)
	}
	if !canAccessDispute(dispute, viewer) {
		return nil, apperror.ErrDisputeNotFound
	}
	messages, err := s.repo.ListMessages(ctx, disputeID)
	return messages, translate(err)
}

// AttachEvidence сохраняет файл и добавляет его в переписку сообщением.
func (s *DisputeService) AttachEvidence(ctx context.Context, disputeID uuid.UUID, viewer Viewer, r io.Reader, caption string) (*models.DisputeMessage, error) {
	caption = strings.TrimSpace(caption)
	if len(caption) > maxDisputeTextLen {
		return nil, errTextTooLong
	}
	if _, err := s.openDispute(ctx, disputeID, viewer); err != nil {
		return nil, err
	}

	stored, err := s.evidence.Save(ctx, disputeID, r)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) || errors.Is(err, storage.ErrTooLarge) || errors.Is(err, storage.ErrEmptyFile) {
			return nil, errEvidenceRejected.WithDetails(err.Error())
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сохранить файл")
	}

	msg := &models.DisputeMessage{
		DisputeID:      disputeID,
		SenderID:       viewer.UserID,
		Body:           caption,
		AttachmentPath: &stored.Path,
		AttachmentType: &stored.MIME,
	}
	if err := s.repo.AddMessage(ctx, msg); err != nil {
		if delErr := s.evidence.Delete(ctx, stored.Path); delErr != nil {
			logger.Log.WithFields(logrus.Fields{
				"dispute_id": disputeID,
				"path":       stored.Path,
				"error":      delErr,
			}).Warn("dispute: не удалось удалить осиротевший файл")
		}
		return nil, translate(err)
	}
	return msg, nil
}

// Resolve решение администратора: complete проводит расчёт, cancel возвращает оплату клиенту.
func (s *DisputeService) Resolve(ctx context.Context, disputeID, adminID uuid.UUID, outcome, resolution string) (*models.Order, error) {
	resolution = strings.TrimSpace(resolution)
	if len(resolution) > maxDisputeTextLen {
		return nil, errTextTooLong
	}
	dispute, err := s.openDispute(ctx, disputeID, Viewer{UserID: adminID, Role: models.RoleAdmin})
	if err != nil {
		return nil, err
	}

	var order *models.Order
	switch outcome {
	case models.DisputeOutcomeComplete:
		result, err := s.settler.SettleDisputedOrder(ctx, dispute.OrderID, adminID, resolution)
		if err != nil {
			return nil, err
		}
		order = result.Order
	case models.DisputeOutcomeCancel:
		order, err = s.canceller.ResolveDisputeCancel(ctx, dispute.OrderID, adminID, resolution, s.now())
		if err != nil {
			return nil, translate(err)
		}
	default:
		return nil, errUnknownOutcome
	}

	logger.Log.WithFields(logrus.Fields{
		"dispute_id": disputeID,
		"order_id":   dispute.OrderID,
		"admin_id":   adminID,
		"outcome":    outcome,
	}).Info("dispute: спор разрешён")
	return order, nil
}

func (s *DisputeService) openDispute(ctx context.Context, disputeID uuid.UUID, viewer Viewer) (*models.Dispute, error) {
	dispute, err := s.repo.GetByID(ctx, disputeID)
	if err != nil {
		return nil, translate(err)
	}
	if !canAccessDispute(dispute, viewer) {
		return nil, apperror.ErrDisputeNotFound
	}
	if dispute.Status != models.DisputeStatusOpen {
		return nil, errDisputeClosed
	}
	return dispute, nil
}

func canAccessDispute(d *models.Dispute, viewer Viewer) bool {
	return viewer.IsAdmin() || d.IsParticipant(viewer.UserID)
}
