package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-payments/internal/logger"
	"github.com/ignatzorin/freelance-payments/internal/models"
)

const (
	defaultInboxPage = 20
	maxInboxPage     = 100
)

type NotificationRepository interface {
	Insert(ctx context.Context, n *models.Notification) (bool, error)
	List(ctx context.Context, f models.NotificationFilter) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// Pusher доставляет событие подключённым клиентам пользователя.
type Pusher interface {
	Push(ctx context.Context, userID uuid.UUID, event string, data json.RawMessage) error
}

// NotificationService ведёт входящие пользователей и realtime-доставку событий outbox.
type NotificationService struct {
	repo   NotificationRepository
	pusher Pusher
}

// NewNotificationService создаёт сервис. pusher может быть nil.
func NewNotificationService(repo NotificationRepository, pusher Pusher) *NotificationService {
	return &NotificationService{repo: repo, pusher: pusher}
}

// Notify сохраняет событие во входящие получателя и отправляет его по WebSocket.
// Повторная доставка того же события ничего не пишет и не пушит.
// Ошибка сохранения возвращается диспетчеру, чтобы событие было доставлено снова.
func (s *NotificationService) Notify(ctx context.Context, eventID, userID uuid.UUID, eventType string, data json.RawMessage) error {
	n := &models.Notification{
		UserID:    userID,
		EventID:   eventID,
		EventType: eventType,
		Data:      data,
	}
	created, err := s.repo.Insert(ctx, n)
	if err != nil {
		return err
	}
	if !created || s.pusher == nil {
		return nil
	}

	if err := s.pusher.Push(ctx, userID, eventType, n.Data); err != nil {
		logger.Log.WithFields(logrus.Fields{
			"user_id":    userID,
			"event_id":   eventID,
			"event_type": eventType,
			"error":      err,
		}).Warn("notification: push не доставлен, запись сохранена")
	}
	return nil
}

func (s *NotificationService) ListNotifications(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	if limit <= 0 || limit > maxInboxPage {
		limit = defaultInboxPage
	}
	if offset < 0 {
		offset = 0
	}

	items, err := s.repo.List(ctx, models.NotificationFilter{
		UserID:     userID,
		UnreadOnly: unreadOnly,
		Limit:      limit,
		Offset:     offset,
	})
	return items, translate(err)
}

func (s *NotificationService) MarkAsRead(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	return translate(s.repo.MarkAsRead(ctx, userID, id))
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	n, err := s.repo.MarkAllAsRead(ctx, userID)
	if err != nil {
		return translate(err)
	}
	logger.Log.WithFields(logrus.Fields{"user_id": userID, "marked": n}).Debug("notification: входящие прочитаны")
	return nil
}

func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	return count, translate(err)
}
