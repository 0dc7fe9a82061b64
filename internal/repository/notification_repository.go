package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/freelance-payments/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository хранит входящие пользователей, заполняемые диспетчером outbox.
type NotificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Insert добавляет запись, если получатель ещё не видел это событие.
// Возвращает false при повторной доставке того же события.
func (r *NotificationRepository) Insert(ctx context.Context, n *models.Notification) (bool, error) {
	data := n.Data
	if len(data) == 0 {
		data = []byte("null")
	}

	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO notifications (user_id, event_id, event_type, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, event_id) DO NOTHING
		RETURNING id, created_at`,
		n.UserID, n.EventID, n.EventType, string(data),
	).Scan(&n.ID, &n.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("notification repository: insert %w", err)
	}
	return true, nil
}

func (r *NotificationRepository) List(ctx context.Context, f models.NotificationFilter) ([]models.Notification, error) {
	query := `
		SELECT id, user_id, event_id, event_type, data, read_at, created_at
		FROM notifications
		WHERE user_id = $1 AND ($2 = FALSE OR read_at IS NULL)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`

	items := []models.Notification{}
	if err := r.db.SelectContext(ctx, &items, query, f.UserID, f.UnreadOnly, f.Limit, f.Offset); err != nil {
		return nil, fmt.Errorf("notification repository: list %w", err)
	}
	return items, nil
}

// MarkAsRead проставляет read_at. Чужое уведомление неотличимо от отсутствующего.
func (r *NotificationRepository) MarkAsRead(ctx context.Context, userID, id uuid.UUID) error {
	var readID uuid.UUID
	err := r.db.GetContext(ctx, &readID, `
		UPDATE notifications SET read_at = COALESCE(read_at, NOW())
		WHERE id = $1 AND user_id = $2
		RETURNING id`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotificationNotFound
	}
	if err != nil {
		return fmt.Errorf("notification repository: mark as read %w", err)
	}
	return nil
}

// MarkAllAsRead возвращает число отмеченных записей.
func (r *NotificationRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read_at = NOW() WHERE user_id = $1 AND read_at IS NULL`, userID)
	if err != nil {
		return 0, fmt.Errorf("notification repository: mark all as read %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("notification repository: mark all as read %w", err)
	}
	return n, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`, userID); err != nil {
		return 0, fmt.Errorf("notification repository: count unread %w", err)
	}
	return count, nil
}
