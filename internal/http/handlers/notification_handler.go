package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-payments/internal/dto"
	"github.com/ignatzorin/freelance-payments/internal/http/handlers/common"
	"github.com/ignatzorin/freelance-payments/internal/models"
)

type NotificationInbox interface {
	ListNotifications(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id uuid.UUID, userID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// NotificationHandler отдаёт входящие текущего пользователя: события оплат, сдачи заказов и выводов.
type NotificationHandler struct {
	inbox NotificationInbox
}

func NewNotificationHandler(inbox NotificationInbox) *NotificationHandler {
	return &NotificationHandler{inbox: inbox}
}

// owner возвращает пользователя запроса или сам отвечает 401.
func (h *NotificationHandler) owner(c *gin.Context) (uuid.UUID, bool) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return uuid.Nil, false
	}
	return userID, true
}

// ListNotifications GET /notifications?limit=&offset=&unread_only=true
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	userID, ok := h.owner(c)
	if !ok {
		return
	}

	limit, offset := common.GetPagination(c)
	items, err := h.inbox.ListNotifications(c.Request.Context(), userID, limit, offset, c.Query("unread_only") == "true")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NotificationPage{Notifications: items, Limit: limit, Offset: offset})
}

func (h *NotificationHandler) CountUnread(c *gin.Context) {
	userID, ok := h.owner(c)
	if !ok {
		return
	}

	count, err := h.inbox.CountUnread(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.UnreadCountResponse{Count: count})
}

// MarkAsRead PUT /notifications/:id/read. Повторная отметка не меняет read_at.
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	userID, ok := h.owner(c)
	if !ok {
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id уведомления")
		return
	}

	if err := h.inbox.MarkAsRead(c.Request.Context(), id, userID); err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	userID, ok := h.owner(c)
	if !ok {
		return
	}

	if err := h.inbox.MarkAllAsRead(c.Request.Context(), userID); err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
