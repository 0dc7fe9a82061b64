package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-payments/internal/dto"
	"github.com/ignatzorin/freelance-payments/internal/http/handlers/common"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/repository"
	"github.com/ignatzorin/freelance-payments/internal/service"
)

type OrderLifecycle interface {
	Get(ctx context.Context, orderID uuid.UUID, viewer service.Viewer) (*models.Order, error)
	History(ctx context.Context, orderID uuid.UUID, viewer service.Viewer) ([]models.OrderHistory, error)
	Deliver(ctx context.Context, orderID, freelanceID uuid.UUID) (*models.Order, error)
	RequestRevision(ctx context.Context, orderID, clientID uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, orderID, actorID uuid.UUID) (*models.Order, error)
}

type OrderSettler interface {
	CompleteOrder(ctx context.Context, orderID, clientID uuid.UUID) (*repository.SettlementResult, error)
}

type OrderHandler struct {
	orders     OrderLifecycle
	settlement OrderSettler
}

// NewOrderHandler создаёт новый хэндлер.
func NewOrderHandler(orders OrderLifecycle, settlement OrderSettler) *OrderHandler {
	return &OrderHandler{orders: orders, settlement: settlement}
}

// CompleteOrder POST /orders/complete
func (h *OrderHandler) CompleteOrder(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}
	var req dto.CompleteOrderRequest
	if !common.BindJSON(c, &req) {
		return
	}

	result, err := h.settlement.CompleteOrder(c.Request.Context(), uuid.MustParse(req.OrderID), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order":             result.Order,
		"settled_amount":    result.SettledAmount,
		"already_completed": result.AlreadyCompleted,
	})
}

// GetOrder GET /orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	viewer, orderID, ok := viewerAndParam(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.Get(c.Request.Context(), orderID, viewer)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// History GET /orders/:id/history
func (h *OrderHandler) History(c *gin.Context) {
	viewer, orderID, ok := viewerAndParam(c, "id")
	if !ok {
		return
	}
	history, err := h.orders.History(c.Request.Context(), orderID, viewer)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// Deliver POST /orders/:id/deliver
func (h *OrderHandler) Deliver(c *gin.Context) {
	h.transition(c, h.orders.Deliver)
}

// RequestRevision POST /orders/:id/revision
func (h *OrderHandler) RequestRevision(c *gin.Context) {
	h.transition(c, h.orders.RequestRevision)
}

// Cancel POST /orders/:id/cancel
func (h *OrderHandler) Cancel(c *gin.Context) {
	h.transition(c, h.orders.Cancel)
}

func (h *OrderHandler) transition(c *gin.Context, fn func(ctx context.Context, orderID, actorID uuid.UUID) (*models.Order, error)) {
	viewer, orderID, ok := viewerAndParam(c, "id")
	if !ok {
		return
	}
	order, err := fn(c.Request.Context(), orderID, viewer.UserID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
