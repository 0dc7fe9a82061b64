package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-payments/internal/dto"
	"github.com/ignatzorin/freelance-payments/internal/http/handlers/common"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/service"
)

type DisputeDesk interface {
	Open(ctx context.Context, orderID uuid.UUID, viewer service.Viewer, reason string) (*models.Dispute, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID, viewer service.Viewer) (*models.Dispute, error)
	AddMessage(ctx context.Context, disputeID uuid.UUID, viewer service.Viewer, body string) (*models.DisputeMessage, error)
	ListMessages(ctx context.Context, disputeID uuid.UUID, viewer service.Viewer) ([]models.DisputeMessage, error)
	AttachEvidence(ctx context.Context, disputeID uuid.UUID, viewer service.Viewer, r io.Reader, caption string) (*models.DisputeMessage, error)
	Resolve(ctx context.Context, disputeID, adminID uuid.UUID, outcome, resolution string) (*models.Order, error)
}

type DisputeHandler struct {
	svc DisputeDesk
}

func NewDisputeHandler(s DisputeDesk) *DisputeHandler {
	return &DisputeHandler{svc: s}
}

// OpenDispute POST /orders/:id/dispute
func (h *DisputeHandler) OpenDispute(c *gin.Context) {
	viewer, orderID, ok := viewerAndParam(c, "id")
	if !ok {
		return
	}
	var req dto.OpenDisputeRequest
	if !common.BindJSON(c, &req) {
		return
	}

	dispute, err := h.svc.Open(c.Request.Context(), orderID, viewer, req.Reason)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dispute)
}

// GetDispute GET /orders/:id/dispute
func (h *DisputeHandler) GetDispute(c *gin.Context) {
	viewer, orderID, ok := viewerAndParam(c, "id")
	if !ok {
		return
	}

	dispute, err := h.svc.GetByOrder(c.Request.Context(), orderID, viewer)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dispute)
}

// ListMessages GET /disputes/:id/messages
func (h *DisputeHandler) ListMessages(c *gin.Context) {
	viewer, disputeID, ok := viewerAndParam(c, "id")
	if !ok {
		return
	}

	messages, err := h.svc.ListMessages(c.Request.Context(), disputeID, viewer)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// AddMessage POST /disputes/:id/messages
func (h *DisputeHandler) AddMessage(c *gin.Context) {
	viewer, disputeID, ok := viewerAndParam(c, "id")
	if !ok {
		return
	}
	var req dto.DisputeMessageRequest
	if !common.BindJSON(c, &req) {
		return
	}

	msg, err := h.svc.AddMessage(c.Request.Context(), disputeID, viewer, req.Body)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// UploadAttachment POST /disputes/:id/attachments (multipart, поле file)
func (h *DisputeHandler) UploadAttachment(c *gin.Context) {
	viewer, disputeID, ok := viewerAndParam(c, "id")
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		common.RespondBadRequest(c, "файл обязателен")
		return
	}
	file, err := header.Open()
	if err != nil {
		common.RespondBadRequest(c, "не удалось прочитать файл")
		return
	}
	defer file.Close()

	msg, err := h.svc.AttachEvidence(c.Request.Context(), disputeID, viewer, file, c.PostForm("caption"))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// Resolve POST /admin/disputes/:id/resolve
func (h *DisputeHandler) Resolve(c *gin.Context) {
	viewer, disputeID, ok := viewerAndParam(c, "id")
	if !ok {
		return
	}
	var req dto.ResolveDisputeRequest
	if !common.BindJSON(c, &req) {
		return
	}

	order, err := h.svc.Resolve(c.Request.Context(), disputeID, viewer.UserID, req.Outcome, req.Resolution)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func viewerAndParam(c *gin.Context, param string) (service.Viewer, uuid.UUID, bool) {
	viewer, err := common.CurrentViewer(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return service.Viewer{}, uuid.Nil, false
	}
	id, err := common.ParseUUIDParam(c, param)
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return service.Viewer{}, uuid.Nil, false
	}
	return viewer, id, true
}
