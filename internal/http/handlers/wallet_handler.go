package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-payments/internal/dto"
	"github.com/ignatzorin/freelance-payments/internal/http/handlers/common"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/service"
)

type WalletLedger interface {
	GetWallet(ctx context.Context, userID uuid.UUID) (*models.WalletOverview, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
	ListWithdrawals(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WithdrawalRequest, error)
	GetWithdrawal(ctx context.Context, id, userID uuid.UUID) (*models.WithdrawalRequest, error)
	RecordWithdrawalRequest(ctx context.Context, cmd service.WithdrawalCommand) (*models.WithdrawalRequest, error)
	ProcessWithdrawal(ctx context.Context, withdrawalID, adminID uuid.UUID, outcome string, note *string) (*models.WithdrawalRequest, error)
}

type WalletHandler struct {
	ledger WalletLedger
}

func NewWalletHandler(ledger WalletLedger) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

// GetWallet GET /wallet
func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	overview, err := h.ledger.GetWallet(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

// ListTransactions GET /wallet/transactions
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	limit, offset := common.GetPagination(c)
	transactions, err := h.ledger.ListTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}

// ListWithdrawals GET /wallet/withdrawals
func (h *WalletHandler) ListWithdrawals(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	limit, offset := common.GetPagination(c)
	withdrawals, err := h.ledger.ListWithdrawals(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": withdrawals})
}

// GetWithdrawal GET /wallet/withdrawals/:id
func (h *WalletHandler) GetWithdrawal(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id заявки")
		return
	}

	withdrawal, err := h.ledger.GetWithdrawal(c.Request.Context(), id, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, withdrawal)
}

// Withdraw POST /wallet/withdraw
func (h *WalletHandler) Withdraw(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}
	var req dto.WithdrawRequest
	if !common.BindJSON(c, &req) {
		return
	}

	withdrawal, err := h.ledger.RecordWithdrawalRequest(c.Request.Context(), service.WithdrawalCommand{
		UserID:        userID,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		FeeAmount:     req.FeeAmount,
		NetAmount:     req.NetAmount,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.WithdrawResponse{WithdrawalID: withdrawal.ID, Status: withdrawal.Status})
}

// CompleteWithdrawal POST /admin/withdrawals/:id/complete
func (h *WalletHandler) CompleteWithdrawal(c *gin.Context) {
	h.process(c, models.WithdrawalStatusCompleted)
}

// FailWithdrawal POST /admin/withdrawals/:id/fail
func (h *WalletHandler) FailWithdrawal(c *gin.Context) {
	h.process(c, models.WithdrawalStatusFailed)
}

func (h *WalletHandler) process(c *gin.Context, outcome string) {
	adminID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id заявки")
		return
	}
	var req dto.ProcessWithdrawalRequest
	if c.Request.ContentLength > 0 && !common.BindJSON(c, &req) {
		return
	}

	withdrawal, err := h.ledger.ProcessWithdrawal(c.Request.Context(), id, adminID, outcome, req.Note)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, withdrawal)
}
