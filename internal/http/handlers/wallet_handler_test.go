package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-payments/internal/service"
)

type fakeLedger struct {
	withdrawCmd   *service.WithdrawalCommand
	withdrawErr   error
	processed     string
	processedNote *string
}

func (f *fakeLedger) GetWallet(ctx context.Context, userID uuid.UUID) (*models.WalletOverview, error) {
	return &models.WalletOverview{}, nil
}

func (f *fakeLedger) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	return []models.Transaction{}, nil
}

func (f *fakeLedger) ListWithdrawals(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WithdrawalRequest, error) {
	return []models.WithdrawalRequest{}, nil
}

func (f *fakeLedger) GetWithdrawal(ctx context.Context, id, userID uuid.UUID) (*models.WithdrawalRequest, error) {
	return nil, apperror.ErrWithdrawalNotFound
}

func (f *fakeLedger) RecordWithdrawalRequest(ctx context.Context, cmd service.WithdrawalCommand) (*models.WithdrawalRequest, error) {
	f.withdrawCmd = &cmd
	if f.withdrawErr != nil {
		return nil, f.withdrawErr
	}
	return &models.WithdrawalRequest{ID: uuid.New(), UserID: cmd.UserID, Status: models.WithdrawalStatusPending}, nil
}

func (f *fakeLedger) ProcessWithdrawal(ctx context.Context, withdrawalID, adminID uuid.UUID, outcome string, note *string) (*models.WithdrawalRequest, error) {
	f.processed = outcome
	f.processedNote = note
	return &models.WithdrawalRequest{ID: withdrawalID, Status: outcome}, nil
}

func TestWalletHandler_Withdraw_Unauthorized(t *testing.T) {
	ledger := &fakeLedger{}
	r := newRouter(uuid.Nil, "")
	r.POST("/wallet/withdraw", NewWalletHandler(ledger).Withdraw)

	w := doJSON(r, http.MethodPost, "/wallet/withdraw", map[string]interface{}{"amount": 100, "payment_method": "wave"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, ledger.withdrawCmd)
}

func TestWalletHandler_Withdraw_UnknownMethod(t *testing.T) {
	ledger := &fakeLedger{}
	r := newRouter(uuid.New(), models.RoleFreelance)
	r.POST("/wallet/withdraw", NewWalletHandler(ledger).Withdraw)

	w := doJSON(r, http.MethodPost, "/wallet/withdraw", map[string]interface{}{"amount": 100, "payment_method": "bitcoin"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	details, _ := decodeBody(w)["details"].(map[string]interface{})
	assert.Contains(t, details, "payment_method")
	assert.Nil(t, ledger.withdrawCmd)
}

func TestWalletHandler_Withdraw(t *testing.T) {
	userID := uuid.New()
	ledger := &fakeLedger{}
	r := newRouter(userID, models.RoleFreelance)
	r.POST("/wallet/withdraw", NewWalletHandler(ledger).Withdraw)

	w := doJSON(r, http.MethodPost, "/wallet/withdraw", `{"amount": "15000.50", "payment_method": "orange_money"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, ledger.withdrawCmd)
	assert.Equal(t, userID, ledger.withdrawCmd.UserID)
	assert.True(t, decimal.RequireFromString("15000.50").Equal(ledger.withdrawCmd.Amount))
	assert.Nil(t, ledger.withdrawCmd.FeeAmount)
	assert.Equal(t, models.WithdrawalStatusPending, decodeBody(w)["status"])
}

func TestWalletHandler_Withdraw_InsufficientBalance(t *testing.T) {
	ledger := &fakeLedger{withdrawErr: apperror.ErrInsufficientBalance}
	r := newRouter(uuid.New(), models.RoleFreelance)
	r.POST("/wallet/withdraw", NewWalletHandler(ledger).Withdraw)

	w := doJSON(r, http.MethodPost, "/wallet/withdraw", map[string]interface{}{"amount": 100, "payment_method": "wave"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INSUFFICIENT_BALANCE", decodeBody(w)["code"])
}

func TestWalletHandler_GetWithdrawal_NotFound(t *testing.T) {
	r := newRouter(uuid.New(), models.RoleFreelance)
	r.GET("/wallet/withdrawals/:id", NewWalletHandler(&fakeLedger{}).GetWithdrawal)

	w := doJSON(r, http.MethodGet, "/wallet/withdrawals/"+uuid.NewString(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWalletHandler_FailWithdrawal_WithoutBody(t *testing.T) {
	ledger := &fakeLedger{}
	r := newRouter(uuid.New(), models.RoleAdmin)
	r.POST("/admin/withdrawals/:id/fail", NewWalletHandler(ledger).FailWithdrawal)

	req, _ := http.NewRequest(http.MethodPost, "/admin/withdrawals/"+uuid.NewString()+"/fail", nil)
	w := serve(r, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.WithdrawalStatusFailed, ledger.processed)
	assert.Nil(t, ledger.processedNote)
}

func TestWalletHandler_CompleteWithdrawal_WithNote(t *testing.T) {
	ledger := &fakeLedger{}
	r := newRouter(uuid.New(), models.RoleAdmin)
	r.POST("/admin/withdrawals/:id/complete", NewWalletHandler(ledger).CompleteWithdrawal)

	w := doJSON(r, http.MethodPost, "/admin/withdrawals/"+uuid.NewString()+"/complete", map[string]string{"note": "перевод 42"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.WithdrawalStatusCompleted, ledger.processed)
	require.NotNil(t, ledger.processedNote)
	assert.Equal(t, "перевод 42", *ledger.processedNote)
}
