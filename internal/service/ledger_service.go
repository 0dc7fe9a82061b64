package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-payments/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-payments/internal/logger"
	"github.com/ignatzorin/freelance-payments/internal/metrics"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/payment"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-payments/internal/repository"
)

const recentTransactionsLimit = 20

// LedgerRepository денежные записи кошельков.
type LedgerRepository interface {
	RecordCheckout(ctx context.Context, rec repository.CheckoutRecord) (*repository.CheckoutResult, error)
	RecordEarning(ctx context.Context, rec repository.EarningRecord) (*models.Transaction, error)
	HoldOrderEarnings(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error)
	CreateWithdrawal(ctx context.Context, in repository.WithdrawalInput) (*models.WithdrawalRequest, error)
	RecordFailedWithdrawal(ctx context.Context, in repository.FailedWithdrawal) (*models.WithdrawalRequest, error)
	ProcessWithdrawal(ctx context.Context, d repository.WithdrawalDecision) (*models.WithdrawalRequest, error)
}

// WalletRepository чтение кошельков и истории операций.
type WalletRepository interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]models.Transaction, error)
	ListWithdrawals(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WithdrawalRequest, error)
	GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
}

// LedgerSettings денежные параметры платформы.
type LedgerSettings struct {
	CommissionPercent    decimal.Decimal
	WithdrawalFeePercent decimal.Decimal
}

// LedgerService отражает денежный эффект платежей и выводов в кошельках.
type LedgerService struct {
	ledger   LedgerRepository
	wallets  WalletRepository
	settings LedgerSettings
	metrics  *metrics.Collector
	now      func() time.Time
}

func NewLedgerService(ledger LedgerRepository, wallets WalletRepository, settings LedgerSettings, collector *metrics.Collector) *LedgerService {
	return &LedgerService{
		ledger:   ledger,
		wallets:  wallets,
		settings: settings,
		metrics:  collector,
		now:      time.Now,
	}
}

// WithdrawalCommand заявка на вывод от пользователя.
type WithdrawalCommand struct {
	UserID        uuid.UUID
	Amount        decimal.Decimal
	PaymentMethod string
	FeeAmount     *decimal.Decimal
	NetAmount     *decimal.Decimal
}

// RecordCheckout проводит захваченный платёж: заказ, платёж клиента и заработок фрилансера.
func (s *LedgerService) RecordCheckout(ctx context.Context, intent *models.PaymentIntent, capture *payment.ProviderCapture) (*repository.CheckoutResult, error) {
	result, err := s.ledger.RecordCheckout(ctx, repository.CheckoutRecord{
		IntentID:      intent.ID,
		CaptureID:     capture.CaptureID,
		EarningAmount: valueobject.NetOfCommission(intent.Amount, s.settings.CommissionPercent),
		Now:           s.now(),
	})
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"intent_id":  intent.ID,
			"capture_id": capture.CaptureID,
			"provider":   intent.Provider,
			"error":      err,
		}).Error("ledger: не удалось провести платёж")
		return nil, translate(err)
	}
	return result, nil
}

// RecordEarning записывает pending заработок фрилансера по заказу.
func (s *LedgerService) RecordEarning(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, orderID, serviceID, clientID, freelanceID uuid.UUID) (*models.Transaction, error) {
	if err := checkLedgerAmount(amount); err != nil {
		return nil, err
	}
	earning, err := s.ledger.RecordEarning(ctx, repository.EarningRecord{
		WalletID:    walletID,
		Amount:      amount,
		OrderID:     orderID,
		ServiceID:   serviceID,
		ClientID:    clientID,
		FreelanceID: freelanceID,
	})
	return earning, translate(err)
}

// HoldOrderEarnings удерживает заработки заказа в pending_balance.
func (s *LedgerService) HoldOrderEarnings(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	held, err := s.ledger.HoldOrderEarnings(ctx, orderID)
	return held, translate(err)
}

// RecordWithdrawalRequest создаёт заявку на вывод и резервирует сумму.
// Если резерв не удалось сохранить, фиксируется заявка failed с примечанием.
func (s *LedgerService) RecordWithdrawalRequest(ctx context.Context, cmd WithdrawalCommand) (*models.WithdrawalRequest, error) {
	if err := checkLedgerAmount(cmd.Amount); err != nil {
		return nil, err
	}
	if _, ok := models.ValidPaymentMethods[cmd.PaymentMethod]; !ok {
		return nil, apperror.ErrInvalidPaymentMethod
	}

	request, err := s.ledger.CreateWithdrawal(ctx, repository.WithdrawalInput{
		UserID:        cmd.UserID,
		Amount:        cmd.Amount,
		PaymentMethod: cmd.PaymentMethod,
		ClientFee:     cmd.FeeAmount,
		ClientNet:     cmd.NetAmount,
		Now:           s.now(),
	})
	if err == nil {
		s.metrics.IncWithdrawal(cmd.PaymentMethod, "requested")
		return request, nil
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) || errors.Is(err, repository.ErrFeeMismatch) {
		s.metrics.IncWithdrawal(cmd.PaymentMethod, "rejected")
		return nil, translate(err)
	}

	s.metrics.IncWithdrawal(cmd.PaymentMethod, "failed")
	s.recordFailedWithdrawal(ctx, cmd, err)
	return nil, translate(err)
}

func (s *LedgerService) recordFailedWithdrawal(ctx context.Context, cmd WithdrawalCommand, cause error) {
	fee, net := valueobject.WithdrawalQuote(cmd.Amount, s.settings.WithdrawalFeePercent)
	fields := logrus.Fields{
		"user_id":        cmd.UserID,
		"amount":         cmd.Amount.String(),
		"payment_method": cmd.PaymentMethod,
		"error":          cause,
	}

	failed, err := s.ledger.RecordFailedWithdrawal(ctx, repository.FailedWithdrawal{
		UserID:        cmd.UserID,
		Amount:        cmd.Amount,
		FeeAmount:     fee,
		NetAmount:     net,
		PaymentMethod: cmd.PaymentMethod,
		Note:          "Не удалось зарезервировать средства: " + cause.Error(),
	})
	if err != nil {
		fields["record_error"] = err
		logger.Log.WithFields(fields).Error("ledger: не удалось сохранить неуспешную заявку на вывод")
		return
	}
	fields["withdrawal_id"] = failed.ID
	logger.Log.WithFields(fields).Warn("ledger: заявка на вывод отмечена как failed")
}

// ProcessWithdrawal завершает (completed) или отклоняет (failed) заявку.
func (s *LedgerService) ProcessWithdrawal(ctx context.Context, withdrawalID, adminID uuid.UUID, outcome string, note *string) (*models.WithdrawalRequest, error) {
	if outcome != models.WithdrawalStatusCompleted && outcome != models.WithdrawalStatusFailed {
		return nil, apperror.New(apperror.ErrCodeInvalidInput, "неизвестный результат обработки заявки")
	}
	request, err := s.ledger.ProcessWithdrawal(ctx, repository.WithdrawalDecision{
		ID:      withdrawalID,
		AdminID: adminID,
		Outcome: outcome,
		Note:    note,
		Now:     s.now(),
	})
	if err != nil {
		return nil, translate(err)
	}
	s.metrics.IncWithdrawal(request.PaymentMethod, outcome)
	return request, nil
}

// GetWallet возвращает кошелёк пользователя с последними транзакциями.
func (s *LedgerService) GetWallet(ctx context.Context, userID uuid.UUID) (*models.WalletOverview, error) {
	wallet, err := s.wallets.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	txs, err := s.wallets.ListTransactions(ctx, wallet.ID, recentTransactionsLimit, 0)
	if err != nil {
		return nil, translate(err)
	}
	return &models.WalletOverview{Wallet: wallet, Transactions: txs}, nil
}

func (s *LedgerService) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	limit, offset = normalizePage(limit, offset)
	wallet, err := s.wallets.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	txs, err := s.wallets.ListTransactions(ctx, wallet.ID, limit, offset)
	return txs, translate(err)
}

func (s *LedgerService) ListWithdrawals(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WithdrawalRequest, error) {
	limit, offset = normalizePage(limit, offset)
	items, err := s.wallets.ListWithdrawals(ctx, userID, limit, offset)
	return items, translate(err)
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// GetWithdrawal возвращает заявку владельца. Чужая заявка считается ненайденной.
func (s *LedgerService) GetWithdrawal(ctx context.Context, id, userID uuid.UUID) (*models.WithdrawalRequest, error) {
	request, err := s.wallets.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if request.UserID != userID {
		return nil, apperror.ErrWithdrawalNotFound
	}
	return request, nil
}

// checkLedgerAmount отсекает суммы, которые колонка NUMERIC(14,2) молча округлила бы.
func checkLedgerAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperror.ErrInvalidAmount
	}
	if !valueobject.FitsScale(amount, valueobject.LedgerScale) {
		return apperror.ErrAmountPrecision
	}
	return nil
}
