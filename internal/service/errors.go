package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-payments/internal/repository"
)

var (
	errWithdrawalProcessed = apperror.New(apperror.ErrCodeConflict, "заявка на вывод уже обработана")
	errFeeMismatch         = apperror.New(apperror.ErrCodeInvalidInput, "комиссия или сумма к выплате не совпадают с расчётом")
	errDisputeExists       = apperror.New(apperror.ErrCodeConflict, "по заказу уже открыт спор")
	errDisputeClosed       = apperror.New(apperror.ErrCodeConflict, "спор уже закрыт")
	errNotificationMissing = apperror.New(apperror.ErrCodeNotFound, "уведомление не найдено")
)

// translate переводит ошибки репозиториев в ошибки приложения.
// Необработанные ошибки хранилища становятся PERSISTENCE_ERROR.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		return apperror.ErrOrderNotFound
	case errors.Is(err, repository.ErrWalletNotFound):
		return apperror.ErrWalletNotFound
	case errors.Is(err, repository.ErrWithdrawalNotFound):
		return apperror.ErrWithdrawalNotFound
	case errors.Is(err, repository.ErrDisputeNotFound):
		return apperror.ErrDisputeNotFound
	case errors.Is(err, repository.ErrPaymentIntentNotFound):
		return apperror.ErrPaymentNotFound
	case errors.Is(err, repository.ErrServiceNotFound):
		return apperror.ErrServiceNotFound
	case errors.Is(err, repository.ErrNotificationNotFound):
		return errNotificationMissing
	case errors.Is(err, repository.ErrWithdrawalNotPending):
		return errWithdrawalProcessed
	case errors.Is(err, repository.ErrFeeMismatch):
		return errFeeMismatch
	case errors.Is(err, repository.ErrDisputeExists):
		return errDisputeExists
	case errors.Is(err, repository.ErrDisputeClosed):
		return errDisputeClosed
	case errors.Is(err, repository.ErrOrderNotInDispute):
		return apperror.ErrInvalidTransition
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperror.Wrap(err, apperror.ErrCodeInternal, "запрос прерван").WithStatus(http.StatusServiceUnavailable)
	default:
		return apperror.Wrap(err, apperror.ErrCodePersistence, "ошибка сохранения данных")
	}
}
