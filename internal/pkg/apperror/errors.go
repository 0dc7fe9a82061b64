package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeAuthenticationRequired ErrorCode = "AUTHENTICATION_REQUIRED"
	ErrCodeInvalidInput           ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound               ErrorCode = "NOT_FOUND"
	ErrCodeNotOwner               ErrorCode = "NOT_OWNER"
	ErrCodeInsufficientBalance    ErrorCode = "INSUFFICIENT_BALANCE"
	ErrCodeBelowMinimum           ErrorCode = "BELOW_MINIMUM"
	ErrCodeNotDeliverable         ErrorCode = "NOT_DELIVERABLE"
	ErrCodeProvider               ErrorCode = "PROVIDER_ERROR"
	ErrCodePersistence            ErrorCode = "PERSISTENCE_ERROR"
	ErrCodeForbidden              ErrorCode = "FORBIDDEN"
	ErrCodeConflict               ErrorCode = "CONFLICT"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Details    interface{}
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду и сообщению, чтобы errors.Is работал с обёрнутыми копиями.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// WithStatus возвращает копию ошибки с другим HTTP статусом.
func (e *AppError) WithStatus(status int) *AppError {
	cp := *e
	cp.HTTPStatus = status
	return &cp
}

// WithDetails возвращает копию ошибки с дополнительными деталями для клиента.
func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeAuthenticationRequired:
		return http.StatusUnauthorized
	case ErrCodeNotFound, ErrCodeNotOwner:
		return http.StatusNotFound
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeInvalidInput, ErrCodeInsufficientBalance, ErrCodeBelowMinimum, ErrCodeNotDeliverable:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки приложения или INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

func IsNotOwner(err error) bool {
	return CodeOf(err) == ErrCodeNotOwner
}

func IsInvalidInput(err error) bool {
	return CodeOf(err) == ErrCodeInvalidInput
}

var (
	ErrAuthenticationRequired = New(ErrCodeAuthenticationRequired, "требуется авторизация")
	ErrForbidden              = New(ErrCodeForbidden, "недостаточно прав")
	ErrInvalidAmount          = New(ErrCodeInvalidInput, "сумма должна быть положительной")
	ErrAmountPrecision        = New(ErrCodeInvalidInput, "слишком много знаков после запятой для валюты")
	ErrInvalidPaymentMethod   = New(ErrCodeInvalidInput, "неподдерживаемый способ вывода")
	ErrOrderNotFound          = New(ErrCodeNotFound, "заказ не найден")
	ErrWalletNotFound         = New(ErrCodeNotFound, "кошелёк не найден")
	ErrWithdrawalNotFound     = New(ErrCodeNotFound, "заявка на вывод не найдена")
	ErrDisputeNotFound        = New(ErrCodeNotFound, "спор не найден")
	ErrPaymentNotFound        = New(ErrCodeNotFound, "платёж не найден")
	// ErrServiceNotFound на границе оплаты отдаётся как 400.
	ErrServiceNotFound     = New(ErrCodeNotFound, "услуга не найдена").WithStatus(http.StatusBadRequest)
	ErrNotOwner            = New(ErrCodeNotOwner, "заказ не найден или принадлежит другому пользователю")
	ErrNotDeliverable      = New(ErrCodeNotDeliverable, "заказ ещё не сдан исполнителем")
	ErrInsufficientBalance = New(ErrCodeInsufficientBalance, "недостаточно средств на балансе")
	ErrBelowMinimum        = New(ErrCodeBelowMinimum, "сумма меньше минимальной суммы вывода")
	ErrInvalidTransition   = New(ErrCodeConflict, "недопустимый переход статуса заказа")
	ErrCaptureFailed       = New(ErrCodeProvider, "платёж не был подтверждён провайдером")
	ErrProviderUnavailable = New(ErrCodeProvider, "платёжный провайдер недоступен")
	ErrPersistence         = New(ErrCodePersistence, "ошибка сохранения данных")
)
