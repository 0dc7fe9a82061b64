package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-payments/internal/dto"
	"github.com/ignatzorin/freelance-payments/internal/logger"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-payments/internal/validation"
)

const (
	msgInternal = "внутренняя ошибка сервера"
	msgProvider = "ошибка платёжного провайдера"
)

// BindJSON привязывает тело запроса и сам отвечает 400 с перечнем полей при ошибке.
func BindJSON(c *gin.Context, req interface{}) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	resp := dto.ErrorResponse{
		Error: "некорректные данные запроса",
		Code:  string(apperror.ErrCodeInvalidInput),
	}
	if details := validation.FieldErrors(err); details != nil {
		resp.Details = details
	}
	c.JSON(http.StatusBadRequest, resp)
	return false
}

// RespondAppError отвечает по коду ошибки приложения.
// Для 5xx клиент получает общее сообщение, причина уходит в лог.
func RespondAppError(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.Wrap(err, apperror.ErrCodeInternal, msgInternal)
	}

	if appErr.HTTPStatus < http.StatusInternalServerError {
		c.JSON(appErr.HTTPStatus, dto.ErrorResponse{
			Error:   appErr.Message,
			Code:    string(appErr.Code),
			Details: appErr.Details,
		})
		return
	}

	logger.Log.WithFields(logrus.Fields{
		"code":   appErr.Code,
		"method": c.Request.Method,
		"path":   c.FullPath(),
		"error":  err,
	}).Error("http: ошибка обработки запроса")

	msg := msgInternal
	if appErr.Code == apperror.ErrCodeProvider {
		msg = msgProvider
	}
	c.JSON(appErr.HTTPStatus, dto.ErrorResponse{Error: msg, Code: string(appErr.Code)})
}

func RespondError(c *gin.Context, status int, message string) {
	c.JSON(status, dto.ErrorResponse{Error: message})
}

// RespondUnauthorized 401 с кодом AUTHENTICATION_REQUIRED. Пустое сообщение заменяется стандартным.
func RespondUnauthorized(c *gin.Context, message string) {
	if message == "" {
		message = apperror.ErrAuthenticationRequired.Message
	}
	c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
		Error: message,
		Code:  string(apperror.ErrCodeAuthenticationRequired),
	})
}

func RespondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error: message,
		Code:  string(apperror.ErrCodeInvalidInput),
	})
}
