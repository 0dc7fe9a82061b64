package common

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-payments/internal/http/middleware"
	"github.com/ignatzorin/freelance-payments/internal/service"
)

// ErrUserNotFound в контексте нет пользователя: запрос анонимный.
var ErrUserNotFound = errors.New("пользователь не найден в контексте")

func contextValue[T any](c *gin.Context, key string) (T, bool) {
	var zero T
	raw, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	return v, ok
}

// CurrentUserID пользователь, положенный в контекст AuthMiddleware.
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	userID, ok := contextValue[uuid.UUID](c, middleware.ContextUserIDKey)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, ErrUserNotFound
	}
	return userID, nil
}

// OptionalUserID возвращает uuid.Nil для анонимного запроса.
func OptionalUserID(c *gin.Context) uuid.UUID {
	userID, _ := CurrentUserID(c)
	return userID
}

// CurrentViewer пользователь с ролью для проверок доступа в сервисах.
func CurrentViewer(c *gin.Context) (service.Viewer, error) {
	userID, err := CurrentUserID(c)
	if err != nil {
		return service.Viewer{}, err
	}
	role, _ := contextValue[string](c, middleware.ContextRoleKey)
	return service.Viewer{UserID: userID, Role: role}, nil
}
