package service

import (
	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-payments/internal/models"
)

// Viewer пользователь, от имени которого выполняется запрос.
type Viewer struct {
	UserID uuid.UUID
	Role   string
}

func (v Viewer) IsAdmin() bool {
	return v.Role == models.RoleAdmin
}
