package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthTimeout = 3 * time.Second

// Pinger проверка доступности зависимости (БД, Redis).
type Pinger interface {
	PingContext(ctx context.Context) error
}

type PingerFunc func(ctx context.Context) error

func (f PingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

type dependency struct {
	name   string
	pinger Pinger
}

// HealthHandler отвечает на GET /health состоянием БД и, если подключён, Redis.
type HealthHandler struct {
	deps []dependency
}

// NewHealthHandler создаёт health handler. redis может быть nil.
func NewHealthHandler(db Pinger, redis Pinger) *HealthHandler {
	deps := []dependency{{name: "database", pinger: db}}
	if redis != nil {
		deps = append(deps, dependency{name: "redis", pinger: redis})
	}
	return &HealthHandler{deps: deps}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{Status: "healthy", Timestamp: time.Now().UTC(), Checks: make(map[string]string, len(h.deps))}
	code := http.StatusOK
	for _, dep := range h.deps {
		if err := dep.pinger.PingContext(ctx); err != nil {
			resp.Checks[dep.name] = "unhealthy: " + err.Error()
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[dep.name] = "healthy"
	}

	c.JSON(code, resp)
}
