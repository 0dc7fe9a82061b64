package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-payments/internal/dto"
	"github.com/ignatzorin/freelance-payments/internal/idempotency"
	"github.com/ignatzorin/freelance-payments/internal/logger"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
)

const (
	IdempotencyKeyHeader      = "Idempotency-Key"
	IdempotencyReplayedHeader = "Idempotent-Replayed"

	maxIdempotentBody = 1 << 20
	maxIdempotencyKey = 255

	recordPending = "pending"
	recordDone    = "done"
)

// storedResponse запись в хранилище по ключу идемпотентности.
type storedResponse struct {
	State       string `json:"state"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency повторяет сохранённый ответ для запроса с тем же Idempotency-Key.
// Ключ действует в рамках пользователя, метода и маршрута. Запросы без заголовка проходят как есть.
// Ответы 5xx не сохраняются, чтобы клиент мог повторить запрос.
func Idempotency(store idempotency.Store, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKey {
			abortIdempotency(c, http.StatusBadRequest, apperror.ErrCodeInvalidInput, "слишком длинный Idempotency-Key")
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIdempotentBody))
		if err != nil {
			abortIdempotency(c, http.StatusBadRequest, apperror.ErrCodeInvalidInput, "не удалось прочитать тело запроса")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		ctx := c.Request.Context()
		storeKey := store.Key(idempotencyScope(c), key)
		fingerprint := idempotency.Fingerprint(body)
		log := logger.Log.WithFields(logrus.Fields{"path": c.FullPath(), "idempotency_key": key})

		pending, _ := json.Marshal(storedResponse{State: recordPending, Fingerprint: fingerprint})
		acquired, err := store.SetNX(ctx, storeKey, string(pending), ttl)
		if err != nil {
			log.WithError(err).Warn("idempotency: хранилище недоступно, запрос выполняется без ключа")
			c.Next()
			return
		}
		if !acquired {
			replay(c, store, storeKey, fingerprint, log)
			return
		}

		writer := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		defer func() {
			// Паника уходит в Recovery, ключ снимается так же, как при 5xx.
			if rec := recover(); rec != nil {
				releaseKey(c, store, storeKey, log)
				panic(rec)
			}
		}()
		c.Next()

		status := writer.Status()
		if status >= http.StatusInternalServerError {
			releaseKey(c, store, storeKey, log)
			return
		}
		done, _ := json.Marshal(storedResponse{
			State:       recordDone,
			Fingerprint: fingerprint,
			Status:      status,
			ContentType: writer.Header().Get("Content-Type"),
			Body:        writer.body.Bytes(),
		})
		if err := store.Set(ctx, storeKey, string(done), ttl); err != nil {
			log.WithError(err).Warn("idempotency: не удалось сохранить ответ")
		}
	}
}

func releaseKey(c *gin.Context, store idempotency.Store, storeKey string, log *logrus.Entry) {
	if err := store.Del(context.WithoutCancel(c.Request.Context()), storeKey); err != nil {
		log.WithError(err).Warn("idempotency: не удалось снять ключ")
	}
}

func replay(c *gin.Context, store idempotency.Store, storeKey, fingerprint string, log *logrus.Entry) {
	raw, err := store.Get(c.Request.Context(), storeKey)
	if errors.Is(err, idempotency.ErrMiss) {
		// Ключ успел истечь между SetNX и Get.
		abortIdempotency(c, http.StatusConflict, apperror.ErrCodeConflict, "повторите запрос")
		return
	}
	if err != nil {
		log.WithError(err).Error("idempotency: чтение ключа")
		abortIdempotency(c, http.StatusInternalServerError, apperror.ErrCodeInternal, "внутренняя ошибка сервера")
		return
	}

	var rec storedResponse
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		log.WithError(err).Error("idempotency: повреждённая запись")
		abortIdempotency(c, http.StatusInternalServerError, apperror.ErrCodeInternal, "внутренняя ошибка сервера")
		return
	}

	switch {
	case rec.Fingerprint != fingerprint:
		abortIdempotency(c, http.StatusConflict, apperror.ErrCodeConflict, "Idempotency-Key уже использован с другим телом запроса")
	case rec.State != recordDone:
		abortIdempotency(c, http.StatusConflict, apperror.ErrCodeConflict, "запрос с этим Idempotency-Key ещё выполняется")
	default:
		log.Info("idempotency: повтор сохранённого ответа")
		c.Header(IdempotencyReplayedHeader, "true")
		contentType := rec.ContentType
		if contentType == "" {
			contentType = gin.MIMEJSON
		}
		c.Data(rec.Status, contentType, rec.Body)
		c.Abort()
	}
}

func idempotencyScope(c *gin.Context) string {
	subject := "anon"
	if raw, ok := c.Get(ContextUserIDKey); ok {
		if userID, ok := raw.(uuid.UUID); ok && userID != uuid.Nil {
			subject = userID.String()
		}
	}
	return "http:" + subject + ":" + c.Request.Method + ":" + c.FullPath()
}

func abortIdempotency(c *gin.Context, status int, code apperror.ErrorCode, message string) {
	c.AbortWithStatusJSON(status, dto.ErrorResponse{Error: message, Code: string(code)})
}
