package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/freelance-payments/internal/cache"
	"github.com/ignatzorin/freelance-payments/internal/idempotency"
)

type idempotencyFixture struct {
	router *gin.Engine
	calls  int
	status int
	panics bool
}

func newIdempotencyFixture(userID uuid.UUID) *idempotencyFixture {
	f := &idempotencyFixture{status: http.StatusCreated}
	store := idempotency.NewMemoryStore(cache.New(time.Hour, nil))

	f.router = gin.New()
	f.router.Use(gin.Recovery())
	f.router.Use(func(c *gin.Context) {
		if userID != uuid.Nil {
			c.Set(ContextUserIDKey, userID)
		}
		c.Next()
	})
	f.router.POST("/wallet/withdraw", Idempotency(store, time.Hour), func(c *gin.Context) {
		f.calls++
		if f.panics {
			panic("withdraw: обрыв")
		}
		c.JSON(f.status, gin.H{"call": f.calls})
	})
	return f
}

func (f *idempotencyFixture) post(key, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, "/wallet/withdraw", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	f := newIdempotencyFixture(uuid.New())

	first := f.post("k1", `{"amount":100}`)
	second := f.post("k1", `{"amount":100}`)

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(IdempotencyReplayedHeader))
	assert.Equal(t, 1, f.calls)
}

func TestIdempotency_DifferentBodyConflicts(t *testing.T) {
	f := newIdempotencyFixture(uuid.New())

	f.post("k1", `{"amount":100}`)
	w := f.post("k1", `{"amount":200}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "CONFLICT")
	assert.Equal(t, 1, f.calls)
}

func TestIdempotency_WithoutHeaderPassesThrough(t *testing.T) {
	f := newIdempotencyFixture(uuid.New())

	f.post("", `{"amount":100}`)
	f.post("", `{"amount":100}`)

	assert.Equal(t, 2, f.calls)
}

func TestIdempotency_ServerErrorIsNotStored(t *testing.T) {
	f := newIdempotencyFixture(uuid.New())
	f.status = http.StatusInternalServerError

	f.post("k1", `{"amount":100}`)
	f.status = http.StatusCreated
	w := f.post("k1", `{"amount":100}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 2, f.calls)
}

func TestIdempotency_KeysAreScopedByUser(t *testing.T) {
	store := idempotency.NewMemoryStore(cache.New(time.Hour, nil))
	calls := 0
	handler := func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"call": calls})
	}

	for _, userID := range []uuid.UUID{uuid.New(), uuid.New()} {
		id := userID
		r := gin.New()
		r.POST("/pay", func(c *gin.Context) { c.Set(ContextUserIDKey, id); c.Next() }, Idempotency(store, time.Hour), handler)
		req, _ := http.NewRequest(http.MethodPost, "/pay", strings.NewReader(`{}`))
		req.Header.Set(IdempotencyKeyHeader, "same")
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Equal(t, 2, calls)
}

func TestIdempotency_PanicReleasesKey(t *testing.T) {
	f := newIdempotencyFixture(uuid.New())
	f.panics = true

	first := f.post("k1", `{"amount":100}`)
	assert.Equal(t, http.StatusInternalServerError, first.Code)

	f.panics = false
	retry := f.post("k1", `{"amount":100}`)

	assert.Equal(t, http.StatusCreated, retry.Code)
	assert.Empty(t, retry.Header().Get(IdempotencyReplayedHeader))
	assert.Equal(t, 2, f.calls)
}
