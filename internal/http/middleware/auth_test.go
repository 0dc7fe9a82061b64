package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type stubTokens struct {
	userID uuid.UUID
	role   string
}

func (s stubTokens) ParseAccess(token string) (uuid.UUID, string, error) {
	if token != "valid" {
		return uuid.Nil, "", errors.New("bad token")
	}
	return s.userID, s.role, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func whoAmI(c *gin.Context) {
	raw, ok := c.Get(ContextUserIDKey)
	if !ok {
		c.String(http.StatusOK, "anon")
		return
	}
	c.String(http.StatusOK, raw.(uuid.UUID).String())
}

func request(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	userID := uuid.New()
	r := gin.New()
	r.GET("/me", AuthMiddleware(stubTokens{userID: userID, role: "client"}), whoAmI)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"invalid token", "forged", http.StatusUnauthorized},
		{"valid token", "valid", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := request(r, http.MethodGet, "/me", tt.token)
			assert.Equal(t, tt.status, w.Code)
		})
	}

	w := request(r, http.MethodGet, "/me", "valid")
	assert.Equal(t, userID.String(), w.Body.String())
}

func TestOptionalAuthMiddleware(t *testing.T) {
	userID := uuid.New()
	r := gin.New()
	r.GET("/me", OptionalAuthMiddleware(stubTokens{userID: userID, role: "client"}), whoAmI)

	w := request(r, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anon", w.Body.String())

	w = request(r, http.MethodGet, "/me", "forged")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = request(r, http.MethodGet, "/me", "valid")
	assert.Equal(t, userID.String(), w.Body.String())
}

func TestRequireRole(t *testing.T) {
	r := gin.New()
	admin := r.Group("/admin", AuthMiddleware(stubTokens{userID: uuid.New(), role: "client"}), RequireRole("admin"))
	admin.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := request(r, http.MethodGet, "/admin/ping", "valid")
	assert.Equal(t, http.StatusForbidden, w.Code)

	r2 := gin.New()
	admin2 := r2.Group("/admin", AuthMiddleware(stubTokens{userID: uuid.New(), role: "admin"}), RequireRole("admin"))
	admin2.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w = request(r2, http.MethodGet, "/admin/ping", "valid")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUUIDValidator(t *testing.T) {
	r := gin.New()
	r.GET("/orders/:id", UUIDValidator("id"), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusBadRequest, request(r, http.MethodGet, "/orders/123", "").Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/orders/"+uuid.NewString(), "").Code)
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://app.example.com"}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req, _ := http.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req, _ = http.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
