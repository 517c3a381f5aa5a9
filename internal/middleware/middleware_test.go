package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(auth *service.AuthService, guards ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{RequireJWT(auth)}, guards...)
	handlers = append(handlers, func(c *gin.Context) {
		c.String(http.StatusOK, principalString(GetPrincipal(c)))
	})
	r.GET("/x", handlers...)
	return r
}

func TestRequireJWT(t *testing.T) {
	auth := service.NewAuthService("secret", time.Hour)
	r := newEngine(auth)

	token, err := auth.IssueToken(&model.Principal{UserID: 7, Role: model.RoleStudent, Group: "XII"})
	require.NoError(t, err)

	t.Run("header", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "student:7", w.Body.String())
	})

	t.Run("query", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x?token="+token, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "TOKEN_REQUIRED")
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := service.NewAuthService("other", time.Hour).IssueToken(&model.Principal{UserID: 7, Role: model.RoleStudent})
		require.NoError(t, err)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x?token="+other, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "TOKEN_INVALID")
	})
}

func TestRequireRole(t *testing.T) {
	auth := service.NewAuthService("secret", time.Hour)
	r := newEngine(auth, RequireStaff())

	studentTok, err := auth.IssueToken(&model.Principal{UserID: 1, Role: model.RoleStudent})
	require.NoError(t, err)
	proctorTok, err := auth.IssueToken(&model.Principal{UserID: 2, Role: model.RoleProctor})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x?token="+studentTok, nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "STAFF_ACCESS_ONLY")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x?token="+proctorTok, nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter_RefillsPerInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 2, time.Minute)
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("student:1"))
	assert.True(t, rl.allow("student:1"))
	assert.False(t, rl.allow("student:1"))
	assert.True(t, rl.allow("student:2"), "buckets are per caller")

	now = now.Add(time.Minute)
	assert.True(t, rl.allow("student:1"))
}
