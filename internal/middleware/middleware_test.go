package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(tokens *auth.TokenIssuer) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Logger(zap.NewNop().Sugar()))
	r.GET("/private", RequireAuth(tokens), func(c *gin.Context) {
		id, _ := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"user": id.Username, "uid": c.GetUint(UserIDKey)})
	})
	r.GET("/maybe", OptionalAuth(tokens), func(c *gin.Context) {
		_, ok := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok})
	})
	r.GET("/admin", RequireAuth(tokens), RequireRole(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	r := newRouter(tokens)

	userToken, err := tokens.Issue(models.User{ID: 1, Username: "ada", Role: models.RoleUser})
	require.NoError(t, err)
	adminToken, err := tokens.Issue(models.User{ID: 2, Username: "root", Role: models.RoleAdmin})
	require.NoError(t, err)

	tests := []struct {
		name       string
		path       string
		token      string
		wantStatus int
		wantBody   string
	}{
		{"missing token", "/private", "", http.StatusUnauthorized, "Access token required"},
		{"bad token", "/private", "nope", http.StatusUnauthorized, "Invalid or expired token"},
		{"valid token", "/private", userToken, http.StatusOK, `"uid":1`},
		{"optional anonymous", "/maybe", "", http.StatusOK, `"authenticated":false`},
		{"optional bad token", "/maybe", "nope", http.StatusOK, `"authenticated":false`},
		{"optional valid", "/maybe", userToken, http.StatusOK, `"authenticated":true`},
		{"admin as user", "/admin", userToken, http.StatusForbidden, "Insufficient permissions"},
		{"admin as admin", "/admin", adminToken, http.StatusNoContent, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.path, tt.token)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestRequestID(t *testing.T) {
	r := newRouter(auth.NewTokenIssuer("s", time.Hour))

	w := do(r, "/maybe", "")
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/maybe", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(2, time.Minute, zap.NewNop().Sugar()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(r, "/", "").Code)
	w := do(r, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))

	w = do(r, "/", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"success":false,"error":{"message":"Too many requests from this IP, please try again later."}}`, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:4321"
	other := httptest.NewRecorder()
	r.ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code, "limits are per client IP")
}

func TestRateLimiterDisabled(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(0, time.Minute, zap.NewNop().Sugar()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		w := do(r, "/", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}
