package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tm-signals/signals_service/pkg/auth"
	"github.com/tm-signals/signals_service/pkg/logger"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestID)) })

	w := serve(router, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, w.Header().Get("X-Request-ID"), w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w = serve(router, req)
	assert.Equal(t, "req-123", w.Body.String())
}

func TestRecovery(t *testing.T) {
	log := logger.NewLogger(zaptest.NewLogger(t))
	router := gin.New()
	router.Use(RequestID(), Recovery(log))
	router.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := serve(router, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal server error")
}

func TestCORS(t *testing.T) {
	router := gin.New()
	router.Use(CORS([]string{"https://app.example.com"}))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := serve(router, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = serve(router, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(2))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	w := serve(router, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Rate limit exceeded")

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.9:1234"
	assert.Equal(t, http.StatusOK, serve(router, other).Code)
}

func TestAuthentication(t *testing.T) {
	tokens := auth.NewManager("secret", "signals_service", time.Hour)
	log := logger.NewLogger(zaptest.NewLogger(t))

	router := gin.New()
	router.Use(Authentication(tokens, log))
	router.GET("/me", func(c *gin.Context) { c.String(http.StatusOK, OwnerID(c)) })

	valid, err := tokens.Issue("42")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"missing header", "", http.StatusUnauthorized, "Authorization header required"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "Authorization header required"},
		{"bad token", "Bearer nope", http.StatusUnauthorized, "Invalid token"},
		{"valid", "Bearer " + valid, http.StatusOK, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := serve(router, req)
			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestRequireOwner(t *testing.T) {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextOwnerID, c.GetHeader("X-Owner"))
		c.Next()
	}, RequireOwner([]string{"admin"}))
	router.GET("/admin", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-Owner", "admin")
	assert.Equal(t, http.StatusOK, serve(router, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-Owner", "42")
	assert.Equal(t, http.StatusForbidden, serve(router, req).Code)

	assert.Equal(t, http.StatusForbidden, serve(router, httptest.NewRequest(http.MethodGet, "/admin", nil)).Code)
}

func TestResponseCache(t *testing.T) {
	rc, err := NewResponseCache(0)
	require.NoError(t, err)
	t.Cleanup(rc.Close)

	var calls int32
	router := gin.New()
	router.GET("/api/tokens", rc.Cache(time.Minute), func(c *gin.Context) {
		atomic.AddInt32(&calls, 1)
		c.JSON(http.StatusOK, gin.H{"symbol": c.Query("symbols")})
	})
	router.GET("/api/fail", rc.Cache(time.Minute), func(c *gin.Context) {
		atomic.AddInt32(&calls, 1)
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad"})
	})

	first := serve(router, httptest.NewRequest(http.MethodGet, "/api/tokens?symbols=BTC", nil))
	require.Equal(t, http.StatusOK, first.Code)

	assert.Eventually(t, func() bool {
		w := serve(router, httptest.NewRequest(http.MethodGet, "/api/tokens?symbols=BTC", nil))
		return w.Header().Get("X-Cache") == "HIT" && w.Body.String() == first.Body.String()
	}, time.Second, 10*time.Millisecond)

	before := atomic.LoadInt32(&calls)
	serve(router, httptest.NewRequest(http.MethodGet, "/api/tokens?symbols=ETH", nil))
	assert.Equal(t, before+1, atomic.LoadInt32(&calls))

	serve(router, httptest.NewRequest(http.MethodGet, "/api/fail", nil))
	serve(router, httptest.NewRequest(http.MethodGet, "/api/fail", nil))
	assert.Equal(t, before+3, atomic.LoadInt32(&calls))
}
