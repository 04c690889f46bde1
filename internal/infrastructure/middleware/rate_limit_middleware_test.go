package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"astrelay/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rateLimitRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(NewHTTPRateLimitMiddleware(cfg))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func doGet(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = remoteAddr
	router.ServeHTTP(w, req)
	return w
}

func TestHTTPRateLimitMiddleware_DisabledPassesEverything(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = false

	router := rateLimitRouter(cfg)
	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, doGet(router, "10.0.0.1:1234").Code)
	}
}

func TestHTTPRateLimitMiddleware_LimitsPerIP(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 1
	cfg.RateLimiting.HTTP.Burst = 1
	cfg.RateLimiting.HTTP.MaxConcurrent = 0

	router := rateLimitRouter(cfg)

	require.Equal(t, http.StatusOK, doGet(router, "10.0.0.1:1234").Code)

	second := doGet(router, "10.0.0.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
}

func TestHTTPRateLimitMiddleware_IsolatesClients(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 1
	cfg.RateLimiting.HTTP.Burst = 1
	cfg.RateLimiting.HTTP.MaxConcurrent = 0

	router := rateLimitRouter(cfg)

	require.Equal(t, http.StatusOK, doGet(router, "10.0.0.1:1234").Code)
	require.Equal(t, http.StatusTooManyRequests, doGet(router, "10.0.0.1:1234").Code)

	// A different client has its own bucket.
	assert.Equal(t, http.StatusOK, doGet(router, "10.0.0.2:1234").Code)
}

func TestHTTPRateLimitMiddleware_ForwardedForWins(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 1
	cfg.RateLimiting.HTTP.Burst = 1
	cfg.RateLimiting.HTTP.MaxConcurrent = 0

	router := rateLimitRouter(cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// Same forwarded client through a different proxy address shares
	// the bucket.
	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/test", nil)
	req2.RemoteAddr = "10.0.0.9:5678"
	req2.Header.Set("X-Forwarded-For", "203.0.113.7")
	router.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
}
