package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/civicdata/consulta-api/internal/config"
)

func rateLimitedRouter(requestsPerMinute, burst int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(config.RateLimitConfig{
		RequestsPerMinute: requestsPerMinute,
		BurstSize:         burst,
		CleanupInterval:   time.Minute,
	})

	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func limitedGet(router *gin.Engine, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ip + ":1234"
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiterExhaustsBurst(t *testing.T) {
	router := rateLimitedRouter(1, 2)

	for i := 0; i < 2; i++ {
		w := limitedGet(router, "10.0.0.1")
		assert.Equal(t, http.StatusOK, w.Code, "request %d inside the burst", i)
	}

	w := limitedGet(router, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	router := rateLimitedRouter(1, 1)

	assert.Equal(t, http.StatusOK, limitedGet(router, "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, limitedGet(router, "10.0.0.1").Code)

	// A different client keeps its own bucket.
	assert.Equal(t, http.StatusOK, limitedGet(router, "10.0.0.2").Code)
}

func TestRateLimiterStats(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         5,
		CleanupInterval:   time.Minute,
	})

	rl.limiterFor("10.0.0.1")
	rl.limiterFor("10.0.0.2")

	stats := rl.GetStats()
	assert.Equal(t, 2, stats["active_clients"])
	assert.Equal(t, 5, stats["burst_size"])
}
