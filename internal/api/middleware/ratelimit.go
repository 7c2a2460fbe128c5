package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/civicdata/consulta-api/internal/config"
)

// RateLimiter throttles callers with one token bucket per client IP.
// Consultations are expensive on the portal side, so the bucket refills
// slowly while the burst absorbs a dashboard loading several sources at
// once.
type RateLimiter struct {
	config  config.RateLimitConfig
	mu      sync.Mutex
	clients map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  cfg,
		clients: make(map[string]*bucket),
	}

	go rl.evictIdle()

	return rl
}

// Middleware returns the rate limiting middleware
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := rl.limiterFor(c.ClientIP())

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", rl.config.RequestsPerMinute))

		if !limiter.Allow() {
			retryAfter := rl.refillInterval()

			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(retryAfter).Unix()))
			c.Header("Retry-After", fmt.Sprintf("%.0f", retryAfter.Seconds()))

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"message":     "demasiadas consultas, intente de nuevo más tarde",
				"retry_after": retryAfter.Seconds(),
				"timestamp":   time.Now(),
			})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", int(limiter.Tokens())))
		c.Next()
	}
}

// limiterFor gets or creates the bucket of one client and marks it as
// recently seen.
func (rl *RateLimiter) limiterFor(clientID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if b, ok := rl.clients[clientID]; ok {
		b.lastSeen = time.Now()
		return b.limiter
	}

	perSecond := rate.Limit(float64(rl.config.RequestsPerMinute) / 60.0)
	b := &bucket{
		limiter:  rate.NewLimiter(perSecond, rl.config.BurstSize),
		lastSeen: time.Now(),
	}
	rl.clients[clientID] = b

	return b.limiter
}

// refillInterval is the time until the next token becomes available.
func (rl *RateLimiter) refillInterval() time.Duration {
	perSecond := float64(rl.config.RequestsPerMinute) / 60.0
	if perSecond <= 0 {
		return time.Minute
	}
	return time.Duration(float64(time.Second) / perSecond)
}

// evictIdle drops buckets of clients not seen for two cleanup windows.
func (rl *RateLimiter) evictIdle() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-2 * rl.config.CleanupInterval)

		rl.mu.Lock()
		for clientID, b := range rl.clients {
			if b.lastSeen.Before(cutoff) {
				delete(rl.clients, clientID)
			}
		}
		rl.mu.Unlock()
	}
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]interface{}{
		"active_clients":      len(rl.clients),
		"requests_per_minute": rl.config.RequestsPerMinute,
		"burst_size":          rl.config.BurstSize,
		"cleanup_interval":    rl.config.CleanupInterval,
	}
}
