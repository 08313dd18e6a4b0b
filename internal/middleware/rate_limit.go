package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/greenvalley/society-portal-backend/internal/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long an unused limiter is kept before Cleanup drops it
const limiterIdleTTL = time.Hour

// RateLimiter keeps one token bucket per key (user id or client IP)
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	mu       sync.Mutex
}

// NewRateLimiter allows perMinute requests per key with the given burst
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:    rate.Every(time.Minute / time.Duration(max(perMinute, 1))),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
	}
}

// Allow consumes a token for key
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[key] = limiter
	}
	rl.lastSeen[key] = time.Now()
	rl.mu.Unlock()

	return limiter.Allow()
}

// Cleanup removes limiters idle for longer than limiterIdleTTL
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, seen := range rl.lastSeen {
		if now.Sub(seen) > limiterIdleTTL {
			delete(rl.limiters, key)
			delete(rl.lastSeen, key)
		}
	}
}

// Size returns the number of tracked keys
func (rl *RateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// PerUserRateLimit throttles authenticated callers by user id, falling back
// to the client IP when no user context is present
func PerUserRateLimit(rl *RateLimiter, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + utils.GetRealIP(c)
		if userCtx, ok := GetUserContext(c); ok {
			key = "user:" + userCtx.UserID.String()
		}
		throttle(c, rl, key, logger)
	}
}

// PerIPRateLimit throttles callers by client IP
func PerIPRateLimit(rl *RateLimiter, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		throttle(c, rl, "ip:"+utils.GetRealIP(c), logger)
	}
}

func throttle(c *gin.Context, rl *RateLimiter, key string, logger *logrus.Logger) {
	if rl.Allow(key) {
		c.Next()
		return
	}

	logger.WithFields(logrus.Fields{
		"key":    key,
		"method": c.Request.Method,
		"path":   c.FullPath(),
	}).Warn("Rate limit exceeded")

	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":   "rate_limited",
		"message": "Too many requests. Please try again later.",
		"code":    "RATE_LIMITED",
	})
}
