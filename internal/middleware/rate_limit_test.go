package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_PerKeyBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 2)

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"), "burst exhausted")

	assert.True(t, rl.Allow("b"), "keys do not share buckets")
	assert.Equal(t, 2, rl.Size())

	rl.Cleanup()
	assert.Equal(t, 2, rl.Size(), "recently used limiters are kept")
}

func TestPerUserRateLimit(t *testing.T) {
	router := setupTestRouter()
	rl := NewRateLimiter(1, 1)

	alice := UserContext{UserID: uuid.New(), Role: "USER"}
	bob := UserContext{UserID: uuid.New(), Role: "USER"}

	router.POST("/book", func(c *gin.Context) {
		if c.GetHeader("X-Test-User") == "bob" {
			c.Set(UserContextKey, bob)
		} else {
			c.Set(UserContextKey, alice)
		}
		c.Next()
	}, PerUserRateLimit(rl, testLogger()), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	send := func(user string) int {
		req := httptest.NewRequest("POST", "/book", nil)
		req.Header.Set("X-Test-User", user)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusCreated, send("alice"))
	assert.Equal(t, http.StatusTooManyRequests, send("alice"))
	assert.Equal(t, http.StatusCreated, send("bob"))
}

func TestPerIPRateLimit(t *testing.T) {
	router := setupTestRouter()
	router.POST("/login", PerIPRateLimit(NewRateLimiter(1, 1), testLogger()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/login", nil)
		req.Header.Set("X-Real-IP", ip)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.7").Code)
	w := send("203.0.113.7")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
	assert.Equal(t, http.StatusOK, send("198.51.100.4").Code)
}

func TestRequestTimeout(t *testing.T) {
	router := setupTestRouter()
	router.GET("/slow", RequestTimeout(20*time.Millisecond), func(c *gin.Context) {
		select {
		case <-c.Request.Context().Done():
			if errors.Is(c.Request.Context().Err(), context.DeadlineExceeded) {
				c.Status(http.StatusServiceUnavailable)
				return
			}
			c.Status(http.StatusInternalServerError)
		case <-time.After(time.Second):
			c.Status(http.StatusOK)
		}
	})
	router.GET("/unbounded", RequestTimeout(0), func(c *gin.Context) {
		_, hasDeadline := c.Request.Context().Deadline()
		assert.False(t, hasDeadline)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/slow", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/unbounded", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
