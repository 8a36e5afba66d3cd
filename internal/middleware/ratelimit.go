package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"projectboard/internal/cache"
)

// RateLimiter throttles requests per client IP with a token bucket.
// Buckets idle for longer than idle are forgotten.
type RateLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration

	mu      sync.Mutex
	clients *cache.SimpleCache[string, *rate.Limiter]
}

// NewRateLimiter allows perMinute requests per client with bursts of burst.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		idle:    10 * time.Minute,
		clients: cache.NewSimpleCache[string, *rate.Limiter](cache.Options{}),
	}
}

func (l *RateLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.clients.Get(key)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
	}
	l.clients.Set(key, lim, l.idle)
	return lim
}

// Allow reports whether key may make a request now.
func (l *RateLimiter) Allow(key string) bool {
	return l.limiter(key).Allow()
}

// PurgeExpired forgets idle clients.
func (l *RateLimiter) PurgeExpired() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clients.PurgeExpired()
}

// Middleware rejects throttled requests with 429.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	retry := "60"
	if l.limit > 0 {
		retry = strconv.Itoa(int(1/float64(l.limit)) + 1)
	}
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.Header("Retry-After", retry)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please try again later"})
			return
		}
		c.Next()
	}
}
