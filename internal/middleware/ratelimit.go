// ratelimit.go implements per-client token-bucket rate limiting for the
// Gin router. Clients are keyed by authenticated principal, then API key,
// then client IP, so the public auth endpoints (which run before
// AuthMiddleware) always throttle by IP.
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platform-iam/platform-iam/internal/db/models"
)

// RateLimitConfig sets the refill rate, burst allowance, and how often
// idle buckets are swept from memory.
type RateLimitConfig struct {
	RequestsPerMinute int
	BurstSize         int
	CleanupInterval   time.Duration
}

// DefaultRateLimitConfig suits general authenticated API traffic.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 200,
		BurstSize:         50,
		CleanupInterval:   5 * time.Minute,
	}
}

// AuthRateLimitConfig returns stricter limits for credential-bearing
// endpoints: login, refresh, and password reset.
func AuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 10,
		BurstSize:         5,
		CleanupInterval:   5 * time.Minute,
	}
}

// bucket is one client's token balance. Tokens refill lazily on access,
// so an idle bucket costs nothing until the sweeper reclaims it.
type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// refill credits tokens for the time elapsed since the bucket was last
// touched, capped at the burst size.
func (b *bucket) refill(now time.Time, cfg RateLimitConfig) {
	perSecond := float64(cfg.RequestsPerMinute) / 60.0
	b.tokens = min(float64(cfg.BurstSize), b.tokens+now.Sub(b.lastSeen).Seconds()*perSecond)
	b.lastSeen = now
}

// RateLimiter holds one token bucket per client key. It is safe for
// concurrent use by all router goroutines.
type RateLimiter struct {
	config  RateLimitConfig
	mu      sync.Mutex
	buckets map[string]*bucket
	stopCh  chan struct{}
}

// NewRateLimiter builds a limiter and starts its idle-bucket sweeper.
// Call Stop when the router shuts down.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		stopCh:  make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// sweep drops buckets that have been idle long enough to be full again,
// keeping the map bounded by the set of recently active clients.
func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-10 * time.Minute)
			rl.mu.Lock()
			for key, b := range rl.buckets {
				if b.lastSeen.Before(cutoff) {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop terminates the sweeper goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// Allow spends one token from the key's bucket, reporting whether the
// request may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[key]
	if !ok {
		rl.buckets[key] = &bucket{
			tokens:   float64(rl.config.BurstSize) - 1,
			lastSeen: now,
		}
		return true
	}

	b.refill(now, rl.config)
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// RemainingTokens reports the key's current token balance without
// spending anything.
func (rl *RateLimiter) RemainingTokens(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		return rl.config.BurstSize
	}
	b.refill(time.Now(), rl.config)
	return int(b.tokens)
}

// RateLimitMiddleware throttles requests through the given limiter,
// attaching X-RateLimit headers on allowed responses and a Retry-After
// hint on 429s.
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := getRateLimitKey(c)

		if !limiter.Allow(key) {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": 60,
			})
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.config.RequestsPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.RemainingTokens(key)))

		c.Next()
	}
}

// getRateLimitKey determines the key to use for rate limiting.
// Priority: principal > API key > IP address. Auth endpoints run this
// middleware before AuthMiddleware, so they always key by IP.
func getRateLimitKey(c *gin.Context) string {
	if principalID, exists := c.Get(CtxPrincipalID); exists {
		if id, ok := principalID.(string); ok && id != "" {
			return "principal:" + id
		}
	}

	if apiKeyVal, exists := c.Get(CtxAPIKey); exists {
		if key, ok := apiKeyVal.(*models.APIKey); ok {
			return "apikey:" + key.ID
		}
	}

	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
