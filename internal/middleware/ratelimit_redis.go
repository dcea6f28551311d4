package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"

	"github.com/platform-iam/platform-iam/internal/config"
)

// RedisRateLimiter enforces auth-endpoint rate limits through Redis GCRA so
// that limits hold across multiple server instances. The in-process
// RateLimiter only protects a single instance.
type RedisRateLimiter struct {
	client  *redis.Client
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
}

// NewRedisRateLimiter connects to Redis at the given URL. Returns an error if
// the URL cannot be parsed; connection failures surface per-request instead.
func NewRedisRateLimiter(redisURL string, requestsPerMinute, burst int) (*RedisRateLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	return &RedisRateLimiter{
		client:  client,
		limiter: redis_rate.NewLimiter(client),
		limit: redis_rate.Limit{
			Rate:   requestsPerMinute,
			Burst:  burst,
			Period: time.Minute,
		},
	}, nil
}

// Close releases the underlying Redis connection pool.
func (rl *RedisRateLimiter) Close() error {
	return rl.client.Close()
}

// Middleware returns a Gin handler that checks the shared limit before
// passing the request on. Redis outages fail open: auth endpoints must not
// go dark because the rate-limit store is unreachable, and the local
// per-instance limiter still applies.
func (rl *RedisRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ratelimit:auth:" + getRateLimitKey(c)

		res, err := rl.limiter.Allow(c.Request.Context(), key, rl.limit)
		if err != nil {
			slog.Warn("redis rate limiter unavailable, allowing request", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit.Rate))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if res.Allowed == 0 {
			retryAfter := int(res.RetryAfter.Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}

// AuthRateLimitMiddleware builds the middleware chain for credential-bearing
// endpoints from config. With a Redis URL configured it layers the shared
// GCRA limiter over the local token bucket; without one the local bucket
// stands alone.
func AuthRateLimitMiddleware(cfg *config.RateLimitingConfig) ([]gin.HandlerFunc, func(), error) {
	local := AuthRateLimitConfig()
	if cfg.AuthRequestsPerMinute > 0 {
		local.RequestsPerMinute = cfg.AuthRequestsPerMinute
	}
	if cfg.AuthBurst > 0 {
		local.BurstSize = cfg.AuthBurst
	}
	limiter := NewRateLimiter(local)

	handlers := []gin.HandlerFunc{RateLimitMiddleware(limiter)}
	cleanup := limiter.Stop

	if cfg.RedisURL != "" {
		shared, err := NewRedisRateLimiter(cfg.RedisURL, local.RequestsPerMinute, local.BurstSize)
		if err != nil {
			limiter.Stop()
			return nil, nil, err
		}
		handlers = append(handlers, shared.Middleware())
		cleanup = func() {
			limiter.Stop()
			_ = shared.Close()
		}
	}

	return handlers, cleanup, nil
}
