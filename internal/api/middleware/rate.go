package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// KeyFunc picks the bucket a request is charged to
type KeyFunc func(c *gin.Context) string

// ByClientIP charges each client address separately
func ByClientIP(c *gin.Context) string { return c.ClientIP() }

// RateLimitConfig shapes a token-bucket limiter per key
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
	Key               KeyFunc       // nil charges by client IP
	MaxKeys           int           // buckets tracked at once, least recent evicted first
	IdleTTL           time.Duration // bucket dropped after this long unused
}

// DefaultRateLimitConfig allows 100 rps with bursts of 200 per client
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             200,
		MaxKeys:           10000,
		IdleTTL:           10 * time.Minute,
	}
}

// RateLimit rejects requests over the key's budget with 429 and a
// Retry-After hint
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	def := DefaultRateLimitConfig()
	if cfg.Key == nil {
		cfg.Key = ByClientIP
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = def.MaxKeys
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = def.IdleTTL
	}
	buckets := expirable.NewLRU[string, *rate.Limiter](cfg.MaxKeys, nil, cfg.IdleTTL)

	return func(c *gin.Context) {
		key := cfg.Key(c)
		limiter, ok := buckets.Get(key)
		if !ok {
			limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
			buckets.Add(key, limiter)
		}

		now := time.Now()
		r := limiter.ReserveN(now, 1)
		if delay := r.DelayFrom(now); !r.OK() || delay > 0 {
			r.CancelAt(now)
			if r.OK() {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
