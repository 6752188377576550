package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"kutable/internal/pkg/response"
)

type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RedisLimiter is a fixed-window counter shared by every API instance.
type RedisLimiter struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(rdb redis.UniversalClient) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: "ratelimit:", now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	bucket := l.now().UnixNano() / int64(window)
	k := l.prefix + key + ":" + strconv.FormatInt(bucket, 10)

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("rate limit counter: %w", err)
	}
	return incr.Val() <= int64(limit), nil
}

// RateLimit throttles by route and client IP. A nil limiter disables it; store errors fail open.
func RateLimit(l Limiter, limit int, window time.Duration, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || limit <= 0 {
			c.Next()
			return
		}

		key := c.FullPath() + ":" + c.ClientIP()
		allowed, err := l.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable, allowing request")
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			response.Error(c, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, please slow down")
			c.Abort()
			return
		}
		c.Next()
	}
}
