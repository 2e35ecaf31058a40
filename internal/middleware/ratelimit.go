package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/banana-studio/banana-api/internal/pkg/logger"
	"github.com/banana-studio/banana-api/internal/pkg/response"
)

// RateLimiter counts requests per client IP in fixed Redis windows.
type RateLimiter struct {
	redis  *redis.Client
	scope  string
	limit  int
	window time.Duration
}

// NewRateLimiter creates a limiter; a nil client disables limiting.
func NewRateLimiter(redisClient *redis.Client, scope string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{redis: redisClient, scope: scope, limit: limit, window: window}
}

// Handler rejects clients that exceed the limit with 429.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.redis == nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		key := fmt.Sprintf("ratelimit:%s:%s", rl.scope, getClientIP(r))

		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			// Fail open
			logger.FromContext(ctx).Warn().Err(err).Str("scope", rl.scope).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}
		if count == 1 {
			rl.redis.Expire(ctx, key, rl.window)
		}
		if count > int64(rl.limit) {
			response.TooManyRequests(w, "Too many requests, please try again later")
			return
		}

		next.ServeHTTP(w, r)
	})
}
