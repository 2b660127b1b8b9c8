package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	utils "github.com/fathima-sithara/media-service/internal/utis"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

var errRateLimited = &utils.AppError{Kind: utils.ErrRateLimited, Message: "Rate limit exceeded"}

// RedisRateLimiter is a fixed-window counter shared by every instance
// through Redis.
type RedisRateLimiter struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewRedisRateLimiter(rdb *redis.Client, prefix string, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{rdb: rdb, prefix: prefix, limit: limit, window: window}
}

// Allow counts one hit for key and reports whether it fits the window,
// plus the time until the window resets.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	redisKey := fmt.Sprintf("%s:%s", r.prefix, key)
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, redisKey)
		ttl = p.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("rate limiter: %w", err)
	}
	reset := ttl.Val()
	if reset < 0 {
		// first hit of a new window
		if err := r.rdb.Expire(ctx, redisKey, r.window).Err(); err != nil {
			return false, 0, fmt.Errorf("rate limiter: %w", err)
		}
		reset = r.window
	}
	return incr.Val() <= int64(r.limit), reset, nil
}

func (r *RedisRateLimiter) Handler(keyFunc func(c *fiber.Ctx) string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ok, reset, err := r.Allow(c.UserContext(), keyFunc(c))
		if err != nil {
			return err
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(r.limit))
		if !ok {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(reset.Round(time.Second)/time.Second)))
			return errRateLimited
		}
		return c.Next()
	}
}

// ByUserOrIP keys on the authenticated user, falling back to the client IP.
func ByUserOrIP(c *fiber.Ctx) string {
	if uid := UserID(c); uid != "" {
		return "user:" + uid
	}
	return "ip:" + getIP(c)
}
