// Package ratelimit implements a Redis sliding-window limiter shared by
// every API instance.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"portal/internal/logging"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// KEYS[1]=key, ARGV[1]=now ms, ARGV[2]=window start ms, ARGV[3]=window ms,
// ARGV[4]=member, ARGV[5]=limit. Returns the count including this hit, or
// -1 when the window is already full.
const luaSlidingWindow = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowMs = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)

local count = redis.call('ZCARD', key)
if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('PEXPIRE', key, windowMs)
  return count + 1
else
  return -1
end
`

type Limiter struct {
	rdb    *rd.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

func New(rdb *rd.Client, limit int, window time.Duration) *Limiter {
	return &Limiter{rdb: rdb, limit: limit, window: window, now: time.Now}
}

// Allow records a hit for key and reports whether it fits in the window.
// Redis failures are returned to the caller together with allowed=true.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.now()
	nowMs := now.UnixMilli()
	windowMs := l.window.Milliseconds()
	member := fmt.Sprintf("%d-%s", nowMs, uuid.NewString())

	res, err := l.rdb.Eval(ctx, luaSlidingWindow, []string{key},
		nowMs, nowMs-windowMs, windowMs, member, l.limit).Int()
	if err != nil {
		return true, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return res >= 0, nil
}

// Middleware limits requests per key. Requests pass when Redis is down.
func (l *Limiter) Middleware(keyFunc func(c *fiber.Ctx) string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		allowed, err := l.Allow(c.UserContext(), keyFunc(c))
		if err != nil {
			logging.FromFiber(c).Warn("rate limiter unavailable", zap.Error(err))
		}
		if !allowed {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
				"code":  "RATE_LIMITED",
			})
		}
		return c.Next()
	}
}
