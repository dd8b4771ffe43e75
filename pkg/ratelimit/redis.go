package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/richxcame/scamshield/pkg/config"
)

// slidingWindowScript enforces every window against one sorted set of
// request timestamps (score = unix millis).
//
// ARGV: now_ms, member, horizon_ms, then (size_ms, limit) per window.
// Returns {allowed, window_index (1-based, 0 when allowed), retry_after_ms, remaining}.
const slidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local member = ARGV[2]
local horizon = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - horizon)

local remaining = -1
local i = 4
local idx = 1
while i < #ARGV do
  local size = tonumber(ARGV[i])
  local limit = tonumber(ARGV[i + 1])
  local count = redis.call('ZCOUNT', key, '(' .. (now - size), '+inf')
  if count >= limit then
    local oldest = redis.call('ZRANGEBYSCORE', key, '(' .. (now - size), '+inf', 'WITHSCORES', 'LIMIT', 0, 1)
    local retry = size
    if oldest[2] then
      retry = tonumber(oldest[2]) + size - now
    end
    return {0, idx, retry, 0}
  end
  local left = limit - count - 1
  if remaining < 0 or left < remaining then
    remaining = left
  end
  i = i + 2
  idx = idx + 1
end

redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, horizon)
return {1, 0, 0, remaining}
`

// RedisLimiter shares sliding-window counters across processes through Redis.
type RedisLimiter struct {
	client  redis.UniversalClient
	script  *redis.Script
	cfg     config.RateLimitConfig
	windows []Window
	now     func() time.Time
	member  func() string
}

// NewRedisLimiter creates a limiter backed by client.
func NewRedisLimiter(client redis.UniversalClient, cfg config.RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{
		client:  client,
		script:  redis.NewScript(slidingWindowScript),
		cfg:     cfg,
		windows: Windows(cfg),
		now:     time.Now,
		member:  func() string { return uuid.NewString() },
	}
}

// WithNow overrides the clock, for tests.
func (l *RedisLimiter) WithNow(now func() time.Time) *RedisLimiter {
	l.now = now
	return l
}

func (l *RedisLimiter) keyFor(key string) string {
	return fmt.Sprintf("%s:%s", l.cfg.RedisPrefix, key)
}

func (l *RedisLimiter) args(now time.Time) []interface{} {
	args := []interface{}{now.UnixMilli(), l.member(), longest(l.windows).Milliseconds()}
	for _, w := range l.windows {
		args = append(args, w.Size.Milliseconds(), w.Limit)
	}
	return args
}

// Allow runs the sliding-window script for key.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	if !l.cfg.Enabled {
		return allowAll(key), nil
	}

	raw, err := l.script.Run(ctx, l.client, []string{l.keyFor(key)}, l.args(l.now())...).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit script: %w", err)
	}

	vals, ok := raw.([]interface{})
	if !ok || len(vals) < 4 {
		return Result{}, fmt.Errorf("rate limit script: unexpected reply %v", raw)
	}

	if toInt(vals[0]) == 1 {
		return Result{Allowed: true, Key: key, Remaining: int(toInt(vals[3]))}, nil
	}

	idx := int(toInt(vals[1])) - 1
	if idx < 0 || idx >= len(l.windows) {
		return Result{}, fmt.Errorf("rate limit script: window index %d out of range", idx+1)
	}
	w := l.windows[idx]
	rejectionsTotal.WithLabelValues(w.Name, "redis").Inc()
	return Result{
		Key:        key,
		Window:     w.Name,
		Reason:     w.Reason,
		RetryAfter: time.Duration(toInt(vals[2])) * time.Millisecond,
	}, nil
}
