package ratelimit

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const fixedWindowScript = `
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "count", "start")
local count = tonumber(data[1])
local start = tonumber(data[2])

if count == nil or (now - start) >= window then
  count = 0
  start = now
end

local allowed = 0
if count < limit then
  allowed = 1
  count = count + 1
end

redis.call("HMSET", KEYS[1], "count", count, "start", start)
redis.call("PEXPIRE", KEYS[1], window)

return {allowed, count, start}
`

const fixedWindowStatusScript = `
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "count", "start")
local count = tonumber(data[1])
local start = tonumber(data[2])

if count == nil or (now - start) >= window then
  count = 0
  start = now
end

return {count, start}
`

// RedisLimiter shares the window across instances through a redis hash
// mutated by one Lua script, so check-and-increment stays atomic.
type RedisLimiter struct {
	client       *redis.Client
	checkScript  *redis.Script
	statusScript *redis.Script
	limit        int
	window       time.Duration
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	if client == nil {
		return nil
	}
	return &RedisLimiter{
		client:       client,
		checkScript:  redis.NewScript(fixedWindowScript),
		statusScript: redis.NewScript(fixedWindowStatusScript),
		limit:        limit,
		window:       window,
	}
}

func (l *RedisLimiter) Check(ctx context.Context, identifier string) (*Result, error) {
	if identifier == "" {
		return nil, ErrEmptyIdentifier
	}

	res, err := l.checkScript.Run(ctx, l.client,
		[]string{l.key(identifier)},
		l.limit,
		l.window.Milliseconds(),
	).Slice()
	if err != nil {
		return nil, err
	}
	if len(res) < 3 {
		return nil, errors.New("unexpected rate limit script response")
	}

	allowed := asInt(res[0]) == 1
	count := int(asInt(res[1]))
	start := time.UnixMilli(asInt(res[2])).UTC()

	return &Result{
		Allowed:   allowed,
		Limit:     l.limit,
		Remaining: max(0, l.limit-count),
		ResetAt:   start.Add(l.window),
	}, nil
}

func (l *RedisLimiter) Status(ctx context.Context, identifier string) (*Result, error) {
	if identifier == "" {
		return nil, ErrEmptyIdentifier
	}

	res, err := l.statusScript.Run(ctx, l.client,
		[]string{l.key(identifier)},
		l.limit,
		l.window.Milliseconds(),
	).Slice()
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, errors.New("unexpected rate limit script response")
	}

	count := int(asInt(res[0]))
	start := time.UnixMilli(asInt(res[1])).UTC()

	return &Result{
		Allowed:   count < l.limit,
		Limit:     l.limit,
		Remaining: max(0, l.limit-count),
		ResetAt:   start.Add(l.window),
	}, nil
}

func (l *RedisLimiter) key(identifier string) string {
	return "ratelimit:" + identifier
}

func asInt(v interface{}) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	default:
		return 0
	}
}
