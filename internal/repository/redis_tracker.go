package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Sliding-window log: drop entries older than the window, add this attempt,
// count what is left. One script call is one atomic unit per IP key.
var recordAttemptScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
redis.call('ZADD', key, now, ARGV[3])
redis.call('PEXPIRE', key, window)
return redis.call('ZCARD', key)
`)

var bindFingerprintScript = redis.NewScript(`
local key = KEYS[1]
local wallet = ARGV[1]
local limit = tonumber(ARGV[2])
if redis.call('SISMEMBER', key, wallet) == 1 then
	return 1
end
if redis.call('SCARD', key) >= limit then
	return 0
end
redis.call('SADD', key, wallet)
return 1
`)

// redisTracker implements AbuseTracker on redis with Lua scripts.
type redisTracker struct {
	client redis.Scripter
	prefix string
}

// NewRedisTracker creates a redis-backed abuse tracker. Keys are namespaced
// under prefix.
func NewRedisTracker(client redis.Scripter, prefix string) AbuseTracker {
	return &redisTracker{
		client: client,
		prefix: prefix,
	}
}

// RecordAttempt records an attempt and counts attempts in the trailing window
func (t *redisTracker) RecordAttempt(ctx context.Context, ip string, now time.Time, window time.Duration) (int, error) {
	key := t.prefix + "ip:" + ip
	member := strconv.FormatInt(now.UnixNano(), 10) + ":" + uuid.NewString()
	count, err := recordAttemptScript.Run(ctx, t.client, []string{key},
		now.UnixMilli(), window.Milliseconds(), member).Int()
	if err != nil {
		return 0, fmt.Errorf("record attempt: %w", err)
	}
	return count, nil
}

// BindFingerprint binds wallet to fingerprint within the fan-out limit
func (t *redisTracker) BindFingerprint(ctx context.Context, fingerprint, wallet string, maxWallets int) (bool, error) {
	key := t.prefix + "fp:" + fingerprint
	allowed, err := bindFingerprintScript.Run(ctx, t.client, []string{key}, wallet, maxWallets).Int()
	if err != nil {
		return false, fmt.Errorf("bind fingerprint: %w", err)
	}
	return allowed == 1, nil
}
