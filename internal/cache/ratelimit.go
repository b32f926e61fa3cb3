package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rate limit key prefixes and TTLs. User buckets live a little longer
// than IP buckets because the per-user refill window is a full minute.
const (
	rateLimitUserPrefix = "ratelimit:user:"
	rateLimitIPPrefix   = "ratelimit:ip:"
	rateLimitUserTTL    = 120 * time.Second
	rateLimitIPTTL      = 60 * time.Second
)

// RateLimitResult reports the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// refillBucketScript refills and drains a token bucket atomically.
// State is a Redis hash of {tokens, updated}; refill is proportional to
// the seconds elapsed since the last call.
var refillBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])
	local burst = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local state = redis.call('HMGET', key, 'tokens', 'updated')
	local tokens = tonumber(state[1]) or burst
	local updated = tonumber(state[2]) or now

	tokens = math.min(burst, tokens + (now - updated) * rate)

	local allowed = 0
	local wait = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		wait = math.ceil((1 - tokens) / rate)
	end

	redis.call('HMSET', key, 'tokens', tokens, 'updated', now)
	redis.call('EXPIRE', key, ttl)

	return {allowed, wait, math.floor(tokens)}
`)

// CheckUserRateLimit drains one token from the authenticated user's
// bucket. ratePerMinute of zero disables the limit.
func (c *Cache) CheckUserRateLimit(ctx context.Context, userID string, ratePerMinute, burst int) (*RateLimitResult, error) {
	if ratePerMinute == 0 {
		return allowAll(burst), nil
	}

	key := rateLimitUserPrefix + userID
	perSecond := float64(ratePerMinute) / 60.0

	return c.drainBucket(ctx, key, perSecond, burst, rateLimitUserTTL)
}

// CheckIPRateLimit drains one token from the client IP's bucket. The IP
// is hashed before use so raw addresses never land in Redis.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	key := rateLimitIPPrefix + hashIP(ip)
	return c.drainBucket(ctx, key, float64(ratePerSecond), burst, rateLimitIPTTL)
}

// drainBucket runs the bucket script. On a Redis error it returns an
// allowing result along with the error so callers can fail open.
func (c *Cache) drainBucket(ctx context.Context, key string, rate float64, burst int, ttl time.Duration) (*RateLimitResult, error) {
	now := time.Now().Unix()

	values, err := refillBucketScript.Run(ctx, c.client,
		[]string{key},
		rate, burst, now, int(ttl.Seconds()),
	).Int64Slice()

	if err != nil {
		return allowAll(burst), err
	}

	retryAfter := time.Duration(values[1]) * time.Second

	return &RateLimitResult{
		Allowed:    values[0] == 1,
		Remaining:  values[2],
		ResetAt:    time.Now().Add(retryAfter),
		RetryAfter: retryAfter,
	}, nil
}

func allowAll(burst int) *RateLimitResult {
	return &RateLimitResult{
		Allowed:   true,
		Remaining: int64(burst),
		ResetAt:   time.Now().Add(time.Minute),
	}
}

// hashIP returns a hex SHA256 of the IP for use as a cache key.
func hashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:16])
}
