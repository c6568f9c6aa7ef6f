package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Rate limiting key pattern: ratelimit:{class}:{client_ip}
// Each key is a ZSET of request timestamps pruned to the window on every check.

// RouteClass partitions endpoints into admission-control buckets.
type RouteClass string

const (
	RouteAuth    RouteClass = "auth"    // strict cap
	RouteGeneral RouteClass = "general" // default API cap
	RouteExempt  RouteClass = "exempt"  // webhooks, health; no cap
)

// RateLimitConfig contains configuration for rate limiting
type RateLimitConfig struct {
	AuthLimit     int           // Max requests per window on auth routes
	AuthWindow    time.Duration // Auth rate limit window
	GeneralLimit  int           // Max requests per window on general API routes
	GeneralWindow time.Duration // General rate limit window
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		AuthLimit:     10,
		AuthWindow:    60 * time.Second,
		GeneralLimit:  60,
		GeneralWindow: 60 * time.Second,
	}
}

// RateLimiter handles rate limiting using Redis
type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed   bool          // Whether the request is admitted
	Remaining int           // Remaining requests in the window
	ResetIn   time.Duration // Time until the window frees a slot
	Limit     int           // The limit for this route class
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		client: client,
		config: config,
	}
}

// Allow checks and records one request from clientIP against the route class.
// RouteExempt is always admitted without touching Redis.
func (r *RateLimiter) Allow(ctx context.Context, clientIP string, class RouteClass) (*RateLimitResult, error) {
	limit, window := r.limitFor(class)
	if limit <= 0 {
		return &RateLimitResult{Allowed: true, Remaining: -1, Limit: 0}, nil
	}
	key := fmt.Sprintf("ratelimit:%s:%s", class, clientIP)
	return r.checkLimit(ctx, key, limit, window)
}

func (r *RateLimiter) limitFor(class RouteClass) (int, time.Duration) {
	switch class {
	case RouteAuth:
		return r.config.AuthLimit, r.config.AuthWindow
	case RouteGeneral:
		return r.config.GeneralLimit, r.config.GeneralWindow
	default:
		return 0, 0
	}
}

// checkLimit runs the sliding-window check. Prune, count and append happen in
// one Lua script so concurrent requests cannot undercount.
func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	script := goredis.NewScript(`
		local key = KEYS[1]
		local now = tonumber(ARGV[1])
		local window = tonumber(ARGV[2])
		local limit = tonumber(ARGV[3])
		local member = ARGV[4]

		redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
		local count = redis.call('ZCARD', key)

		if count < limit then
			redis.call('ZADD', key, now, member)
			redis.call('PEXPIRE', key, window)
			return {1, limit - count - 1, window}
		end

		local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
		local reset = window
		if oldest[2] then
			reset = tonumber(oldest[2]) + window - now
		end
		return {0, 0, reset}
	`)

	now := time.Now().UnixMilli()
	member := fmt.Sprintf("%d-%s", now, randomSuffix())

	result, err := script.Run(ctx, r.client, []string{key},
		now, window.Milliseconds(), limit, member).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}

	allowed := resultSlice[0].(int64) == 1
	remaining := int(resultSlice[1].(int64))
	resetIn := time.Duration(resultSlice[2].(int64)) * time.Millisecond

	return &RateLimitResult{
		Allowed:   allowed,
		Remaining: remaining,
		ResetIn:   resetIn,
		Limit:     limit,
	}, nil
}

// Reset clears the window for a specific class/client pair (admin operation).
func (r *RateLimiter) Reset(ctx context.Context, clientIP string, class RouteClass) error {
	key := fmt.Sprintf("ratelimit:%s:%s", class, clientIP)
	return r.client.Del(ctx, key).Err()
}
