package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type RateLimitType string

const (
	RateLimitTypeDefault    RateLimitType = "default"
	RateLimitTypePublic     RateLimitType = "public"
	RateLimitTypeWebhook    RateLimitType = "webhook"
	RateLimitTypePurchase   RateLimitType = "purchase"
	RateLimitTypeWithdrawal RateLimitType = "withdrawal"
	RateLimitTypeAdmin      RateLimitType = "admin"
	RateLimitTypeHealth     RateLimitType = "health"
)

type Config struct {
	Enabled            bool          `json:"enabled"`
	WindowDuration     time.Duration `json:"window_duration"`
	DefaultRequests    int           `json:"default_requests"`
	PublicRequests     int           `json:"public_requests"`
	WebhookRequests    int           `json:"webhook_requests"`
	PurchaseRequests   int           `json:"purchase_requests"`
	WithdrawalRequests int           `json:"withdrawal_requests"`
	AdminRequests      int           `json:"admin_requests"`
	HealthRequests     int           `json:"health_requests"`
	WhitelistedIPs     []string      `json:"whitelisted_ips"`
}

// Result represents rate limit check result
type Result struct {
	Allowed   bool  `json:"allowed"`
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetTime int64 `json:"reset_time"`
}

// Sliding window over a sorted set; one member per request
const luaSlidingWindow = `
local key = KEYS[1]
local window_start = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local window_seconds = tonumber(ARGV[4])
local member = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

local current_count = redis.call('ZCARD', key)

if current_count >= limit then
	redis.call('EXPIRE', key, window_seconds)
	return {current_count + 1, 0}
end

redis.call('ZADD', key, now, member)
redis.call('EXPIRE', key, window_seconds)

return {current_count + 1, limit - current_count - 1}
`

// RateLimiter handles rate limiting using Redis
type RateLimiter struct {
	client *redis.Client
	config *Config
	now    func() time.Time
}

func NewRateLimiter(client *redis.Client, config *Config) *RateLimiter {
	return &RateLimiter{
		client: client,
		config: config,
		now:    time.Now,
	}
}

// IsAllowed checks whether clientIP may issue another request of limitType
func (r *RateLimiter) IsAllowed(ctx context.Context, clientIP string, limitType RateLimitType) (*Result, error) {
	limit := r.getLimit(limitType)

	if !r.config.Enabled || r.isWhitelisted(clientIP) {
		return &Result{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit,
			ResetTime: r.now().Add(r.config.WindowDuration).Unix(),
		}, nil
	}

	key := fmt.Sprintf("boxoffice:ratelimit:%s:%s", clientIP, limitType)
	return r.checkLimit(ctx, key, limit)
}

func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int) (*Result, error) {
	now := r.now()
	windowStart := now.Add(-r.config.WindowDuration)

	result, err := r.client.Eval(ctx, luaSlidingWindow, []string{key},
		windowStart.UnixMilli(),
		now.UnixMilli(),
		limit,
		int(r.config.WindowDuration.Seconds()),
		strconv.FormatInt(now.UnixNano(), 10)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis eval failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	currentCount, _ := values[0].(int64)
	remaining, _ := values[1].(int64)

	return &Result{
		Allowed:   int(currentCount) <= limit,
		Limit:     limit,
		Remaining: int(remaining),
		ResetTime: now.Add(r.config.WindowDuration).Unix(),
	}, nil
}

func (r *RateLimiter) getLimit(limitType RateLimitType) int {
	switch limitType {
	case RateLimitTypePublic:
		return r.config.PublicRequests
	case RateLimitTypeWebhook:
		return r.config.WebhookRequests
	case RateLimitTypePurchase:
		return r.config.PurchaseRequests
	case RateLimitTypeWithdrawal:
		return r.config.WithdrawalRequests
	case RateLimitTypeAdmin:
		return r.config.AdminRequests
	case RateLimitTypeHealth:
		return r.config.HealthRequests
	default:
		return r.config.DefaultRequests
	}
}

func (r *RateLimiter) isWhitelisted(ip string) bool {
	for _, whitelistedIP := range r.config.WhitelistedIPs {
		if ip == whitelistedIP {
			return true
		}
	}
	return false
}
