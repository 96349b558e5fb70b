package ratelimit

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		Enabled:            true,
		WindowDuration:     time.Minute,
		DefaultRequests:    60,
		PublicRequests:     100,
		WebhookRequests:    600,
		PurchaseRequests:   20,
		WithdrawalRequests: 5,
		AdminRequests:      200,
		HealthRequests:     1000,
		WhitelistedIPs:     []string{"10.0.0.1"},
	}
}

func TestGetRateLimitType(t *testing.T) {
	cases := map[string]RateLimitType{
		"/health":                       RateLimitTypeHealth,
		"/metrics":                      RateLimitTypeHealth,
		"/api/v1/payments/webhook":      RateLimitTypeWebhook,
		"/api/v1/admin/withdrawals/:id": RateLimitTypeAdmin,
		"/api/v1/organizations/:organizationId/withdrawals": RateLimitTypeWithdrawal,
		"/api/v1/payments/:transactionId/fulfill":           RateLimitTypePurchase,
		"/api/v1/tickets/:ticketId/cancel":                  RateLimitTypePurchase,
		"/api/v1/categories/:categoryId":                    RateLimitTypePublic,
		"/api/v1/unknown":                                   RateLimitTypeDefault,
	}

	for path, expected := range cases {
		assert.Equal(t, expected, getRateLimitType(path), path)
	}
}

func TestRateLimiter_DisabledOrWhitelisted(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cfg := testConfig()
	limiter := NewRateLimiter(db, cfg)

	result, err := limiter.IsAllowed(context.Background(), "10.0.0.1", RateLimitTypeWithdrawal)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 5, result.Remaining)

	cfg.Enabled = false
	result, err = limiter.IsAllowed(context.Background(), "10.0.0.2", RateLimitTypeWithdrawal)
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, testConfig())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	key := "boxoffice:ratelimit:10.0.0.2:withdrawal"
	args := []interface{}{
		now.Add(-time.Minute).UnixMilli(),
		now.UnixMilli(),
		5,
		60,
		strconv.FormatInt(now.UnixNano(), 10),
	}

	mock.ExpectEval(luaSlidingWindow, []string{key}, args...).SetVal([]interface{}{int64(3), int64(2)})
	mock.ExpectEval(luaSlidingWindow, []string{key}, args...).SetVal([]interface{}{int64(6), int64(0)})

	result, err := limiter.IsAllowed(context.Background(), "10.0.0.2", RateLimitTypeWithdrawal)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 2, result.Remaining)

	result, err = limiter.IsAllowed(context.Background(), "10.0.0.2", RateLimitTypeWithdrawal)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)

	assert.NoError(t, mock.ExpectationsWereMet())
}
