package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lua script for atomic lock release: only the holder's token may delete the key
const luaReleaseLock = `
-- KEYS[1] = lock key
-- ARGV[1] = holder token
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`

// Lua script for lease renewal: only the holder's token may push the expiry
const luaExtendLock = `
-- KEYS[1] = lock key
-- ARGV[1] = holder token
-- ARGV[2] = lease in milliseconds
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`

// RedisConfig tunes a RedisLocker.
type RedisConfig struct {
	Prefix       string
	TTL          time.Duration // lease; protects against crashed holders
	RefreshEvery time.Duration // lease renewal while held; zero disables
	RetryEvery   time.Duration // polling interval while the key is held elsewhere
	MaxWait      time.Duration // upper bound on waiting, on top of ctx
	ReleaseAfter time.Duration // timeout for the release round trip
}

// DefaultRedisConfig returns sane defaults for request-scoped critical sections.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Prefix:       "boxoffice:lock:",
		TTL:          10 * time.Second,
		RefreshEvery: 3 * time.Second,
		RetryEvery:   25 * time.Millisecond,
		MaxWait:      5 * time.Second,
		ReleaseAfter: 2 * time.Second,
	}
}

// RedisLocker is a Locker shared by every instance pointed at the same Redis.
type RedisLocker struct {
	client   *redis.Client
	config   RedisConfig
	newToken func() string
	ticks    func(time.Duration) (<-chan time.Time, func())
}

// NewRedisLocker creates a RedisLocker.
func NewRedisLocker(client *redis.Client, cfg RedisConfig) *RedisLocker {
	return &RedisLocker{
		client:   client,
		config:   cfg,
		newToken: func() string { return uuid.NewString() },
		ticks: func(d time.Duration) (<-chan time.Time, func()) {
			ticker := time.NewTicker(d)
			return ticker.C, ticker.Stop
		},
	}
}

// Acquire sets the lock key with NX and a lease, polling until it succeeds.
func (r *RedisLocker) Acquire(ctx context.Context, key string) (Unlock, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client not available")
	}

	lockKey := r.config.Prefix + key
	token := r.newToken()

	waitCtx := ctx
	if r.config.MaxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, r.config.MaxWait)
		defer cancel()
	}

	for {
		ok, err := r.client.SetNX(waitCtx, lockKey, token, r.config.TTL).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return r.unlockFunc(lockKey, token), nil
		}

		select {
		case <-time.After(r.config.RetryEvery):
		case <-waitCtx.Done():
			return nil, errors.Join(ErrNotAcquired, waitCtx.Err())
		}
	}
}

func (r *RedisLocker) unlockFunc(lockKey, token string) Unlock {
	stop := r.keepAlive(lockKey, token)

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()

			ctx, cancel := context.WithTimeout(context.Background(), r.config.ReleaseAfter)
			defer cancel()
			// A failed release only delays the next holder until the lease expires
			_ = r.client.Eval(ctx, luaReleaseLock, []string{lockKey}, token).Err()
		})
	}
}

// keepAlive renews the lease every RefreshEvery until the returned stop is
// called or the key no longer carries token. stop waits for the renewal loop
// to exit.
func (r *RedisLocker) keepAlive(lockKey, token string) func() {
	if r.config.RefreshEvery <= 0 || r.config.TTL <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	exited := make(chan struct{})
	tick, stopTicker := r.ticks(r.config.RefreshEvery)

	go func() {
		defer close(exited)
		defer stopTicker()
		for {
			select {
			case <-done:
				return
			case <-tick:
				held, err := r.extend(lockKey, token)
				if err == nil && !held {
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		<-exited
	}
}

// extend pushes the lease of a held key forward. It reports false when the key
// expired or was taken by another holder.
func (r *RedisLocker) extend(lockKey, token string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.ReleaseAfter)
	defer cancel()

	n, err := r.client.Eval(ctx, luaExtendLock, []string{lockKey}, token, r.config.TTL.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
