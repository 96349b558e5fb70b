package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errTransient = errors.New("transient")

func TestPolicy_Delay(t *testing.T) {
	p := Policy{MaxAttempts: 5, Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond}

	assert.Equal(t, time.Duration(0), p.Delay(0))
	assert.Equal(t, 10*time.Millisecond, p.Delay(1))
	assert.Equal(t, 20*time.Millisecond, p.Delay(2))
	assert.Equal(t, 40*time.Millisecond, p.Delay(3))
	assert.Equal(t, 50*time.Millisecond, p.Delay(4))
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	p := Policy{MaxAttempts: 4, Initial: time.Millisecond, Max: time.Millisecond}
	calls := 0
	retries := 0

	err := Do(context.Background(), p, nil, func(int, error) { retries++ }, func(int) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, retries)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0

	err := Do(context.Background(), DefaultPolicy(), func(err error) bool {
		return errors.Is(err, errTransient)
	}, nil, func(int) error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_ReturnsLastErrorWhenExhausted(t *testing.T) {
	p := Policy{MaxAttempts: 3, Initial: time.Millisecond}
	calls := 0

	err := Do(context.Background(), p, nil, nil, func(int) error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestDo_HonoursContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := Policy{MaxAttempts: 3, Initial: time.Second}
	err := Do(ctx, p, nil, nil, func(int) error { return errTransient })

	assert.ErrorIs(t, err, context.Canceled)
}
