package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	PixAvailable  int64 `json:"pix_available"`
	CardAvailable int64 `json:"card_available"`
}

func TestService_GetMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := NewService(db)

	mock.ExpectGet("balance:org-1").RedisNil()

	var dest snapshot
	err := svc.Get(context.Background(), "balance:org-1", &dest)
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_GetHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := NewService(db)

	mock.ExpectGet("balance:org-1").SetVal(`{"pix_available":4200,"card_available":2800}`)

	var dest snapshot
	require.NoError(t, svc.Get(context.Background(), "balance:org-1", &dest))
	assert.Equal(t, snapshot{PixAvailable: 4200, CardAvailable: 2800}, dest)
}

func TestService_GetOrSetStoresFetchedValue(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := NewService(db)
	value := snapshot{PixAvailable: 9900}

	mock.ExpectGet("balance:org-1").RedisNil()
	mock.ExpectSet("balance:org-1", []byte(`{"pix_available":9900,"card_available":0}`), 30*time.Second).SetVal("OK")

	calls := 0
	var dest snapshot
	err := svc.GetOrSet(context.Background(), "balance:org-1", 30*time.Second, func() (interface{}, error) {
		calls++
		return value, nil
	}, &dest)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, value, dest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Delete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := NewService(db)

	mock.ExpectDel("a", "b").SetVal(2)

	require.NoError(t, svc.Delete(context.Background(), "a", "b"))
	require.NoError(t, svc.Delete(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
