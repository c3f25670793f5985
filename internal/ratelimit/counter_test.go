// File: internal/ratelimit/counter_test.go
package ratelimit

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCounter(t *testing.T) {
	ctx := context.Background()
	const key = "easyapply:applies:2026-10-19"

	t.Run("missing key loads as zero", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		mock.ExpectGet(key).RedisNil()

		n, err := NewRedisCounter(db).Load(ctx, "2026-10-19")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("existing key", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		mock.ExpectGet(key).SetVal("7")

		n, err := NewRedisCounter(db).Load(ctx, "2026-10-19")
		require.NoError(t, err)
		assert.Equal(t, 7, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("increment sets an expiry", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		mock.ExpectIncr(key).SetVal(8)
		mock.ExpectExpire(key, CounterTTL).SetVal(true)

		n, err := NewRedisCounter(db).Increment(ctx, "2026-10-19")
		require.NoError(t, err)
		assert.Equal(t, 8, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("errors are wrapped", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		mock.ExpectIncr(key).SetErr(errors.New("READONLY"))

		_, err := NewRedisCounter(db).Increment(ctx, "2026-10-19")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis incr "+key)
	})
}

func TestMemoryCounter(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryCounter()

	n, err := m.Load(ctx, "2026-10-19")
	require.NoError(t, err)
	assert.Zero(t, n)

	for i := 1; i <= 3; i++ {
		n, err = m.Increment(ctx, "2026-10-19")
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	n, _ = m.Load(ctx, "2026-10-20")
	assert.Zero(t, n)
}
