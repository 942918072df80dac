package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestNewRedisStoreRequiresAddress(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisConfig{})
	require.ErrorContains(t, err, "address is required")
}

func TestNewRedisStoreFailsWhenUnreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	_, err := NewRedisStore(context.Background(), RedisConfig{Address: addr, Timeout: 100 * time.Millisecond})
	require.Error(t, err)
}

func TestRedisStorePrefixesKeysAndSetsExpiry(t *testing.T) {
	srv := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), RedisConfig{Address: srv.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.SlidingWindow(context.Background(), "ratelimit:login:1.2.3.4", 5, 15*time.Minute, time.Now())
	require.NoError(t, err)

	require.True(t, srv.Exists("inkpost:ratelimit:login:1.2.3.4"))
	require.Equal(t, 15*time.Minute, srv.TTL("inkpost:ratelimit:login:1.2.3.4"))
}

func TestRedisStoreReturnsErrorWhenServerStops(t *testing.T) {
	srv := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), RedisConfig{Address: srv.Addr(), Timeout: 100 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	srv.Close()

	_, err = store.SlidingWindow(context.Background(), "k", 1, time.Minute, time.Now())
	require.Error(t, err)
	require.Error(t, store.Ping(context.Background()))
}
