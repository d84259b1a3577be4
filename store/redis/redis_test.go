package redis

import (
	"context"
	"os"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/imgload/store"
)

func TestNilClient(t *testing.T) {
	_, err := New(Config{})
	require.ErrorIs(t, err, ErrNilClient)
}

// TestRedisIntegration requires a running redis; set IMGLOAD_REDIS_ADDR.
func TestRedisIntegration(t *testing.T) {
	addr := os.Getenv("IMGLOAD_REDIS_ADDR")
	if addr == "" {
		t.Skip("IMGLOAD_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	s, err := New(Config{Client: rdb, Namespace: "test", CloseClient: true})
	require.NoError(t, err)
	defer s.Close(ctx)

	const key = "4a8a08f09d37b73795649038408b5f33"
	_ = s.Delete(ctx, key)
	_, err = s.Read(ctx, key)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Write(ctx, key, []byte("v")))
	b, err := s.Read(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "v", string(b))

	n, err := rdb.Exists(ctx, "img:test:"+key).Result()
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.NoError(t, s.Delete(ctx, key))
}
