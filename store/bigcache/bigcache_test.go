package bigcache

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/imgload/store"
)

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, Config{LifeWindow: time.Minute, HardMaxCacheSizeMB: 8})
	require.NoError(t, err)
	defer s.Close(ctx)

	const key = "8277e0910d750195b448797616e091ad"
	_, err = s.Read(ctx, key)
	require.ErrorIs(t, err, store.ErrNotFound)

	payload := bytes.Repeat([]byte{0x42}, 100<<10)
	require.NoError(t, s.Write(ctx, key, payload))
	b, err := s.Read(ctx, key)
	require.NoError(t, err)
	require.Equal(t, payload, b)
	require.Equal(t, 1, s.Len())

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Read(ctx, key)
	require.ErrorIs(t, err, store.ErrNotFound)
}
