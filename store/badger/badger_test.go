package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/imgload/store"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := Open(Config{InMemory: true, Namespace: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(ctx) })

	const key = "92eb5ffee6ae2fec3ad71c777531578f"
	_, err = s.Read(ctx, key)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Write(ctx, key, []byte("bytes")))
	b, err := s.Read(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "bytes", string(b))

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Read(ctx, key)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestOpenOnDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, "k", []byte("v")))
	require.NoError(t, s.Close(ctx))

	s, err = Open(Config{Dir: dir})
	require.NoError(t, err)
	defer s.Close(ctx)
	b, err := s.Read(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", string(b))
}

func TestOpenRequiresDir(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
}
