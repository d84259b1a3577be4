package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/imgload/store"
)

func TestReadWriteDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := New(Config{Dir: dir})
	require.NoError(t, err)

	const key = "0cc175b9c0f1b6a831c399e269772661"
	_, err = s.Read(ctx, key)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Write(ctx, key, []byte("v1")))
	require.NoError(t, s.Write(ctx, key, []byte("v2")))
	b, err := s.Read(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "v2", string(b))

	_, err = os.Stat(filepath.Join(dir, "0c", key))
	require.NoError(t, err, "entry should live under its fanout dir")

	entries, err := os.ReadDir(filepath.Join(dir, "0c"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Read(ctx, key)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestEmptyDir(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}
