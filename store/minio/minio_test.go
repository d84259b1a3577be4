package minio

import (
	"context"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/imgload/store"
)

func TestNewValidates(t *testing.T) {
	_, err := New(nil, "bucket", "")
	require.Error(t, err)
}

// TestMinioIntegration requires a running MinIO instance.
// Skip if not available.
func TestMinioIntegration(t *testing.T) {
	client, err := minio.New("localhost:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}
	ctx := context.Background()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	const bucket = "test-imgload"
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	s, err := New(client, bucket, "images")
	require.NoError(t, err)

	const key = "e1671797c52e15f763380b45e841ec32"
	_ = s.Delete(ctx, key)
	_, err = s.Read(ctx, key)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Write(ctx, key, []byte("object")))
	b, err := s.Read(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "object", string(b))

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key))
}
