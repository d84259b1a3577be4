// Package minio stores entries as objects in MinIO or any S3-compatible
// bucket.
package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"

	"github.com/unkn0wn-root/imgload/internal/util"
	"github.com/unkn0wn-root/imgload/store"
)

type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ store.Store = (*Store)(nil)

// New returns a store writing under bucket/prefix. Keys are fanned out by
// their first two characters.
func New(client *minio.Client, bucket, prefix string) (*Store, error) {
	if client == nil || bucket == "" {
		return nil, errors.New("minio store: client and bucket required")
	}
	return &Store{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *Store) object(key string) string { return util.FanoutPath(s.prefix, key) }

func notFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NotFound" || resp.StatusCode == http.StatusNotFound
}

func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.object(key), minio.GetObjectOptions{})
	if err != nil {
		if notFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	defer obj.Close()

	// GetObject is lazy; the miss surfaces on first read
	b, err := io.ReadAll(obj)
	if err != nil {
		if notFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *Store) Write(ctx context.Context, key string, b []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.object(key), bytes.NewReader(b), int64(len(b)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.object(key), minio.RemoveObjectOptions{})
	if err != nil && notFound(err) {
		return nil // already gone
	}
	return err
}

func (s *Store) Close(context.Context) error { return nil }
