// Package redis stores entries in a shared redis deployment.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/imgload/internal/util"
	"github.com/unkn0wn-root/imgload/store"
)

var ErrNilClient = errors.New("redis store: nil client")

type Store struct {
	rdb         goredis.UniversalClient
	ns          string
	ttl         time.Duration
	closeClient bool
}

var _ store.Store = (*Store)(nil)

type Config struct {
	Client goredis.UniversalClient
	// Namespace isolates keys: img:<ns>:<key>.
	Namespace string
	// TTL applies to every write; 0 = no expiry.
	TTL         time.Duration
	CloseClient bool // set true only if this store exclusively owns the client
}

func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Store{
		rdb:         cfg.Client,
		ns:          cfg.Namespace,
		ttl:         max(cfg.TTL, 0),
		closeClient: cfg.CloseClient,
	}, nil
}

func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, util.StorageKey(s.ns, key)).Bytes()
	if err == goredis.Nil {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err // transport/server error
	}
	return b, nil
}

func (s *Store) Write(ctx context.Context, key string, b []byte) error {
	return s.rdb.Set(ctx, util.StorageKey(s.ns, key), b, s.ttl).Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, util.StorageKey(s.ns, key)).Err()
}

// Close releases the underlying client only when this store owns it.
// Safe to call multiple times.
func (s *Store) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
