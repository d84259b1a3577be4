// Package badger stores entries in an embedded badger database.
package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/unkn0wn-root/imgload/internal/util"
	"github.com/unkn0wn-root/imgload/store"
)

type Config struct {
	Dir      string
	InMemory bool          // Dir is ignored when set
	TTL      time.Duration // 0 = entries never expire
	// Namespace isolates this store's keys inside a shared database.
	Namespace string
}

type Store struct {
	db  *badgerdb.DB
	ttl time.Duration
	ns  string
}

var _ store.Store = (*Store)(nil)

func Open(cfg Config) (*Store, error) {
	var opts badgerdb.Options
	switch {
	case cfg.InMemory:
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	case cfg.Dir != "":
		opts = badgerdb.DefaultOptions(cfg.Dir)
	default:
		return nil, errors.New("badger store: dir required unless in-memory")
	}
	db, err := badgerdb.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("badger store: open: %w", err)
	}
	return &Store{db: db, ttl: cfg.TTL, ns: cfg.Namespace}, nil
}

func (s *Store) key(k string) []byte { return []byte(util.StorageKey(s.ns, k)) }

func (s *Store) Read(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(s.key(key))
		if err == badgerdb.ErrKeyNotFound {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Write(_ context.Context, key string, b []byte) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		e := badgerdb.NewEntry(s.key(key), b)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
}

func (s *Store) Delete(_ context.Context, key string) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		err := txn.Delete(s.key(key))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

func (s *Store) Close(context.Context) error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("badger store: close: %w", err)
	}
	return nil
}
