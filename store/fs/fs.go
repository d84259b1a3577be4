// Package fs stores entries as files under a root directory, fanned out over
// 256 sub-directories by the first two characters of the key.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/unkn0wn-root/imgload/internal/util"
	"github.com/unkn0wn-root/imgload/store"
)

type Store struct {
	root string
	perm fs.FileMode
}

var _ store.Store = (*Store)(nil)

type Config struct {
	Dir  string
	Perm fs.FileMode // file mode, default 0o644
}

func New(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("fs store: empty dir")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("fs store: %w", err)
	}
	perm := cfg.Perm
	if perm == 0 {
		perm = 0o644
	}
	return &Store{root: cfg.Dir, perm: perm}, nil
}

func (s *Store) path(key string) string {
	return filepath.FromSlash(util.FanoutPath(filepath.ToSlash(s.root), key))
}

func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, store.ErrNotFound
	}
	return b, err
}

// Write goes through a temp file and rename so readers never observe a
// partially written entry.
func (s *Store) Write(ctx context.Context, key string, b []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst := s.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(s.perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func (s *Store) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *Store) Close(context.Context) error { return nil }
