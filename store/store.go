// Package store defines the persistent byte store the loader reads through
// before going to the network.
//
// Implementations MUST be byte-for-byte transparent: Read returns exactly
// the bytes previously passed to Write for that key. Keys are 32 char hex
// digests and are safe to use as file names.
package store

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNotFound is returned by Read on a miss.
	ErrNotFound = errors.New("store: not found")
	// ErrCorrupt is returned by Read when an entry exists but cannot be
	// trusted. The entry has already been deleted when this is returned.
	ErrCorrupt = errors.New("store: corrupt entry")
	ErrClosed  = errors.New("store: closed")
)

// Store must be safe for concurrent use.
type Store interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, b []byte) error
	// Delete is best-effort; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close(ctx context.Context) error
}

// Nop stores nothing; every Read misses.
type Nop struct{}

var _ Store = Nop{}

func (Nop) Read(context.Context, string) ([]byte, error) { return nil, ErrNotFound }
func (Nop) Write(context.Context, string, []byte) error  { return nil }
func (Nop) Delete(context.Context, string) error         { return nil }
func (Nop) Close(context.Context) error                  { return nil }

// Memory is a map backed Store, handy for tests and short lived processes.
type Memory struct {
	mu     sync.RWMutex
	m      map[string][]byte
	closed bool
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory { return &Memory{m: make(map[string][]byte)} }

func (s *Memory) Read(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	b, ok := s.m[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (s *Memory) Write(_ context.Context, key string, b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.m[key] = append([]byte(nil), b...)
	return nil
}

func (s *Memory) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

func (s *Memory) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
