// Package genstore tracks a generation counter per image key. Invalidate
// bumps the generation; a fetch that started under an older generation must
// not repopulate the memory cache or the store.
package genstore

import (
	"context"
	"time"
)

type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, key string) (uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, key string) (uint64, error)
	// Cleanup prunes generations untouched for longer than retention.
	Cleanup(retention time.Duration)
	Close(context.Context) error
}
