// Package memcache holds decoded bitmaps in process memory.
//
// Every implementation guarantees that a Get immediately following a Put for
// the same key, with no eviction pressure in between, returns that bitmap.
// Released bitmaps are never returned: a lookup that finds one evicts it and
// reports a miss.
package memcache

import "github.com/unkn0wn-root/imgload/bitmap"

// Cache must be safe for concurrent use.
type Cache interface {
	Get(key string) (*bitmap.Bitmap, bool)
	// Put inserts or replaces.
	Put(key string, bmp *bitmap.Bitmap)
	Remove(key string)
	Len() int
	// Resize applies the fields of b that the implementation understands and
	// evicts until the new capacity holds. Zero fields keep the current value.
	Resize(b Budget)
}

// Budget describes capacity. Tiered caches read the item counts, byte-budgeted
// caches read Bytes.
type Budget struct {
	Bytes     int64
	HotItems  int
	ColdItems int
}

const (
	DefaultHotItems  = 30
	DefaultColdItems = 150
	DefaultBytes     = 3 << 20
)
