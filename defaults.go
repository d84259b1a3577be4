package imgload

import (
	"time"

	"github.com/unkn0wn-root/imgload/memcache"
)

const (
	DefaultMaxConcurrency = 5
	DefaultLookupWorkers  = 4
	DefaultMaxDimension   = 1024
	DefaultLookupTimeout  = 10 * time.Second

	defaultGenRetention = 24 * time.Hour
	defaultSweep        = time.Hour
)

func defaultMemory() memcache.Cache {
	return memcache.NewTiered(memcache.DefaultHotItems, memcache.DefaultColdItems)
}

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
