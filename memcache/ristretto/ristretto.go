// Package ristretto adapts dgraph-io/ristretto as a byte budgeted memcache.Cache.
//
// Cost is the bitmap's resident size. Eviction follows ristretto's sampled
// LFU policy, so insertion order is only approximately honoured and Len is an
// estimate derived from ristretto's counters.
package ristretto

import (
	"errors"
	"sync/atomic"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/imgload/bitmap"
	"github.com/unkn0wn-root/imgload/memcache"
)

type Config struct {
	NumCounters int64
	MaxCost     int64 // bytes
	BufferItems int64
}

// DefaultConfig sizes the counters for roughly ten thousand bitmaps.
func DefaultConfig(maxCost int64) Config {
	if maxCost <= 0 {
		maxCost = memcache.DefaultBytes
	}
	return Config{NumCounters: 1e4, MaxCost: maxCost, BufferItems: 64}
}

type Cache struct {
	c       *rc.Cache
	removed atomic.Int64
}

var _ memcache.Cache = (*Cache)(nil)

func New(cfg Config) (*Cache, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

func (p *Cache) Get(key string) (*bitmap.Bitmap, bool) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false
	}
	b, _ := v.(*bitmap.Bitmap)
	if !b.Valid() {
		// self-heal: drop released or unexpected entries
		p.Remove(key)
		return nil, false
	}
	return b, true
}

// Put waits for ristretto's buffers to drain so the entry is visible to the
// next Get. The write may still be rejected by the admission policy.
func (p *Cache) Put(key string, bmp *bitmap.Bitmap) {
	if !bmp.Valid() {
		return
	}
	if p.c.Set(key, bmp, bmp.SizeBytes()) {
		p.c.Wait()
	}
}

func (p *Cache) Remove(key string) {
	if _, ok := p.c.Get(key); ok {
		p.removed.Add(1)
	}
	p.c.Del(key)
}

func (p *Cache) Len() int {
	m := p.c.Metrics
	n := int64(m.KeysAdded()) - int64(m.KeysEvicted()) - p.removed.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

func (p *Cache) Resize(b memcache.Budget) {
	if b.Bytes > 0 {
		p.c.UpdateMaxCost(b.Bytes)
	}
}

func (p *Cache) Close() {
	p.c.Wait()
	p.c.Close()
}

func (p *Cache) Metrics() *rc.Metrics { return p.c.Metrics }
