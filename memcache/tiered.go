package memcache

import (
	"container/list"
	"sync"

	"github.com/unkn0wn-root/imgload/bitmap"
)

type tier uint8

const (
	tierHot tier = iota
	tierCold
)

type entry struct {
	key  string
	bmp  *bitmap.Bitmap
	tier tier
}

// Tiered is an item-count budgeted two tier cache. Puts always land in the
// hot tier; hot overflow demotes the oldest hot entry to the cold tier and
// cold overflow discards the oldest cold entry. Order is insertion order, a
// hit does not refresh or promote an entry.
type Tiered struct {
	mu      sync.Mutex
	hot     *list.List
	cold    *list.List
	items   map[string]*list.Element
	hotCap  int
	coldCap int
}

var _ Cache = (*Tiered)(nil)

// NewTiered returns a cache holding at most hot+cold bitmaps.
// hot is clamped to at least 1, cold to at least 0.
func NewTiered(hot, cold int) *Tiered {
	return &Tiered{
		hot:     list.New(),
		cold:    list.New(),
		items:   make(map[string]*list.Element),
		hotCap:  max(hot, 1),
		coldCap: max(cold, 0),
	}
}

func (c *Tiered) Get(key string) (*bitmap.Bitmap, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if !e.bmp.Valid() {
		c.removeLocked(el)
		return nil, false
	}
	return e.bmp, true
}

func (c *Tiered) Put(key string, bmp *bitmap.Bitmap) {
	if !bmp.Valid() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeLocked(el)
	}
	c.items[key] = c.hot.PushBack(&entry{key: key, bmp: bmp, tier: tierHot})
	c.trimLocked()
}

func (c *Tiered) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeLocked(el)
	}
}

func (c *Tiered) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// HotLen and ColdLen report per-tier occupancy.
func (c *Tiered) HotLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hot.Len()
}

func (c *Tiered) ColdLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cold.Len()
}

func (c *Tiered) Resize(b Budget) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b.HotItems > 0 {
		c.hotCap = b.HotItems
	}
	if b.ColdItems > 0 {
		c.coldCap = b.ColdItems
	}
	c.trimLocked()
}

func (c *Tiered) trimLocked() {
	for c.hot.Len() > c.hotCap {
		el := c.hot.Front()
		e := c.hot.Remove(el).(*entry)
		if !e.bmp.Valid() {
			delete(c.items, e.key)
			continue
		}
		e.tier = tierCold
		c.items[e.key] = c.cold.PushBack(e)
	}
	for c.cold.Len() > c.coldCap {
		e := c.cold.Remove(c.cold.Front()).(*entry)
		delete(c.items, e.key)
	}
}

func (c *Tiered) removeLocked(el *list.Element) {
	e := el.Value.(*entry)
	if e.tier == tierHot {
		c.hot.Remove(el)
	} else {
		c.cold.Remove(el)
	}
	delete(c.items, e.key)
}
