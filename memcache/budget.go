package memcache

import (
	"container/list"
	"sync"

	"github.com/unkn0wn-root/imgload/bitmap"
)

// Bytes is a single tier cache bounded by the total resident size of its
// bitmaps. Eviction is least recently inserted first. A bitmap larger than the
// whole budget is not cached.
type Bytes struct {
	mu     sync.Mutex
	order  *list.List
	items  map[string]*list.Element
	used   int64
	budget int64
}

var _ Cache = (*Bytes)(nil)

// NewBytes returns a byte budgeted cache. budget <= 0 selects DefaultBytes.
func NewBytes(budget int64) *Bytes {
	if budget <= 0 {
		budget = DefaultBytes
	}
	return &Bytes{
		order:  list.New(),
		items:  make(map[string]*list.Element),
		budget: budget,
	}
}

func (c *Bytes) Get(key string) (*bitmap.Bitmap, bool) {
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

func (c *Bytes) Put(key string, bmp *bitmap.Bitmap) {
	if !bmp.Valid() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeLocked(el)
	}
	size := bmp.SizeBytes()
	if size > c.budget {
		return
	}
	for c.used+size > c.budget && c.order.Len() > 0 {
		c.removeLocked(c.order.Front())
	}
	c.items[key] = c.order.PushBack(&entry{key: key, bmp: bmp})
	c.used += size
}

func (c *Bytes) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeLocked(el)
	}
}

func (c *Bytes) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Used reports resident bytes.
func (c *Bytes) Used() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

func (c *Bytes) Resize(b Budget) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b.Bytes > 0 {
		c.budget = b.Bytes
	}
	for c.used > c.budget && c.order.Len() > 0 {
		c.removeLocked(c.order.Front())
	}
}

func (c *Bytes) removeLocked(el *list.Element) {
	e := c.order.Remove(el).(*entry)
	delete(c.items, e.key)
	c.used -= e.bmp.SizeBytes()
}
