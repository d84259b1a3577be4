// Package asynchook moves hook calls off the loader's scheduling lock onto a
// bounded queue. Events are dropped, and counted, when the queue is full.
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/imgload"
)

type Hooks struct {
	inner   imgload.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
}

var _ imgload.Hooks = (*Hooks)(nil)

func New(inner imgload.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for range workers {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Hooks called after
// Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped reports events discarded because the queue was full.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	defer func() {
		// send on closed channel after Close
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) MemoryHit(k imgload.Key)    { h.try(func() { h.inner.MemoryHit(k) }) }
func (h *Hooks) StoreHit(k imgload.Key)     { h.try(func() { h.inner.StoreHit(k) }) }
func (h *Hooks) Deduplicated(k imgload.Key) { h.try(func() { h.inner.Deduplicated(k) }) }
func (h *Hooks) FetchStarted(k imgload.Key, running, backlog int) {
	h.try(func() { h.inner.FetchStarted(k, running, backlog) })
}
func (h *Hooks) FetchCompleted(k imgload.Key, n int, took time.Duration) {
	h.try(func() { h.inner.FetchCompleted(k, n, took) })
}
func (h *Hooks) FetchFailed(k imgload.Key, err error) {
	h.try(func() { h.inner.FetchFailed(k, err) })
}
func (h *Hooks) Cancelled(k imgload.Key, from imgload.State) {
	h.try(func() { h.inner.Cancelled(k, from) })
}
func (h *Hooks) StoreWriteFailed(k imgload.Key, err error) {
	h.try(func() { h.inner.StoreWriteFailed(k, err) })
}
func (h *Hooks) CorruptPayload(k imgload.Key, src imgload.Source) {
	h.try(func() { h.inner.CorruptPayload(k, src) })
}
func (h *Hooks) InvalidateOutage(k imgload.Key, be, de error) {
	h.try(func() { h.inner.InvalidateOutage(k, be, de) })
}
