package imgload

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/unkn0wn-root/imgload/bitmap"
	"github.com/unkn0wn-root/imgload/decode"
	gen "github.com/unkn0wn-root/imgload/genstore"
	"github.com/unkn0wn-root/imgload/memcache"
	"github.com/unkn0wn-root/imgload/store"
	"github.com/unkn0wn-root/imgload/transport"
)

type delivery struct {
	slot  Slot
	epoch uint64
	res   Result
}

// loader serializes every scheduling decision through mu. Store lookups,
// decodes and fetches run in their own goroutines and marshal back under mu,
// where their result is discarded unless the request is still in the state
// the work was issued in.
type loader struct {
	fetcher transport.Fetcher
	store   store.Store
	mem     memcache.Cache
	decoder decode.Decoder
	gen     gen.GenStore
	log     Logger
	hooks   Hooks

	maxW, maxH    int
	fetchTimeout  time.Duration
	lookupTimeout time.Duration
	lookupSem     *semaphore.Weighted
	noStore       bool // nothing to look up; misses are admitted in Request

	ctx    context.Context // parent of every request; cancelled by Close
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	maxConc  int
	inflight map[Key]*request // the one non-terminal request per key
	lookups  *list.List       // awaiting store lookup
	backlog  *list.List
	running  map[*request]struct{}
	binds    *bindings
	pending  []delivery
	draining bool
}

var _ Loader = (*loader)(nil)

func newLoader(opts Options) (*loader, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("imgload: transport is required")
	}
	if opts.MaxConcurrency < 0 || opts.LookupWorkers < 0 {
		return nil, fmt.Errorf("imgload: negative concurrency")
	}

	l := &loader{
		fetcher:  opts.Transport,
		inflight: make(map[Key]*request),
		lookups:  list.New(),
		backlog:  list.New(),
		running:  make(map[*request]struct{}),
		binds:    newBindings(),
	}

	// defaults
	switch opts.Store.(type) {
	case nil, store.Nop:
		l.store, l.noStore = store.Nop{}, true
	default:
		l.store = opts.Store
	}
	l.decoder = coalesce[decode.Decoder](opts.Decoder, decode.Image{MaxPixels: opts.MaxPixels})
	l.log = coalesce[Logger](opts.Logger, NopLogger{})
	l.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	l.maxConc = coalesce(opts.MaxConcurrency, DefaultMaxConcurrency)
	l.maxW = coalesce(opts.MaxWidth, DefaultMaxDimension)
	l.maxH = coalesce(opts.MaxHeight, DefaultMaxDimension)
	l.fetchTimeout = opts.FetchTimeout
	l.lookupTimeout = coalesce(opts.LookupTimeout, DefaultLookupTimeout)
	l.lookupSem = semaphore.NewWeighted(int64(coalesce(opts.LookupWorkers, DefaultLookupWorkers)))

	if opts.Memory != nil {
		l.mem = opts.Memory
	} else {
		l.mem = defaultMemory()
	}
	if opts.GenStore != nil {
		l.gen = opts.GenStore
	} else {
		// default to in-process generations with periodic cleanup
		l.gen = gen.NewLocal(
			coalesce(opts.CleanupInterval, defaultSweep),
			coalesce(opts.GenRetention, defaultGenRetention),
		)
	}

	l.ctx, l.cancel = context.WithCancel(context.Background())
	return l, nil
}

func (l *loader) Request(locator string, slot Slot) error {
	key, err := HashLocator(locator)
	if err != nil {
		return err
	}
	if slot == nil {
		return nil
	}
	if !slot.IsAlive() {
		l.forgetDead(slot)
		return nil
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}

	if b := l.binds.get(slot); b != nil && b.req != nil {
		if b.key == key && !b.req.state.Terminal() {
			l.mu.Unlock()
			return nil // idempotent re-request
		}
		l.detachLocked(slot, b.req)
	}
	epoch := l.binds.renew(slot)

	if bmp, ok := l.mem.Get(string(key)); ok {
		l.hooks.MemoryHit(key)
		l.pending = append(l.pending, delivery{slot: slot, epoch: epoch, res: Result{
			Key: key, Locator: locator, Image: bmp, Source: SourceMemory,
		}})
		l.mu.Unlock()
		l.drain()
		return nil
	}

	if r := l.inflight[key]; r != nil {
		r.attach(slot)
		l.binds.bind(slot, key, r)
		l.hooks.Deduplicated(key)
		l.log.Debug("request deduplicated", Fields{"key": key, "req": r.id, "state": r.state.String()})
		l.mu.Unlock()
		return nil
	}

	r := newRequest(l.ctx, key, locator, l.snapshotGen(key))
	r.attach(slot)
	l.binds.bind(slot, key, r)
	l.inflight[key] = r
	r.advance(StateAwaitingLocalLookup)
	if l.noStore {
		l.admitLocked(r)
		l.mu.Unlock()
		return nil
	}
	r.lookupElem = l.lookups.PushBack(r)

	l.wg.Add(1)
	go l.lookup(r)
	l.mu.Unlock()
	return nil
}

// forgetDead drops a dead slot's binding so a request it alone wanted stops
// holding a lookup, backlog or fetch slot.
func (l *loader) forgetDead(slot Slot) {
	l.mu.Lock()
	if r := l.binds.forget(slot); r != nil {
		l.detachLocked(slot, r)
	}
	l.mu.Unlock()
}

func (l *loader) Release(slot Slot) {
	if slot == nil {
		return
	}
	l.mu.Lock()
	if b := l.binds.get(slot); b != nil && b.req != nil {
		l.detachLocked(slot, b.req)
	}
	if _, ok := l.binds.epoch(slot); ok {
		l.binds.renew(slot)
	}
	l.mu.Unlock()
}

func (l *loader) CancelAll() {
	l.mu.Lock()
	n := l.cancelAllLocked()
	l.mu.Unlock()
	if n > 0 {
		l.log.Info("cancelled all requests", Fields{"count": n})
	}
}

func (l *loader) cancelAllLocked() int {
	n := 0
	drop := func(r *request) {
		from := r.state
		if !r.advance(StateCancelled) {
			return
		}
		n++
		for _, s := range r.slots {
			l.binds.unbind(s)
		}
		r.slots = nil
		r.elem, r.lookupElem = nil, nil
		if l.inflight[r.key] == r {
			delete(l.inflight, r.key)
		}
		l.hooks.Cancelled(r.key, from)
	}

	for e := l.backlog.Front(); e != nil; e = e.Next() {
		drop(e.Value.(*request))
	}
	l.backlog.Init()
	for r := range l.running {
		drop(r)
	}
	clear(l.running)
	for e := l.lookups.Front(); e != nil; e = e.Next() {
		drop(e.Value.(*request))
	}
	l.lookups.Init()
	l.pending = nil
	return n
}

func (l *loader) SetMaxConcurrency(n int) {
	l.mu.Lock()
	l.maxConc = max(n, 1)
	l.promoteLocked()
	l.mu.Unlock()
}

func (l *loader) SetMemoryBudget(b memcache.Budget) {
	l.mem.Resize(b)
}

func (l *loader) Invalidate(ctx context.Context, locator string) error {
	key, err := HashLocator(locator)
	if err != nil {
		return err
	}
	_, bumpErr := l.gen.Bump(ctx, string(key))
	if bumpErr != nil {
		l.log.Error("gen bump error", Fields{"key": key, "err": bumpErr})
	}

	// after the bump: a completion either already put (removed here) or
	// sees the new generation and skips the put
	l.mu.Lock()
	l.mem.Remove(string(key))
	l.mu.Unlock()

	delErr := l.store.Delete(ctx, string(key))
	if bumpErr != nil || delErr != nil {
		if bumpErr != nil && delErr != nil {
			l.hooks.InvalidateOutage(key, bumpErr, delErr)
		}
		return &InvalidateError{Key: key, BumpErr: bumpErr, DelErr: delErr}
	}
	l.log.Debug("invalidated key (bumped gen + cleared memory and store)", Fields{"key": key})
	return nil
}

func (l *loader) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Running:        len(l.running),
		Backlog:        l.backlog.Len(),
		Lookups:        l.lookups.Len(),
		InFlight:       len(l.inflight),
		Bound:          l.binds.bound(),
		MemoryItems:    l.mem.Len(),
		MaxConcurrency: l.maxConc,
	}
}

func (l *loader) Close(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.cancelAllLocked()
	l.mu.Unlock()
	l.cancel()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	var waitErr error
	select {
	case <-done:
	case <-ctx.Done():
		waitErr = fmt.Errorf("imgload: close: %w", ctx.Err())
	}

	// Close gen store first (best effort)
	_ = l.gen.Close(ctx)
	return errors.Join(waitErr, l.store.Close(ctx))
}

// detachLocked removes slot from r (cancellation-on-reuse). A request left
// without live slots is cancelled; a running one is only signalled and keeps
// its fetch slot until the transport returns.
func (l *loader) detachLocked(slot Slot, r *request) {
	r.detach(slot)
	l.binds.unbind(slot)
	if r.liveSlots() > 0 {
		return
	}

	switch r.state {
	case StateAwaitingLocalLookup:
		l.lookups.Remove(r.lookupElem)
		r.lookupElem = nil
		l.cancelLocked(r)
	case StateQueued:
		l.backlog.Remove(r.elem)
		r.elem = nil
		l.cancelLocked(r)
	case StateRunning:
		if !r.aborting {
			r.aborting = true
			r.cancel()
			l.log.Debug("fetch abort signalled", Fields{"key": r.key, "req": r.id})
		}
	}
}

func (l *loader) cancelLocked(r *request) {
	from := r.state
	if !r.advance(StateCancelled) {
		return
	}
	if l.inflight[r.key] == r {
		delete(l.inflight, r.key)
	}
	l.hooks.Cancelled(r.key, from)
	l.log.Debug("request cancelled", Fields{"key": r.key, "req": r.id, "state": from.String()})
}

// lookup reads and decodes the stored copy of r.key off the caller's
// goroutine. A lookup that outlives lookupTimeout counts as a miss.
func (l *loader) lookup(r *request) {
	defer l.wg.Done()

	ctx, cancel := context.WithTimeout(r.ctx, l.lookupTimeout)
	defer cancel()

	var bmp *bitmap.Bitmap
	if err := l.lookupSem.Acquire(ctx, 1); err == nil {
		bmp = l.readStore(ctx, r)
		l.lookupSem.Release(1)
	} else if r.ctx.Err() == nil {
		l.log.Warn("store lookup timed out waiting for a worker; fetching", Fields{"key": r.key})
	}
	l.onLookup(r, bmp)
}

func (l *loader) readStore(ctx context.Context, r *request) *bitmap.Bitmap {
	b, err := l.store.Read(ctx, string(r.key))
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		return nil
	case errors.Is(err, store.ErrCorrupt):
		l.hooks.CorruptPayload(r.key, SourceStore)
		l.log.Warn("corrupt store entry removed", Fields{"key": r.key, "err": err})
		return nil
	default:
		if r.ctx.Err() == nil {
			l.log.Warn("store read failed; fetching", Fields{"key": r.key, "err": err})
		}
		return nil
	}

	bmp, err := l.decoder.Decode(b, l.maxW, l.maxH)
	if err != nil {
		// self-heal: never re-serve bytes that do not decode
		_ = l.store.Delete(l.ctx, string(r.key))
		l.hooks.CorruptPayload(r.key, SourceStore)
		l.log.Warn("stored payload does not decode; deleted", Fields{"key": r.key, "err": err})
		return nil
	}
	return bmp
}

func (l *loader) onLookup(r *request, bmp *bitmap.Bitmap) {
	l.mu.Lock()
	if r.state != StateAwaitingLocalLookup {
		l.mu.Unlock()
		return // cancelled while reading
	}

	l.lookups.Remove(r.lookupElem)
	r.lookupElem = nil
	if bmp != nil {
		r.advance(StateServedFromStore)
		delete(l.inflight, r.key)
		if l.freshLocked(r) {
			l.mem.Put(string(r.key), bmp)
		}
		l.hooks.StoreHit(r.key)
		l.fanOutLocked(r, Result{Key: r.key, Locator: r.locator, Image: bmp, Source: SourceStore})
	} else {
		l.admitLocked(r)
	}
	l.mu.Unlock()
	l.drain()
}

func (l *loader) admitLocked(r *request) {
	if r.liveSlots() == 0 {
		l.cancelLocked(r)
		return
	}
	if len(l.running) < l.maxConc {
		l.startLocked(r)
		return
	}
	r.advance(StateQueued)
	r.elem = l.backlog.PushBack(r)
	l.log.Debug("request queued", Fields{"key": r.key, "req": r.id, "backlog": l.backlog.Len()})
}

// promoteLocked fills free fetch slots from the backlog head.
func (l *loader) promoteLocked() {
	for len(l.running) < l.maxConc && l.backlog.Len() > 0 {
		r := l.backlog.Remove(l.backlog.Front()).(*request)
		r.elem = nil
		if r.liveSlots() == 0 {
			l.cancelLocked(r)
			continue
		}
		l.startLocked(r)
	}
}

func (l *loader) startLocked(r *request) {
	r.advance(StateRunning)
	r.started = time.Now()
	l.running[r] = struct{}{}
	l.hooks.FetchStarted(r.key, len(l.running), l.backlog.Len())
	l.log.Debug("fetch started", Fields{"key": r.key, "req": r.id, "running": len(l.running), "backlog": l.backlog.Len()})

	l.wg.Add(1)
	go l.fetch(r)
}

type fetchResult struct {
	bmp     *bitmap.Bitmap
	n       int
	err     error
	status  int
	corrupt bool
}

func (l *loader) fetch(r *request) {
	defer l.wg.Done()

	ctx := r.ctx
	if l.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.fetchTimeout)
		defer cancel()
	}

	var res fetchResult
	b, err := l.fetcher.Fetch(ctx, r.locator)
	res.n = len(b)
	switch {
	case err != nil:
		res.err = err
		var se *transport.StatusError
		if errors.As(err, &se) {
			res.status = se.Code
		}
	default:
		res.bmp, res.err = l.decoder.Decode(b, l.maxW, l.maxH)
		if res.err != nil {
			res.corrupt = true
			_ = l.store.Delete(l.ctx, string(r.key))
			break
		}
		l.persist(r, b)
	}
	l.onFetchDone(r, res)
}

// persist writes fetched bytes unless the key was invalidated since r was
// created. A write that races an Invalidate is undone by the re-check.
func (l *loader) persist(r *request, b []byte) {
	if g := l.snapshotGen(r.key); g != r.gen {
		return
	}
	if err := l.store.Write(l.ctx, string(r.key), b); err != nil {
		l.hooks.StoreWriteFailed(r.key, err)
		l.log.Warn("store write failed", Fields{"key": r.key, "req": r.id, "err": err})
		return
	}
	if g := l.snapshotGen(r.key); g != r.gen {
		_ = l.store.Delete(l.ctx, string(r.key))
	}
}

func (l *loader) onFetchDone(r *request, res fetchResult) {
	l.mu.Lock()
	if r.state != StateRunning {
		l.mu.Unlock()
		return // dropped by CancelAll
	}
	delete(l.running, r)

	switch {
	case res.err == nil:
		r.advance(StateCompleted)
		delete(l.inflight, r.key)
		if l.freshLocked(r) {
			l.mem.Put(string(r.key), res.bmp)
		}
		l.hooks.FetchCompleted(r.key, res.n, time.Since(r.started))
		l.log.Debug("fetch completed", Fields{"key": r.key, "req": r.id, "bytes": res.n})
		l.fanOutLocked(r, Result{Key: r.key, Locator: r.locator, Image: res.bmp, Source: SourceNetwork})

	case r.aborting:
		l.cancelLocked(r)
		if r.liveSlots() > 0 {
			l.successorLocked(r)
		}

	default:
		r.advance(StateFailed)
		delete(l.inflight, r.key)
		fe := &FetchError{Key: r.key, Locator: r.locator, Status: res.status, Corrupt: res.corrupt, Cause: res.err}
		if res.corrupt {
			l.hooks.CorruptPayload(r.key, SourceNetwork)
		}
		l.hooks.FetchFailed(r.key, fe)
		l.log.Warn("fetch failed", Fields{"key": r.key, "req": r.id, "err": fe})
		l.fanOutLocked(r, Result{Key: r.key, Locator: r.locator, Err: fe})
	}

	l.promoteLocked()
	l.mu.Unlock()
	l.drain()
}

// successorLocked re-queues slots that attached to r after its abort was
// signalled. The successor goes to the backlog tail; the slot r just freed
// is handed out by promotion.
func (l *loader) successorLocked(r *request) {
	s := newRequest(l.ctx, r.key, r.locator, l.snapshotGen(r.key))
	s.slots = r.slots
	r.slots = nil
	for _, slot := range s.slots {
		l.binds.bind(slot, s.key, s)
	}
	l.inflight[s.key] = s
	s.advance(StateAwaitingLocalLookup)
	s.advance(StateQueued)
	s.elem = l.backlog.PushBack(s)
	l.log.Debug("successor queued for aborted fetch", Fields{"key": s.key, "req": s.id, "aborted": r.id})
}

// fanOutLocked queues res for every interested slot still wanting r.key and
// clears their bindings.
func (l *loader) fanOutLocked(r *request, res Result) {
	for _, s := range r.slots {
		if k, ok := l.binds.currentKey(s); !ok || k != r.key {
			continue
		}
		ep, _ := l.binds.epoch(s)
		l.binds.unbind(s)
		l.pending = append(l.pending, delivery{slot: s, epoch: ep, res: res})
	}
	r.slots = nil
}

// drain delivers queued results outside the lock, FIFO, one drainer at a
// time. Deliver may re-enter the loader; nested calls leave their deliveries
// to the active drainer.
func (l *loader) drain() {
	l.mu.Lock()
	if l.draining {
		l.mu.Unlock()
		return
	}
	l.draining = true

	for len(l.pending) > 0 {
		d := l.pending[0]
		l.pending[0] = delivery{}
		l.pending = l.pending[1:]

		if ep, ok := l.binds.epoch(d.slot); !ok || ep != d.epoch {
			continue // slot moved on
		}
		l.mu.Unlock()
		l.deliver(d)
		l.mu.Lock()
	}
	l.draining = false
	l.mu.Unlock()
}

func (l *loader) deliver(d delivery) {
	defer func() {
		if p := recover(); p != nil {
			l.log.Error("slot deliver panicked", Fields{"key": d.res.Key, "panic": p})
		}
	}()
	if d.slot.IsAlive() {
		d.slot.Deliver(d.res)
	}
}

// freshLocked reports whether r.key was not invalidated since r was created.
func (l *loader) freshLocked(r *request) bool {
	return l.snapshotGen(r.key) == r.gen
}

func (l *loader) snapshotGen(k Key) uint64 {
	g, err := l.gen.Snapshot(l.ctx, string(k))
	if err != nil {
		// treat as invalidated: deliveries proceed but caches are not filled
		l.log.Warn("gen snapshot error", Fields{"key": k, "err": err})
		return ^uint64(0)
	}
	return g
}
