package imgload

import (
	"context"
	"time"

	"github.com/unkn0wn-root/imgload/bitmap"
	"github.com/unkn0wn-root/imgload/decode"
	gen "github.com/unkn0wn-root/imgload/genstore"
	"github.com/unkn0wn-root/imgload/memcache"
	"github.com/unkn0wn-root/imgload/store"
	"github.com/unkn0wn-root/imgload/transport"
)

// Slot is one UI placement that shows one image at a time.
//
// Implementations must be comparable (use pointer types): the loader keys its
// bindings by Slot. IsAlive reports whether the placement still exists; dead
// slots are treated as unbound and never receive deliveries. IsAlive is called
// with the loader's lock held and must not call the Loader. Deliver is called
// outside the lock and may call back into the Loader.
type Slot interface {
	IsAlive() bool
	Deliver(Result)
}

// Source tells where a delivered image came from.
type Source uint8

const (
	SourceMemory Source = iota + 1
	SourceStore
	SourceNetwork
)

func (s Source) String() string {
	switch s {
	case SourceMemory:
		return "memory"
	case SourceStore:
		return "store"
	case SourceNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Result is delivered exactly once per binding. Either Image or Err is set.
type Result struct {
	Key     Key
	Locator string
	Image   *bitmap.Bitmap
	Source  Source
	Err     error
}

// Stats is a point-in-time view of the scheduler.
type Stats struct {
	Running        int // requests holding a fetch slot, aborting ones included
	Backlog        int
	Lookups        int // requests waiting on the persistent store
	InFlight       int // keys with a non-terminal request
	Bound          int // slots with a desired key
	MemoryItems    int
	MaxConcurrency int
}

// Loader coalesces image requests from UI slots into at most one fetch per
// key, bounded by MaxConcurrency, reading through memory and the persistent
// store first.
type Loader interface {
	// Request binds slot to locator's image. It never blocks on I/O. A nil
	// slot is a no-op; a dead slot only loses its previous binding.
	//
	// A memory hit is delivered before Request returns unless another
	// goroutine is already delivering (for example when Request is called
	// from inside Deliver). The hit is then queued behind that goroutine's
	// deliveries and handed over by it, after Request has returned.
	Request(locator string, slot Slot) error
	// Release drops slot's binding, cancelling a request nobody else wants.
	Release(slot Slot)
	// CancelAll drops the backlog, aborts running fetches and store lookups,
	// and unbinds every affected slot without delivering to it.
	CancelAll()
	// SetMaxConcurrency clamps n to at least 1. Raising it promotes from the
	// backlog; lowering it does not abort running fetches.
	SetMaxConcurrency(n int)
	SetMemoryBudget(b memcache.Budget)
	// Invalidate removes the memory and store copies of locator's image.
	// Fetches already running still deliver but do not repopulate the caches.
	Invalidate(ctx context.Context, locator string) error
	Stats() Stats
	// Close cancels everything, waits for background work (bounded by ctx)
	// and closes the store and generation store.
	Close(ctx context.Context) error
}

// Options tune the loader.
// Only Transport is required; others have sensible defaults.
type Options struct {
	// Required
	Transport transport.Fetcher

	Store           store.Store    // nil => store.Nop (network only)
	Memory          memcache.Cache // nil => memcache.NewTiered(30, 150)
	Decoder         decode.Decoder // nil => decode.Image{}
	GenStore        gen.GenStore   // nil => in-process generations
	Logger          Logger         // nil => NopLogger
	Hooks           Hooks          // nil => NopHooks
	MaxConcurrency  int            // 0 => 5
	LookupWorkers   int            // concurrent store reads + decodes; 0 => 4
	MaxWidth        int            // decode bound; 0 => 1024
	MaxHeight       int            // decode bound; 0 => 1024
	MaxPixels       int            // default decoder only; 0 => decode.DefaultMaxPixels
	FetchTimeout    time.Duration  // per fetch; 0 => none
	LookupTimeout   time.Duration  // per store lookup, then treated as a miss; 0 => 10s
	CleanupInterval time.Duration  // generation sweep; 0 => 1h
	GenRetention    time.Duration  // 0 => 24h
}

func New(opts Options) (Loader, error) {
	return newLoader(opts)
}
