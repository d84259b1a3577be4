package imgload

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking: the loader calls most of
// them while holding its scheduling lock. Wrap slow sinks with hooks/async.
type Hooks interface {
	// A Request was served from the memory cache.
	MemoryHit(key Key)
	// A lookup found the key in the persistent store.
	StoreHit(key Key)
	// A Request attached to an existing request for the same key.
	Deduplicated(key Key)

	// A request entered the running set. running and backlog are the sizes
	// after the transition.
	FetchStarted(key Key, running, backlog int)
	FetchCompleted(key Key, bytes int, took time.Duration)
	FetchFailed(key Key, err error)
	// A request was cancelled while in state from.
	Cancelled(key Key, from State)

	// Persisting fetched bytes failed; delivery still happened.
	StoreWriteFailed(key Key, err error)
	// Bytes from src did not decode; any stored copy was deleted.
	CorruptPayload(key Key, src Source)
	// Both gen bump and store delete failed during Invalidate.
	InvalidateOutage(key Key, bumpErr, delErr error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) MemoryHit(Key)                          {}
func (NopHooks) StoreHit(Key)                           {}
func (NopHooks) Deduplicated(Key)                       {}
func (NopHooks) FetchStarted(Key, int, int)             {}
func (NopHooks) FetchCompleted(Key, int, time.Duration) {}
func (NopHooks) FetchFailed(Key, error)                 {}
func (NopHooks) Cancelled(Key, State)                   {}
func (NopHooks) StoreWriteFailed(Key, error)            {}
func (NopHooks) CorruptPayload(Key, Source)             {}
func (NopHooks) InvalidateOutage(Key, error, error)     {}

// MultiHooks calls each of its hooks in order.
type MultiHooks []Hooks

var _ Hooks = MultiHooks(nil)

func (m MultiHooks) MemoryHit(k Key) {
	for _, h := range m {
		h.MemoryHit(k)
	}
}

func (m MultiHooks) StoreHit(k Key) {
	for _, h := range m {
		h.StoreHit(k)
	}
}

func (m MultiHooks) Deduplicated(k Key) {
	for _, h := range m {
		h.Deduplicated(k)
	}
}

func (m MultiHooks) FetchStarted(k Key, running, backlog int) {
	for _, h := range m {
		h.FetchStarted(k, running, backlog)
	}
}

func (m MultiHooks) FetchCompleted(k Key, bytes int, took time.Duration) {
	for _, h := range m {
		h.FetchCompleted(k, bytes, took)
	}
}

func (m MultiHooks) FetchFailed(k Key, err error) {
	for _, h := range m {
		h.FetchFailed(k, err)
	}
}

func (m MultiHooks) Cancelled(k Key, from State) {
	for _, h := range m {
		h.Cancelled(k, from)
	}
}

func (m MultiHooks) StoreWriteFailed(k Key, err error) {
	for _, h := range m {
		h.StoreWriteFailed(k, err)
	}
}

func (m MultiHooks) CorruptPayload(k Key, src Source) {
	for _, h := range m {
		h.CorruptPayload(k, src)
	}
}

func (m MultiHooks) InvalidateOutage(k Key, bumpErr, delErr error) {
	for _, h := range m {
		h.InvalidateOutage(k, bumpErr, delErr)
	}
}
