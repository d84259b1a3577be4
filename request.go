package imgload

import (
	"container/list"
	"context"
	"time"

	"github.com/google/uuid"
)

// State is a request's position in its lifecycle.
type State uint8

const (
	StateCreated State = iota
	StateAwaitingLocalLookup
	StateServedFromMemory
	StateServedFromStore
	StateQueued
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateAwaitingLocalLookup:
		return "awaiting_local_lookup"
	case StateServedFromMemory:
		return "served_from_memory"
	case StateServedFromStore:
		return "served_from_store"
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case StateServedFromMemory, StateServedFromStore, StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// transitions lists the legal successors of each non-terminal state.
// A store miss with a free fetch slot goes straight from lookup to running.
var transitions = map[State][]State{
	StateCreated:             {StateAwaitingLocalLookup, StateCancelled},
	StateAwaitingLocalLookup: {StateServedFromMemory, StateServedFromStore, StateQueued, StateRunning, StateCancelled},
	StateQueued:              {StateRunning, StateCancelled},
	StateRunning:             {StateCompleted, StateFailed, StateCancelled},
}

func canAdvance(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// request is one coalesced download. All fields are guarded by loader.mu
// except id, key, locator, ctx and cancel which are immutable.
type request struct {
	id      string
	key     Key
	locator string
	ctx     context.Context
	cancel  context.CancelFunc

	state State
	slots []Slot // interested slots, in attach order
	gen   uint64 // generation observed at creation

	aborting   bool          // running, abort signalled, awaiting the transport
	lookupElem *list.Element // position in loader.lookups
	elem       *list.Element // position in loader.backlog
	started    time.Time
}

func newRequest(parent context.Context, key Key, locator string, gen uint64) *request {
	ctx, cancel := context.WithCancel(parent)
	return &request{
		id:      uuid.NewString(),
		key:     key,
		locator: locator,
		ctx:     ctx,
		cancel:  cancel,
		state:   StateCreated,
		gen:     gen,
	}
}

// advance moves to the next state. It returns false, leaving the state
// untouched, when the transition is illegal (a stale callback).
func (r *request) advance(to State) bool {
	if !canAdvance(r.state, to) {
		return false
	}
	r.state = to
	if to.Terminal() {
		r.cancel()
	}
	return true
}

func (r *request) attach(s Slot) {
	for _, have := range r.slots {
		if have == s {
			return
		}
	}
	r.slots = append(r.slots, s)
}

func (r *request) detach(s Slot) {
	for i, have := range r.slots {
		if have == s {
			r.slots = append(r.slots[:i], r.slots[i+1:]...)
			return
		}
	}
}

// liveSlots drops dead slots and returns how many remain. It runs under
// loader.mu.
func (r *request) liveSlots() int {
	n := 0
	for _, s := range r.slots {
		if s.IsAlive() {
			r.slots[n] = s
			n++
		}
	}
	clear(r.slots[n:])
	r.slots = r.slots[:n]
	return n
}
