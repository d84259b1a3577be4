package imgload

// binding is what a slot currently wants. req is the request servicing it,
// nil once the slot has been served.
type binding struct {
	key   Key
	req   *request
	epoch uint64
}

const sweepEvery = 256

// bindings tracks per slot the desired key independent of which request is
// servicing it, since requests are merged and replaced. Guarded by loader.mu.
//
// epoch increases every time a slot expresses a new desire (Request or
// Release). A queued delivery carries the epoch it was decided under and is
// dropped if the slot moved on before the delivery ran.
type bindings struct {
	m     map[Slot]*binding
	touch int
}

func newBindings() *bindings {
	return &bindings{m: make(map[Slot]*binding)}
}

func (b *bindings) get(s Slot) *binding {
	e, ok := b.m[s]
	if !ok {
		return nil
	}
	if !s.IsAlive() {
		delete(b.m, s)
		return nil
	}
	return e
}

// renew starts a new desire for s and returns its epoch.
func (b *bindings) renew(s Slot) uint64 {
	b.touch++
	if b.touch%sweepEvery == 0 {
		b.sweep()
	}
	e, ok := b.m[s]
	if !ok {
		e = &binding{}
		b.m[s] = e
	}
	e.epoch++
	e.key, e.req = "", nil
	return e.epoch
}

func (b *bindings) bind(s Slot, key Key, r *request) {
	if !s.IsAlive() {
		delete(b.m, s)
		return
	}
	e, ok := b.m[s]
	if !ok {
		e = &binding{}
		b.m[s] = e
	}
	e.key, e.req = key, r
}

// currentKey reports the key s wants, if any.
func (b *bindings) currentKey(s Slot) (Key, bool) {
	e := b.get(s)
	if e == nil || e.key == "" {
		return "", false
	}
	return e.key, true
}

// forget drops s without checking liveness and returns the request that was
// servicing it.
func (b *bindings) forget(s Slot) *request {
	e, ok := b.m[s]
	if !ok {
		return nil
	}
	delete(b.m, s)
	return e.req
}

// unbind clears the desired key but keeps the epoch so pending deliveries
// decided for this binding still go out.
func (b *bindings) unbind(s Slot) {
	if e, ok := b.m[s]; ok {
		e.key, e.req = "", nil
	}
}

func (b *bindings) epoch(s Slot) (uint64, bool) {
	e, ok := b.m[s]
	if !ok {
		return 0, false
	}
	return e.epoch, true
}

func (b *bindings) bound() int {
	n := 0
	for _, e := range b.m {
		if e.key != "" {
			n++
		}
	}
	return n
}

// sweep forgets dead slots.
func (b *bindings) sweep() {
	for s := range b.m {
		if !s.IsAlive() {
			delete(b.m, s)
		}
	}
}
