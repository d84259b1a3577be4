// Package sloghooks reports loader events through log/slog, with sampling
// for the high-volume ones.
package sloghooks

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/imgload"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	HitEvery     uint64 // memory and store hits, dedups
	FetchEvery   uint64 // fetch started/completed
	CorruptEvery uint64
	// Optional key redactor. Keys are already digests; default logs them as is.
	Redact func(imgload.Key) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	hitCtr     atomic.Uint64
	fetchCtr   atomic.Uint64
	corruptCtr atomic.Uint64
}

var _ imgload.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k imgload.Key) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	return string(k)
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) hit(event string, k imgload.Key) {
	if h.l == nil || !sample(h.opts.HitEvery, &h.hitCtr) {
		return
	}
	h.l.Debug(event, "key", h.redact(k))
}

func (h *Hooks) MemoryHit(k imgload.Key)    { h.hit("imgload.memory_hit", k) }
func (h *Hooks) StoreHit(k imgload.Key)     { h.hit("imgload.store_hit", k) }
func (h *Hooks) Deduplicated(k imgload.Key) { h.hit("imgload.deduplicated", k) }

func (h *Hooks) FetchStarted(k imgload.Key, running, backlog int) {
	if h.l == nil || !sample(h.opts.FetchEvery, &h.fetchCtr) {
		return
	}
	h.l.Debug("imgload.fetch_started",
		"key", h.redact(k),
		"running", running,
		"backlog", backlog)
}

func (h *Hooks) FetchCompleted(k imgload.Key, n int, took time.Duration) {
	if h.l == nil || !sample(h.opts.FetchEvery, &h.fetchCtr) {
		return
	}
	h.l.Info("imgload.fetch_completed",
		"key", h.redact(k),
		"bytes", n,
		"took", took)
}

func (h *Hooks) FetchFailed(k imgload.Key, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("imgload.fetch_failed",
		"key", h.redact(k),
		"err", err)
}

func (h *Hooks) Cancelled(k imgload.Key, from imgload.State) {
	if h.l == nil {
		return
	}
	h.l.Debug("imgload.cancelled",
		"key", h.redact(k),
		"state", from.String())
}

func (h *Hooks) StoreWriteFailed(k imgload.Key, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("imgload.store_write_failed",
		"key", h.redact(k),
		"err", err)
}

func (h *Hooks) CorruptPayload(k imgload.Key, src imgload.Source) {
	if h.l == nil || !sample(h.opts.CorruptEvery, &h.corruptCtr) {
		return
	}
	h.l.Warn("imgload.corrupt_payload",
		"key", h.redact(k),
		"source", src.String())
}

func (h *Hooks) InvalidateOutage(k imgload.Key, bumpErr, delErr error) {
	if h.l == nil {
		return
	}
	h.l.Error("imgload.invalidate_outage",
		"key", h.redact(k),
		"bump_err", bumpErr,
		"del_err", delErr)
}
