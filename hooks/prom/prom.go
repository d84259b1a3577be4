// Package prom exports loader events as Prometheus metrics.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/imgload"
)

// Hooks implements imgload.Hooks on top of counters, gauges and a histogram.
type Hooks struct {
	Served       *prometheus.CounterVec // source
	Dedups       prometheus.Counter
	Fetches      *prometheus.CounterVec // result
	Cancels      *prometheus.CounterVec // state
	Corrupt      *prometheus.CounterVec // source
	StoreErrors  prometheus.Counter
	Outages      prometheus.Counter
	Running      prometheus.Gauge
	Backlog      prometheus.Gauge
	FetchSeconds prometheus.Histogram
	FetchBytes   prometheus.Counter
}

var _ imgload.Hooks = (*Hooks)(nil)

// New registers the metrics with reg under the imgload_ prefix.
func New(reg prometheus.Registerer) *Hooks {
	h := &Hooks{
		Served: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imgload_served_total",
			Help: "Images served without a fetch, by cache tier",
		}, []string{"source"}),
		Dedups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imgload_deduplicated_total",
			Help: "Requests merged into an in-flight request for the same key",
		}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imgload_fetches_total",
			Help: "Network fetches by outcome",
		}, []string{"result"}),
		Cancels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imgload_cancelled_total",
			Help: "Cancelled requests by the state they were cancelled in",
		}, []string{"state"}),
		Corrupt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imgload_corrupt_payloads_total",
			Help: "Payloads that failed to decode, by source",
		}, []string{"source"}),
		StoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imgload_store_write_errors_total",
			Help: "Failed writes to the persistent store",
		}),
		Outages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imgload_invalidate_outages_total",
			Help: "Invalidations where both gen bump and delete failed",
		}),
		Running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "imgload_running",
			Help: "Requests holding a fetch slot at the last fetch start",
		}),
		Backlog: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "imgload_backlog",
			Help: "Queued requests at the last fetch start",
		}),
		FetchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "imgload_fetch_duration_seconds",
			Help:    "Time from fetch start to completion",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		FetchBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imgload_fetch_bytes_total",
			Help: "Bytes downloaded by successful fetches",
		}),
	}

	reg.MustRegister(h.Served, h.Dedups, h.Fetches, h.Cancels, h.Corrupt,
		h.StoreErrors, h.Outages, h.Running, h.Backlog, h.FetchSeconds, h.FetchBytes)
	return h
}

func (h *Hooks) MemoryHit(imgload.Key)    { h.Served.WithLabelValues(imgload.SourceMemory.String()).Inc() }
func (h *Hooks) StoreHit(imgload.Key)     { h.Served.WithLabelValues(imgload.SourceStore.String()).Inc() }
func (h *Hooks) Deduplicated(imgload.Key) { h.Dedups.Inc() }

func (h *Hooks) FetchStarted(_ imgload.Key, running, backlog int) {
	h.Running.Set(float64(running))
	h.Backlog.Set(float64(backlog))
}

func (h *Hooks) FetchCompleted(_ imgload.Key, n int, took time.Duration) {
	h.Fetches.WithLabelValues("ok").Inc()
	h.FetchSeconds.Observe(took.Seconds())
	h.FetchBytes.Add(float64(n))
}

func (h *Hooks) FetchFailed(imgload.Key, error) { h.Fetches.WithLabelValues("error").Inc() }

func (h *Hooks) Cancelled(_ imgload.Key, from imgload.State) {
	h.Cancels.WithLabelValues(from.String()).Inc()
}

func (h *Hooks) StoreWriteFailed(imgload.Key, error) { h.StoreErrors.Inc() }

func (h *Hooks) CorruptPayload(_ imgload.Key, src imgload.Source) {
	h.Corrupt.WithLabelValues(src.String()).Inc()
}

func (h *Hooks) InvalidateOutage(imgload.Key, error, error) { h.Outages.Inc() }
