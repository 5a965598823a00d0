package prom

import (
	"time"

	"github.com/Borislavv/go-ash-imgcache/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Adapter implements metrics.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits          *prometheus.CounterVec
	misses        prometheus.Counter
	produced      *prometheus.HistogramVec
	produceFailed *prometheus.CounterVec
	evictedBytes  *prometheus.CounterVec
	evictedItems  *prometheus.CounterVec
	diskSize      *prometheus.GaugeVec
	flushedItems  prometheus.Counter
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil), e.g. the cache name
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Cache hits by tier",
			ConstLabels: constLabels,
		}, []string{"tier"}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Requests that missed both tiers",
			ConstLabels: constLabels,
		}),
		produced: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "production_seconds",
			Help:        "Duration of successful artifact productions",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"format"}),
		produceFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "production_failures_total",
			Help:        "Failed artifact productions",
			ConstLabels: constLabels,
		}, []string{"format"}),
		evictedBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "disk_evicted_bytes_total",
			Help:        "Bytes evicted from the disk tier",
			ConstLabels: constLabels,
		}, []string{"format"}),
		evictedItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "disk_evictions_total",
			Help:        "Entries evicted from the disk tier",
			ConstLabels: constLabels,
		}, []string{"format"}),
		diskSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "disk_size_bytes",
			Help:        "Bytes held on disk per format",
			ConstLabels: constLabels,
		}, []string{"format"}),
		flushedItems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "memory_flushed_total",
			Help:        "Entries dropped from the memory tier on pressure",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.produced, a.produceFailed, a.evictedBytes, a.evictedItems, a.diskSize, a.flushedItems)
	return a
}

func (a *Adapter) Hit(tier metrics.Tier) { a.hits.WithLabelValues(string(tier)).Inc() }

func (a *Adapter) Miss() { a.misses.Inc() }

func (a *Adapter) Produced(format string, took time.Duration) {
	a.produced.WithLabelValues(format).Observe(took.Seconds())
}

func (a *Adapter) ProduceFailed(format string) { a.produceFailed.WithLabelValues(format).Inc() }

// Evicted records one disk eviction of the given size.
func (a *Adapter) Evicted(format string, bytes int64) {
	a.evictedItems.WithLabelValues(format).Inc()
	a.evictedBytes.WithLabelValues(format).Add(float64(bytes))
}

func (a *Adapter) DiskSize(format string, bytes uint64) {
	a.diskSize.WithLabelValues(format).Set(float64(bytes))
}

func (a *Adapter) MemoryFlushed(items int64) { a.flushedItems.Add(float64(items)) }

// Compile-time check: ensure Adapter implements metrics.Metrics.
var _ metrics.Metrics = (*Adapter)(nil)
