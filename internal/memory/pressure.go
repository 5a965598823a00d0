package memory

import (
	"context"
	"errors"
	"log/slog"
	"runtime/metrics"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Borislavv/go-ash-imgcache/config"
	"github.com/Borislavv/go-ash-imgcache/internal/shared/rate"
	"github.com/dustin/go-humanize"
)

var ErrWatcherNotResponded = errors.New("pressure watcher not responded")

const heapObjectsMetric = "/memory/classes/heap/objects:bytes"

// Watcher flushes the memory tier when the host is under memory pressure.
type Watcher interface {
	ForceCall(timeout time.Duration) error
	Metrics() (scans, hits int64)
	Close() error
}

// Flusher is what the watcher empties on pressure.
type Flusher interface {
	HandleMemoryPressure()
}

// HeapReader reports the current live heap in bytes.
type HeapReader func() uint64

type PressureWatcher struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.PressureCfg
	logger   *slog.Logger
	flusher  Flusher
	heap     HeapReader
	scans    atomic.Int64
	hits     atomic.Int64
	invokeCh chan uint64
}

// NewWatcher starts a watcher, or returns a NoOpWatcher when cfg is nil.
// A nil heap reader reads the live heap from runtime/metrics.
func NewWatcher(ctx context.Context, cfg *config.PressureCfg, logger *slog.Logger, flusher Flusher, heap HeapReader) Watcher {
	if !cfg.Enabled() {
		return NoOpWatcher{}
	}
	if heap == nil {
		heap = readHeapObjects
	}

	ctx, cancel := context.WithCancel(ctx)
	return (&PressureWatcher{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		logger:   logger,
		flusher:  flusher,
		heap:     heap,
		invokeCh: make(chan uint64),
	}).run()
}

// ForceCall flushes the memory tier regardless of the heap size.
func (w *PressureWatcher) ForceCall(timeout time.Duration) error {
	after := time.NewTimer(timeout)
	defer after.Stop()

	select {
	case <-w.ctx.Done():
	case w.invokeCh <- 0:
	case <-after.C:
		return ErrWatcherNotResponded
	}
	return nil
}

func (w *PressureWatcher) Metrics() (scans, hits int64) {
	return w.scans.Load(), w.hits.Load()
}

func (w *PressureWatcher) Close() error {
	w.cancel()
	return nil
}

func (w *PressureWatcher) run() *PressureWatcher {
	w.logger.Info("pressure watcher is running",
		"soft_limit", humanize.IBytes(uint64(w.cfg.SoftLimit)),
		"calls_per_sec", w.cfg.CallsPerSec,
	)

	go func() {
		defer w.logger.Info("pressure watcher is stopped")
		var wg sync.WaitGroup
		wg.Go(w.consumer)
		wg.Go(w.provider)
		wg.Wait()
	}()

	return w
}

// provider - samples the heap and hands readings over the soft limit to the consumer.
func (w *PressureWatcher) provider() {
	sampler := rate.NewSampler(w.ctx, w.cfg.CallsPerSec, w.heap)
	for {
		select {
		case <-w.ctx.Done():
			return
		case r, ok := <-sampler.Chan():
			if !ok {
				return
			}
			w.scans.Add(1)
			if r.Value <= uint64(w.cfg.SoftLimit) {
				continue
			}
			select {
			case <-w.ctx.Done():
				return
			case w.invokeCh <- r.Value:
			}
		}
	}
}

// consumer - flushes the memory tier. A zero heap marks a forced call.
func (w *PressureWatcher) consumer() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case heap := <-w.invokeCh:
			w.hits.Add(1)
			if heap > 0 {
				w.logger.Warn("heap is over the soft limit",
					"heap", humanize.IBytes(heap),
					"soft_limit", humanize.IBytes(uint64(w.cfg.SoftLimit)),
				)
			}
			w.flusher.HandleMemoryPressure()
		}
	}
}

func readHeapObjects() uint64 {
	sample := []metrics.Sample{{Name: heapObjectsMetric}}
	metrics.Read(sample)
	if sample[0].Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return sample[0].Value.Uint64()
}

// NoOpWatcher never flushes and reports zero metrics.
type NoOpWatcher struct{}

func (NoOpWatcher) ForceCall(time.Duration) error { return nil }
func (NoOpWatcher) Metrics() (scans, hits int64)  { return 0, 0 }
func (NoOpWatcher) Close() error                  { return nil }
