package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/Borislavv/go-ash-imgcache/config"
	"github.com/Borislavv/go-ash-imgcache/internal/format"
	"github.com/dustin/go-humanize"
)

type Logger interface {
	Interval() time.Duration
	Close() error
}

type Memory interface {
	Metrics() (hits, misses, evicted, flushes, flushedItems int64)
	Len() int64
	Mem() int64
}

type Disk interface {
	Metrics() (hits, misses, writes, evictedItems, evictedBytes, ioErrors int64)
}

type Producer interface {
	Metrics() (produced, failed, shared, abandoned, inFlight int64)
}

type Pressure interface {
	Metrics() (scans, hits int64)
}

type Formats interface {
	Walk(fn func(rec *format.Record) bool)
}

type Logs struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.Cache
	logger   *slog.Logger
	formats  Formats
	sampler  sampler
	interval time.Duration
}

// New starts the stat log loop when cfg.Telemetry is set. disk may be nil
// for memory-only caches.
func New(
	ctx context.Context,
	cfg *config.Cache,
	logger *slog.Logger,
	formats Formats,
	memory Memory,
	disk Disk,
	producer Producer,
	pressure Pressure,
) *Logs {
	ctx, cancel := context.WithCancel(ctx)
	var interval time.Duration
	if cfg.Telemetry.Enabled() {
		interval = cfg.Telemetry.Interval
	}
	return (&Logs{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		logger:   logger,
		formats:  formats,
		sampler:  newSampler(memory, disk, producer, pressure),
		interval: interval,
	}).run()
}

func (l *Logs) Interval() time.Duration {
	return l.interval
}

func (l *Logs) Close() error {
	l.cancel()
	return nil
}

func (l *Logs) run() *Logs {
	if l.interval > 0 {
		go l.loop()
	}
	return l
}

func (l *Logs) loop() {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	var softLimit = "INF"
	if l.cfg.Pressure.Enabled() {
		softLimit = humanize.IBytes(uint64(l.cfg.Pressure.SoftLimit))
	}

	prev := l.sampler.snapshot()
	for {
		select {
		case <-l.ctx.Done():
			return

		case <-ticker.C:
			cur := l.sampler.snapshot()
			d := deltaSnapshot(prev, cur)
			prev = cur
			l.write(d, softLimit)
		}
	}
}

func (l *Logs) write(d snapshot, softLimit string) {
	common := []any{"cache", l.cfg.Name, "interval", l.interval.String()}

	l.logger.Info("memory_tier",
		append(common,
			"hits", int64(d.memHits),
			"misses", int64(d.memMisses),
			"evicted", int64(d.memEvicted),
			"size", humanize.IBytes(uint64(max(l.sampler.memory.Mem(), 0))),
			"entries", l.sampler.memory.Len(),
		)...,
	)

	if d.pressureScans > 0 || d.memFlushes > 0 {
		l.logger.Info("pressure_watcher",
			append(common,
				"scans", int64(d.pressureScans),
				"hits", int64(d.pressureHits),
				"flushes", int64(d.memFlushes),
				"flushed_items", int64(d.memFlushedItems),
				"soft_limit", softLimit,
			)...,
		)
	}

	if l.sampler.disk != nil {
		l.logger.Info("disk_tier",
			append(common,
				"hits", int64(d.diskHits),
				"misses", int64(d.diskMisses),
				"writes", int64(d.diskWrites),
				"freed_items", int64(d.diskEvictedItems),
				"freed_bytes", humanize.IBytes(d.diskEvictedBytes),
				"io_errors", int64(d.diskIOErrors),
			)...,
		)
		l.formats.Walk(func(rec *format.Record) bool {
			if rec.HasDisk() {
				l.logger.Info("disk_format",
					append(common,
						"format", rec.Name,
						"size", humanize.IBytes(rec.DiskSize()),
						"capacity", humanize.IBytes(rec.DiskCapacity),
					)...,
				)
			}
			return true
		})
	}

	l.logger.Info("producer",
		append(common,
			"produced", int64(d.produced),
			"failed", int64(d.produceFailed),
			"shared", int64(d.produceShared),
			"abandoned", int64(d.produceAbandoned),
			"in_flight", l.sampler.inFlight(),
		)...,
	)
}
