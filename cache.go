// Package imgcache is a two-tier cache of image derivatives. Artifacts are
// rendered from an original on the first request for a (entity, format) pair,
// kept decoded in memory and encoded on disk under a per-format byte capacity.
package imgcache

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/Borislavv/go-ash-imgcache/config"
	"github.com/Borislavv/go-ash-imgcache/internal/disk"
	"github.com/Borislavv/go-ash-imgcache/internal/format"
	"github.com/Borislavv/go-ash-imgcache/internal/memory"
	"github.com/Borislavv/go-ash-imgcache/internal/producer"
	"github.com/Borislavv/go-ash-imgcache/internal/telemetry"
	"github.com/Borislavv/go-ash-imgcache/metrics"
	"github.com/Borislavv/go-ash-imgcache/model"
	"github.com/go-git/go-billy/v5/osfs"
	"golang.org/x/sync/semaphore"
)

type ImageCache interface {
	RegisterFormat(f Format) error
	Get(ctx context.Context, entity Entity, formatName string) (image.Image, error)
	Retrieve(entity Entity, formatName string, exec Executor, done func(Result)) (bool, error)
	ClearFormat(name string) error
	RemoveEntity(id string) error
	DiskSize(name string) (uint64, error)
	HandleMemoryPressure()
	Flush(ctx context.Context) error
	Stats() Stats
	io.Closer
}

type Cache struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *config.Cache
	logger *slog.Logger
	opts   options

	formats  *format.Registry
	memory   *memory.Map
	disk     *disk.Tier // nil for memory-only caches
	producer *producer.Producer
	pool     *semaphore.Weighted

	watcher   memory.Watcher
	telemetry telemetry.Logger

	lifecycle sync.RWMutex // orders spawn against Close
	wg        sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New builds a cache and registers cfg.Formats. The disk tier is enabled by
// cfg.Disk or by WithFilesystem.
func New(ctx context.Context, cfg *config.Cache, logger *slog.Logger, opts ...Option) (*Cache, error) {
	if cfg == nil {
		cfg = &config.Cache{}
	}
	cfg.AdjustConfig()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("cache", cfg.Name)

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(ctx)
	c := &Cache{
		ctx:     ctx,
		cancel:  cancel,
		cfg:     cfg,
		logger:  logger,
		opts:    o,
		formats: format.NewRegistry(),
		memory:  memory.NewMap(cfg.Memory),
		pool:    semaphore.NewWeighted(cfg.Pool.Workers),
	}

	var (
		diskPort      producer.Disk
		diskTelemetry telemetry.Disk
	)
	if fs := o.fs; fs != nil || cfg.Disk.Enabled() {
		if fs == nil {
			fs = osfs.New(filepath.Join(cfg.Disk.Dir, cfg.Name))
		}
		c.disk = disk.New(ctx, fs, cfg.Disk, logger, o.metrics)
		diskPort, diskTelemetry = c.disk, c.disk
	}

	c.producer = producer.New(cfg.Pool, c.memory, diskPort, o.transformer, o.codec, o.metrics, logger)
	c.watcher = memory.NewWatcher(ctx, cfg.Pressure, logger, c, o.heap)
	c.telemetry = telemetry.New(ctx, cfg, logger, c.formats, c.memory, diskTelemetry, c.producer, c.watcher)

	for _, fc := range cfg.Formats {
		if err := c.RegisterFormat(fc.Format()); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	return c, nil
}

// RegisterFormat makes a format available. Disk files of the format left by
// a previous run are adopted. Without a disk tier the format is memory-only.
func (c *Cache) RegisterFormat(f Format) error {
	if c.closed.Load() {
		return model.ErrClosed
	}
	if c.disk == nil && f.HasDisk() {
		c.logger.Warn("cache has no disk tier, format is memory-only", "format", f.Name)
		f.DiskCapacity = 0
	}

	var prepare []func(*format.Record) error
	if c.disk != nil {
		prepare = append(prepare, c.disk.Attach)
	}
	rec, err := c.formats.Register(f, prepare...)
	if err != nil {
		return err
	}

	c.logger.Info("format registered",
		"format", rec.Name,
		"size", fmt.Sprintf("%dx%d", rec.Width, rec.Height),
		"scale_mode", rec.ScaleMode,
		"disk_capacity", rec.DiskCapacity,
	)

	if rec.Preload && rec.HasDisk() {
		c.spawn(func() { c.preload(rec) })
	}
	return nil
}

// Get returns the artifact of entity in the named format, producing it when
// neither tier holds it. It blocks until the artifact is available.
func (c *Cache) Get(ctx context.Context, entity Entity, formatName string) (image.Image, error) {
	rec, err := c.formats.MustLookup(formatName)
	if err != nil {
		return nil, err
	}
	if c.closed.Load() {
		return nil, model.ErrClosed
	}
	if entity == nil {
		return nil, fmt.Errorf("%w: nil entity", model.ErrSourceUnavailable)
	}

	key := model.NewKey(entity.CacheID(), rec.Name)
	if img, ok := c.memory.Get(key); ok {
		c.opts.metrics.Hit(metrics.TierMemory)
		return img, nil
	}
	return c.fetch(ctx, key, entity, rec)
}

// Retrieve is the asynchronous Get. A memory hit calls done before returning
// true. Otherwise it returns false and done is later called exactly once
// through exec, which defaults to InlineExecutor. An unknown format is
// reported by the returned error and done is never called.
func (c *Cache) Retrieve(entity Entity, formatName string, exec Executor, done func(Result)) (bool, error) {
	rec, err := c.formats.MustLookup(formatName)
	if err != nil {
		return false, err
	}
	if exec == nil {
		exec = InlineExecutor{}
	}
	if done == nil {
		done = func(Result) {}
	}
	if entity == nil {
		err = fmt.Errorf("%w: nil entity", model.ErrSourceUnavailable)
		if !c.spawn(func() { exec.Execute(func() { done(Result{Err: err}) }) }) {
			return false, model.ErrClosed
		}
		return false, nil
	}
	if c.closed.Load() {
		return false, model.ErrClosed
	}

	key := model.NewKey(entity.CacheID(), rec.Name)
	if img, ok := c.memory.Get(key); ok {
		c.opts.metrics.Hit(metrics.TierMemory)
		done(Result{Image: img})
		return true, nil
	}

	spawned := c.spawn(func() {
		res := c.background(key, entity, rec)
		exec.Execute(func() { done(res) })
	})
	if !spawned {
		return false, model.ErrClosed
	}
	return false, nil
}

// ClearFormat removes every artifact of the format from both tiers. The format stays registered.
func (c *Cache) ClearFormat(name string) error {
	rec, err := c.formats.MustLookup(name)
	if err != nil {
		return err
	}
	rec.BumpEpoch()
	removed := c.memory.RemoveFormat(rec.Name)
	if c.disk != nil && rec.HasDisk() {
		err = c.disk.RemoveFormat(rec.Name)
	}
	c.logger.Info("format cleared", "format", rec.Name, "memory_items", removed, "disk_size", rec.DiskSize())
	return err
}

// RemoveEntity removes the artifacts of the entity id in every format from both tiers.
func (c *Cache) RemoveEntity(id string) error {
	var errs []error
	c.formats.Walk(func(rec *format.Record) bool {
		key := model.NewKey(id, rec.Name)
		rec.BumpEpoch()
		c.memory.Remove(key)
		if c.disk != nil && rec.HasDisk() {
			if err := c.disk.RemoveKeys(rec.Name, key); err != nil {
				errs = append(errs, err)
			}
		}
		return true
	})
	return errors.Join(errs...)
}

// DiskSize returns the bytes the format holds on disk.
func (c *Cache) DiskSize(name string) (uint64, error) {
	rec, err := c.formats.MustLookup(name)
	if err != nil {
		return 0, err
	}
	return rec.DiskSize(), nil
}

// HandleMemoryPressure drops every artifact from the memory tier. The disk tier is untouched.
func (c *Cache) HandleMemoryPressure() {
	items := c.memory.Clear()
	c.opts.metrics.MemoryFlushed(items)
	c.logger.Info("memory tier flushed", "items", items)
}

// Flush persists the disk indexes.
func (c *Cache) Flush(ctx context.Context) error {
	if c.disk == nil {
		return nil
	}
	return c.disk.Flush(ctx)
}

// Close stops the background workers, waits for pending retrievals and
// persists the disk indexes. It is idempotent.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() {
		c.lifecycle.Lock()
		c.closed.Store(true)
		c.lifecycle.Unlock()

		c.cancel()
		c.wg.Wait()

		_ = c.watcher.Close()
		_ = c.telemetry.Close()

		if c.disk != nil {
			c.closeErr = c.disk.Close()
		}
		c.logger.Info("cache closed")
	})
	return c.closeErr
}

func (c *Cache) Name() string { return c.cfg.Name }

/**
 * Private API.
 */

// spawn runs fn on a goroutine Close waits for. It refuses once the cache is closed.
func (c *Cache) spawn(fn func()) bool {
	c.lifecycle.RLock()
	defer c.lifecycle.RUnlock()
	if c.closed.Load() {
		return false
	}
	c.wg.Go(fn)
	return true
}

// fetch continues a memory miss: disk, then production.
func (c *Cache) fetch(ctx context.Context, key model.Key, entity Entity, rec *format.Record) (image.Image, error) {
	img, ok, err := c.fromDisk(key, rec)
	if err != nil {
		return nil, err
	}
	if ok {
		return img, nil
	}
	c.opts.metrics.Miss()
	return c.producer.Produce(ctx, key, entity, rec.Format)
}

// fromDisk promotes a disk hit to memory. Bytes that fail to decode count as
// a miss so the production overwrites them. A removal of the format that lands
// while the read is in flight still lets the caller have the image but keeps
// it out of memory.
func (c *Cache) fromDisk(key model.Key, rec *format.Record) (image.Image, bool, error) {
	if c.disk == nil || !rec.HasDisk() {
		return nil, false, nil
	}
	epoch := rec.Epoch()
	data, ok, err := c.disk.Get(rec.Name, key)
	if err != nil || !ok {
		return nil, false, err
	}
	img, err := c.opts.codec.Decode(data)
	if err != nil {
		c.logger.Warn("disk artifact is corrupted, regenerating", "format", rec.Name, "key", key.String(), "err", err)
		return nil, false, nil
	}
	if !c.memory.SetIf(key, rec.Name, img, func() bool { return rec.Epoch() == epoch }) {
		c.logger.Debug("disk read raced a removal, not promoted", "format", rec.Name, "key", key.String())
	}
	c.opts.metrics.Hit(metrics.TierDisk)
	return img, true, nil
}

// background runs a retrieval on the bounded pool. Once admitted it is not
// cancelled by Close, which waits for it instead.
func (c *Cache) background(key model.Key, entity Entity, rec *format.Record) Result {
	if err := c.pool.Acquire(c.ctx, 1); err != nil {
		return Result{Err: model.ErrClosed}
	}
	defer c.pool.Release(1)

	img, err := c.fetch(context.WithoutCancel(c.ctx), key, entity, rec)
	return Result{Image: img, Err: err}
}

// preload warms memory with the disk entries of a format, least recently used
// first so the disk recency order survives the reads.
func (c *Cache) preload(rec *format.Record) {
	entries := c.disk.Entries(rec.Name)
	var loaded int
	for i := len(entries) - 1; i >= 0; i-- {
		if c.ctx.Err() != nil {
			return
		}
		img, ok, err := c.fromDisk(entries[i].Key, rec)
		if err != nil {
			c.logger.Warn("preload read failed", "format", rec.Name, "err", err)
			continue
		}
		if ok && img != nil {
			loaded++
		}
	}
	c.logger.Info("format preloaded", "format", rec.Name, "items", loaded)
}

var _ ImageCache = (*Cache)(nil)
