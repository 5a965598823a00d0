// Package disk implements the persistent tier: artifact bytes stored as one
// file per key under a directory per format, with a per-format LRU index
// enforcing the format's byte capacity.
//
// A single mutex guards every index and spans the whole "write file, update
// entry, update size, evict" sequence, so no reader ever observes a format
// above its capacity or a size that disagrees with the index.
package disk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Borislavv/go-ash-imgcache/config"
	"github.com/Borislavv/go-ash-imgcache/internal/format"
	"github.com/Borislavv/go-ash-imgcache/metrics"
	"github.com/Borislavv/go-ash-imgcache/model"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

const (
	tmpPrefix = ".tmp-"
	dirPerm   = 0o755
)

type Tier struct {
	mu      sync.Mutex
	fs      billy.Filesystem
	cfg     *config.DiskCfg
	logger  *slog.Logger
	metrics metrics.Metrics
	formats map[string]*index
	seq     uint64 // recency clock shared by all formats

	counters *counters
	cancel   context.CancelFunc
	loops    sync.WaitGroup
}

// New creates a tier on top of fs. When cfg.SyncInterval is set the indexes
// are persisted periodically until ctx is done or the tier is closed.
func New(ctx context.Context, fs billy.Filesystem, cfg *config.DiskCfg, logger *slog.Logger, m metrics.Metrics) *Tier {
	if cfg == nil {
		cfg = &config.DiskCfg{}
	}
	if m == nil {
		m = metrics.Noop{}
	}
	t := &Tier{
		fs:       fs,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		formats:  make(map[string]*index),
		counters: &counters{},
	}
	ctx, t.cancel = context.WithCancel(ctx)
	if cfg.SyncInterval > 0 {
		t.loops.Go(func() { t.syncLoop(ctx, cfg.SyncInterval) })
	}
	return t
}

// Close stops the periodic sync, waits for a flush it may be running and
// persists the indexes one last time.
func (t *Tier) Close() error {
	t.cancel()
	t.loops.Wait()
	return t.Flush(context.Background())
}

// Attach makes the tier serve a format. Files left by a previous run are
// adopted: their recency comes from the persisted index, or from file
// modification times when the index is missing. Capacity is enforced before returning.
func (t *Tier) Attach(rec *format.Record) error {
	if !rec.HasDisk() {
		return nil
	}
	name := rec.Name
	if err := t.fs.MkdirAll(name, dirPerm); err != nil {
		return storageErr("create dir", name, err)
	}

	restored, err := t.restore(name)
	if err != nil {
		return storageErr("restore", name, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.formats[name]; ok {
		return fmt.Errorf("%w: %q", model.ErrFormatAlreadyRegistered, name)
	}
	idx := newIndex(rec)
	for _, e := range restored {
		t.seq++
		idx.upsert(e.Key, e.Size, t.seq)
	}
	t.evictUnlocked(idx)
	t.formats[name] = idx
	rec.AddDiskSize(idx.size)
	t.metrics.DiskSize(name, rec.DiskSize())

	t.logger.Info("disk format attached", "format", name, "entries", idx.len(), "size", idx.size, "capacity", rec.DiskCapacity)
	return nil
}

// Get reads the bytes of key and marks the entry as most recently used.
// A file that vanished under the index is reported as a miss.
func (t *Tier) Get(name string, key model.Key) ([]byte, bool, error) {
	t.mu.Lock()
	idx, ok := t.formats[name]
	if !ok {
		t.mu.Unlock()
		return nil, false, nil
	}
	var seq uint64
	if _, ok = idx.get(key); ok {
		t.seq++
		seq = t.seq
		idx.touch(key, seq)
	}
	t.mu.Unlock()

	if !ok {
		t.counters.misses.Add(1)
		return nil, false, nil
	}

	data, err := util.ReadFile(t.fs, t.path(name, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			t.forget(name, key, seq)
			t.counters.misses.Add(1)
			return nil, false, nil
		}
		t.counters.ioErrors.Add(1)
		return nil, false, storageErr("read", t.path(name, key), err)
	}

	t.counters.hits.Add(1)
	return data, true, nil
}

// Put writes the bytes of key, then evicts the least recently used entries of
// the same format until the format fits its capacity again.
func (t *Tier) Put(name string, key model.Key, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.formats[name]
	if !ok {
		return fmt.Errorf("%w: %q has no disk tier", model.ErrFormatNotRegistered, name)
	}

	if err := t.writeFile(name, key, data); err != nil {
		t.counters.ioErrors.Add(1)
		return storageErr("write", t.path(name, key), err)
	}

	t.seq++
	delta := idx.upsert(key, int64(len(data)), t.seq)
	delta += t.evictUnlocked(idx)

	idx.rec.AddDiskSize(delta)
	t.metrics.DiskSize(name, idx.rec.DiskSize())
	t.counters.writes.Add(1)
	return nil
}

// RemoveKeys deletes the given keys of a format. Files absent from the index are deleted too.
func (t *Tier) RemoveKeys(name string, keys ...model.Key) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.formats[name]
	if !ok {
		return nil
	}
	return t.removeKeysUnlocked(idx, keys)
}

// RemoveIf deletes every entry of a format matching pred.
func (t *Tier) RemoveIf(name string, pred func(Entry) bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.formats[name]
	if !ok {
		return nil
	}
	var keys []model.Key
	for el := idx.lru.Front(); el != nil; el = el.Next() {
		if e := el.Value.(*Entry); pred(*e) {
			keys = append(keys, e.Key)
		}
	}
	return t.removeKeysUnlocked(idx, keys)
}

// RemoveFormat deletes every file of a format, indexed or not. The format stays attached.
func (t *Tier) RemoveFormat(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.formats[name]
	if !ok {
		return nil
	}

	keys := make([]model.Key, 0, idx.len())
	for key := range idx.items {
		keys = append(keys, key)
	}
	err := t.removeKeysUnlocked(idx, keys)

	// strays: files a crashed run wrote without indexing them
	infos, dirErr := t.fs.ReadDir(name)
	if dirErr != nil && !errors.Is(dirErr, os.ErrNotExist) {
		return errors.Join(err, storageErr("list", name, dirErr))
	}
	var errs []error
	for _, info := range infos {
		if _, isKey := model.ParseKey(info.Name()); isKey || strings.HasPrefix(info.Name(), tmpPrefix) {
			if rmErr := t.fs.Remove(t.fs.Join(name, info.Name())); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				errs = append(errs, storageErr("remove", info.Name(), rmErr))
			}
		}
	}
	return errors.Join(err, errors.Join(errs...))
}

// Entries returns the entries of a format, most recently used first.
func (t *Tier) Entries(name string) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx, ok := t.formats[name]; ok {
		return idx.snapshot()
	}
	return nil
}

// Size returns the bytes held by a format according to the index.
func (t *Tier) Size(name string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx, ok := t.formats[name]; ok {
		return idx.size
	}
	return 0
}

func (t *Tier) Len(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx, ok := t.formats[name]; ok {
		return idx.len()
	}
	return 0
}

// Metrics returns cumulative counters.
func (t *Tier) Metrics() (hits, misses, writes, evictedItems, evictedBytes, ioErrors int64) {
	return t.counters.snapshot()
}

/**
 * Private API.
 */

func (t *Tier) path(name string, key model.Key) string {
	return t.fs.Join(name, key.String())
}

// writeFile replaces the file of key atomically: readers see either the old or the new bytes.
func (t *Tier) writeFile(name string, key model.Key, data []byte) error {
	f, err := t.fs.TempFile(name, tmpPrefix)
	if err != nil {
		return err
	}
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		_ = t.fs.Remove(f.Name())
		return err
	}
	if err = f.Close(); err != nil {
		_ = t.fs.Remove(f.Name())
		return err
	}
	if err = t.fs.Rename(f.Name(), t.path(name, key)); err != nil {
		_ = t.fs.Remove(f.Name())
		return err
	}
	return nil
}

// evictUnlocked pops LRU entries while the format is over capacity and returns the size delta.
func (t *Tier) evictUnlocked(idx *index) (delta int64) {
	for idx.overCapacity() {
		victim, ok := idx.tail()
		if !ok {
			return delta
		}
		if err := t.fs.Remove(t.path(idx.name(), victim.Key)); err != nil && !errors.Is(err, os.ErrNotExist) {
			t.counters.ioErrors.Add(1)
			t.logger.Warn("failed to remove evicted file", "format", idx.name(), "key", victim.Key.String(), "err", err)
		}
		idx.remove(victim.Key)
		delta -= victim.Size

		t.counters.evictedItems.Add(1)
		t.counters.evictedBytes.Add(victim.Size)
		t.metrics.Evicted(idx.name(), victim.Size)
	}
	return delta
}

func (t *Tier) removeKeysUnlocked(idx *index, keys []model.Key) error {
	var (
		delta int64
		errs  []error
	)
	for _, key := range keys {
		if err := t.fs.Remove(t.path(idx.name(), key)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, storageErr("remove", t.path(idx.name(), key), err))
		}
		if e, ok := idx.remove(key); ok {
			delta -= e.Size
		}
	}
	idx.rec.AddDiskSize(delta)
	t.metrics.DiskSize(idx.name(), idx.rec.DiskSize())
	if len(errs) > 0 {
		t.counters.ioErrors.Add(int64(len(errs)))
	}
	return errors.Join(errs...)
}

// forget drops an entry whose file is gone, unless it was rewritten since seq.
func (t *Tier) forget(name string, key model.Key, seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.formats[name]
	if !ok {
		return
	}
	if e, found := idx.get(key); found && e.Seq == seq {
		idx.remove(key)
		idx.rec.AddDiskSize(-e.Size)
		t.metrics.DiskSize(name, idx.rec.DiskSize())
	}
}

func (t *Tier) syncLoop(ctx context.Context, interval time.Duration) {
	t.logger.Info("disk index sync is running", "interval", interval.String())
	defer t.logger.Info("disk index sync is stopped")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.Flush(ctx); err != nil {
				t.logger.Warn("disk index sync failed", "err", err)
			}
		}
	}
}

func storageErr(op, target string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", model.ErrStorageIO, op, target, err)
}
