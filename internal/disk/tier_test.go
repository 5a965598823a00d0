package disk

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Borislavv/go-ash-imgcache/config"
	"github.com/Borislavv/go-ash-imgcache/internal/format"
	"github.com/Borislavv/go-ash-imgcache/model"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"
)

func newTier(t *testing.T, fs billy.Filesystem, cfg *config.DiskCfg) *Tier {
	t.Helper()
	return New(t.Context(), fs, cfg, slog.New(slog.DiscardHandler), nil)
}

func attach(t *testing.T, tier *Tier, name string, capacity uint64) *format.Record {
	t.Helper()
	rec, err := format.NewRegistry().Register(model.Format{Name: name, Width: 10, Height: 10, DiskCapacity: capacity})
	require.NoError(t, err)
	require.NoError(t, tier.Attach(rec))
	return rec
}

func blob(n int, b byte) []byte { return bytes.Repeat([]byte{b}, n) }

// TestTier_EvictsLeastRecentlyWritten keeps the two newest 400 byte artifacts under a 1000 byte capacity.
func TestTier_EvictsLeastRecentlyWritten(t *testing.T) {
	tier := newTier(t, memfs.New(), nil)
	rec := attach(t, tier, "thumb", 1000)

	a, b, c := model.NewKey("A", "thumb"), model.NewKey("B", "thumb"), model.NewKey("C", "thumb")
	require.NoError(t, tier.Put("thumb", a, blob(400, 'a')))
	require.NoError(t, tier.Put("thumb", b, blob(400, 'b')))
	require.NoError(t, tier.Put("thumb", c, blob(400, 'c')))

	_, ok, err := tier.Get("thumb", a)
	require.NoError(t, err)
	require.False(t, ok)

	for _, key := range []model.Key{b, c} {
		data, found, gerr := tier.Get("thumb", key)
		require.NoError(t, gerr)
		require.True(t, found)
		require.Len(t, data, 400)
	}
	require.Equal(t, uint64(800), rec.DiskSize())
	require.Equal(t, int64(800), tier.Size("thumb"))

	_, err = tier.fs.Stat(tier.path("thumb", a))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, _, _, evictedItems, evictedBytes, _ := tier.Metrics()
	require.Equal(t, int64(1), evictedItems)
	require.Equal(t, int64(400), evictedBytes)
}

// TestTier_ReadRefreshesRecency evicts the entry that was not read.
func TestTier_ReadRefreshesRecency(t *testing.T) {
	tier := newTier(t, memfs.New(), nil)
	attach(t, tier, "thumb", 1000)

	a, b, c := model.NewKey("A", "thumb"), model.NewKey("B", "thumb"), model.NewKey("C", "thumb")
	require.NoError(t, tier.Put("thumb", a, blob(400, 'a')))
	require.NoError(t, tier.Put("thumb", b, blob(400, 'b')))

	_, ok, err := tier.Get("thumb", a)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, tier.Put("thumb", c, blob(400, 'c')))

	entries := tier.Entries("thumb")
	require.Len(t, entries, 2)
	require.Equal(t, c, entries[0].Key)
	require.Equal(t, a, entries[1].Key)
}

// TestTier_FormatsAreIsolated never evicts one format to make room in another.
func TestTier_FormatsAreIsolated(t *testing.T) {
	tier := newTier(t, memfs.New(), nil)
	small := attach(t, tier, "small", 500)
	large := attach(t, tier, "large", 10_000)

	keep := model.NewKey("keep", "large")
	require.NoError(t, tier.Put("large", keep, blob(300, 'k')))
	for i := 0; i < 10; i++ {
		require.NoError(t, tier.Put("small", model.NewKey(fmt.Sprint(i), "small"), blob(200, 's')))
	}

	require.Equal(t, uint64(400), small.DiskSize())
	require.Equal(t, uint64(300), large.DiskSize())
	_, ok, err := tier.Get("large", keep)
	require.NoError(t, err)
	require.True(t, ok)
}

// TestTier_OversizedArtifact is written and then evicted by the same Put.
func TestTier_OversizedArtifact(t *testing.T) {
	tier := newTier(t, memfs.New(), nil)
	rec := attach(t, tier, "thumb", 100)

	require.NoError(t, tier.Put("thumb", model.NewKey("huge", "thumb"), blob(500, 'h')))
	require.Equal(t, uint64(0), rec.DiskSize())
	require.Zero(t, tier.Len("thumb"))
}

// TestTier_Overwrite replaces the bytes and accounts the size difference.
func TestTier_Overwrite(t *testing.T) {
	tier := newTier(t, memfs.New(), nil)
	rec := attach(t, tier, "thumb", 1000)
	key := model.NewKey("photo", "thumb")

	require.NoError(t, tier.Put("thumb", key, blob(300, 'x')))
	require.NoError(t, tier.Put("thumb", key, blob(100, 'y')))

	data, ok, err := tier.Get("thumb", key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, blob(100, 'y'), data)
	require.Equal(t, uint64(100), rec.DiskSize())
	require.Equal(t, 1, tier.Len("thumb"))
}

// TestTier_Put_UnknownFormat rejects formats that were never attached.
func TestTier_Put_UnknownFormat(t *testing.T) {
	tier := newTier(t, memfs.New(), nil)
	err := tier.Put("missing", model.NewKey("x", "missing"), blob(1, 'x'))
	require.ErrorIs(t, err, model.ErrFormatNotRegistered)
}

// TestTier_Attach_Twice keeps the first attachment.
func TestTier_Attach_Twice(t *testing.T) {
	tier := newTier(t, memfs.New(), nil)
	rec := attach(t, tier, "thumb", 1000)
	require.ErrorIs(t, tier.Attach(rec), model.ErrFormatAlreadyRegistered)
}

// TestTier_Attach_NoDisk ignores formats without capacity.
func TestTier_Attach_NoDisk(t *testing.T) {
	tier := newTier(t, memfs.New(), nil)
	attach(t, tier, "volatile", 0)

	_, ok, err := tier.Get("volatile", model.NewKey("x", "volatile"))
	require.NoError(t, err)
	require.False(t, ok)
	require.ErrorIs(t, tier.Put("volatile", model.NewKey("x", "volatile"), blob(1, 'x')), model.ErrFormatNotRegistered)
}

// TestTier_VanishedFileIsMiss drops the entry when its file disappeared behind the index.
func TestTier_VanishedFileIsMiss(t *testing.T) {
	fs := memfs.New()
	tier := newTier(t, fs, nil)
	rec := attach(t, tier, "thumb", 1000)
	key := model.NewKey("photo", "thumb")

	require.NoError(t, tier.Put("thumb", key, blob(100, 'x')))
	require.NoError(t, fs.Remove(tier.path("thumb", key)))

	_, ok, err := tier.Get("thumb", key)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, uint64(0), rec.DiskSize())
	require.Zero(t, tier.Len("thumb"))
}

// TestTier_RemoveKeys deletes files and sizes of the given keys only.
func TestTier_RemoveKeys(t *testing.T) {
	tier := newTier(t, memfs.New(), nil)
	rec := attach(t, tier, "thumb", 1000)
	a, b := model.NewKey("A", "thumb"), model.NewKey("B", "thumb")

	require.NoError(t, tier.Put("thumb", a, blob(100, 'a')))
	require.NoError(t, tier.Put("thumb", b, blob(200, 'b')))
	require.NoError(t, tier.RemoveKeys("thumb", a, model.NewKey("never", "thumb")))

	require.Equal(t, uint64(200), rec.DiskSize())
	_, ok, _ := tier.Get("thumb", a)
	require.False(t, ok)
	_, ok, _ = tier.Get("thumb", b)
	require.True(t, ok)
}

// TestTier_RemoveIf deletes matching entries.
func TestTier_RemoveIf(t *testing.T) {
	tier := newTier(t, memfs.New(), nil)
	rec := attach(t, tier, "thumb", 10_000)
	for i := 1; i <= 4; i++ {
		require.NoError(t, tier.Put("thumb", model.NewKey(fmt.Sprint(i), "thumb"), blob(i*100, 'x')))
	}

	require.NoError(t, tier.RemoveIf("thumb", func(e Entry) bool { return e.Size >= 300 }))
	require.Equal(t, uint64(300), rec.DiskSize())
	require.Equal(t, 2, tier.Len("thumb"))
}

// TestTier_RemoveFormat also deletes files the index does not know.
func TestTier_RemoveFormat(t *testing.T) {
	fs := memfs.New()
	tier := newTier(t, fs, nil)
	rec := attach(t, tier, "thumb", 10_000)

	require.NoError(t, tier.Put("thumb", model.NewKey("A", "thumb"), blob(100, 'a')))
	stray := model.NewKey("stray", "thumb")
	require.NoError(t, util.WriteFile(fs, tier.path("thumb", stray), blob(50, 's'), 0o644))

	require.NoError(t, tier.RemoveFormat("thumb"))
	require.Equal(t, uint64(0), rec.DiskSize())

	infos, err := fs.ReadDir("thumb")
	require.NoError(t, err)
	for _, info := range infos {
		_, isKey := model.ParseKey(info.Name())
		require.False(t, isKey, info.Name())
	}

	require.NoError(t, tier.Put("thumb", model.NewKey("B", "thumb"), blob(10, 'b')))
	require.Equal(t, uint64(10), rec.DiskSize())
}

// TestTier_SizeMatchesEntries holds under concurrent writers and readers.
func TestTier_SizeMatchesEntries(t *testing.T) {
	tier := newTier(t, memfs.New(), nil)
	rec := attach(t, tier, "thumb", 5_000)

	var (
		wg       sync.WaitGroup
		errs     = make(chan error, 8*100)
		overflow atomic.Int64
	)
	for w := 0; w < 8; w++ {
		wg.Go(func() {
			for i := 0; i < 100; i++ {
				key := model.NewKey(fmt.Sprintf("%d-%d", w, i%20), "thumb")
				if i%3 == 0 {
					_, _, _ = tier.Get("thumb", key)
					continue
				}
				if err := tier.Put("thumb", key, blob(50+i, 'x')); err != nil {
					errs <- err
				}
				if rec.DiskSize() > 5_000 {
					overflow.Add(1)
				}
			}
		})
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Zero(t, overflow.Load(), "disk size went over the capacity")

	var sum int64
	for _, e := range tier.Entries("thumb") {
		sum += e.Size
	}
	require.Equal(t, sum, tier.Size("thumb"))
	require.Equal(t, uint64(sum), rec.DiskSize())
}

// TestTier_Persistence restores entries and their order from the persisted index.
func TestTier_Persistence(t *testing.T) {
	for _, cfg := range []*config.DiskCfg{{}, {Gzip: true, Crc32Control: true}} {
		t.Run(fmt.Sprintf("gzip=%v", cfg.Gzip), func(t *testing.T) {
			fs := memfs.New()
			first := newTier(t, fs, cfg)
			attach(t, first, "thumb", 1000)

			a, b, c := model.NewKey("A", "thumb"), model.NewKey("B", "thumb"), model.NewKey("C", "thumb")
			require.NoError(t, first.Put("thumb", a, blob(300, 'a')))
			require.NoError(t, first.Put("thumb", b, blob(300, 'b')))
			_, _, _ = first.Get("thumb", a)
			require.NoError(t, first.Flush(t.Context()))

			second := newTier(t, fs, cfg)
			rec := attach(t, second, "thumb", 1000)
			require.Equal(t, uint64(600), rec.DiskSize())
			require.Equal(t, []model.Key{a, b}, keysOf(second.Entries("thumb")))

			require.NoError(t, second.Put("thumb", c, blob(300, 'c')))
			require.NoError(t, second.Put("thumb", model.NewKey("D", "thumb"), blob(300, 'd')))
			_, ok, _ := second.Get("thumb", b)
			require.False(t, ok, "b was the least recently used entry")
			_, ok, _ = second.Get("thumb", a)
			require.True(t, ok)
		})
	}
}

// TestTier_RebuildFromFiles orders unindexed files by modification time and enforces the capacity.
func TestTier_RebuildFromFiles(t *testing.T) {
	dir := t.TempDir()
	keys := []model.Key{model.NewKey("old", "thumb"), model.NewKey("mid", "thumb"), model.NewKey("new", "thumb")}

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "thumb"), 0o755))
	base := time.Now().Add(-time.Hour)
	for i, key := range keys {
		path := filepath.Join(dir, "thumb", key.String())
		require.NoError(t, os.WriteFile(path, blob(400, 'x'), 0o644))
		ts := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(path, ts, ts))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "thumb", tmpPrefix+"123"), blob(10, 't'), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "thumb", "unrelated.txt"), blob(10, 'u'), 0o644))

	tier := newTier(t, osfs.New(dir), nil)
	rec := attach(t, tier, "thumb", 1000)

	require.Equal(t, uint64(800), rec.DiskSize())
	require.Equal(t, []model.Key{keys[2], keys[1]}, keysOf(tier.Entries("thumb")))

	_, err := os.Stat(filepath.Join(dir, "thumb", keys[0].String()))
	require.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(filepath.Join(dir, "thumb", tmpPrefix+"123"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestTier_CorruptedIndex falls back to the files themselves.
func TestTier_CorruptedIndex(t *testing.T) {
	fs := memfs.New()
	first := newTier(t, fs, &config.DiskCfg{Crc32Control: true})
	attach(t, first, "thumb", 1000)
	key := model.NewKey("A", "thumb")
	require.NoError(t, first.Put("thumb", key, blob(100, 'a')))
	require.NoError(t, first.Flush(t.Context()))

	require.NoError(t, util.WriteFile(fs, fs.Join("thumb", indexFile), []byte("garbage"), 0o644))

	second := newTier(t, fs, &config.DiskCfg{Crc32Control: true})
	rec := attach(t, second, "thumb", 1000)
	require.Equal(t, uint64(100), rec.DiskSize())
	require.Equal(t, []model.Key{key}, keysOf(second.Entries("thumb")))
}

// TestTier_IndexDropsVanishedFiles ignores indexed entries without a file.
func TestTier_IndexDropsVanishedFiles(t *testing.T) {
	fs := memfs.New()
	first := newTier(t, fs, nil)
	attach(t, first, "thumb", 1000)
	a, b := model.NewKey("A", "thumb"), model.NewKey("B", "thumb")
	require.NoError(t, first.Put("thumb", a, blob(100, 'a')))
	require.NoError(t, first.Put("thumb", b, blob(200, 'b')))
	require.NoError(t, first.Flush(t.Context()))
	require.NoError(t, fs.Remove(first.path("thumb", a)))

	second := newTier(t, fs, nil)
	rec := attach(t, second, "thumb", 1000)
	require.Equal(t, uint64(200), rec.DiskSize())
	require.Equal(t, []model.Key{b}, keysOf(second.Entries("thumb")))
}

// TestTier_Flush_OnlyDirty skips indexes that did not change.
func TestTier_Flush_OnlyDirty(t *testing.T) {
	fs := memfs.New()
	tier := newTier(t, fs, nil)
	attach(t, tier, "thumb", 1000)
	require.NoError(t, tier.Put("thumb", model.NewKey("A", "thumb"), blob(10, 'a')))
	require.NoError(t, tier.Flush(t.Context()))
	require.NoError(t, fs.Remove(fs.Join("thumb", indexFile)))

	require.NoError(t, tier.Flush(t.Context()))
	_, err := fs.Stat(fs.Join("thumb", indexFile))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func keysOf(entries []Entry) []model.Key {
	out := make([]model.Key, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Key)
	}
	return out
}

// renameCountingFS counts index publications.
type renameCountingFS struct {
	billy.Filesystem
	published atomic.Int64
}

func (fs *renameCountingFS) Rename(from, to string) error {
	if filepath.Base(to) == indexFile {
		fs.published.Add(1)
	}
	return fs.Filesystem.Rename(from, to)
}

// TestTier_Close_StopsSync publishes the index on Close and leaves no periodic flush running afterwards.
func TestTier_Close_StopsSync(t *testing.T) {
	fs := &renameCountingFS{Filesystem: memfs.New()}
	tier := newTier(t, fs, &config.DiskCfg{SyncInterval: time.Millisecond})
	attach(t, tier, "thumb", 1000)

	require.NoError(t, tier.Put("thumb", model.NewKey("A", "thumb"), blob(10, 'a')))
	require.NoError(t, tier.Close())
	closed := fs.published.Load()
	require.Positive(t, closed)

	require.NoError(t, tier.Put("thumb", model.NewKey("B", "thumb"), blob(10, 'b')))
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, closed, fs.published.Load())
}
