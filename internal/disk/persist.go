package disk

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/Borislavv/go-ash-imgcache/model"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	indexFile      = ".index"
	indexTmpPrefix = ".index-"
	recordSize     = 32 // hi, lo, size, seq
)

var errIndexMissing = errors.New("disk index is missing")

// Flush persists the indexes changed since the last flush.
func (t *Tier) Flush(ctx context.Context) error {
	type job struct {
		idx     *index
		entries []Entry
	}

	t.mu.Lock()
	jobs := make([]job, 0, len(t.formats))
	for _, idx := range t.formats {
		if !idx.dirty {
			continue
		}
		jobs = append(jobs, job{idx: idx, entries: idx.snapshot()})
		idx.dirty = false
	}
	t.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				t.markDirty(j.idx)
				return err
			}
			if err := t.saveIndex(j.idx.name(), j.entries); err != nil {
				t.markDirty(j.idx)
				return storageErr("persist index", j.idx.name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (t *Tier) markDirty(idx *index) {
	t.mu.Lock()
	idx.dirty = true
	t.mu.Unlock()
}

// saveIndex writes entries (MRU first) as crc-framed records ordered from
// least to most recently used, replacing the previous index atomically.
func (t *Tier) saveIndex(name string, entries []Entry) error {
	start := time.Now()

	f, err := t.fs.TempFile(name, indexTmpPrefix)
	if err != nil {
		return err
	}
	tmp := f.Name()

	var (
		writer io.Writer = f
		gw     *gzip.Writer
	)
	if t.cfg.Gzip {
		gw = gzip.NewWriter(f)
		writer = gw
	}
	bw := bufio.NewWriterSize(writer, 64*1024)

	var (
		payload [recordSize]byte
		meta    [8]byte
	)
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		binary.LittleEndian.PutUint64(payload[0:8], e.Key.Hi)
		binary.LittleEndian.PutUint64(payload[8:16], e.Key.Lo)
		binary.LittleEndian.PutUint64(payload[16:24], uint64(e.Size))
		binary.LittleEndian.PutUint64(payload[24:32], e.Seq)

		var crc uint32
		if t.cfg.Crc32Control {
			crc = crc32.ChecksumIEEE(payload[:])
		}
		binary.LittleEndian.PutUint32(meta[0:4], recordSize)
		binary.LittleEndian.PutUint32(meta[4:8], crc)
		if _, err = bw.Write(meta[:]); err == nil {
			_, err = bw.Write(payload[:])
		}
		if err != nil {
			break
		}
	}
	if err == nil {
		err = bw.Flush()
	}
	if gw != nil {
		if cerr := gw.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = t.fs.Rename(tmp, t.fs.Join(name, indexFile))
	}
	if err != nil {
		_ = t.fs.Remove(tmp)
		return err
	}

	log.Debug().
		Str("format", name).
		Int("written", len(entries)).
		Str("elapsed", time.Since(start).String()).
		Msg("disk index persisted")
	return nil
}

// loadIndex returns persisted entries ordered from least to most recently used.
func (t *Tier) loadIndex(name string) ([]Entry, error) {
	f, err := t.fs.Open(t.fs.Join(name, indexFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errIndexMissing
		}
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 64*1024)
	var reader io.Reader = br
	if magic, _ := br.Peek(2); len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gzr, gerr := gzip.NewReader(br)
		if gerr != nil {
			return nil, fmt.Errorf("open gzip index: %w", gerr)
		}
		defer gzr.Close()
		reader = gzr
	}

	var (
		entries  []Entry
		failures int
		meta     [8]byte
		payload  [recordSize]byte
	)
	for {
		if _, err = io.ReadFull(reader, meta[:]); err == io.EOF {
			break
		} else if err != nil {
			failures++
			break
		}
		if sz := binary.LittleEndian.Uint32(meta[0:4]); sz != recordSize {
			failures++
			break
		}
		if _, err = io.ReadFull(reader, payload[:]); err != nil {
			failures++
			break
		}
		if t.cfg.Crc32Control && crc32.ChecksumIEEE(payload[:]) != binary.LittleEndian.Uint32(meta[4:8]) {
			failures++
			continue
		}
		entries = append(entries, Entry{
			Key:  model.Key{Hi: binary.LittleEndian.Uint64(payload[0:8]), Lo: binary.LittleEndian.Uint64(payload[8:16])},
			Size: int64(binary.LittleEndian.Uint64(payload[16:24])),
			Seq:  binary.LittleEndian.Uint64(payload[24:32]),
		})
	}

	if failures > 0 {
		log.Warn().
			Str("format", name).
			Int("restored", len(entries)).
			Int("fails", failures).
			Msg("disk index partially corrupted")
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	return entries, nil
}

type scanned struct {
	size    int64
	modTime time.Time
}

// scanDir lists the artifact files of a format and removes leftovers of interrupted writes.
func (t *Tier) scanDir(name string) (map[model.Key]scanned, error) {
	infos, err := t.fs.ReadDir(name)
	if err != nil {
		return nil, err
	}
	files := make(map[model.Key]scanned, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		if strings.HasPrefix(info.Name(), tmpPrefix) || strings.HasPrefix(info.Name(), indexTmpPrefix) {
			_ = t.fs.Remove(t.fs.Join(name, info.Name()))
			continue
		}
		if key, ok := model.ParseKey(info.Name()); ok {
			files[key] = scanned{size: info.Size(), modTime: info.ModTime()}
		}
	}
	return files, nil
}

// restore returns the entries found on disk ordered from least to most
// recently used. Files unknown to the persisted index come first, ordered by
// modification time; indexed entries whose file is gone are dropped.
func (t *Tier) restore(name string) ([]Entry, error) {
	start := time.Now()

	files, err := t.scanDir(name)
	if err != nil {
		return nil, err
	}

	indexed, err := t.loadIndex(name)
	if err != nil && !errors.Is(err, errIndexMissing) {
		log.Warn().Err(err).Str("format", name).Msg("disk index unreadable, rebuilding from files")
	}

	out := make([]Entry, 0, len(files))
	known := make(map[model.Key]struct{}, len(indexed))
	for _, e := range indexed {
		if _, ok := files[e.Key]; ok {
			known[e.Key] = struct{}{}
		}
	}

	orphans := make([]model.Key, 0, len(files)-len(known))
	for key := range files {
		if _, ok := known[key]; !ok {
			orphans = append(orphans, key)
		}
	}
	sort.Slice(orphans, func(i, j int) bool {
		a, b := files[orphans[i]], files[orphans[j]]
		if !a.modTime.Equal(b.modTime) {
			return a.modTime.Before(b.modTime)
		}
		return orphans[i].String() < orphans[j].String()
	})
	for _, key := range orphans {
		out = append(out, Entry{Key: key, Size: files[key].size})
	}
	for _, e := range indexed {
		if f, ok := files[e.Key]; ok {
			out = append(out, Entry{Key: e.Key, Size: f.size})
			delete(files, e.Key) // guards against duplicated records
		}
	}

	log.Info().
		Str("format", name).
		Int("restored", len(out)).
		Int("unindexed", len(orphans)).
		Str("elapsed", time.Since(start).String()).
		Msg("disk format restored")
	return out, nil
}
