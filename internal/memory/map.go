// Package memory implements the in-process tier: a sharded map of decoded
// artifacts. Reads take a single shard read lock and never wait on LRU
// bookkeeping, so a hit is always served synchronously.
package memory

import (
	"image"
	"sync/atomic"

	"github.com/Borislavv/go-ash-imgcache/config"
	"github.com/Borislavv/go-ash-imgcache/model"
)

// NumOfShards is the shard count of an unbounded map.
const NumOfShards = 256

// Map is a sharded concurrent map with precise global counters.
type Map struct {
	len int64 // atomic
	mem int64 // atomic

	shards   []*Shard
	mask     uint64
	counters *counters
}

// NewMap creates the map. A bounded map gets fewer shards when MaxEntries is small
// so that the per-shard LRU capacity stays at least one. Shard capacities add up
// to MaxEntries; since keys hash to shards, a shard may evict before the whole
// map is full.
func NewMap(cfg config.MemoryCfg) *Map {
	n, perShard, rest := uint64(NumOfShards), int64(0), int64(0)
	if cfg.Bounded() {
		for n > 1 && int64(n) > cfg.MaxEntries {
			n >>= 1
		}
		perShard, rest = cfg.MaxEntries/int64(n), cfg.MaxEntries%int64(n)
	}

	m := &Map{shards: make([]*Shard, n), mask: n - 1, counters: &counters{}}
	for id := uint64(0); id < n; id++ {
		capacity := perShard
		if int64(id) < rest {
			capacity++
		}
		m.shards[id] = NewShard(id, capacity)
	}
	return m
}

// Get returns the artifact of key and promotes it in bounded mode.
func (m *Map) Get(key model.Key) (image.Image, bool) {
	sh := m.Shard(key)
	if entry, ok := sh.Get(key); ok {
		sh.touchLRU(key)
		m.counters.hits.Add(1)
		return entry.Image(), true
	}
	m.counters.misses.Add(1)
	return nil, false
}

// Peek is Get without counters and promotion.
func (m *Map) Peek(key model.Key) (image.Image, bool) {
	if entry, ok := m.Shard(key).Get(key); ok {
		return entry.Image(), true
	}
	return nil, false
}

// Set stores the artifact of key rendered in format.
func (m *Map) Set(key model.Key, format string, img image.Image) {
	m.SetIf(key, format, img, nil)
}

// SetIf stores the artifact only while cond holds. cond runs under the shard
// write lock, so a removal that changes its outcome and then takes the same
// lock always observes the stored entry.
func (m *Map) SetIf(key model.Key, format string, img image.Image, cond func() bool) bool {
	bytesDelta, lenDelta, evicted, stored := m.Shard(key).SetIf(NewEntry(key, format, img), cond)
	if !stored {
		return false
	}
	if bytesDelta != 0 {
		atomic.AddInt64(&m.mem, bytesDelta)
	}
	if lenDelta != 0 {
		atomic.AddInt64(&m.len, lenDelta)
	}
	if evicted > 0 {
		m.counters.evicted.Add(evicted)
	}
	return true
}

// Remove deletes a key and adjusts global counters.
func (m *Map) Remove(key model.Key) bool {
	freed, hit := m.Shard(key).Remove(key)
	if hit {
		atomic.AddInt64(&m.len, -1)
		atomic.AddInt64(&m.mem, -freed)
	}
	return hit
}

// RemoveIf deletes every entry matching pred and returns how many were removed.
func (m *Map) RemoveIf(pred func(*Entry) bool) (removed int64) {
	for _, sh := range m.shards {
		freed, items := sh.RemoveIf(pred)
		if items != 0 {
			atomic.AddInt64(&m.len, -items)
			atomic.AddInt64(&m.mem, -freed)
			removed += items
		}
	}
	return removed
}

// RemoveFormat deletes every artifact of the format.
func (m *Map) RemoveFormat(format string) int64 {
	return m.RemoveIf(func(e *Entry) bool { return e.Format() == format })
}

// Clear wipes all shards and fixes global counters.
func (m *Map) Clear() (items int64) {
	for _, sh := range m.shards {
		freed, n := sh.Clear()
		if n != 0 {
			atomic.AddInt64(&m.len, -n)
			atomic.AddInt64(&m.mem, -freed)
			items += n
		}
	}
	m.counters.flushes.Add(1)
	m.counters.flushedItems.Add(items)
	return items
}

func (m *Map) Shard(key model.Key) *Shard { return m.shards[key.Lo&m.mask] }
func (m *Map) Len() int64                 { return atomic.LoadInt64(&m.len) }
func (m *Map) Mem() int64                 { return atomic.LoadInt64(&m.mem) }
func (m *Map) ShardsNum() int             { return len(m.shards) }

// Capacity is the sum of the shard capacities, zero when unbounded.
func (m *Map) Capacity() (total int64) {
	for _, sh := range m.shards {
		total += sh.capacity
	}
	return total
}

// Metrics returns cumulative counters.
func (m *Map) Metrics() (hits, misses, evicted, flushes, flushedItems int64) {
	return m.counters.snapshot()
}
