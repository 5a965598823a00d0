package memory

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/Borislavv/go-ash-imgcache/model"
)

// Shard is an independent segment of the map.
// Counters are atomics so global readers never take the shard lock.
type Shard struct {
	sync.RWMutex
	items map[model.Key]*Entry

	id  uint64
	mem int64 // atomic: sum of entry weights
	len int64 // atomic: number of items

	// LRU, present only in bounded mode
	capacity int64
	lru      *list.List
	lidx     map[model.Key]*list.Element
}

func NewShard(id uint64, capacity int64) *Shard {
	sh := &Shard{id: id, items: make(map[model.Key]*Entry), capacity: capacity}
	if capacity > 0 {
		sh.lru = list.New()
		sh.lidx = make(map[model.Key]*list.Element)
	}
	return sh
}

func (sh *Shard) ID() uint64    { return sh.id }
func (sh *Shard) Weight() int64 { return atomic.LoadInt64(&sh.mem) }
func (sh *Shard) Len() int64    { return atomic.LoadInt64(&sh.len) }

// Get reads a value under a shared lock.
func (sh *Shard) Get(key model.Key) (value *Entry, hit bool) {
	sh.RLock()
	value, hit = sh.items[key]
	sh.RUnlock()
	return
}

// Set inserts or replaces an entry and evicts the LRU tail when the shard is over capacity.
// Returns deltas for global aggregations.
func (sh *Shard) Set(entry *Entry) (bytesDelta, lenDelta int64, evicted int64) {
	bytesDelta, lenDelta, evicted, _ = sh.SetIf(entry, nil)
	return
}

// SetIf is Set guarded by cond, which is evaluated under the write lock.
// A nil cond always holds.
func (sh *Shard) SetIf(entry *Entry, cond func() bool) (bytesDelta, lenDelta int64, evicted int64, stored bool) {
	key := entry.Key()

	sh.Lock()
	if cond != nil && !cond() {
		sh.Unlock()
		return 0, 0, 0, false
	}
	if old, hit := sh.items[key]; hit {
		sh.items[key] = entry
		sh.lruOnAccessUnlocked(key)
		bytesDelta = entry.Weight() - old.Weight()
	} else {
		sh.items[key] = entry
		sh.lruOnInsertUnlocked(key)
		bytesDelta, lenDelta = entry.Weight(), 1
	}
	atomic.AddInt64(&sh.mem, bytesDelta)
	atomic.AddInt64(&sh.len, lenDelta)

	for sh.capacity > 0 && atomic.LoadInt64(&sh.len) > sh.capacity {
		victim, ok := sh.lruPopTailUnlocked()
		if !ok {
			break
		}
		bytesDelta -= victim.Weight()
		lenDelta--
		evicted++
	}
	sh.Unlock()
	return bytesDelta, lenDelta, evicted, true
}

// Remove deletes a key under the write lock.
func (sh *Shard) Remove(key model.Key) (freedBytes int64, hit bool) {
	sh.Lock()
	freedBytes, hit = sh.removeUnlocked(key)
	sh.Unlock()
	return
}

// RemoveIf deletes every entry matching pred.
func (sh *Shard) RemoveIf(pred func(*Entry) bool) (freedBytes, items int64) {
	sh.Lock()
	for key, entry := range sh.items {
		if !pred(entry) {
			continue
		}
		if freed, hit := sh.removeUnlocked(key); hit {
			freedBytes += freed
			items++
		}
	}
	sh.Unlock()
	return
}

// Clear removes all entries and returns (freedBytes, itemsRemoved).
func (sh *Shard) Clear() (freedBytes int64, items int64) {
	sh.Lock()
	items = atomic.LoadInt64(&sh.len)
	freedBytes = atomic.LoadInt64(&sh.mem)

	sh.items = make(map[model.Key]*Entry)
	atomic.StoreInt64(&sh.len, 0)
	atomic.StoreInt64(&sh.mem, 0)
	if sh.lru != nil {
		sh.lru.Init()
		clear(sh.lidx)
	}
	sh.Unlock()
	return
}

func (sh *Shard) removeUnlocked(key model.Key) (freedBytes int64, hit bool) {
	var old *Entry
	if old, hit = sh.items[key]; hit {
		delete(sh.items, key)
		sh.lruOnDeleteUnlocked(key)

		freedBytes = old.Weight()
		atomic.AddInt64(&sh.mem, -freedBytes)
		atomic.AddInt64(&sh.len, -1)
	}
	return
}
