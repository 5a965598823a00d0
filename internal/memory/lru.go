package memory

import (
	"sync/atomic"

	"github.com/Borislavv/go-ash-imgcache/model"
)

// lruOnInsertUnlocked - is unsafe without shard.Lock due to it mutates the list.
func (sh *Shard) lruOnInsertUnlocked(key model.Key) {
	if sh.lru == nil {
		return
	}
	if el := sh.lidx[key]; el != nil {
		sh.lru.MoveToFront(el)
		return
	}
	sh.lidx[key] = sh.lru.PushFront(key)
}

// lruOnAccessUnlocked - is unsafe without shard.Lock due to it mutates the list otherwise use touchLRU.
func (sh *Shard) lruOnAccessUnlocked(key model.Key) {
	if sh.lru == nil {
		return
	}
	if el := sh.lidx[key]; el != nil {
		sh.lru.MoveToFront(el)
	}
}

// lruOnDeleteUnlocked - is unsafe without shard.Lock due to it mutates the list.
func (sh *Shard) lruOnDeleteUnlocked(key model.Key) {
	if sh.lru == nil {
		return
	}
	if el := sh.lidx[key]; el != nil {
		sh.lru.Remove(el)
		delete(sh.lidx, key)
	}
}

// touchLRU - threadsafe. Skips the promotion when the shard is busy so readers never wait.
func (sh *Shard) touchLRU(key model.Key) {
	if sh.lru == nil {
		return
	}
	if sh.TryLock() {
		if el := sh.lidx[key]; el != nil {
			sh.lru.MoveToFront(el)
		}
		sh.Unlock()
	}
}

// lruPopTailUnlocked removes the least recently used entry.
func (sh *Shard) lruPopTailUnlocked() (*Entry, bool) {
	if sh.lru == nil {
		return nil, false
	}
	el := sh.lru.Back()
	if el == nil {
		return nil, false
	}
	key := el.Value.(model.Key)
	v, ok := sh.items[key]
	sh.lru.Remove(el)
	delete(sh.lidx, key)
	if !ok {
		return nil, false
	}
	delete(sh.items, key)
	atomic.AddInt64(&sh.len, -1)
	atomic.AddInt64(&sh.mem, -v.Weight())
	return v, true
}
