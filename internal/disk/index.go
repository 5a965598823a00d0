package disk

import (
	"container/list"

	"github.com/Borislavv/go-ash-imgcache/internal/format"
	"github.com/Borislavv/go-ash-imgcache/model"
)

// Entry is one artifact file of a format as seen by the index.
type Entry struct {
	Key  model.Key
	Size int64
	Seq  uint64 // recency: greater is more recent
}

// index is the per-format LRU over artifact files. Front is the most recently used.
// Every method must be called with Tier.mu held.
type index struct {
	rec   *format.Record
	size  int64
	lru   *list.List
	items map[model.Key]*list.Element
	dirty bool
}

func newIndex(rec *format.Record) *index {
	return &index{rec: rec, lru: list.New(), items: make(map[model.Key]*list.Element)}
}

func (idx *index) name() string { return idx.rec.Name }

func (idx *index) capacity() int64 { return int64(idx.rec.DiskCapacity) }

func (idx *index) get(key model.Key) (*Entry, bool) {
	if el, ok := idx.items[key]; ok {
		return el.Value.(*Entry), true
	}
	return nil, false
}

// upsert records a write of size bytes and returns the size delta.
func (idx *index) upsert(key model.Key, size int64, seq uint64) (delta int64) {
	idx.dirty = true
	if el, ok := idx.items[key]; ok {
		e := el.Value.(*Entry)
		delta = size - e.Size
		e.Size, e.Seq = size, seq
		idx.lru.MoveToFront(el)
	} else {
		idx.items[key] = idx.lru.PushFront(&Entry{Key: key, Size: size, Seq: seq})
		delta = size
	}
	idx.size += delta
	return delta
}

func (idx *index) touch(key model.Key, seq uint64) (*Entry, bool) {
	el, ok := idx.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*Entry)
	e.Seq = seq
	idx.lru.MoveToFront(el)
	idx.dirty = true
	return e, true
}

func (idx *index) remove(key model.Key) (*Entry, bool) {
	el, ok := idx.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*Entry)
	idx.lru.Remove(el)
	delete(idx.items, key)
	idx.size -= e.Size
	idx.dirty = true
	return e, true
}

// tail returns the least recently used entry.
func (idx *index) tail() (*Entry, bool) {
	el := idx.lru.Back()
	if el == nil {
		return nil, false
	}
	return el.Value.(*Entry), true
}

func (idx *index) overCapacity() bool {
	return idx.size > idx.capacity() && idx.lru.Len() > 0
}

// snapshot returns the entries MRU first.
func (idx *index) snapshot() []Entry {
	out := make([]Entry, 0, idx.lru.Len())
	for el := idx.lru.Front(); el != nil; el = el.Next() {
		out = append(out, *el.Value.(*Entry))
	}
	return out
}

func (idx *index) len() int { return idx.lru.Len() }
