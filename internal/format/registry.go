// Package format holds the formats registered in one cache instance
// together with their running disk sizes.
package format

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Borislavv/go-ash-imgcache/model"
)

// Record is a registered format. The format itself is immutable; only the disk size
// and the removal epoch move.
type Record struct {
	model.Format
	diskSize atomic.Int64
	epoch    atomic.Uint64
}

// Epoch returns the removal epoch. A reader that captured an older value must not
// publish what it read into the memory tier.
func (r *Record) Epoch() uint64 { return r.epoch.Load() }

// BumpEpoch is called before artifacts of the format are removed.
func (r *Record) BumpEpoch() { r.epoch.Add(1) }

// DiskSize returns the bytes currently held on disk by the format.
func (r *Record) DiskSize() uint64 {
	if v := r.diskSize.Load(); v > 0 {
		return uint64(v)
	}
	return 0
}

// AddDiskSize applies a net change of the disk size. The disk tier calls it
// once per mutation, while holding its own lock.
func (r *Record) AddDiskSize(delta int64) {
	if delta != 0 {
		r.diskSize.Add(delta)
	}
}

type Registry struct {
	mu      sync.RWMutex
	formats map[string]*Record
	pending map[string]struct{} // names reserved by a registration still running its hooks
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{formats: make(map[string]*Record), pending: make(map[string]struct{})}
}

// Register normalizes, validates and publishes the format.
// A taken or reserved name always fails with model.ErrFormatAlreadyRegistered and leaves the first record intact.
// The prepare hooks run without the registry lock, before the record becomes visible to lookups;
// an error cancels the registration and frees the name.
func (r *Registry) Register(f model.Format, prepare ...func(rec *Record) error) (*Record, error) {
	f = f.Normalize()
	if err := f.Validate(); err != nil {
		return nil, err
	}

	if err := r.reserve(f.Name); err != nil {
		return nil, err
	}
	rec := &Record{Format: f}
	for _, fn := range prepare {
		if err := fn(rec); err != nil {
			r.mu.Lock()
			delete(r.pending, f.Name)
			r.mu.Unlock()
			return nil, err
		}
	}

	r.mu.Lock()
	delete(r.pending, f.Name)
	r.formats[f.Name] = rec
	r.order = append(r.order, f.Name)
	r.mu.Unlock()
	return rec, nil
}

func (r *Registry) Lookup(name string) (*Record, bool) {
	r.mu.RLock()
	rec, ok := r.formats[name]
	r.mu.RUnlock()
	return rec, ok
}

// MustLookup is Lookup returning model.ErrFormatNotRegistered for unknown names.
func (r *Registry) MustLookup(name string) (*Record, error) {
	if rec, ok := r.Lookup(name); ok {
		return rec, nil
	}
	return nil, fmt.Errorf("%w: %q", model.ErrFormatNotRegistered, name)
}

// Walk visits records in registration order until fn returns false.
func (r *Registry) Walk(fn func(rec *Record) bool) {
	r.mu.RLock()
	records := make([]*Record, 0, len(r.order))
	for _, name := range r.order {
		records = append(records, r.formats[name])
	}
	r.mu.RUnlock()

	for _, rec := range records {
		if !fn(rec) {
			return
		}
	}
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.formats)
}

func (r *Registry) reserve(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, taken := r.formats[name]
	if _, reserved := r.pending[name]; taken || reserved {
		return fmt.Errorf("%w: %q", model.ErrFormatAlreadyRegistered, name)
	}
	r.pending[name] = struct{}{}
	return nil
}
