package imgcache

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/Borislavv/go-ash-imgcache/config"
)

// Registry owns named cache instances. Two Opens of one name share the instance.
type Registry struct {
	mu     sync.Mutex
	logger *slog.Logger
	opts   []Option
	caches map[string]*Cache
}

// NewRegistry creates an empty registry. opts apply to every cache it opens.
func NewRegistry(logger *slog.Logger, opts ...Option) *Registry {
	return &Registry{logger: logger, opts: opts, caches: make(map[string]*Cache)}
}

// Open returns the cache named cfg.Name, creating it on first use.
// cfg is ignored when the cache is already open.
func (r *Registry) Open(ctx context.Context, cfg *config.Cache, opts ...Option) (*Cache, error) {
	if cfg == nil {
		cfg = &config.Cache{}
	}
	cfg.AdjustConfig()

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.caches[cfg.Name]; ok {
		return c, nil
	}
	c, err := New(ctx, cfg, r.logger, append(append([]Option(nil), r.opts...), opts...)...)
	if err != nil {
		return nil, err
	}
	r.caches[cfg.Name] = c
	return c, nil
}

func (r *Registry) Lookup(name string) (*Cache, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.caches[name]
	return c, ok
}

// Close closes and forgets the named cache. Unknown names are a no-op.
func (r *Registry) Close(name string) error {
	r.mu.Lock()
	c, ok := r.caches[name]
	delete(r.caches, name)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return c.Close()
}

// CloseAll closes every cache of the registry.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	caches := r.caches
	r.caches = make(map[string]*Cache)
	r.mu.Unlock()

	var errs []error
	for _, c := range caches {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
