package imgcache

import (
	"github.com/Borislavv/go-ash-imgcache/internal/memory"
	"github.com/Borislavv/go-ash-imgcache/metrics"
	"github.com/Borislavv/go-ash-imgcache/transform"
	"github.com/go-git/go-billy/v5"
)

type options struct {
	fs          billy.Filesystem
	transformer Transformer
	codec       Codec
	metrics     metrics.Metrics
	heap        memory.HeapReader
}

func defaultOptions() options {
	return options{
		transformer: transform.NewImaging(),
		codec:       transform.Codec{},
		metrics:     metrics.Noop{},
	}
}

type Option func(*options)

// WithFilesystem stores the disk tier on fs instead of Disk.Dir/<name>. It enables the disk tier.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(o *options) { o.fs = fs }
}

func WithTransformer(t Transformer) Option {
	return func(o *options) {
		if t != nil {
			o.transformer = t
		}
	}
}

func WithCodec(c Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithMetrics plugs an observability backend, e.g. metrics/prom.
func WithMetrics(m metrics.Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithHeapReader replaces the heap probe of the pressure watcher.
func WithHeapReader(fn func() uint64) Option {
	return func(o *options) { o.heap = fn }
}
