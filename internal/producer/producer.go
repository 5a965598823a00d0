// Package producer renders artifacts on cache misses. Concurrent requests
// for the same key share one production; the result lands in both tiers
// before any waiter is released.
package producer

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/Borislavv/go-ash-imgcache/config"
	"github.com/Borislavv/go-ash-imgcache/metrics"
	"github.com/Borislavv/go-ash-imgcache/model"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

type Memory interface {
	Peek(key model.Key) (image.Image, bool)
	Set(key model.Key, format string, img image.Image)
}

type Disk interface {
	Put(format string, key model.Key, data []byte) error
}

type Producer struct {
	group       singleflight.Group
	sem         *semaphore.Weighted
	memory      Memory
	disk        Disk
	transformer model.Transformer
	codec       model.Codec
	metrics     metrics.Metrics
	logger      *slog.Logger
	counters    *counters
}

func New(
	cfg config.PoolCfg,
	memory Memory,
	disk Disk,
	transformer model.Transformer,
	codec model.Codec,
	m metrics.Metrics,
	logger *slog.Logger,
) *Producer {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	if m == nil {
		m = metrics.Noop{}
	}
	return &Producer{
		sem:         semaphore.NewWeighted(workers),
		memory:      memory,
		disk:        disk,
		transformer: transformer,
		codec:       codec,
		metrics:     m,
		logger:      logger,
		counters:    &counters{},
	}
}

// Produce returns the artifact of key, joining a production already in
// flight for it. A started production always runs to completion: when ctx
// ends first only the wait is abandoned.
func (p *Producer) Produce(ctx context.Context, key model.Key, entity model.Entity, f model.Format) (image.Image, error) {
	ch := p.group.DoChan(key.String(), func() (any, error) {
		return p.produce(context.WithoutCancel(ctx), key, entity, f)
	})

	select {
	case <-ctx.Done():
		p.counters.abandoned.Add(1)
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			p.counters.shared.Add(1)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(image.Image), nil
	}
}

// Metrics returns cumulative counters.
func (p *Producer) Metrics() (produced, failed, shared, abandoned, inFlight int64) {
	return p.counters.snapshot()
}

func (p *Producer) produce(ctx context.Context, key model.Key, entity model.Entity, f model.Format) (image.Image, error) {
	// a production for key may have completed between the caller's lookup and this one
	if img, ok := p.memory.Peek(key); ok {
		return img, nil
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)

	p.counters.inFlight.Add(1)
	defer p.counters.inFlight.Add(-1)

	start := time.Now()
	img, err := p.render(key, entity, f)
	if err != nil {
		p.counters.failed.Add(1)
		p.metrics.ProduceFailed(f.Name)
		p.logger.Warn("artifact production failed", "format", f.Name, "key", key.String(), "err", err)
		return nil, err
	}

	p.counters.produced.Add(1)
	p.metrics.Produced(f.Name, time.Since(start))
	return img, nil
}

// render is resolve, transform, persist, then publish in memory.
func (p *Producer) render(key model.Key, entity model.Entity, f model.Format) (image.Image, error) {
	src, err := p.source(entity)
	if err != nil {
		return nil, err
	}

	img, err := p.transformer.Transform(src, f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrTransformFailed, f.Name, err)
	}
	if img == nil {
		return nil, fmt.Errorf("%w: %s: transformer returned no image", model.ErrTransformFailed, f.Name)
	}

	if f.HasDisk() {
		data, encErr := p.codec.Encode(img, f)
		if encErr != nil {
			return nil, fmt.Errorf("%w: encode %s: %w", model.ErrStorageIO, f.Name, encErr)
		}
		if err = p.disk.Put(f.Name, key, data); err != nil {
			return nil, err
		}
	}

	p.memory.Set(key, f.Name, img)
	return img, nil
}

func (p *Producer) source(entity model.Entity) (image.Image, error) {
	if entity == nil {
		return nil, fmt.Errorf("%w: nil entity", model.ErrSourceUnavailable)
	}
	if img := entity.OriginalImage(); img != nil {
		return img, nil
	}
	if data := entity.OriginalData(); len(data) > 0 {
		img, err := p.codec.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", model.ErrSourceUnavailable, entity.CacheID(), err)
		}
		return img, nil
	}
	return nil, fmt.Errorf("%w: %s", model.ErrSourceUnavailable, entity.CacheID())
}
