// Package rate paces periodic readings of a gauge such as the live heap.
package rate

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/ratelimit"
)

// Reading is one gauge value taken by a Sampler.
type Reading struct {
	Value uint64
	At    time.Time
}

// Sampler reads a gauge at most perSec times per second. Only the latest
// unread reading is kept, so a slow consumer never works through a backlog
// of stale values. The channel is closed when ctx is done.
type Sampler struct {
	out    chan Reading
	l      ratelimit.Limiter
	read   func() uint64
	perSec int
	taken  atomic.Int64
}

func NewSampler(ctx context.Context, perSec int, read func() uint64) *Sampler {
	if perSec < 1 {
		perSec = 1
	}
	s := &Sampler{
		out:    make(chan Reading, 1),
		l:      ratelimit.New(perSec, ratelimit.WithoutSlack),
		read:   read,
		perSec: perSec,
	}
	go s.provider(ctx)
	return s
}

func (s *Sampler) Chan() <-chan Reading { return s.out }

// PerSec is the effective sampling rate.
func (s *Sampler) PerSec() int { return s.perSec }

// Taken counts readings, including the ones replaced before being received.
func (s *Sampler) Taken() int64 { return s.taken.Load() }

func (s *Sampler) provider(ctx context.Context) {
	defer close(s.out)
	for {
		s.l.Take()
		if ctx.Err() != nil {
			return
		}
		r := Reading{Value: s.read(), At: time.Now()}
		s.taken.Add(1)

		// provider is the only sender: after dropping the stale reading the send cannot block
		select {
		case <-s.out:
		default:
		}
		s.out <- r
	}
}
