package memory

import "sync/atomic"

type counters struct {
	hits         atomic.Int64
	misses       atomic.Int64
	evicted      atomic.Int64
	flushes      atomic.Int64
	flushedItems atomic.Int64
}

func (c *counters) snapshot() (hits, misses, evicted, flushes, flushedItems int64) {
	return c.hits.Load(), c.misses.Load(), c.evicted.Load(), c.flushes.Load(), c.flushedItems.Load()
}
