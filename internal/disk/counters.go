package disk

import "sync/atomic"

type counters struct {
	hits         atomic.Int64
	misses       atomic.Int64
	writes       atomic.Int64
	evictedItems atomic.Int64
	evictedBytes atomic.Int64
	ioErrors     atomic.Int64
}

func (c *counters) snapshot() (hits, misses, writes, evictedItems, evictedBytes, ioErrors int64) {
	return c.hits.Load(), c.misses.Load(), c.writes.Load(), c.evictedItems.Load(), c.evictedBytes.Load(), c.ioErrors.Load()
}
