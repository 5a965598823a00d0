package producer

import "sync/atomic"

type counters struct {
	produced  atomic.Int64
	failed    atomic.Int64
	shared    atomic.Int64
	abandoned atomic.Int64
	inFlight  atomic.Int64
}

func (c *counters) snapshot() (produced, failed, shared, abandoned, inFlight int64) {
	return c.produced.Load(), c.failed.Load(), c.shared.Load(), c.abandoned.Load(), c.inFlight.Load()
}
