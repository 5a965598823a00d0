// Package metrics defines the observability hooks of the cache.
package metrics

import "time"

// Tier names the tier that served a hit.
type Tier string

const (
	TierMemory Tier = "memory"
	TierDisk   Tier = "disk"
)

// Metrics receives cache events. Implementations must be safe for concurrent use.
type Metrics interface {
	Hit(tier Tier)
	Miss()
	Produced(format string, took time.Duration)
	ProduceFailed(format string)
	Evicted(format string, bytes int64)
	DiskSize(format string, bytes uint64)
	MemoryFlushed(items int64)
}

// Noop is a drop-in Metrics implementation that does nothing.
// It is the default when no observability backend is configured.
type Noop struct{}

func (Noop) Hit(Tier)                       {}
func (Noop) Miss()                          {}
func (Noop) Produced(string, time.Duration) {}
func (Noop) ProduceFailed(string)           {}
func (Noop) Evicted(string, int64)          {}
func (Noop) DiskSize(string, uint64)        {}
func (Noop) MemoryFlushed(int64)            {}

var _ Metrics = Noop{}
